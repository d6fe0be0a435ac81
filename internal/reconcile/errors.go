package reconcile

import (
	"errors"
	"fmt"

	"github.com/roach88/taxsync/internal/taxonomy"
)

// Op names the store operation that failed.
type Op string

const (
	OpList   Op = "list"
	OpCreate Op = "create"
	OpRename Op = "rename"
	OpDelete Op = "delete"
)

// OpError records one store operation that failed during a run.
//
// Most OpErrors are absorbed: they land in a Report and the pass continues.
type OpError struct {
	Op       Op
	Taxonomy taxonomy.ID
	// Name is the term name involved (the source name for directives).
	Name string
	// Parent is the parent the operation was scoped to.
	Parent taxonomy.TermID
	// Level is the definition level (1-3), or 0 for directive operations.
	Level int
	Err   error
}

func (e *OpError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s %s (parent=%d): %v", e.Op, e.Taxonomy, e.Parent, e.Err)
	}
	return fmt.Sprintf("%s %s %q (parent=%d): %v", e.Op, e.Taxonomy, e.Name, e.Parent, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// IsOpError reports whether err wraps an OpError for op.
func IsOpError(err error, op Op) bool {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Op == op
	}
	return false
}
