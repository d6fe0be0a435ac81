package taxonomy

import (
	"errors"
	"fmt"
)

// Directive renames the term currently called From to To. An empty To
// deletes the term instead.
type Directive struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to,omitempty" yaml:"to,omitempty"`
}

// IsDelete reports whether the directive removes its term.
func (d Directive) IsDelete() bool {
	return d.To == ""
}

func (d Directive) String() string {
	if d.IsDelete() {
		return fmt.Sprintf("delete %q", d.From)
	}
	return fmt.Sprintf("rename %q -> %q", d.From, d.To)
}

// Directives is the ordered rename/delete table for one taxonomy.
type Directives []Directive

// ErrInvalidDirective is wrapped by every Directives.Validate failure.
var ErrInvalidDirective = errors.New("invalid directive")

// Validate rejects blank or untrimmed names, self-renames, and a source
// listed twice.
func (ds Directives) Validate() error {
	seen := make(map[string]bool, len(ds))
	for i, d := range ds {
		if err := checkName(d.From); err != nil {
			return fmt.Errorf("%w: [%d]: from: %v", ErrInvalidDirective, i, err)
		}
		if !d.IsDelete() {
			if err := checkName(d.To); err != nil {
				return fmt.Errorf("%w: [%d]: to: %v", ErrInvalidDirective, i, err)
			}
		}
		if d.From == d.To {
			return fmt.Errorf("%w: [%d]: %q renames to itself", ErrInvalidDirective, i, d.From)
		}
		if seen[d.From] {
			return fmt.Errorf("%w: [%d]: %q listed twice", ErrInvalidDirective, i, d.From)
		}
		seen[d.From] = true
	}
	return nil
}
