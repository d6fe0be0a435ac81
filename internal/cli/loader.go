package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"cuelang.org/go/cue/token"

	"github.com/roach88/taxsync/internal/compiler"
	"github.com/roach88/taxsync/internal/taxonomy"
	"github.com/roach88/taxsync/internal/tenant"
)

// LoadError represents an error that occurred while loading definitions.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
	Line    int       // YAML line if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s: %s", e.Line, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadDefinitions compiles the definitions in dir, converting every failure
// into a *LoadError carrying a stable code.
func LoadDefinitions(dir string) (*taxonomy.Schema, error) {
	sch, err := compiler.LoadDir(dir)
	if err == nil {
		return sch, nil
	}

	var compileErr *compiler.CompileError
	switch {
	case errors.As(err, &compileErr):
		return nil, &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
			Line:    compileErr.Line,
		}
	case errors.Is(err, fs.ErrNotExist):
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("definitions directory not found: %s", dir)}
	case errors.Is(err, compiler.ErrNotDirectory):
		return nil, &LoadError{Code: ErrCodeNotDirectory, Message: fmt.Sprintf("not a directory: %s", dir)}
	case errors.Is(err, compiler.ErrNoDefinitions):
		return nil, &LoadError{Code: ErrCodeNoDefinitions, Message: fmt.Sprintf("no CUE or YAML definitions found in %s", dir)}
	default:
		return nil, &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeConfig        = "E002" // Configuration invalid
	ErrCodeNoDefinitions = "E003" // No definition files found
	ErrCodeLoadFailed    = "E004" // CUE load or build failed
	ErrCodeNotFound      = "E005" // Path not found
	ErrCodeNotDirectory  = "E006" // Path is not a directory
	ErrCodeWriteFailed   = "E007" // File write error
	ErrCodeTenant        = "E008" // Tenant invalid or not provisioned
	ErrCodeStore         = "E009" // Term store unavailable
	ErrCodeRunFailed     = "E010" // Schema update aborted

	// Definition errors
	ErrCodeVersion    = "E101" // Missing version
	ErrCodeOrder      = "E102" // Taxonomy order invalid
	ErrCodeTerms      = "E103" // Terms malformed
	ErrCodeDirectives = "E104" // Directives malformed
	ErrCodeDefinition = "E105" // Definition failed validation
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "cue":
		return ErrCodeLoadFailed
	case "version":
		return ErrCodeVersion
	case "order", "taxonomy":
		return ErrCodeOrder
	case "terms":
		return ErrCodeTerms
	case "directives":
		return ErrCodeDirectives
	case "schema":
		return ErrCodeDefinition
	default:
		return ErrCodeGeneric
	}
}

// openRegistry loads the definitions named by the configuration and returns
// a tenant registry serving them.
func openRegistry(opts *RootOptions) (*tenant.Registry, *taxonomy.Schema, error) {
	sch, err := LoadDefinitions(opts.Config.Definitions)
	if err != nil {
		return nil, nil, err
	}
	opts.Logger.Debug("definitions loaded",
		"dir", opts.Config.Definitions,
		"version", sch.Version,
		"taxonomies", len(sch.Taxonomies),
	)
	reg := tenant.NewRegistry(opts.Config, sch, tenant.WithLogger(opts.Logger))
	return reg, sch, nil
}

// failLoad reports a definitions error through f.
func failLoad(f *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return f.Fail(ExitCommandError, loadErr.Code, loadErr.Error())
	}
	return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error())
}

// failTenant reports a registry error through f.
func failTenant(f *OutputFormatter, err error) error {
	if errors.Is(err, tenant.ErrInvalidTenant) || errors.Is(err, tenant.ErrUnknownTenant) {
		return f.Fail(ExitCommandError, ErrCodeTenant, err.Error())
	}
	return f.Fail(ExitCommandError, ErrCodeStore, err.Error())
}
