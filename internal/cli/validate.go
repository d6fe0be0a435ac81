package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/taxsync/internal/taxonomy"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool              `json:"valid"`
	Dir        string            `json:"dir"`
	Version    string            `json:"version"`
	Taxonomies []TaxonomySummary `json:"taxonomies"`
}

// TaxonomySummary describes one managed taxonomy in a definition set.
type TaxonomySummary struct {
	Taxonomy   taxonomy.ID `json:"taxonomy"`
	Terms      int         `json:"terms"`
	Directives int         `json:"directives"`
}

// RenderText implements textRenderer.
func (r ValidationResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "✓ Definitions valid (version %s)\n", r.Version)
	for _, t := range r.Taxonomies {
		fmt.Fprintf(w, "  %s: %d terms, %d directives\n", t.Taxonomy, t.Terms, t.Directives)
	}
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [definitions-dir]",
		Short: "Validate taxonomy definitions",
		Long: `Compile the CUE or YAML definitions in a directory and report the
version and managed taxonomies they declare. Nothing is written.

Defaults to the configured definitions directory.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			} else if rootOpts.Config != nil {
				dir = rootOpts.Config.Definitions
			}
			return runValidate(rootOpts, dir, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	if dir == "" {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "no definitions directory given")
	}

	formatter.VerboseLog("Validating definitions in %s", dir)
	sch, err := LoadDefinitions(dir)
	if err != nil {
		return failLoad(formatter, err)
	}

	result := ValidationResult{
		Valid:      true,
		Dir:        dir,
		Version:    sch.Version,
		Taxonomies: make([]TaxonomySummary, len(sch.Taxonomies)),
	}
	for i, m := range sch.Taxonomies {
		result.Taxonomies[i] = TaxonomySummary{
			Taxonomy:   m.ID(),
			Terms:      m.Definition.Count(),
			Directives: len(m.Directives),
		}
	}
	return formatter.Success(result)
}
