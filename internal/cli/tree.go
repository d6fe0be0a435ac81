package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/taxsync/internal/export"
	"github.com/roach88/taxsync/internal/store"
	"github.com/roach88/taxsync/internal/taxonomy"
)

// TreeResult is the live term hierarchy of one or more taxonomies.
type TreeResult struct {
	Tenant string        `json:"tenant"`
	Trees  []*store.Tree `json:"trees"`
}

// RenderText implements textRenderer.
func (r TreeResult) RenderText(w io.Writer) {
	for _, tree := range r.Trees {
		fmt.Fprintf(w, "%s (%d terms)\n", tree.Taxonomy, tree.Count)
		tree.Walk(func(n *store.Node, depth int) {
			fmt.Fprintf(w, "%s%s [%d]\n", strings.Repeat("  ", depth), n.Name, n.ID)
		})
		for _, n := range tree.Orphans {
			fmt.Fprintf(w, "  ? %s [%d] (parent %d missing)\n", n.Name, n.ID, n.Parent)
		}
	}
}

// NewTreeCommand creates the tree command.
func NewTreeCommand(rootOpts *RootOptions) *cobra.Command {
	var tax string

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the live term hierarchy",
		Long: `Print the terms currently stored for the tenant. Terms are listed in
store order (by name), with orphans whose parent was deleted shown last.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			trees, _, err := loadTrees(rootOpts, cmd, formatter, tax)
			if err != nil {
				return err
			}
			return formatter.Success(TreeResult{Tenant: rootOpts.Config.DefaultTenant, Trees: trees})
		},
	}

	cmd.Flags().StringVar(&tax, "taxonomy", "", "only this taxonomy (default all managed)")

	return cmd
}

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Taxonomy string
	As       string
	Output   string
	// Stamp is the version written into a YAML export. Defaults to the
	// loaded definitions version.
	Stamp string
}

// ExportResult reports a written export file.
type ExportResult struct {
	Path     string `json:"path"`
	Format   string `json:"format"`
	Terms    int    `json:"terms"`
	Taxonomy string `json:"taxonomy,omitempty"`
}

// RenderText implements textRenderer.
func (r ExportResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "✓ Exported %d terms to %s\n", r.Terms, r.Path)
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the live hierarchy as CSV or as a definition",
		Long: `Dump the tenant's stored terms, either as CSV rows of
(level 1, slug, level 2, slug, level 3, slug) or as a YAML definition that
can seed a definitions directory.

Example:
  taxsync export --taxonomy wsuwp_university_category --as csv -o categories.csv
  taxsync export --as yaml -o definitions/schema.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Taxonomy, "taxonomy", "", "taxonomy to export (required for csv)")
	cmd.Flags().StringVar(&opts.As, "as", "yaml", "export format (csv|yaml)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&opts.Stamp, "stamp", "", "version written into a yaml export (default definitions version)")

	return cmd
}

func runExport(opts *ExportOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if opts.As != "csv" && opts.As != "yaml" {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("invalid export format %q: must be csv or yaml", opts.As))
	}
	if opts.As == "csv" && opts.Taxonomy == "" {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "csv export needs --taxonomy")
	}

	trees, version, err := loadTrees(opts.RootOptions, cmd, formatter, opts.Taxonomy)
	if err != nil {
		return err
	}
	if opts.Stamp != "" {
		version = opts.Stamp
	}

	var buf bytes.Buffer
	terms := 0
	for _, t := range trees {
		terms += t.Count
	}
	if opts.As == "csv" {
		err = export.WriteCSV(&buf, trees[0])
	} else {
		err = export.WriteDefinition(&buf, version, trees...)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err.Error())
	}

	if opts.Output == "" {
		_, err := buf.WriteTo(cmd.OutOrStdout())
		return err
	}

	if dir := filepath.Dir(opts.Output); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("failed to create output directory: %v", err))
		}
	}
	if err := os.WriteFile(opts.Output, buf.Bytes(), 0644); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("failed to write output: %v", err))
	}
	formatter.VerboseLog("Wrote %d bytes to %s", buf.Len(), opts.Output)

	return formatter.Success(ExportResult{
		Path:     opts.Output,
		Format:   opts.As,
		Terms:    terms,
		Taxonomy: opts.Taxonomy,
	})
}

// loadTrees opens the default tenant and reads the requested taxonomy, or
// every managed taxonomy when tax is empty, along with the definitions
// version. Failures are reported through formatter.
func loadTrees(opts *RootOptions, cmd *cobra.Command, formatter *OutputFormatter, tax string) ([]*store.Tree, string, error) {
	reg, sch, err := openRegistry(opts)
	if err != nil {
		return nil, "", failLoad(formatter, err)
	}
	defer closeRegistry(opts, reg)

	ids := sch.IDs()
	if tax != "" {
		if _, ok := sch.Lookup(taxonomy.ID(tax)); !ok {
			return nil, "", formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("taxonomy %q is not managed", tax))
		}
		ids = []taxonomy.ID{taxonomy.ID(tax)}
	}

	ctx := cmd.Context()
	t, err := reg.Tenant(ctx, opts.Config.DefaultTenant)
	if err != nil {
		return nil, "", failTenant(formatter, err)
	}

	trees := make([]*store.Tree, 0, len(ids))
	for _, id := range ids {
		tree, err := t.Store.Tree(ctx, id)
		if err != nil {
			return nil, "", formatter.Fail(ExitCommandError, ErrCodeStore, err.Error())
		}
		trees = append(trees, tree)
	}
	return trees, sch.Version, nil
}
