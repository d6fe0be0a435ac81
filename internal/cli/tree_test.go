package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/taxsync/internal/compiler"
)

func syncedOptions(t *testing.T, format string) *RootOptions {
	t.Helper()
	opts := testOptions(t, format)
	_, err := execute(NewSyncCommand(opts))
	require.NoError(t, err)
	return opts
}

func TestTree_Text(t *testing.T) {
	opts := syncedOptions(t, "text")

	out, err := execute(NewTreeCommand(opts), "--taxonomy", "wsuwp_university_location")
	require.NoError(t, err)
	assert.Contains(t, out, "wsuwp_university_location (4 terms)")
	assert.Contains(t, out, "\n  WSU Research Centers [")
	assert.Contains(t, out, "\n    Lind [")
	assert.NotContains(t, out, "wsuwp_university_category")
}

func TestTree_JSONAllTaxonomies(t *testing.T) {
	opts := syncedOptions(t, "json")

	out, err := execute(NewTreeCommand(opts))
	require.NoError(t, err)

	var result TreeResult
	decodeData(t, out, &result)
	require.Len(t, result.Trees, 2)
	assert.Equal(t, 8, result.Trees[0].Count)
	assert.Equal(t, 4, result.Trees[1].Count)
	require.NotEmpty(t, result.Trees[0].Roots)
	assert.Equal(t, "Alumni", result.Trees[0].Roots[0].Name)
}

func TestTree_UnmanagedTaxonomy(t *testing.T) {
	_, err := execute(NewTreeCommand(syncedOptions(t, "text")), "--taxonomy", "post_tag")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not managed")
}

func TestTree_UnknownTenant(t *testing.T) {
	_, err := execute(NewTreeCommand(testOptions(t, "text")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeTenant)
}

func TestExport_CSVToStdout(t *testing.T) {
	opts := syncedOptions(t, "text")

	out, err := execute(NewExportCommand(opts), "--taxonomy", "wsuwp_university_location", "--as", "csv")
	require.NoError(t, err)
	assert.Equal(t, `WSU Pullman,wsu-pullman,,,,
WSU Research Centers,wsu-research-centers,,,,
WSU Research Centers,wsu-research-centers,Lind,lind,,
WSU Research Centers,wsu-research-centers,Prosser,prosser,,
`, out)
}

func TestExport_DefinitionRoundTrip(t *testing.T) {
	opts := syncedOptions(t, "text")
	outDir := filepath.Join(t.TempDir(), "exported")
	path := filepath.Join(outDir, "schema.yaml")

	out, err := execute(NewExportCommand(opts), "-o", path, "--stamp", "2024090101")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Exported 12 terms to "+path)

	sch, err := compiler.LoadDir(outDir)
	require.NoError(t, err)
	assert.Equal(t, "2024090101", sch.Version)

	want, err := compiler.LoadDir(definitionsDir)
	require.NoError(t, err)
	require.Len(t, sch.Taxonomies, len(want.Taxonomies))
	for i := range want.Taxonomies {
		assert.ElementsMatch(t, want.Taxonomies[i].Definition.Names(), sch.Taxonomies[i].Definition.Names())
	}
}

func TestExport_Rejections(t *testing.T) {
	opts := syncedOptions(t, "text")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown format", []string{"--as", "xml"}, "invalid export format"},
		{"csv without taxonomy", []string{"--as", "csv"}, "needs --taxonomy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(NewExportCommand(opts), tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestExport_WriteFailure(t *testing.T) {
	opts := syncedOptions(t, "text")
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	_, err := execute(NewExportCommand(opts), "-o", filepath.Join(blocker, "schema.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeWriteFailed)
}
