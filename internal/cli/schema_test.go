package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/taxsync/internal/compiler"
	"github.com/roach88/taxsync/internal/reconcile"
	"github.com/roach88/taxsync/internal/taxonomy"
	"github.com/roach88/taxsync/internal/tenant"
	"github.com/roach88/taxsync/internal/testutil"
)

// openUnstamped creates the default tenant's database without running an
// update, leaving it stale.
func openUnstamped(t *testing.T, opts *RootOptions) {
	t.Helper()
	sch, err := compiler.LoadDir(opts.Config.Definitions)
	require.NoError(t, err)
	reg := tenant.NewRegistry(opts.Config, sch, tenant.WithLogger(testutil.DiscardLogger()))
	_, err = reg.Open(context.Background(), opts.Config.DefaultTenant)
	require.NoError(t, err)
	require.NoError(t, reg.Close())
}

func TestSync_CreatesMissingTerms(t *testing.T) {
	opts := testOptions(t, "text")

	out, err := execute(NewSyncCommand(opts))
	require.NoError(t, err)
	assert.Contains(t, out, "Tenant default synchronized to test-1")
	assert.Contains(t, out, "wsuwp_university_category: 8 created, 0 matched, 0 renamed, 0 deleted, 1 skipped, 0 failed")
	assert.Contains(t, out, "wsuwp_university_location: 4 created, 0 matched, 0 renamed, 0 deleted, 0 skipped, 0 failed")
}

func TestSync_SecondRunMatchesEverything(t *testing.T) {
	opts := testOptions(t, "json")

	_, err := execute(NewSyncCommand(opts))
	require.NoError(t, err)

	out, err := execute(NewSyncCommand(opts))
	require.NoError(t, err)

	var result SyncResult
	decodeData(t, out, &result)
	assert.Equal(t, []reconcile.Summary{
		{Taxonomy: "wsuwp_university_category", Matched: 8, Skipped: 1},
		{Taxonomy: "wsuwp_university_location", Matched: 4},
	}, result.Reports)
	assert.Zero(t, result.Failures())
}

func TestSync_BadDefinitions(t *testing.T) {
	opts := testOptions(t, "text")
	opts.Config.Definitions = t.TempDir()

	_, err := execute(NewSyncCommand(opts))
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNoDefinitions)
}

func TestProvision_NewTenant(t *testing.T) {
	opts := testOptions(t, "json")

	out, err := execute(NewProvisionCommand(opts), "spokane")
	require.NoError(t, err)

	var result SyncResult
	decodeData(t, out, &result)
	assert.Equal(t, "spokane", result.Tenant)
	require.Len(t, result.Reports, 2)
	assert.Equal(t, 8, result.Reports[0].Created)
	assert.Equal(t, 4, result.Reports[1].Created)
}

func TestProvision_InvalidTenant(t *testing.T) {
	out, err := execute(NewProvisionCommand(testOptions(t, "text")), "Bad Name")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E008]")
}

func TestStatus_UnknownTenant(t *testing.T) {
	_, err := execute(NewStatusCommand(testOptions(t, "text")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeTenant)
}

func TestStatus_AfterSync(t *testing.T) {
	opts := testOptions(t, "json")
	_, err := execute(NewSyncCommand(opts))
	require.NoError(t, err)

	out, err := execute(NewStatusCommand(opts))
	require.NoError(t, err)

	var result StatusResult
	decodeData(t, out, &result)
	assert.Equal(t, "default", result.Tenant)
	assert.Equal(t, "test-1", result.Expected)
	assert.Equal(t, "test-1", result.Stored)
	assert.True(t, result.Current)
	assert.Nil(t, result.Pending)
}

func TestCheck_SchedulesOnce(t *testing.T) {
	opts := testOptions(t, "text")
	openUnstamped(t, opts)

	out, err := execute(NewCheckCommand(opts))
	require.NoError(t, err)
	assert.Contains(t, out, "Stored:   (none) (stale)")
	assert.Contains(t, out, "Pending:  ticket")
	assert.Contains(t, out, "Update scheduled.")

	out, err = execute(NewCheckCommand(opts))
	require.NoError(t, err)
	assert.Contains(t, out, "Pending:  ticket")
	assert.NotContains(t, out, "Update scheduled.")
}

func TestCheck_CurrentTenant(t *testing.T) {
	opts := testOptions(t, "json")
	_, err := execute(NewSyncCommand(opts))
	require.NoError(t, err)

	out, err := execute(NewCheckCommand(opts))
	require.NoError(t, err)

	var result StatusResult
	decodeData(t, out, &result)
	assert.False(t, result.Scheduled)
	assert.True(t, result.Current)
	assert.Nil(t, result.Pending)
}

func TestSyncResult_Failures(t *testing.T) {
	r := SyncResult{Reports: []reconcile.Summary{
		{Taxonomy: taxonomy.ID("a"), Failures: 2},
		{Taxonomy: taxonomy.ID("b"), Failures: 1},
	}}
	assert.Equal(t, 3, r.Failures())
}
