package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/taxsync/internal/store"
	"github.com/roach88/taxsync/internal/taxonomy"
)

func extensionManaged(leaves []string, directives taxonomy.Directives) taxonomy.Managed {
	return taxonomy.Managed{
		Definition: taxonomy.Definition{
			Taxonomy: cat,
			Groups: []taxonomy.Group{{
				Name:     "Locations",
				Children: []taxonomy.Child{{Name: "WSU Extension", Leaves: leaves}},
			}},
		},
		Directives: directives,
	}
}

func TestApplyDirectives_RenamePreservesIdentity(t *testing.T) {
	s := newSpy(t)
	ctx := context.Background()
	loc := seed(t, s, "Locations", taxonomy.RootID)
	ext := seed(t, s, "WSU Extension", loc.ID)
	county := seed(t, s, "County Name", ext.ID)
	require.NoError(t, s.AssignTerm(ctx, "post-7", county.ID))

	report, err := newEngine(s).ApplyDirectives(ctx, cat, taxonomy.Directives{{From: "County Name", To: "New Name"}})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Renamed)

	got, err := s.Term(ctx, county.ID)
	require.NoError(t, err)
	assert.Equal(t, "New Name", got.Name)
	assert.Equal(t, ext.ID, got.Parent)

	tagged, err := s.ObjectTerms(ctx, "post-7")
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	assert.Equal(t, "New Name", tagged[0].Name)
}

func TestSync_DirectiveRunsBeforeDiff(t *testing.T) {
	s := newSpy(t)
	loc := seed(t, s, "Locations", taxonomy.RootID)
	ext := seed(t, s, "WSU Extension", loc.ID)
	county := seed(t, s, "County Name", ext.ID)

	m := extensionManaged([]string{"New Name"}, taxonomy.Directives{{From: "County Name", To: "New Name"}})
	report, err := newEngine(s).Sync(context.Background(), m)
	require.NoError(t, err)
	assert.Empty(t, report.Created, "renamed term satisfies the definition")
	assert.Equal(t, 1, report.Directives.Renamed)
	assert.Equal(t, Summary{Taxonomy: cat, Matched: 3, Renamed: 1}, report.Summary())

	children, err := s.Store.ListTerms(context.Background(), cat, taxonomy.ChildrenOf(ext.ID))
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, county.ID, children[0].ID)
	assert.Equal(t, "New Name", children[0].Name)
}

func TestSync_DirectivesIdempotentAcrossRuns(t *testing.T) {
	s := newSpy(t)
	loc := seed(t, s, "Locations", taxonomy.RootID)
	ext := seed(t, s, "WSU Extension", loc.ID)
	seed(t, s, "County Name", ext.ID)

	m := extensionManaged([]string{"New Name"}, taxonomy.Directives{{From: "County Name", To: "New Name"}})
	e := newEngine(s)

	_, err := e.Sync(context.Background(), m)
	require.NoError(t, err)

	second, err := e.Sync(context.Background(), m)
	require.NoError(t, err)
	assert.Zero(t, second.Directives.Renamed)
	assert.Equal(t, 1, second.Directives.Skipped)
	assert.False(t, second.Changed())
}

func TestSync_DeleteDirectiveNotRecreated(t *testing.T) {
	s := newSpy(t)
	ctx := context.Background()
	loc := seed(t, s, "Locations", taxonomy.RootID)
	ext := seed(t, s, "WSU Extension", loc.ID)
	old := seed(t, s, "Closed Office", ext.ID)

	m := extensionManaged([]string{"Spokane"}, taxonomy.Directives{{From: "Closed Office"}})
	e := newEngine(s)

	report, err := e.Sync(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Directives.Deleted)

	_, err = s.Term(ctx, old.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	again, err := e.Sync(ctx, m)
	require.NoError(t, err)
	assert.Empty(t, again.Created)
	_, ok := tree(t, s).Find("Locations", "WSU Extension", "Closed Office")
	assert.False(t, ok)
}

func TestSync_DeletedNameStillDeclaredIsRecreated(t *testing.T) {
	s := newSpy(t)
	ctx := context.Background()
	loc := seed(t, s, "Locations", taxonomy.RootID)
	ext := seed(t, s, "WSU Extension", loc.ID)
	old := seed(t, s, "Spokane", ext.ID)

	m := extensionManaged([]string{"Spokane"}, taxonomy.Directives{{From: "Spokane"}})
	report, err := newEngine(s).Sync(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Directives.Deleted)
	require.Len(t, report.Created, 1)
	assert.NotEqual(t, old.ID, report.Created[0].ID)
}

func TestApplyDirectives_AbsentSourceSkipped(t *testing.T) {
	s := newSpy(t)
	seed(t, s, "Sports", taxonomy.RootID)

	report, err := newEngine(s).ApplyDirectives(context.Background(), cat, taxonomy.Directives{
		{From: "Nope", To: "Still Nope"},
		{From: "Gone"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Skipped)
	assert.Zero(t, report.Renamed)
	assert.Zero(t, report.Deleted)
}

func TestApplyDirectives_FailureAbsorbed(t *testing.T) {
	s := newSpy(t)
	sports := seed(t, s, "Sports", taxonomy.RootID)
	seed(t, s, "Club", sports.ID)
	seed(t, s, "Clubs", sports.ID)
	seed(t, s, "Old", taxonomy.RootID)

	report, err := newEngine(s).ApplyDirectives(context.Background(), cat, taxonomy.Directives{
		{From: "Club", To: "Clubs"}, // sibling already has the name
		{From: "Old"},
	})
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, OpRename, report.Failures[0].Op)
	assert.ErrorIs(t, report.Failures[0], store.ErrDuplicateTerm)
	assert.Equal(t, 1, report.Deleted)
}

func TestApplyDirectives_ListFailureStopsSync(t *testing.T) {
	s := newSpy(t)
	s.failListAll = true

	m := extensionManaged([]string{"Spokane"}, taxonomy.Directives{{From: "County Name", To: "New Name"}})
	report, err := newEngine(s).Sync(context.Background(), m)
	require.Error(t, err)
	assert.True(t, IsOpError(err, OpList))
	assert.Empty(t, report.Created)
	assert.NotContains(t, s.calls, "create")
}

func TestApplyDirectives_Empty(t *testing.T) {
	s := newSpy(t)
	s.failListAll = true

	report, err := newEngine(s).ApplyDirectives(context.Background(), cat, nil)
	require.NoError(t, err, "no directives means no listing")
	assert.Zero(t, report.Skipped)
}

func TestApplyDirectives_ChainedRenames(t *testing.T) {
	s := newSpy(t)
	ctx := context.Background()
	a := seed(t, s, "A", taxonomy.RootID)

	report, err := newEngine(s).ApplyDirectives(ctx, cat, taxonomy.Directives{
		{From: "A", To: "B"},
		{From: "B", To: "C"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Renamed)

	got, err := s.Term(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "C", got.Name)
}
