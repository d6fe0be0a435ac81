package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/taxsync/internal/store"
	"github.com/roach88/taxsync/internal/taxonomy"
	"github.com/roach88/taxsync/internal/testutil"
)

const cat taxonomy.ID = "wsuwp_university_category"

var errInjected = errors.New("injected failure")

// spyStore wraps a real store, records calls and injects failures.
type spyStore struct {
	*store.Store

	failCreate  map[string]bool
	failList    map[taxonomy.TermID]bool
	failListAll bool

	calls   []string
	created []taxonomy.Term
}

func newSpy(t *testing.T) *spyStore {
	t.Helper()
	return &spyStore{
		Store:      testutil.NewStore(t, cat),
		failCreate: map[string]bool{},
		failList:   map[taxonomy.TermID]bool{},
	}
}

func (s *spyStore) ListTerms(ctx context.Context, tax taxonomy.ID, filter taxonomy.ParentFilter) ([]taxonomy.Term, error) {
	s.calls = append(s.calls, "list")
	parent, ok := filter.Parent()
	if (!ok && s.failListAll) || (ok && s.failList[parent]) {
		return nil, errInjected
	}
	return s.Store.ListTerms(ctx, tax, filter)
}

func (s *spyStore) CreateTerm(ctx context.Context, tax taxonomy.ID, name string, parent taxonomy.TermID) (taxonomy.Term, error) {
	s.calls = append(s.calls, "create")
	if s.failCreate[name] {
		return taxonomy.Term{}, errInjected
	}
	t, err := s.Store.CreateTerm(ctx, tax, name, parent)
	if err == nil {
		s.created = append(s.created, t)
	}
	return t, err
}

func (s *spyStore) InvalidateCache(ctx context.Context, tax taxonomy.ID) error {
	s.calls = append(s.calls, "invalidate")
	return s.Store.InvalidateCache(ctx, tax)
}

// seed creates a term bypassing the engine.
func seed(t *testing.T, s *spyStore, name string, parent taxonomy.TermID) taxonomy.Term {
	t.Helper()
	term, err := s.Store.CreateTerm(store.WithOrigin(context.Background(), store.OriginReconciler), cat, name, parent)
	require.NoError(t, err)
	return term
}

func newEngine(s TermStore) *Engine {
	return New(s, WithLogger(testutil.DiscardLogger()))
}

func sportsDefinition(leaves ...string) *taxonomy.Definition {
	return &taxonomy.Definition{
		Taxonomy: cat,
		Groups: []taxonomy.Group{{
			Name: "Sports",
			Children: []taxonomy.Child{{
				Name:   "Intercollegiate",
				Leaves: leaves,
			}},
		}},
	}
}

func tree(t *testing.T, s *spyStore) *store.Tree {
	t.Helper()
	tr, err := s.Tree(context.Background(), cat)
	require.NoError(t, err)
	return tr
}
