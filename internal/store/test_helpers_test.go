package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/taxsync/internal/taxonomy"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// reconcilerCtx returns a context allowed to perform every structural write.
func reconcilerCtx() context.Context {
	return WithOrigin(context.Background(), OriginReconciler)
}

// mustCreate creates a term or fails the test.
func mustCreate(t *testing.T, s *Store, tax taxonomy.ID, name string, parent taxonomy.TermID) taxonomy.Term {
	t.Helper()
	term, err := s.CreateTerm(reconcilerCtx(), tax, name, parent)
	if err != nil {
		t.Fatalf("CreateTerm(%q) failed: %v", name, err)
	}
	return term
}
