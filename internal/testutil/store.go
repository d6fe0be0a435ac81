package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/taxsync/internal/store"
	"github.com/roach88/taxsync/internal/taxonomy"
)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewStore opens a fresh store in a temp directory with the given taxonomies
// marked as managed. The store is closed when the test ends.
func NewStore(t *testing.T, managed ...taxonomy.ID) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "terms.db")
	s, err := store.Open(path, store.WithManaged(managed...), store.WithLogger(DiscardLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}
