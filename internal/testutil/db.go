// Package testutil provides test fixtures for the history database.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orbitctl/orbitctl/internal/history"
)

// NewTestStore opens a history store in a temp directory with the full schema
// applied. The store is closed when the test completes.
func NewTestStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}
