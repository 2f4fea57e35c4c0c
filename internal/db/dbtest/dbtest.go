// Package dbtest provides a migrated throwaway store for tests in other packages.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/abdulachik/postbot/internal/db"
	"github.com/stretchr/testify/require"
)

// NewStore opens a migrated SQLite store in a temp dir, closed on cleanup.
func NewStore(t testing.TB) *db.Store {
	t.Helper()

	ctx := context.Background()
	store, err := db.NewStore(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	require.NoError(t, store.Migrate(ctx))

	t.Cleanup(func() {
		store.Close()
	})

	return store
}
