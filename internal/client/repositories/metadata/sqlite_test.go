package metadata

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE metadata (
  key   TEXT PRIMARY KEY,
  value BLOB NOT NULL
);`)
	require.NoError(t, err)
	return db
}

func testRepositoryContract(t *testing.T, r Repository) {
	ctx := context.Background()

	v, err := r.Get(ctx, KeyActiveHome)
	require.NoError(t, err)
	require.Nil(t, v)

	require.NoError(t, r.Set(ctx, KeyActiveHome, []byte("h1")))
	require.NoError(t, r.Set(ctx, KeyActiveHome, []byte("h2")))
	v, err = r.Get(ctx, KeyActiveHome)
	require.NoError(t, err)
	require.Equal(t, []byte("h2"), v)

	require.NoError(t, r.Set(ctx, KeyUsername, []byte("alice")))
	require.NoError(t, r.Delete(ctx, KeyActiveHome))
	v, err = r.Get(ctx, KeyActiveHome)
	require.NoError(t, err)
	require.Nil(t, v)

	require.NoError(t, r.Clear(ctx))
	v, err = r.Get(ctx, KeyUsername)
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestSQLiteRepository(t *testing.T) {
	testRepositoryContract(t, NewSQLiteRepository(setupDB(t)))
}

func TestMemoryRepository(t *testing.T) {
	testRepositoryContract(t, NewMemoryRepository())
}

func TestSQLiteRepository_ClosedDB(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	require.NoError(t, db.Close())

	_, err := r.Get(context.Background(), KeyUsername)
	require.Error(t, err)
	require.Error(t, r.Set(context.Background(), KeyUsername, []byte("x")))
}
