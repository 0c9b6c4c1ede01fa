package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/homekeeper/internal/client/models"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleDocument() *models.Document {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &models.Document{
		Records: []*models.Record{
			{
				ID: "a", HomeID: "h1", Payload: json.RawMessage(`{"name":"Drill"}`),
				Version: 3, ClientUpdatedAt: ts, ServerUpdatedAt: &ts, PendingUpdate: true,
			},
		},
		LastSyncTime:      &ts,
		LastPulledVersion: 42,
	}
}

func testStoreContract(t *testing.T, s Store) {
	ctx := context.Background()
	key := Key{Kind: models.KindItem, HomeID: "h1"}

	doc, err := s.Read(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, doc, "missing document reads as nil")

	require.NoError(t, s.Write(ctx, key, sampleDocument()))

	got, err := s.Read(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Records, 1)
	assert.Equal(t, "a", got.Records[0].ID)
	assert.JSONEq(t, `{"name":"Drill"}`, string(got.Records[0].Payload))
	assert.True(t, got.Records[0].PendingUpdate)
	assert.Equal(t, int64(42), got.LastPulledVersion)
	require.NotNil(t, got.LastSyncTime)
	assert.True(t, sampleDocument().LastSyncTime.Equal(*got.LastSyncTime))

	got.Records[0].ID = "mutated"
	again, err := s.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "a", again.Records[0].ID, "reads must not alias stored state")

	empty := &models.Document{}
	require.NoError(t, s.Write(ctx, key, empty))
	got, err = s.Read(ctx, key)
	require.NoError(t, err)
	assert.NotNil(t, got.Records)
	assert.Empty(t, got.Records)

	homes := Key{Kind: models.KindHome, HomeID: models.AccountScope}
	require.NoError(t, s.Write(ctx, homes, sampleDocument()))
	got, err = s.Read(ctx, homes)
	require.NoError(t, err)
	require.Len(t, got.Records, 1)

	other, err := s.Read(ctx, Key{Kind: models.KindItem, HomeID: "h2"})
	require.NoError(t, err)
	assert.Nil(t, other)

	require.ErrorIs(t, s.Write(ctx, Key{Kind: models.KindItem, HomeID: "../x"}, empty), ErrInvalidKey)
	_, err = s.Read(ctx, Key{HomeID: "h1"})
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "docs"))
	require.NoError(t, err)
	testStoreContract(t, s)
}

func TestSQLiteStore(t *testing.T) {
	testStoreContract(t, NewSQLiteStore(setupDB(t)))
}

func TestSQLiteStore_CorruptBody(t *testing.T) {
	db := setupDB(t)
	_, err := db.Exec(`INSERT INTO documents (entity_kind, home_id, body, updated_at) VALUES ('item', 'h1', 'not json', 'x')`)
	require.NoError(t, err)

	_, err = NewSQLiteStore(db).Read(context.Background(), Key{Kind: models.KindItem, HomeID: "h1"})
	require.ErrorIs(t, err, ErrCorruptDocument)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, RunMigrations(context.Background(), db))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('documents','metadata')`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestRunMigrations_Error(t *testing.T) {
	old := gooseUp
	t.Cleanup(func() { gooseUp = old })
	gooseUp = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return assert.AnError
	}

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	require.ErrorIs(t, RunMigrations(context.Background(), db), assert.AnError)
}

func TestOpen_SelectsDriver(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{Driver: DriverMemory}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, Options{Driver: DriverFile, Path: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = Open(ctx, Options{}, setupDB(t))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)

	_, err = Open(ctx, Options{Driver: "floppy"}, nil)
	require.ErrorIs(t, err, ErrUnknownDriver)
}
