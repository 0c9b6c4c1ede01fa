package records

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/dmitrijs2005/homekeeper/internal/client/models"
	"github.com/dmitrijs2005/homekeeper/internal/client/store"
	"github.com/dmitrijs2005/homekeeper/internal/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	docs   *store.Documents
	events *eventstream.Stream[models.Notification]
	now    time.Time
	seq    int
}

func newFixture() *fixture {
	return &fixture{
		docs:   store.NewDocuments(store.NewMemoryStore()),
		events: eventstream.New[models.Notification](),
		now:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func (f *fixture) repo(t *testing.T, kind models.EntityKind) *Repository {
	t.Helper()
	desc, ok := models.Describe(kind)
	require.True(t, ok)
	return New(desc, f.docs,
		WithEvents(f.events),
		WithClock(func() time.Time { return f.now }),
		WithIDGenerator(func() string {
			f.seq++
			return fmt.Sprintf("id-%d", f.seq)
		}),
	)
}

func (f *fixture) tick() {
	f.now = f.now.Add(time.Minute)
}

func item(name string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"name":%q}`, name))
}

func TestCreate_StampsPendingCreate(t *testing.T) {
	f := newFixture()
	r := f.repo(t, models.KindItem)

	rec, err := r.Create(context.Background(), "h1", item("Drill"))
	require.NoError(t, err)

	assert.Equal(t, "id-1", rec.ID)
	assert.Equal(t, "h1", rec.HomeID)
	assert.Equal(t, int64(1), rec.Version)
	assert.True(t, rec.PendingCreate)
	assert.False(t, rec.PendingUpdate)
	assert.Nil(t, rec.ServerUpdatedAt)
	assert.Equal(t, f.now, rec.ClientUpdatedAt)

	list, err := r.List(context.Background(), "h1", false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.JSONEq(t, `{"name":"Drill"}`, string(list[0].Payload))
}

func TestCreate_HomeIsItsOwnContainer(t *testing.T) {
	f := newFixture()
	r := f.repo(t, models.KindHome)

	rec, err := r.Create(context.Background(), "", json.RawMessage(`{"name":"Cabin"}`))
	require.NoError(t, err)
	assert.Equal(t, rec.ID, rec.HomeID)

	list, err := r.List(context.Background(), "anything", false)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture()
	r := f.repo(t, models.KindItem)

	_, err := r.Create(context.Background(), "h1", json.RawMessage(`{"name":""}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = r.Create(context.Background(), "", item("x"))
	assert.ErrorIs(t, err, ErrHomeRequired)
}

func TestCreateWithID_Duplicate(t *testing.T) {
	f := newFixture()
	r := f.repo(t, models.KindItem)

	_, err := r.CreateWithID(context.Background(), "h1", "fixed", item("a"))
	require.NoError(t, err)
	_, err = r.CreateWithID(context.Background(), "h1", "fixed", item("b"))
	assert.Error(t, err)
}

func TestUpdate_PendingCreateStaysCreate(t *testing.T) {
	f := newFixture()
	r := f.repo(t, models.KindItem)
	rec, err := r.Create(context.Background(), "h1", item("Drill"))
	require.NoError(t, err)

	f.tick()
	upd, err := r.Update(context.Background(), "h1", rec.ID, json.RawMessage(`{"description":"cordless"}`))
	require.NoError(t, err)

	assert.True(t, upd.PendingCreate)
	assert.False(t, upd.PendingUpdate)
	assert.Equal(t, int64(1), upd.Version)
	assert.Equal(t, f.now, upd.ClientUpdatedAt)
	assert.JSONEq(t, `{"name":"Drill","description":"cordless"}`, string(upd.Payload))
}

func syncedRecord(id, home string, version int64, at time.Time) *models.Record {
	return &models.Record{
		ID:              id,
		HomeID:          home,
		Payload:         item("Saw"),
		Version:         version,
		ClientUpdatedAt: at,
		ServerUpdatedAt: models.TimePtr(at),
		LastSyncedAt:    models.TimePtr(at),
	}
}

func (f *fixture) seed(t *testing.T, kind models.EntityKind, home string, recs ...*models.Record) {
	t.Helper()
	desc, _ := models.Describe(kind)
	require.NoError(t, f.docs.Mutate(context.Background(), store.KeyFor(desc, home), func(doc *models.Document) (bool, error) {
		for _, r := range recs {
			doc.Put(r)
		}
		return true, nil
	}))
}

func TestUpdate_SyncedRecordBumpsVersionOnce(t *testing.T) {
	f := newFixture()
	f.seed(t, models.KindItem, "h1", syncedRecord("s1", "h1", 4, f.now))
	r := f.repo(t, models.KindItem)

	upd, err := r.Update(context.Background(), "h1", "s1", json.RawMessage(`{"name":"Saw v2"}`))
	require.NoError(t, err)
	assert.True(t, upd.PendingUpdate)
	assert.Equal(t, int64(5), upd.Version)

	upd, err = r.Update(context.Background(), "h1", "s1", json.RawMessage(`{"name":"Saw v3"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(5), upd.Version)
	assert.JSONEq(t, `{"name":"Saw v3"}`, string(upd.Payload))
}

func TestUpdate_Errors(t *testing.T) {
	f := newFixture()
	f.seed(t, models.KindItem, "h1", syncedRecord("s1", "h1", 1, f.now))
	r := f.repo(t, models.KindItem)

	_, err := r.Update(context.Background(), "h1", "missing", item("x"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Update(context.Background(), "h1", "s1", json.RawMessage(`[1,2]`))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = r.Update(context.Background(), "h1", "s1", json.RawMessage(`{"name":""}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	ok, err := r.Delete(context.Background(), "h1", "s1")
	require.NoError(t, err)
	require.True(t, ok)
	_, err = r.Update(context.Background(), "h1", "s1", item("y"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete_NeverSyncedIsRemoved(t *testing.T) {
	f := newFixture()
	r := f.repo(t, models.KindItem)
	rec, err := r.Create(context.Background(), "h1", item("Drill"))
	require.NoError(t, err)

	ok, err := r.Delete(context.Background(), "h1", rec.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	all, err := r.List(context.Background(), "h1", true)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestDelete_SyncedIsTombstoned(t *testing.T) {
	f := newFixture()
	rec := syncedRecord("s1", "h1", 2, f.now)
	rec.PendingUpdate = true
	f.seed(t, models.KindItem, "h1", rec)
	r := f.repo(t, models.KindItem)

	f.tick()
	ok, err := r.Delete(context.Background(), "h1", "s1")
	require.NoError(t, err)
	assert.True(t, ok)

	live, err := r.List(context.Background(), "h1", false)
	require.NoError(t, err)
	assert.Empty(t, live)

	all, err := r.List(context.Background(), "h1", true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].PendingDelete)
	assert.False(t, all[0].PendingUpdate)
	assert.Equal(t, f.now, *all[0].DeletedAt)

	// idempotent
	deletedAt := *all[0].DeletedAt
	f.tick()
	ok, err = r.Delete(context.Background(), "h1", "s1")
	require.NoError(t, err)
	assert.True(t, ok)
	all, err = r.List(context.Background(), "h1", true)
	require.NoError(t, err)
	assert.Equal(t, deletedAt, *all[0].DeletedAt)

	ok, err = r.Delete(context.Background(), "h1", "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGet(t *testing.T) {
	f := newFixture()
	r := f.repo(t, models.KindItem)
	rec, err := r.Create(context.Background(), "h1", item("Drill"))
	require.NoError(t, err)

	got, err := r.Get(context.Background(), "h1", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	_, err = r.Get(context.Background(), "h2", rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMutationsPublish(t *testing.T) {
	f := newFixture()
	r := f.repo(t, models.KindItem)
	ch, cancel, err := f.events.Subscribe(context.Background(), nil)
	require.NoError(t, err)
	defer cancel()

	rec, err := r.Create(context.Background(), "h1", item("Drill"))
	require.NoError(t, err)
	_, err = r.Update(context.Background(), "h1", rec.ID, item("Hammer"))
	require.NoError(t, err)
	_, err = r.Delete(context.Background(), "h1", rec.ID)
	require.NoError(t, err)

	var ops []string
	for range 3 {
		select {
		case ev := <-ch:
			assert.Equal(t, string(models.KindItem), ev.Topic)
			assert.Equal(t, []string{rec.ID}, ev.Payload.IDs)
			ops = append(ops, ev.Payload.Op)
		case <-time.After(time.Second):
			t.Fatal("missing event")
		}
	}
	assert.Equal(t, []string{models.OpCreated, models.OpUpdated, models.OpDeleted}, ops)
}

func TestTyped(t *testing.T) {
	f := newFixture()
	typed := NewTyped[models.Item](f.repo(t, models.KindItem))

	_, err := typed.Add(context.Background(), "h1", models.Item{Name: "Lamp"})
	require.NoError(t, err)

	entries, err := typed.All(context.Background(), "h1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Lamp", entries[0].Value.Name)
}
