package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dmitrijs2005/homekeeper/internal/client/models"
	"github.com/dmitrijs2005/homekeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/homekeeper/internal/client/repositories/records"
	"github.com/dmitrijs2005/homekeeper/internal/client/store"
	"github.com/dmitrijs2005/homekeeper/internal/common"
	"github.com/dmitrijs2005/homekeeper/internal/eventstream"
	"github.com/dmitrijs2005/homekeeper/internal/syncproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type guardEnv struct {
	docs   *store.Documents
	homes  *records.Repository
	meta   *metadata.MemoryRepository
	events *eventstream.Stream[models.Notification]
	guard  *HomeGuard
}

func newGuardEnv(t *testing.T) *guardEnv {
	t.Helper()
	docs := store.NewDocuments(store.NewMemoryStore())
	desc, _ := models.Describe(models.KindHome)
	e := &guardEnv{
		docs:   docs,
		homes:  records.New(desc, docs),
		meta:   metadata.NewMemoryRepository(),
		events: eventstream.New[models.Notification](),
	}
	e.guard = NewHomeGuard(docs, e.homes, e.meta, e.events, nil)
	return e
}

func (e *guardEnv) usable(t *testing.T) []*models.Record {
	t.Helper()
	homes, err := e.guard.usableHomes(context.Background())
	require.NoError(t, err)
	return homes
}

func (e *guardEnv) kindDoc(t *testing.T, kind models.EntityKind, homeID string) *models.Document {
	t.Helper()
	doc, err := e.docs.Load(context.Background(), store.Key{Kind: kind, HomeID: homeID})
	require.NoError(t, err)
	return doc
}

func TestEnsureDefaultContainer_CreatesAndSeeds(t *testing.T) {
	e := newGuardEnv(t)
	ctx := context.Background()

	home, err := e.guard.EnsureDefaultContainer(ctx)
	require.NoError(t, err)
	assert.True(t, home.PendingCreate)
	assert.Equal(t, home.ID, home.HomeID)

	var payload models.Home
	require.NoError(t, json.Unmarshal(home.Payload, &payload))
	assert.Equal(t, "My Home", payload.Name)

	active, err := e.guard.ActiveHome(ctx)
	require.NoError(t, err)
	assert.Equal(t, home.ID, active)

	for _, desc := range models.DependentKinds() {
		doc := e.kindDoc(t, desc.Kind, home.ID)
		assert.Len(t, doc.Records, len(desc.Seeds), desc.Kind)
		for _, r := range doc.Records {
			assert.True(t, r.PendingCreate)
			assert.Equal(t, home.ID, r.HomeID)
		}
	}

	// idempotent
	again, err := e.guard.EnsureDefaultContainer(ctx)
	require.NoError(t, err)
	assert.Equal(t, home.ID, again.ID)
	assert.Len(t, e.usable(t), 1)
}

func TestInitializeContainerData_Once(t *testing.T) {
	e := newGuardEnv(t)
	ctx := context.Background()

	require.NoError(t, e.guard.InitializeContainerData(ctx, "h1"))
	locDesc, _ := models.Describe(models.KindLocation)
	locations := records.New(locDesc, e.docs)
	seeded, err := locations.List(ctx, "h1", false)
	require.NoError(t, err)
	_, err = locations.Delete(ctx, "h1", seeded[0].ID)
	require.NoError(t, err)

	require.NoError(t, e.guard.InitializeContainerData(ctx, "h1"))
	after, err := locations.List(ctx, "h1", false)
	require.NoError(t, err)
	assert.Len(t, after, len(seeded)-1)

	// seed ids do not depend on the device
	assert.Equal(t, models.SeedID("h1", models.KindLocation, "living-room"), seeded[0].ID)
}

func TestDeleteContainer_LastHomeIsReplaced(t *testing.T) {
	e := newGuardEnv(t)
	ctx := context.Background()

	home, err := e.guard.EnsureDefaultContainer(ctx)
	require.NoError(t, err)

	ok, err := e.guard.DeleteContainer(ctx, home.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	homes := e.usable(t)
	require.Len(t, homes, 1)
	assert.NotEqual(t, home.ID, homes[0].ID)
	assert.True(t, homes[0].PendingCreate)

	active, err := e.guard.ActiveHome(ctx)
	require.NoError(t, err)
	assert.Equal(t, homes[0].ID, active)
}

func TestDeleteContainer_SwitchesActiveHome(t *testing.T) {
	e := newGuardEnv(t)
	ctx := context.Background()

	first, err := e.guard.EnsureDefaultContainer(ctx)
	require.NoError(t, err)
	second, err := e.guard.CreateContainer(ctx, models.Home{Name: "Cabin"})
	require.NoError(t, err)
	require.NoError(t, e.guard.SetActiveHome(ctx, second.ID))

	ok, err := e.guard.DeleteContainer(ctx, second.ID)
	require.NoError(t, err)
	require.True(t, ok)

	active, err := e.guard.ActiveHome(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, active)
	assert.Len(t, e.usable(t), 1)
}

func TestSetActiveHome_Unknown(t *testing.T) {
	e := newGuardEnv(t)
	err := e.guard.SetActiveHome(context.Background(), "nope")
	assert.ErrorIs(t, err, records.ErrNotFound)
}

func TestSetActiveHome_Publishes(t *testing.T) {
	e := newGuardEnv(t)
	ctx := context.Background()
	home, err := e.guard.CreateContainer(ctx, models.Home{Name: "Flat"})
	require.NoError(t, err)

	ch, cancel, err := e.events.Subscribe(ctx, func(topic string) bool { return topic == models.TopicActiveHome })
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, e.guard.SetActiveHome(ctx, home.ID))
	ev := <-ch
	assert.Equal(t, home.ID, ev.Payload.HomeID)
	assert.Equal(t, models.OpActivated, ev.Payload.Op)
}

func TestMoveContainerData(t *testing.T) {
	e := newGuardEnv(t)
	ctx := context.Background()

	home, err := e.guard.EnsureDefaultContainer(ctx)
	require.NoError(t, err)

	itemDesc, _ := models.Describe(models.KindItem)
	items := records.New(itemDesc, e.docs)
	item, err := items.Create(ctx, home.ID, json.RawMessage(`{"name":"Lamp"}`))
	require.NoError(t, err)

	require.NoError(t, e.guard.MoveContainerData(ctx, home.ID, "new-home"))

	assert.Empty(t, e.kindDoc(t, models.KindItem, home.ID).Records)
	moved := e.kindDoc(t, models.KindItem, "new-home").Find(item.ID)
	require.NotNil(t, moved)
	assert.Equal(t, "new-home", moved.HomeID)
	assert.True(t, moved.PendingCreate)

	active, err := e.guard.ActiveHome(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new-home", active)
}

func TestHomeSync_CollisionMovesDependentData(t *testing.T) {
	e := newGuardEnv(t)
	ctx := context.Background()

	home, err := e.guard.EnsureDefaultContainer(ctx)
	require.NoError(t, err)

	remote := &fakeRemote{}
	remote.push = func(req *syncproto.PushRequest) (*syncproto.PushResponse, error) {
		return &syncproto.PushResponse{Errors: []syncproto.PushError{
			{EntityID: home.ID, Code: common.ErrCodeIDCollision, SuggestedEntityID: "h-new"},
		}}, nil
	}
	syncer := NewSyncer(e.docs, remote, nil, WithLifecycle(e.guard))

	report, err := syncer.Sync(ctx, models.KindHome, models.AccountScope)
	require.NoError(t, err)
	assert.Equal(t, "h-new", report.Reassigned[home.ID])

	homes := e.usable(t)
	require.Len(t, homes, 1)
	assert.Equal(t, "h-new", homes[0].ID)
	assert.Equal(t, "h-new", homes[0].HomeID)

	active, err := e.guard.ActiveHome(ctx)
	require.NoError(t, err)
	assert.Equal(t, "h-new", active)

	catDesc, _ := models.Describe(models.KindCategory)
	assert.Len(t, e.kindDoc(t, models.KindCategory, "h-new").Records, len(catDesc.Seeds))
}

func TestHomeSync_RemoteDeletionOfLastHome(t *testing.T) {
	e := newGuardEnv(t)
	ctx := context.Background()

	home, err := e.guard.EnsureDefaultContainer(ctx)
	require.NoError(t, err)

	remote := &fakeRemote{}
	remote.pull = func(req *syncproto.PullRequest) (*syncproto.PullResponse, error) {
		assert.Equal(t, models.AccountScope, req.HomeID)
		return &syncproto.PullResponse{DeletedEntityIDs: []string{home.ID}, ServerTimestamp: t1}, nil
	}
	syncer := NewSyncer(e.docs, remote, nil, WithLifecycle(e.guard))

	_, err = syncer.Sync(ctx, models.KindHome, models.AccountScope)
	require.NoError(t, err)

	homes := e.usable(t)
	require.Len(t, homes, 1)
	assert.NotEqual(t, home.ID, homes[0].ID)
	active, err := e.guard.ActiveHome(ctx)
	require.NoError(t, err)
	assert.Equal(t, homes[0].ID, active)
}
