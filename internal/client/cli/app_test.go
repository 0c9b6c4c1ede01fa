package cli

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/homekeeper/internal/client/client"
	"github.com/dmitrijs2005/homekeeper/internal/client/models"
	"github.com/dmitrijs2005/homekeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/homekeeper/internal/client/repositories/records"
	"github.com/dmitrijs2005/homekeeper/internal/client/services"
	"github.com/dmitrijs2005/homekeeper/internal/client/store"
	"github.com/dmitrijs2005/homekeeper/internal/eventstream"
	"github.com/dmitrijs2005/homekeeper/internal/syncproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsLoggedIn(t *testing.T) {
	app := &App{}
	assert.False(t, app.isLoggedIn())

	app.setUser("alice")
	assert.True(t, app.isLoggedIn())
}

func TestGetStatus(t *testing.T) {
	assert.Equal(t, "", (&App{}).getStatus())
	assert.Equal(t, "(alice )", (&App{userName: "alice"}).getStatus())
	assert.Equal(t, "(alice offline)", (&App{userName: "alice", Mode: ModeOffline}).getStatus())
}

func TestSetMode_ChangesAndReportsOnce(t *testing.T) {
	var buf bytes.Buffer
	app := &App{out: &buf}

	app.setMode(ModeOnline)
	assert.Equal(t, ModeOnline, app.mode())
	assert.Contains(t, buf.String(), "Switched to online mode")

	buf.Reset()
	app.setMode(ModeOnline)
	assert.Empty(t, buf.String())

	app.setMode(ModeOffline)
	assert.Contains(t, buf.String(), "Switched to offline mode")
}

func TestStartOnlineStatusWatcher(t *testing.T) {
	f := &fakeAuth{pingErr: client.ErrUnavailable}
	app := &App{authService: f, userName: "alice", Mode: ModeOnline, out: io.Discard}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.StartOnlineStatusWatcher(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return app.mode() == ModeOffline }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

// ---- wired app over the in-memory store ----

type ackRemote struct {
	mu     sync.Mutex
	pushed []*syncproto.PushRequest
}

func (r *ackRemote) Push(_ context.Context, req *syncproto.PushRequest) (*syncproto.PushResponse, error) {
	r.mu.Lock()
	r.pushed = append(r.pushed, req)
	r.mu.Unlock()
	now := time.Now()
	resp := &syncproto.PushResponse{}
	for _, e := range req.Entities {
		res := syncproto.PushResult{EntityID: e.EntityID, ServerUpdatedAt: &now, ServerVersion: e.Version}
		switch {
		case e.PendingDelete:
			res.Status = syncproto.StatusDeleted
		case e.PendingCreate:
			res.Status = syncproto.StatusCreated
		default:
			res.Status = syncproto.StatusUpdated
		}
		resp.Results = append(resp.Results, res)
	}
	return resp, nil
}

func (r *ackRemote) Pull(context.Context, *syncproto.PullRequest) (*syncproto.PullResponse, error) {
	return &syncproto.PullResponse{ServerTimestamp: time.Now()}, nil
}

type appEnv struct {
	app    *App
	out    *bytes.Buffer
	remote *ackRemote
}

func newAppEnv(t *testing.T) *appEnv {
	t.Helper()

	docs := store.NewDocuments(store.NewMemoryStore())
	events := eventstream.New[models.Notification]()
	t.Cleanup(events.Close)

	repos := make(map[models.EntityKind]*records.Repository)
	for _, desc := range models.Kinds() {
		repos[desc.Kind] = records.New(desc, docs, records.WithEvents(events))
	}
	guard := services.NewHomeGuard(docs, repos[models.KindHome], metadata.NewMemoryRepository(), events, nil)
	remote := &ackRemote{}
	syncer := services.NewSyncer(docs, remote, nil, services.WithLifecycle(guard))

	var out bytes.Buffer
	app := &App{
		authService: &fakeAuth{},
		scheduler:   services.NewScheduler(syncer, guard, time.Minute, nil),
		guard:       guard,
		repos:       repos,
		events:      events,
		userName:    "alice",
		Mode:        ModeOnline,
		out:         &out,
	}
	return &appEnv{app: app, out: &out, remote: remote}
}

// answers feeds the form prompts. Prompts for multi-line fields consume lines
// until an empty one.
func (e *appEnv) answers(lines ...string) {
	e.app.reader = bufio.NewReader(strings.NewReader(strings.Join(lines, "\n") + "\n"))
}

func (e *appEnv) only(t *testing.T, kind string) *models.Record {
	t.Helper()
	homeID, err := e.app.activeHome(context.Background())
	require.NoError(t, err)
	repo, err := e.app.repo(kind)
	require.NoError(t, err)
	recs, err := repo.List(context.Background(), homeID, false)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	return recs[0]
}

func TestApp_AddListEditRemoveItem(t *testing.T) {
	ctx := context.Background()
	env := newAppEnv(t)

	// name, description (multi-line), quantity, category, location, purchase date, price
	env.answers("Drill", "cordless", "", "2", "", "", "2024-05-01", "89.90")
	require.NoError(t, env.app.Add(ctx, "item"))

	rec := env.only(t, "item")
	assert.True(t, rec.PendingCreate)
	item, err := records.Decode[models.Item](rec)
	require.NoError(t, err)
	assert.Equal(t, "Drill", item.Name)
	assert.Equal(t, "cordless", item.Description)
	assert.Equal(t, 2, item.Quantity)
	assert.InDelta(t, 89.90, item.Price, 0.001)
	require.NotNil(t, item.PurchasedAt)

	env.out.Reset()
	require.NoError(t, env.app.List(ctx, "item"))
	assert.Contains(t, env.out.String(), rec.ID)
	assert.Contains(t, env.out.String(), "Drill")
	assert.Contains(t, env.out.String(), "new")

	// only the quantity changes
	env.answers("", "", "5", "", "", "", "")
	require.NoError(t, env.app.Edit(ctx, "item", rec.ID))
	item, err = records.Decode[models.Item](env.only(t, "item"))
	require.NoError(t, err)
	assert.Equal(t, "Drill", item.Name)
	assert.Equal(t, 5, item.Quantity)

	require.NoError(t, env.app.Remove(ctx, "item", rec.ID))
	assert.ErrorIs(t, env.app.Remove(ctx, "item", rec.ID), records.ErrNotFound)
}

func TestApp_AddRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	env := newAppEnv(t)

	env.answers("", "", "", "", "", "", "")
	assert.ErrorIs(t, env.app.Add(ctx, "item"), records.ErrInvalidPayload)

	env.answers("Drill", "", "lots")
	assert.ErrorContains(t, env.app.Add(ctx, "item"), "Quantity")

	assert.ErrorIs(t, env.app.Add(ctx, "home"), errHomeKind)
	assert.Error(t, env.app.Add(ctx, "spaceship"))
}

func TestApp_EditNothing(t *testing.T) {
	ctx := context.Background()
	env := newAppEnv(t)

	env.answers("Attic", "")
	require.NoError(t, env.app.Add(ctx, "location"))
	rec := env.only(t, "location")

	env.answers("", "")
	require.NoError(t, env.app.Edit(ctx, "location", rec.ID))
	assert.Contains(t, env.out.String(), "Nothing changed")
}

func TestApp_Homes(t *testing.T) {
	ctx := context.Background()
	env := newAppEnv(t)

	first, err := env.app.activeHome(ctx)
	require.NoError(t, err)

	env.answers("Cottage", "Lake road 1")
	require.NoError(t, env.app.AddHome(ctx))

	homes, err := env.app.repos[models.KindHome].List(ctx, models.AccountScope, false)
	require.NoError(t, err)
	require.Len(t, homes, 2)
	var second string
	for _, h := range homes {
		if h.ID != first {
			second = h.ID
		}
	}

	env.out.Reset()
	require.NoError(t, env.app.Homes(ctx))
	assert.Contains(t, env.out.String(), "*  "+first)
	assert.Contains(t, env.out.String(), "Cottage")

	require.NoError(t, env.app.UseHome(ctx, second))
	active, err := env.app.guard.ActiveHome(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, active)

	// the new home was seeded
	cats, err := env.app.repos[models.KindCategory].List(ctx, second, false)
	require.NoError(t, err)
	assert.NotEmpty(t, cats)

	env.answers("Summer house", "")
	require.NoError(t, env.app.RenameHome(ctx, second))
	h, err := env.app.repos[models.KindHome].Get(ctx, models.AccountScope, second)
	require.NoError(t, err)
	assert.Equal(t, "Summer house", summary(h.Payload))

	require.NoError(t, env.app.RemoveHome(ctx, second))
	active, err = env.app.guard.ActiveHome(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, active)

	assert.ErrorIs(t, env.app.UseHome(ctx, "missing"), records.ErrNotFound)
	assert.ErrorIs(t, env.app.RemoveHome(ctx, "missing"), records.ErrNotFound)
}

func TestApp_SyncAndStatus(t *testing.T) {
	ctx := context.Background()
	env := newAppEnv(t)

	env.answers("Attic", "")
	require.NoError(t, env.app.Add(ctx, "location"))

	require.NoError(t, env.app.Sync(ctx))
	assert.Contains(t, env.out.String(), "Sync complete")
	assert.NotEmpty(t, env.remote.pushed)

	rec := env.only(t, "location")
	assert.False(t, rec.IsPending())
	assert.NotNil(t, rec.ServerUpdatedAt)

	env.out.Reset()
	require.NoError(t, env.app.Status(ctx))
	assert.Contains(t, env.out.String(), "Mode: online")
	assert.Contains(t, env.out.String(), "Last success")
	assert.Contains(t, env.out.String(), "location")
}

func TestApp_SyncOffline(t *testing.T) {
	env := newAppEnv(t)
	env.app.Mode = ModeOffline

	assert.ErrorIs(t, env.app.Sync(context.Background()), errOffline)
	assert.Empty(t, env.remote.pushed)

	require.NoError(t, env.app.Status(context.Background()))
	assert.Contains(t, env.out.String(), "Never synced")
}

func TestReportEvents_HomeChanges(t *testing.T) {
	lines := capturePrintln(t)
	env := newAppEnv(t)

	ch, cancel, err := env.app.events.Subscribe(context.Background(),
		eventstream.Topics(models.TopicActiveHome, string(models.KindHome)))
	require.NoError(t, err)

	env.app.events.Publish(models.TopicActiveHome, models.Notification{
		Kind: models.KindHome, HomeID: "h1", Op: models.OpActivated,
	})
	env.app.events.Publish(string(models.KindItem), models.Notification{
		Kind: models.KindItem, HomeID: "h1", Op: models.OpCreated,
	})
	cancel()

	reportEvents(ch)
	assert.Equal(t, []string{"Active home is now h1"}, *lines)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Home a was renumbered to b by the server",
		describe(models.Notification{Op: models.OpReassigned, IDs: []string{"a", "b"}}))
	assert.Empty(t, describe(models.Notification{Op: models.OpSynced}))
	assert.Empty(t, describe(models.Notification{Op: models.OpCreated}))
}
