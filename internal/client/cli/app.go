package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/homekeeper/internal/client/client"
	"github.com/dmitrijs2005/homekeeper/internal/client/config"
	"github.com/dmitrijs2005/homekeeper/internal/client/models"
	"github.com/dmitrijs2005/homekeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/homekeeper/internal/client/repositories/records"
	"github.com/dmitrijs2005/homekeeper/internal/client/services"
	"github.com/dmitrijs2005/homekeeper/internal/client/store"
	"github.com/dmitrijs2005/homekeeper/internal/eventstream"
	"github.com/dmitrijs2005/homekeeper/internal/filex"
	"github.com/dmitrijs2005/homekeeper/internal/logging"
)

type Mode string

const (
	ModeOffline  Mode = "offline"
	ModeOnline   Mode = "online"
	ModeDisabled Mode = "disabled"
)

// App is the interactive client. The session fields are read by background
// goroutines and are guarded by mu.
type App struct {
	config      *config.Config
	log         logging.Logger
	authService services.AuthService
	scheduler   *services.Scheduler
	guard       *services.HomeGuard
	repos       map[models.EntityKind]*records.Repository
	events      *eventstream.Stream[models.Notification]
	db          *sql.DB

	userName string
	reader   *bufio.Reader
	out      io.Writer

	mu   sync.RWMutex
	Mode Mode
}

// NewApp opens the local database and document store and wires the sync
// engine against the configured server.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	if log == nil {
		log = logging.Nop{}
	}

	if _, err := filex.EnsureDir(c.DataDir); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	db, err := store.OpenSQLite(ctx, c.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	backend, err := store.Open(ctx, c.StoreOptions(), db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	docs := store.NewDocuments(backend)
	events := eventstream.New[models.Notification]()
	meta := metadata.NewSQLiteRepository(db)

	repos := make(map[models.EntityKind]*records.Repository)
	for _, desc := range models.Kinds() {
		repos[desc.Kind] = records.New(desc, docs, records.WithEvents(events))
	}

	apiClient, err := client.NewHomekeeperClient(c.ServerEndpointAddr)
	if err != nil {
		db.Close()
		return nil, err
	}
	apiClient.OnTokenRefresh(func(token string) {
		if err := meta.Set(context.Background(), metadata.KeyRefreshToken, []byte(token)); err != nil {
			log.Warn(context.Background(), "saving refresh token failed", "error", err)
		}
	})

	guard := services.NewHomeGuard(docs, repos[models.KindHome], meta, events, log)
	syncer := services.NewSyncer(docs, apiClient, log,
		services.WithLifecycle(guard),
		services.WithSyncEvents(events),
		services.WithTombstoneRetention(c.TombstoneRetention),
	)
	scheduler := services.NewScheduler(syncer, guard, c.SyncInterval, log)

	a := &App{
		config:      c,
		log:         log,
		authService: services.NewAuthService(apiClient, db),
		scheduler:   scheduler,
		guard:       guard,
		repos:       repos,
		events:      events,
		db:          db,
		reader:      bufio.NewReader(os.Stdin),
		out:         os.Stdout,
	}
	scheduler.SetOnlineCheck(func() bool { return a.isLoggedIn() && a.mode() == ModeOnline })
	return a, nil
}

func (a *App) output() io.Writer {
	if a.out == nil {
		return os.Stdout
	}
	return a.out
}

func (a *App) logger() logging.Logger {
	if a.log == nil {
		return logging.Nop{}
	}
	return a.log
}

func (a *App) mode() Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.Mode
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	changed := a.Mode != mode
	a.Mode = mode
	a.mu.Unlock()

	if changed {
		fmt.Fprintf(a.output(), "Switched to %s mode\n", mode)
		a.logger().Info(context.Background(), "mode changed", "mode", mode)
	}
}

// Run starts the background workers and the REPL, and releases resources
// when the REPL exits.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.Close(ctx)

	if _, err := a.guard.EnsureDefaultContainer(ctx); err != nil {
		a.logger().Error(ctx, "preparing default home failed", "error", err)
	}

	go a.scheduler.Run(ctx)
	go a.watchEvents(ctx)

	a.Root(ctx)
}

func (a *App) Close(ctx context.Context) {
	if a.events != nil {
		a.events.Close()
	}
	if a.authService != nil {
		if err := a.authService.Close(ctx); err != nil {
			a.logger().Warn(ctx, "closing client failed", "error", err)
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}

func (a *App) isLoggedIn() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.userName != ""
}

func (a *App) setUser(name string) {
	a.mu.Lock()
	a.userName = name
	a.mu.Unlock()
}

func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !a.isLoggedIn() {
				continue
			}
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := a.authService.Ping(pctx)
			cancel()

			if err != nil {
				if a.mode() == ModeOnline {
					a.setMode(ModeOffline)
				}
			} else if a.mode() != ModeOnline {
				a.setMode(ModeOnline)
			}

		case <-ctx.Done():
			return
		}
	}
}
