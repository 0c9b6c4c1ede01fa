// Package server wires storage, services and the gRPC endpoint of the sync
// server and runs them until shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/homekeeper/internal/logging"
	"github.com/dmitrijs2005/homekeeper/internal/server/config"
	"github.com/dmitrijs2005/homekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/homekeeper/internal/server/services"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/homekeeper/internal/server/grpc"
)

type tokenPurger interface {
	PurgeExpiredTokens(ctx context.Context) (int64, error)
}

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	userService *services.UserService
	syncService *services.SyncService
}

// openDB is replaced in tests.
var openDB = func(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// NewApp connects to the database, applies migrations and builds the
// services. Without a DSN all data is kept in memory.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Nop{}
	}

	var (
		db *sql.DB
		rm repomanager.RepositoryManager
	)
	if c.InMemory() {
		logger.Warn(ctx, "No database configured, data is kept in memory")
		rm = repomanager.NewMemoryRepositoryManager()
	} else {
		var err error
		db, err = openDB(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		pm := repomanager.NewPostgresRepositoryManager()
		if err := pm.RunMigrations(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		rm = pm
	}

	return &App{
		config:      c,
		logger:      logger,
		db:          db,
		userService: services.NewUserService(db, rm, c),
		syncService: services.NewSyncService(db, rm, logger),
	}, nil
}

// purgeTokens deletes expired refresh tokens every interval until ctx ends.
func (app *App) purgeTokens(ctx context.Context, p tokenPurger, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := p.PurgeExpiredTokens(ctx)
			if err != nil {
				app.logger.Error(ctx, "token cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				app.logger.Info(ctx, "Expired refresh tokens removed", "count", n)
			}
		}
	}
}

// Run serves until ctx is cancelled or the gRPC server fails.
func (app *App) Run(ctx context.Context) error {
	app.logger.Info(ctx, "Starting app...")

	if app.db != nil {
		defer app.db.Close()
	}

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.userService, app.syncService, app.config.SecretKey)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Run(ctx)
	})
	g.Go(func() error {
		app.purgeTokens(ctx, app.userService, app.config.TokenCleanupInterval)
		return nil
	})

	err := g.Wait()
	app.logger.Info(context.Background(), "App stopped")
	return err
}
