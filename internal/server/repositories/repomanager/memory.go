package repomanager

import (
	"context"
	"database/sql"
	"sync"

	"github.com/dmitrijs2005/homekeeper/internal/dbx"
	"github.com/dmitrijs2005/homekeeper/internal/server/repositories/records"
	"github.com/dmitrijs2005/homekeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/homekeeper/internal/server/repositories/users"
)

// MemoryRepositoryManager keeps everything in process memory. It ignores the
// db arguments; WithTx serializes callers instead of opening a transaction
// and does not roll back on error.
type MemoryRepositoryManager struct {
	mu            sync.Mutex
	users         *users.MemoryRepository
	refreshTokens *refreshtokens.MemoryRepository
	records       *records.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		users:         users.NewMemoryRepository(),
		refreshTokens: refreshtokens.NewMemoryRepository(),
		records:       records.NewMemoryRepository(),
	}
}

func (m *MemoryRepositoryManager) Users(dbx.DBTX) users.Repository { return m.users }

func (m *MemoryRepositoryManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository {
	return m.refreshTokens
}

func (m *MemoryRepositoryManager) Records(dbx.DBTX) records.Repository { return m.records }

func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *MemoryRepositoryManager) WithTx(ctx context.Context, _ *sql.DB, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, nil)
}
