// Package repomanager hands out repository implementations bound to a
// connection or transaction, and owns schema migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/homekeeper/internal/dbx"
	"github.com/dmitrijs2005/homekeeper/internal/server/repositories/records"
	"github.com/dmitrijs2005/homekeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/homekeeper/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	// WithTx runs fn in one transaction. Repositories obtained from the
	// tx argument take part in it.
	WithTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx dbx.DBTX) error) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Records(db dbx.DBTX) records.Repository
}
