package store

import (
	"context"
	"database/sql"
	"fmt"
)

const (
	DriverSQLite = "sqlite"
	DriverFile   = "file"
	DriverS3     = "s3"
	DriverMemory = "memory"
)

// Options selects and configures a Store backend.
type Options struct {
	Driver string
	// Path is the directory of the file store.
	Path string
	S3   S3Config
}

// Open builds the configured Store. db is the client database and backs the
// sqlite driver.
func Open(ctx context.Context, opts Options, db *sql.DB) (Store, error) {
	switch opts.Driver {
	case DriverSQLite, "":
		return NewSQLiteStore(db), nil
	case DriverFile:
		return NewFileStore(opts.Path)
	case DriverS3:
		return NewS3Store(ctx, opts.S3)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}
