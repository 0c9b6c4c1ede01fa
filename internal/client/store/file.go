package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/homekeeper/internal/client/models"
	"github.com/dmitrijs2005/homekeeper/internal/filex"
	"github.com/gofrs/flock"
)

const (
	accountDir     = "_account"
	lockRetryDelay = 20 * time.Millisecond
)

// FileStore keeps one JSON file per document:
//
//	<root>/<homeId>/<kind>.json
//
// Writes go through a temp file and a rename. A sidecar lock file taken with
// flock keeps other processes sharing the directory from reading half-written
// state or writing concurrently.
type FileStore struct {
	root string
}

func NewFileStore(root string) (*FileStore, error) {
	abs, err := filex.EnsureDir(root)
	if err != nil {
		return nil, err
	}
	return &FileStore{root: abs}, nil
}

func (s *FileStore) dir(key Key) string {
	if key.HomeID == models.AccountScope {
		return filepath.Join(s.root, accountDir)
	}
	return filepath.Join(s.root, key.HomeID)
}

func (s *FileStore) path(key Key) string {
	return filepath.Join(s.dir(key), string(key.Kind)+".json")
}

func (s *FileStore) Read(ctx context.Context, key Key) (*models.Document, error) {
	if err := key.validate(); err != nil {
		return nil, err
	}
	path := s.path(key)

	if _, err := os.Stat(s.dir(key)); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	fl := flock.New(path + ".lock")
	locked, err := fl.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}
	if locked {
		defer func() { _ = fl.Unlock() }()
	}

	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return decodeDocument(b)
}

func (s *FileStore) Write(ctx context.Context, key Key, doc *models.Document) error {
	if err := key.validate(); err != nil {
		return err
	}
	b, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	if _, err := filex.EnsureDir(s.dir(key)); err != nil {
		return err
	}

	path := s.path(key)
	fl := flock.New(path + ".lock")
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock %s: %w", key, err)
	}
	if locked {
		defer func() { _ = fl.Unlock() }()
	}

	return filex.WriteFileAtomic(path, b, 0o600)
}
