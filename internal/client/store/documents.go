package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/homekeeper/internal/client/models"
)

// Documents serializes read-modify-write access to each document.
type Documents struct {
	store Store

	mu    sync.Mutex
	locks map[Key]*sync.Mutex
}

func NewDocuments(s Store) *Documents {
	return &Documents{store: s, locks: make(map[Key]*sync.Mutex)}
}

func (d *Documents) lock(key Key) func() {
	d.mu.Lock()
	l, ok := d.locks[key]
	if !ok {
		l = &sync.Mutex{}
		d.locks[key] = l
	}
	d.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (d *Documents) read(ctx context.Context, key Key) (*models.Document, bool, error) {
	doc, err := d.store.Read(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if doc == nil {
		return models.NewDocument(), false, nil
	}
	return doc, true, nil
}

// Load returns the current document for key, healed, or an empty one.
func (d *Documents) Load(ctx context.Context, key Key) (*models.Document, error) {
	unlock := d.lock(key)
	defer unlock()

	doc, _, err := d.read(ctx, key)
	if err != nil {
		return nil, err
	}
	doc.Heal()
	return doc, nil
}

// Exists reports whether a document has ever been written for key.
func (d *Documents) Exists(ctx context.Context, key Key) (bool, error) {
	unlock := d.lock(key)
	defer unlock()

	_, ok, err := d.read(ctx, key)
	return ok, err
}

// Mutate loads the document for key, applies fn and writes the result back
// in a single Write. fn reports whether it changed the document; repairs made
// by healing are persisted either way. If fn fails nothing is written.
func (d *Documents) Mutate(ctx context.Context, key Key, fn func(doc *models.Document) (bool, error)) error {
	unlock := d.lock(key)
	defer unlock()

	doc, _, err := d.read(ctx, key)
	if err != nil {
		return err
	}
	healed := doc.Heal()

	changed, err := fn(doc)
	if err != nil {
		return err
	}
	if !changed && !healed {
		return nil
	}

	if err := d.store.Write(ctx, key, doc); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	return nil
}

// Init writes doc for key unless a document already exists. It reports
// whether it wrote.
func (d *Documents) Init(ctx context.Context, key Key, doc *models.Document) (bool, error) {
	unlock := d.lock(key)
	defer unlock()

	_, ok, err := d.read(ctx, key)
	if err != nil || ok {
		return false, err
	}
	if err := d.store.Write(ctx, key, doc); err != nil {
		return false, fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	return true, nil
}
