package store

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/homekeeper/internal/client/models"
)

// MemoryStore keeps encoded documents in a map. Every Read decodes a fresh
// copy, so callers never share state with the store.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[Key][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[Key][]byte)}
}

func (s *MemoryStore) Read(ctx context.Context, key Key) (*models.Document, error) {
	if err := key.validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	b, ok := s.docs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return decodeDocument(b)
}

func (s *MemoryStore) Write(ctx context.Context, key Key, doc *models.Document) error {
	if err := key.validate(); err != nil {
		return err
	}
	b, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.docs[key] = b
	s.mu.Unlock()
	return nil
}
