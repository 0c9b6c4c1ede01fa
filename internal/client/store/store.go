// Package store persists sync documents, one per (entity kind, home).
//
// A Store is pure storage: Read returns the last document written for a key
// (or nil when there is none) and Write replaces it atomically. Documents
// layers per-key locking on top so read-modify-write sequences inside one
// process never interleave.
package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/homekeeper/internal/client/models"
	"github.com/goccy/go-json"
)

// Key addresses one document.
type Key struct {
	Kind   models.EntityKind
	HomeID string
}

func (k Key) String() string {
	if k.HomeID == models.AccountScope {
		return string(k.Kind)
	}
	return string(k.Kind) + "@" + k.HomeID
}

func (k Key) validate() error {
	if k.Kind == "" {
		return fmt.Errorf("%w: empty kind", ErrInvalidKey)
	}
	for _, part := range []string{string(k.Kind), k.HomeID} {
		if part == "" {
			continue
		}
		if strings.ContainsAny(part, `/\`) || part == "." || part == ".." || filepath.Base(part) != part {
			return fmt.Errorf("%w: %q", ErrInvalidKey, part)
		}
	}
	return nil
}

// KeyFor returns the document key of kind within homeID.
func KeyFor(d models.Descriptor, homeID string) Key {
	return Key{Kind: d.Kind, HomeID: d.Scope(homeID)}
}

// Store is a durable document store.
type Store interface {
	// Read returns nil, nil when no document exists for key.
	Read(ctx context.Context, key Key) (*models.Document, error)
	Write(ctx context.Context, key Key, doc *models.Document) error
}

func encodeDocument(doc *models.Document) ([]byte, error) {
	if doc.Records == nil {
		doc = &models.Document{Records: []*models.Record{}, LastSyncTime: doc.LastSyncTime, LastPulledVersion: doc.LastPulledVersion}
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return b, nil
}

func decodeDocument(b []byte) (*models.Document, error) {
	doc := models.NewDocument()
	if err := json.Unmarshal(b, doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	if doc.Records == nil {
		doc.Records = []*models.Record{}
	}
	return doc, nil
}
