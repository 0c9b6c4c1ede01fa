package records

import (
	"context"
	"slices"
	"sync"

	"github.com/dmitrijs2005/homekeeper/internal/common"
	"github.com/dmitrijs2005/homekeeper/internal/server/models"
)

type key struct {
	entityType string
	id         string
}

type MemoryRepository struct {
	mu   sync.RWMutex
	rows map[key]*models.Record
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[key]*models.Record)}
}

func (r *MemoryRepository) Get(_ context.Context, entityType, id string) (*models.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.rows[key{entityType, id}]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return rec.Clone(), nil
}

func (r *MemoryRepository) Upsert(_ context.Context, rec *models.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[key{rec.EntityType, rec.ID}] = rec.Clone()
	return nil
}

func (r *MemoryRepository) SelectUpdated(_ context.Context, userID, entityType, homeID string, minVersion int64) ([]*models.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*models.Record
	for k, rec := range r.rows {
		if k.entityType != entityType || rec.UserID != userID || rec.Version <= minVersion {
			continue
		}
		if homeID != "" && rec.HomeID != homeID {
			continue
		}
		result = append(result, rec.Clone())
	}
	slices.SortFunc(result, func(a, b *models.Record) int {
		switch {
		case a.Version < b.Version:
			return -1
		case a.Version > b.Version:
			return 1
		}
		return 0
	})
	return result, nil
}
