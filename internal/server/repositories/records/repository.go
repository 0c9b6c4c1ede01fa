// Package records persists the server copy of synced entities.
package records

import (
	"context"

	"github.com/dmitrijs2005/homekeeper/internal/server/models"
)

type Repository interface {
	// Get returns common.ErrorNotFound when no record of that type has id,
	// whichever user owns it.
	Get(ctx context.Context, entityType, id string) (*models.Record, error)
	// Upsert writes rec, replacing any stored row with the same type and id.
	Upsert(ctx context.Context, rec *models.Record) error
	// SelectUpdated returns the user's records of entityType with a version
	// above minVersion, in version order. An empty homeID matches every home.
	SelectUpdated(ctx context.Context, userID, entityType, homeID string, minVersion int64) ([]*models.Record, error)
}
