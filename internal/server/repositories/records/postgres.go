package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/homekeeper/internal/common"
	"github.com/dmitrijs2005/homekeeper/internal/dbx"
	"github.com/dmitrijs2005/homekeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get locks the row for the rest of the transaction.
func (r *PostgresRepository) Get(ctx context.Context, entityType, id string) (*models.Record, error) {
	query := `
		SELECT id, user_id, entity_type, home_id, data, version, client_updated_at, updated_at, deleted
		FROM records
		WHERE entity_type = $1 AND id = $2
		FOR UPDATE
	`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, entityType, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, rec *models.Record) error {
	query := `
		INSERT INTO records (id, user_id, entity_type, home_id, data, version, client_updated_at, updated_at, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (entity_type, id)
		DO UPDATE SET
			user_id = EXCLUDED.user_id,
			home_id = EXCLUDED.home_id,
			data = EXCLUDED.data,
			version = EXCLUDED.version,
			client_updated_at = EXCLUDED.client_updated_at,
			updated_at = EXCLUDED.updated_at,
			deleted = EXCLUDED.deleted
	`
	var data []byte
	if len(rec.Data) > 0 {
		data = rec.Data
	}
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.UserID, rec.EntityType, rec.HomeID, data, rec.Version,
		rec.ClientUpdatedAt, rec.UpdatedAt, rec.Deleted)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SelectUpdated(ctx context.Context, userID, entityType, homeID string, minVersion int64) ([]*models.Record, error) {
	query := `
		SELECT id, user_id, entity_type, home_id, data, version, client_updated_at, updated_at, deleted
		FROM records
		WHERE user_id = $1 AND entity_type = $2 AND ($3 = '' OR home_id = $3) AND version > $4
		ORDER BY version
	`
	rows, err := r.db.QueryContext(ctx, query, userID, entityType, homeID, minVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	var result []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*models.Record, error) {
	var (
		rec  models.Record
		data []byte
	)
	if err := s.Scan(&rec.ID, &rec.UserID, &rec.EntityType, &rec.HomeID, &data,
		&rec.Version, &rec.ClientUpdatedAt, &rec.UpdatedAt, &rec.Deleted); err != nil {
		return nil, err
	}
	rec.Data = data
	return &rec, nil
}
