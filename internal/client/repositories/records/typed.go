package records

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/homekeeper/internal/client/models"
)

// Typed wraps a Repository with payload encoding for one Go type.
type Typed[T any] struct {
	*Repository
}

func NewTyped[T any](r *Repository) Typed[T] {
	return Typed[T]{Repository: r}
}

func (t Typed[T]) Add(ctx context.Context, homeID string, v T) (*models.Record, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return t.Create(ctx, homeID, b)
}

// Entry is a decoded record.
type Entry[T any] struct {
	Record *models.Record
	Value  T
}

func (t Typed[T]) All(ctx context.Context, homeID string) ([]Entry[T], error) {
	recs, err := t.List(ctx, homeID, false)
	if err != nil {
		return nil, err
	}
	out := make([]Entry[T], 0, len(recs))
	for _, rec := range recs {
		v, err := Decode[T](rec)
		if err != nil {
			return nil, err
		}
		out = append(out, Entry[T]{Record: rec, Value: v})
	}
	return out, nil
}

// Decode unmarshals the record payload into T.
func Decode[T any](rec *models.Record) (T, error) {
	var v T
	if err := json.Unmarshal(rec.Payload, &v); err != nil {
		return v, fmt.Errorf("%w: record %s: %w", ErrInvalidPayload, rec.ID, err)
	}
	return v, nil
}
