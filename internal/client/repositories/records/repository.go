// Package records implements CRUD over sync documents. Every mutation stamps
// the sync metadata the coordinator relies on and is persisted before the
// call returns.
package records

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/homekeeper/internal/client/models"
	"github.com/dmitrijs2005/homekeeper/internal/client/store"
	"github.com/dmitrijs2005/homekeeper/internal/eventstream"
	"github.com/google/uuid"
)

// Repository manages the records of one entity kind.
type Repository struct {
	desc   models.Descriptor
	docs   *store.Documents
	events *eventstream.Stream[models.Notification]
	newID  func() string
	now    func() time.Time
}

type Option func(*Repository)

// WithEvents publishes a notification after every successful mutation.
func WithEvents(s *eventstream.Stream[models.Notification]) Option {
	return func(r *Repository) { r.events = s }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithIDGenerator overrides the record id generator.
func WithIDGenerator(fn func() string) Option {
	return func(r *Repository) { r.newID = fn }
}

func New(desc models.Descriptor, docs *store.Documents, opts ...Option) *Repository {
	r := &Repository{
		desc:  desc,
		docs:  docs,
		newID: uuid.NewString,
		now:   time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Repository) Kind() models.EntityKind {
	return r.desc.Kind
}

func (r *Repository) key(homeID string) (store.Key, error) {
	if !r.desc.Container && homeID == "" {
		return store.Key{}, ErrHomeRequired
	}
	return store.KeyFor(r.desc, homeID), nil
}

func (r *Repository) publish(homeID, op string, ids ...string) {
	if r.events == nil {
		return
	}
	r.events.Publish(string(r.desc.Kind), models.Notification{
		Kind: r.desc.Kind, HomeID: homeID, IDs: ids, Op: op,
	})
}

func (r *Repository) validate(payload json.RawMessage) error {
	if err := r.desc.Validate(payload); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return nil
}

// Create stores a new record with pendingCreate set.
func (r *Repository) Create(ctx context.Context, homeID string, payload json.RawMessage) (*models.Record, error) {
	return r.create(ctx, homeID, r.newID(), payload)
}

// CreateWithID is Create with a caller-chosen id. It fails if the id exists.
func (r *Repository) CreateWithID(ctx context.Context, homeID, id string, payload json.RawMessage) (*models.Record, error) {
	return r.create(ctx, homeID, id, payload)
}

func (r *Repository) create(ctx context.Context, homeID, id string, payload json.RawMessage) (*models.Record, error) {
	if err := r.validate(payload); err != nil {
		return nil, err
	}
	if r.desc.Container {
		homeID = id
	}
	key, err := r.key(homeID)
	if err != nil {
		return nil, err
	}

	rec := &models.Record{
		ID:              id,
		HomeID:          homeID,
		Payload:         append(json.RawMessage(nil), payload...),
		Version:         1,
		ClientUpdatedAt: r.now(),
		PendingCreate:   true,
	}

	err = r.docs.Mutate(ctx, key, func(doc *models.Document) (bool, error) {
		if doc.Find(id) != nil {
			return false, fmt.Errorf("record %s already exists", id)
		}
		doc.Records = append(doc.Records, rec)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	r.publish(homeID, models.OpCreated, id)
	return rec.Clone(), nil
}

// Update merges patch (a JSON object) into the stored payload. A record still
// waiting for its creation to be acknowledged stays a pending creation.
func (r *Repository) Update(ctx context.Context, homeID, id string, patch json.RawMessage) (*models.Record, error) {
	key, err := r.key(homeID)
	if err != nil {
		return nil, err
	}

	var out *models.Record
	err = r.docs.Mutate(ctx, key, func(doc *models.Document) (bool, error) {
		rec := doc.Find(id)
		if rec == nil || rec.IsDeleted() {
			return false, ErrNotFound
		}

		merged, err := mergePayload(rec.Payload, patch)
		if err != nil {
			return false, err
		}
		if err := r.validate(merged); err != nil {
			return false, err
		}

		rec.Payload = merged
		rec.ClientUpdatedAt = r.now()
		if !rec.PendingCreate && !rec.PendingUpdate {
			rec.PendingUpdate = true
			rec.Version++
		}
		out = rec.Clone()
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	r.publish(out.HomeID, models.OpUpdated, id)
	return out, nil
}

// Delete removes a never-synced record outright and tombstones any other.
// It reports false when the record does not exist. Deleting a tombstone is a
// no-op success.
func (r *Repository) Delete(ctx context.Context, homeID, id string) (bool, error) {
	key, err := r.key(homeID)
	if err != nil {
		return false, err
	}

	found := false
	changed := false
	err = r.docs.Mutate(ctx, key, func(doc *models.Document) (bool, error) {
		rec := doc.Find(id)
		if rec == nil {
			return false, nil
		}
		found = true

		switch {
		case rec.IsDeleted():
			return false, nil
		case rec.PendingCreate:
			doc.Remove(id)
		default:
			now := r.now()
			rec.DeletedAt = &now
			rec.ClientUpdatedAt = now
			rec.PendingDelete = true
			rec.PendingUpdate = false
		}
		changed = true
		return true, nil
	})
	if err != nil {
		return false, err
	}

	if changed {
		r.publish(homeID, models.OpDeleted, id)
	}
	return found, nil
}

// List returns the records of homeID, hiding tombstones unless includeDeleted.
func (r *Repository) List(ctx context.Context, homeID string, includeDeleted bool) ([]*models.Record, error) {
	key, err := r.key(homeID)
	if err != nil {
		return nil, err
	}
	doc, err := r.docs.Load(ctx, key)
	if err != nil {
		return nil, err
	}

	out := make([]*models.Record, 0, len(doc.Records))
	for _, rec := range doc.Records {
		if rec.IsDeleted() && !includeDeleted {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Get returns one live record.
func (r *Repository) Get(ctx context.Context, homeID, id string) (*models.Record, error) {
	key, err := r.key(homeID)
	if err != nil {
		return nil, err
	}
	doc, err := r.docs.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	rec := doc.Find(id)
	if rec == nil || rec.IsDeleted() {
		return nil, ErrNotFound
	}
	return rec, nil
}

func mergePayload(base, patch json.RawMessage) (json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if len(base) > 0 {
		if err := json.Unmarshal(base, &fields); err != nil {
			return nil, fmt.Errorf("%w: stored payload: %w", ErrInvalidPayload, err)
		}
	}

	changes := map[string]json.RawMessage{}
	if err := json.Unmarshal(patch, &changes); err != nil {
		return nil, fmt.Errorf("%w: patch must be a JSON object: %w", ErrInvalidPayload, err)
	}
	for k, v := range changes {
		fields[k] = v
	}

	merged, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return merged, nil
}
