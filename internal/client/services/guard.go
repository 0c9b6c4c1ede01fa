package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/homekeeper/internal/client/models"
	"github.com/dmitrijs2005/homekeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/homekeeper/internal/client/repositories/records"
	"github.com/dmitrijs2005/homekeeper/internal/client/store"
	"github.com/dmitrijs2005/homekeeper/internal/eventstream"
	"github.com/dmitrijs2005/homekeeper/internal/logging"
)

// HomeGuard keeps at least one usable home around, tracks which home is
// active, and seeds every home's dependent documents exactly once.
type HomeGuard struct {
	docs   *store.Documents
	homes  *records.Repository
	meta   metadata.Repository
	events *eventstream.Stream[models.Notification]
	log    logging.Logger
	now    func() time.Time
}

func NewHomeGuard(docs *store.Documents, homes *records.Repository, meta metadata.Repository,
	events *eventstream.Stream[models.Notification], log logging.Logger) *HomeGuard {
	if log == nil {
		log = logging.Nop{}
	}
	return &HomeGuard{docs: docs, homes: homes, meta: meta, events: events, log: log, now: time.Now}
}

func (g *HomeGuard) usableHomes(ctx context.Context) ([]*models.Record, error) {
	all, err := g.homes.List(ctx, models.AccountScope, false)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, h := range all {
		if h.IsUsable() {
			out = append(out, h)
		}
	}
	return out, nil
}

// EnsureDefaultContainer returns the active home. When no usable home is left
// a default one is created; when the active home is gone another usable home
// is activated.
func (g *HomeGuard) EnsureDefaultContainer(ctx context.Context) (*models.Record, error) {
	homes, err := g.usableHomes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list homes: %w", err)
	}

	if len(homes) == 0 {
		payload, err := json.Marshal(models.DefaultHome())
		if err != nil {
			return nil, err
		}
		home, err := g.homes.Create(ctx, models.AccountScope, payload)
		if err != nil {
			return nil, fmt.Errorf("create default home: %w", err)
		}
		g.log.Info(ctx, "default home created", "home", home.ID)
		if err := g.activate(ctx, home.ID); err != nil {
			return nil, err
		}
		return home, nil
	}

	active, err := g.ActiveHome(ctx)
	if err != nil {
		return nil, err
	}
	for _, h := range homes {
		if h.ID == active {
			return h, nil
		}
	}

	if err := g.activate(ctx, homes[0].ID); err != nil {
		return nil, err
	}
	return homes[0], nil
}

// InitializeContainerData writes the default records of every dependent kind
// for homeID. Kinds that already have a document are left alone.
func (g *HomeGuard) InitializeContainerData(ctx context.Context, homeID string) error {
	now := g.now()
	for _, desc := range models.DependentKinds() {
		doc := models.NewDocument()
		for _, seed := range desc.Seeds {
			payload, err := json.Marshal(seed.Payload)
			if err != nil {
				return fmt.Errorf("encode %s seed %s: %w", desc.Kind, seed.Name, err)
			}
			doc.Records = append(doc.Records, &models.Record{
				ID:              models.SeedID(homeID, desc.Kind, seed.Name),
				HomeID:          homeID,
				Payload:         payload,
				Version:         1,
				ClientUpdatedAt: now,
				PendingCreate:   true,
			})
		}

		wrote, err := g.docs.Init(ctx, store.KeyFor(desc, homeID), doc)
		if err != nil {
			return fmt.Errorf("initialize %s for home %s: %w", desc.Kind, homeID, err)
		}
		if wrote {
			g.log.Debug(ctx, "home data initialized", "kind", desc.Kind, "home", homeID, "seeds", len(doc.Records))
		}
	}
	return nil
}

// ActiveHome returns the id of the active home, or "" when none is set.
func (g *HomeGuard) ActiveHome(ctx context.Context) (string, error) {
	v, err := g.meta.Get(ctx, metadata.KeyActiveHome)
	if err != nil {
		return "", fmt.Errorf("read active home: %w", err)
	}
	return string(v), nil
}

// SetActiveHome switches to homeID, which must be a usable home.
func (g *HomeGuard) SetActiveHome(ctx context.Context, homeID string) error {
	home, err := g.homes.Get(ctx, models.AccountScope, homeID)
	if err != nil {
		return err
	}
	if !home.IsUsable() {
		return records.ErrNotFound
	}
	return g.activate(ctx, homeID)
}

func (g *HomeGuard) activate(ctx context.Context, homeID string) error {
	if err := g.InitializeContainerData(ctx, homeID); err != nil {
		return err
	}
	if err := g.meta.Set(ctx, metadata.KeyActiveHome, []byte(homeID)); err != nil {
		return fmt.Errorf("save active home: %w", err)
	}
	if g.events != nil {
		g.events.Publish(models.TopicActiveHome, models.Notification{
			Kind: models.KindHome, HomeID: homeID, IDs: []string{homeID}, Op: models.OpActivated,
		})
	}
	return nil
}

// CreateContainer adds a home and seeds its data.
func (g *HomeGuard) CreateContainer(ctx context.Context, home models.Home) (*models.Record, error) {
	payload, err := json.Marshal(home)
	if err != nil {
		return nil, err
	}
	rec, err := g.homes.Create(ctx, models.AccountScope, payload)
	if err != nil {
		return nil, err
	}
	if err := g.InitializeContainerData(ctx, rec.ID); err != nil {
		return nil, err
	}
	return rec, nil
}

// DeleteContainer deletes a home and restores the invariants: there is a
// usable home and one of them is active.
func (g *HomeGuard) DeleteContainer(ctx context.Context, homeID string) (bool, error) {
	ok, err := g.homes.Delete(ctx, models.AccountScope, homeID)
	if err != nil || !ok {
		return ok, err
	}
	if _, err := g.EnsureDefaultContainer(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// MoveContainerData re-keys every dependent document of a home whose id was
// reassigned. Moved records are new to the server under the new id, so they
// become pending creations again; tombstones are dropped.
func (g *HomeGuard) MoveContainerData(ctx context.Context, oldID, newID string) error {
	for _, desc := range models.DependentKinds() {
		oldKey := store.KeyFor(desc, oldID)
		exists, err := g.docs.Exists(ctx, oldKey)
		if err != nil {
			return err
		}
		if !exists {
			continue
		}

		var moved []*models.Record
		err = g.docs.Mutate(ctx, oldKey, func(doc *models.Document) (bool, error) {
			for _, r := range doc.Records {
				if r.IsDeleted() || r.PendingDelete {
					continue
				}
				c := r.Clone()
				c.HomeID = newID
				c.ClearPending()
				c.PendingCreate = true
				c.ServerUpdatedAt = nil
				c.LastSyncedAt = nil
				moved = append(moved, c)
			}
			doc.Records = []*models.Record{}
			doc.SetCheckpoint(models.Checkpoint{})
			return true, nil
		})
		if err != nil {
			return fmt.Errorf("move %s: %w", desc.Kind, err)
		}

		err = g.docs.Mutate(ctx, store.KeyFor(desc, newID), func(doc *models.Document) (bool, error) {
			for _, r := range moved {
				if doc.Find(r.ID) == nil {
					doc.Put(r)
				}
			}
			return true, nil
		})
		if err != nil {
			return fmt.Errorf("move %s: %w", desc.Kind, err)
		}
	}

	active, err := g.ActiveHome(ctx)
	if err != nil {
		return err
	}
	if active == oldID {
		return g.activate(ctx, newID)
	}
	return nil
}

// Reassigned implements Lifecycle.
func (g *HomeGuard) Reassigned(ctx context.Context, desc models.Descriptor, oldID, newID string) error {
	if !desc.Container {
		return nil
	}
	return g.MoveContainerData(ctx, oldID, newID)
}

// AfterSync implements Lifecycle. A home sync may have removed the active
// home or the last usable one.
func (g *HomeGuard) AfterSync(ctx context.Context, desc models.Descriptor, _ string) error {
	if !desc.Container {
		return nil
	}
	_, err := g.EnsureDefaultContainer(ctx)
	return err
}
