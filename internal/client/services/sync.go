package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/homekeeper/internal/client/models"
	"github.com/dmitrijs2005/homekeeper/internal/client/store"
	"github.com/dmitrijs2005/homekeeper/internal/common"
	"github.com/dmitrijs2005/homekeeper/internal/eventstream"
	"github.com/dmitrijs2005/homekeeper/internal/logging"
	"github.com/dmitrijs2005/homekeeper/internal/syncproto"
	"github.com/google/uuid"
)

// DefaultTombstoneRetention is how long an acknowledged tombstone is kept
// locally before it is garbage-collected.
const DefaultTombstoneRetention = 30 * 24 * time.Hour

var (
	ErrPushFailed  = errors.New("push failed")
	ErrPullFailed  = errors.New("pull failed")
	ErrUnknownKind = errors.New("unknown entity kind")
)

// Remote is the server side of a sync cycle.
type Remote interface {
	Push(ctx context.Context, req *syncproto.PushRequest) (*syncproto.PushResponse, error)
	Pull(ctx context.Context, req *syncproto.PullRequest) (*syncproto.PullResponse, error)
}

// Lifecycle is notified of structural changes made by a sync cycle.
type Lifecycle interface {
	// Reassigned is called after a rejected creation was given a new id.
	Reassigned(ctx context.Context, desc models.Descriptor, oldID, newID string) error
	// AfterSync is called at the end of every cycle.
	AfterSync(ctx context.Context, desc models.Descriptor, homeID string) error
}

// SyncReport summarizes one cycle.
type SyncReport struct {
	Kind   models.EntityKind
	HomeID string

	Pushed     int
	Acked      int
	Conflicts  int
	Rejected   int
	Reassigned map[string]string

	Pulled    int
	Skipped   int
	Deleted   int
	Purged    int
	Collected int

	Checkpoint models.Checkpoint

	PushErr error
	PullErr error
}

// Syncer runs push-then-pull cycles for any entity kind.
type Syncer struct {
	docs      *store.Documents
	remote    Remote
	log       logging.Logger
	events    *eventstream.Stream[models.Notification]
	lifecycle Lifecycle
	retention time.Duration
	now       func() time.Time
	newID     func() string

	mu     sync.Mutex
	cycles map[store.Key]*sync.Mutex
}

type SyncerOption func(*Syncer)

func WithSyncEvents(s *eventstream.Stream[models.Notification]) SyncerOption {
	return func(sy *Syncer) { sy.events = s }
}

func WithLifecycle(l Lifecycle) SyncerOption {
	return func(sy *Syncer) { sy.lifecycle = l }
}

// WithTombstoneRetention sets the tombstone GC window. Zero disables GC.
func WithTombstoneRetention(d time.Duration) SyncerOption {
	return func(sy *Syncer) { sy.retention = d }
}

func WithSyncClock(now func() time.Time) SyncerOption {
	return func(sy *Syncer) { sy.now = now }
}

func WithSyncIDGenerator(fn func() string) SyncerOption {
	return func(sy *Syncer) { sy.newID = fn }
}

func NewSyncer(docs *store.Documents, remote Remote, log logging.Logger, opts ...SyncerOption) *Syncer {
	if log == nil {
		log = logging.Nop{}
	}
	s := &Syncer{
		docs:      docs,
		remote:    remote,
		log:       log,
		retention: DefaultTombstoneRetention,
		now:       time.Now,
		newID:     uuid.NewString,
		cycles:    make(map[store.Key]*sync.Mutex),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Syncer) lockCycle(key store.Key) func() {
	s.mu.Lock()
	l, ok := s.cycles[key]
	if !ok {
		l = &sync.Mutex{}
		s.cycles[key] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Sync runs one push-then-pull cycle for kind in homeID. Cycles for the same
// document never overlap. A failed push still lets the pull run; in both
// cases pending flags stay set so the next cycle retries.
func (s *Syncer) Sync(ctx context.Context, kind models.EntityKind, homeID string) (*SyncReport, error) {
	desc, ok := models.Describe(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	key := store.KeyFor(desc, homeID)

	unlock := s.lockCycle(key)
	defer unlock()

	log := s.log.With("kind", kind, "home", key.HomeID)
	report := &SyncReport{Kind: kind, HomeID: key.HomeID}

	doc, err := s.docs.Load(ctx, key)
	if err != nil {
		return report, fmt.Errorf("load %s: %w", key, err)
	}
	checkpoint := doc.Checkpoint()

	if pending := doc.Pending(); len(pending) > 0 {
		report.PushErr = s.push(ctx, desc, key, checkpoint, pending, report)
		if report.PushErr != nil {
			log.Warn(ctx, "push failed", "error", report.PushErr)
		}
	}

	report.PullErr = s.pull(ctx, desc, key, checkpoint, report)
	if report.PullErr != nil {
		log.Warn(ctx, "pull failed", "error", report.PullErr)
	}

	if s.lifecycle != nil {
		if err := s.lifecycle.AfterSync(ctx, desc, homeID); err != nil {
			log.Error(ctx, "post-sync check failed", "error", err)
		}
	}

	err = errors.Join(report.PushErr, report.PullErr)
	s.publish(desc, key.HomeID, err)

	log.Debug(ctx, "sync finished",
		"pushed", report.Pushed, "acked", report.Acked, "conflicts", report.Conflicts,
		"pulled", report.Pulled, "deleted", report.Deleted, "purged", report.Purged)
	return report, err
}

func (s *Syncer) publish(desc models.Descriptor, homeID string, err error) {
	if s.events == nil {
		return
	}
	s.events.Publish(string(desc.Kind), models.Notification{
		Kind: desc.Kind, HomeID: homeID, Op: models.OpSynced, Err: err,
	})
}

func toPushEntity(r *models.Record) syncproto.PushEntity {
	return syncproto.PushEntity{
		EntityID:        r.ID,
		HomeID:          r.HomeID,
		Data:            r.Payload,
		Version:         r.Version,
		ClientUpdatedAt: r.ClientUpdatedAt,
		PendingCreate:   r.PendingCreate,
		PendingUpdate:   r.PendingUpdate,
		PendingDelete:   r.PendingDelete,
	}
}

func (s *Syncer) push(ctx context.Context, desc models.Descriptor, key store.Key,
	cp models.Checkpoint, pending []*models.Record, report *SyncReport) error {

	req := &syncproto.PushRequest{
		EntityType:   desc.EntityType(),
		Entities:     make([]syncproto.PushEntity, 0, len(pending)),
		LastPulledAt: cp.LastSyncTime,
		Checkpoint:   syncproto.Checkpoint{LastPulledVersion: cp.LastPulledVersion},
	}
	sent := make(map[string]*models.Record, len(pending))
	for _, r := range pending {
		req.Entities = append(req.Entities, toPushEntity(r))
		sent[r.ID] = r
	}
	report.Pushed = len(pending)

	resp, err := s.remote.Push(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPushFailed, err)
	}

	now := s.now()
	reassigned := map[string]string{}

	// Results are merged into the document as it is now, not into pending:
	// records may have been edited while the request was in flight.
	err = s.docs.Mutate(ctx, key, func(doc *models.Document) (bool, error) {
		changed := false
		for _, res := range resp.Results {
			snap, ok := sent[res.EntityID]
			if !ok {
				continue
			}
			local := doc.Find(res.EntityID)
			if local == nil {
				if res.Status == syncproto.StatusCreated && snap.PendingCreate {
					doc.Put(orphanTombstone(snap, res, now))
					changed = true
				}
				continue
			}
			if res.Status == syncproto.StatusServerVersion && res.Winner != syncproto.WinnerClient {
				if res.ServerVersionData == nil {
					report.Rejected++
					s.log.Warn(ctx, "server version without snapshot, record stays pending",
						"kind", desc.Kind, "id", res.EntityID)
					continue
				}
				report.Conflicts++
			}
			doc.Put(Resolve(local, snap, res, now))
			report.Acked++
			changed = true
		}

		for _, e := range resp.Errors {
			local := doc.Find(e.EntityID)
			if e.Code != common.ErrCodeIDCollision || local == nil || !local.PendingCreate {
				report.Rejected++
				s.log.Warn(ctx, "entity rejected", "kind", desc.Kind, "id", e.EntityID, "code", e.Code)
				continue
			}
			newID := e.SuggestedEntityID
			if newID == "" || doc.Find(newID) != nil {
				newID = s.newID()
			}
			local.ID = newID
			if desc.Container {
				local.HomeID = newID
			}
			reassigned[e.EntityID] = newID
			changed = true
		}
		return changed, nil
	})
	if err != nil {
		return fmt.Errorf("apply push results: %w", err)
	}

	if len(reassigned) > 0 {
		report.Reassigned = reassigned
	}
	for oldID, newID := range reassigned {
		s.log.Info(ctx, "entity id reassigned", "kind", desc.Kind, "old", oldID, "new", newID)
		if s.lifecycle != nil {
			if err := s.lifecycle.Reassigned(ctx, desc, oldID, newID); err != nil {
				return fmt.Errorf("reassign %s: %w", oldID, err)
			}
		}
		if s.events != nil {
			s.events.Publish(string(desc.Kind), models.Notification{
				Kind: desc.Kind, HomeID: key.HomeID, IDs: []string{oldID, newID}, Op: models.OpReassigned,
			})
		}
	}
	return nil
}

// orphanTombstone covers a creation acknowledged by the server after the
// record was already deleted locally. The server copy has to be deleted too.
func orphanTombstone(snap *models.Record, res syncproto.PushResult, now time.Time) *models.Record {
	rec := snap.Clone()
	rec.ClearPending()
	rec.PendingDelete = true
	if res.ServerVersion > 0 {
		rec.Version = res.ServerVersion
	}
	serverAt := now
	if res.ServerUpdatedAt != nil {
		serverAt = *res.ServerUpdatedAt
	}
	rec.ServerUpdatedAt = models.TimePtr(serverAt)
	rec.DeletedAt = models.TimePtr(now)
	rec.ClientUpdatedAt = now
	return rec
}

func (s *Syncer) pull(ctx context.Context, desc models.Descriptor, key store.Key,
	cp models.Checkpoint, report *SyncReport) error {

	resp, err := s.remote.Pull(ctx, &syncproto.PullRequest{
		EntityType:     desc.EntityType(),
		HomeID:         key.HomeID,
		Since:          cp.LastSyncTime,
		IncludeDeleted: true,
		Checkpoint:     syncproto.Checkpoint{LastPulledVersion: cp.LastPulledVersion},
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPullFailed, err)
	}

	now := s.now()
	serverTS := resp.ServerTimestamp
	if serverTS.IsZero() {
		serverTS = now
	}

	err = s.docs.Mutate(ctx, key, func(doc *models.Document) (bool, error) {
		for _, e := range resp.Entities {
			if local := doc.Find(e.EntityID); local != nil && local.IsPending() {
				report.Skipped++
				continue
			}
			doc.Put(fromPull(desc, key, e, now))
			report.Pulled++
		}

		for _, id := range resp.DeletedEntityIDs {
			local := doc.Find(id)
			switch {
			case local == nil:
			case !local.IsDeleted():
				local.DeletedAt = models.TimePtr(serverTS)
				local.ClearPending()
				local.LastSyncedAt = models.TimePtr(now)
				report.Deleted++
			case local.IsPending():
				local.ClearPending()
				local.LastSyncedAt = models.TimePtr(now)
				report.Deleted++
			default:
				doc.Remove(id)
				report.Purged++
			}
		}

		report.Collected += s.collect(doc, now)

		next := models.Checkpoint{LastSyncTime: models.TimePtr(serverTS), LastPulledVersion: cp.LastPulledVersion}
		if resp.Checkpoint.LastPulledVersion > next.LastPulledVersion {
			next.LastPulledVersion = resp.Checkpoint.LastPulledVersion
		}
		doc.SetCheckpoint(next)
		report.Checkpoint = next
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("apply pull: %w", err)
	}
	return nil
}

func fromPull(desc models.Descriptor, key store.Key, e syncproto.PullEntity, now time.Time) *models.Record {
	homeID := e.HomeID
	switch {
	case desc.Container:
		homeID = e.EntityID
	case homeID == "":
		homeID = key.HomeID
	}
	clientAt := e.ClientUpdatedAt
	if clientAt.IsZero() {
		clientAt = e.UpdatedAt
	}
	return &models.Record{
		ID:              e.EntityID,
		HomeID:          homeID,
		Payload:         append([]byte(nil), e.Data...),
		Version:         e.Version,
		ClientUpdatedAt: clientAt,
		ServerUpdatedAt: models.TimePtr(e.UpdatedAt),
		LastSyncedAt:    models.TimePtr(now),
	}
}

// collect drops acknowledged tombstones older than the retention window.
func (s *Syncer) collect(doc *models.Document, now time.Time) int {
	if s.retention <= 0 {
		return 0
	}
	cutoff := now.Add(-s.retention)
	n := 0
	kept := doc.Records[:0]
	for _, r := range doc.Records {
		if r.IsDeleted() && !r.IsPending() && r.DeletedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	doc.Records = kept
	return n
}
