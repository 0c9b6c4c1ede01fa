package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/homekeeper/internal/common"
	"github.com/dmitrijs2005/homekeeper/internal/dbx"
	"github.com/dmitrijs2005/homekeeper/internal/logging"
	"github.com/dmitrijs2005/homekeeper/internal/server/models"
	"github.com/dmitrijs2005/homekeeper/internal/server/repositories/records"
	"github.com/dmitrijs2005/homekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/homekeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/homekeeper/internal/syncproto"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

type typedRequest struct {
	EntityType string `validate:"required,oneof=home category todo_category todo item location"`
}

type pushEntity struct {
	EntityID string `validate:"required,max=64"`
	HomeID   string `validate:"required,max=64"`
}

// SyncService applies pushed changes and serves pulls. Conflicts are settled
// in favour of the server copy: a client change is only accepted when it was
// based on the latest server version.
type SyncService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	now         func() time.Time
	newID       func() string
}

func NewSyncService(db *sql.DB, m repomanager.RepositoryManager, l logging.Logger) *SyncService {
	if l == nil {
		l = logging.Nop{}
	}
	return &SyncService{
		db:          db,
		repomanager: m,
		logger:      l.With("module", "sync"),
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Push applies every entity of req in one transaction and reports a verdict
// per entity. Entities the server refuses are listed in Errors instead.
func (s *SyncService) Push(ctx context.Context, userID string, req *syncproto.PushRequest) (*syncproto.PushResponse, error) {
	if err := validate.Struct(typedRequest{EntityType: req.EntityType}); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInvalidArgument, err)
	}

	var resp *syncproto.PushResponse
	err := s.repomanager.WithTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		p := &pusher{
			svc:     s,
			userID:  userID,
			kind:    req.EntityType,
			users:   s.repomanager.Users(tx),
			records: s.repomanager.Records(tx),
			now:     s.now().UTC(),
		}
		resp = &syncproto.PushResponse{}
		for _, e := range req.Entities {
			if err := p.apply(ctx, e, resp); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("push %s: %w", req.EntityType, err)
	}

	s.logger.Debug(ctx, "push applied", "user", userID, "type", req.EntityType,
		"entities", len(req.Entities), "results", len(resp.Results), "errors", len(resp.Errors))
	return resp, nil
}

type pusher struct {
	svc     *SyncService
	userID  string
	kind    string
	users   users.Repository
	records records.Repository
	now     time.Time
}

func (p *pusher) nextVersion(ctx context.Context) (int64, error) {
	return p.users.IncrementCurrentVersion(ctx, p.userID)
}

func (p *pusher) reject(ctx context.Context, resp *syncproto.PushResponse, e syncproto.PushEntity, code string) {
	p.svc.logger.Warn(ctx, "entity rejected", "type", p.kind, "id", e.EntityID, "code", code)
	pe := syncproto.PushError{EntityID: e.EntityID, Code: code}
	if code == common.ErrCodeIDCollision {
		pe.SuggestedEntityID = p.svc.newID()
	}
	resp.Errors = append(resp.Errors, pe)
}

func (p *pusher) apply(ctx context.Context, e syncproto.PushEntity, resp *syncproto.PushResponse) error {
	if err := validate.Struct(pushEntity{EntityID: e.EntityID, HomeID: e.HomeID}); err != nil {
		p.reject(ctx, resp, e, common.ErrCodeInvalidEntity)
		return nil
	}
	if !e.PendingDelete && len(e.Data) > 0 && !json.Valid(e.Data) {
		p.reject(ctx, resp, e, common.ErrCodeInvalidEntity)
		return nil
	}

	stored, err := p.records.Get(ctx, p.kind, e.EntityID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return err
	}
	if stored != nil && stored.UserID != p.userID {
		// ids are global; another account already owns this one
		if e.PendingDelete {
			resp.Results = append(resp.Results, syncproto.PushResult{EntityID: e.EntityID, Status: syncproto.StatusDeleted})
			return nil
		}
		p.reject(ctx, resp, e, common.ErrCodeIDCollision)
		return nil
	}

	switch {
	case e.PendingDelete:
		return p.delete(ctx, e, stored, resp)
	case e.PendingCreate:
		return p.create(ctx, e, stored, resp)
	default:
		return p.update(ctx, e, stored, resp)
	}
}

func (p *pusher) delete(ctx context.Context, e syncproto.PushEntity, stored *models.Record, resp *syncproto.PushResponse) error {
	if stored == nil || stored.Deleted {
		res := syncproto.PushResult{EntityID: e.EntityID, Status: syncproto.StatusDeleted}
		if stored != nil {
			res.ServerVersion = stored.Version
			res.ServerUpdatedAt = &stored.UpdatedAt
		}
		resp.Results = append(resp.Results, res)
		return nil
	}
	if e.Version < stored.Version {
		p.conflict(e, stored, resp)
		return nil
	}

	rec := stored.Clone()
	rec.Deleted = true
	rec.ClientUpdatedAt = e.ClientUpdatedAt
	return p.write(ctx, rec, syncproto.StatusDeleted, resp)
}

func (p *pusher) create(ctx context.Context, e syncproto.PushEntity, stored *models.Record, resp *syncproto.PushResponse) error {
	if stored != nil {
		if stored.HomeID != e.HomeID {
			p.reject(ctx, resp, e, common.ErrCodeIDCollision)
			return nil
		}
		// a retried create whose first attempt already landed
		p.conflict(e, stored, resp)
		return nil
	}
	return p.write(ctx, p.fromEntity(e), syncproto.StatusCreated, resp)
}

func (p *pusher) update(ctx context.Context, e syncproto.PushEntity, stored *models.Record, resp *syncproto.PushResponse) error {
	switch {
	case stored == nil:
		return p.write(ctx, p.fromEntity(e), syncproto.StatusUpdated, resp)
	case stored.Deleted, e.Version <= stored.Version:
		p.conflict(e, stored, resp)
		return nil
	}
	rec := p.fromEntity(e)
	return p.write(ctx, rec, syncproto.StatusUpdated, resp)
}

func (p *pusher) fromEntity(e syncproto.PushEntity) *models.Record {
	clientAt := e.ClientUpdatedAt
	if clientAt.IsZero() {
		clientAt = p.now
	}
	return &models.Record{
		ID:              e.EntityID,
		UserID:          p.userID,
		EntityType:      p.kind,
		HomeID:          e.HomeID,
		Data:            append([]byte(nil), e.Data...),
		ClientUpdatedAt: clientAt,
	}
}

// write stamps rec with the next user version and stores it.
func (p *pusher) write(ctx context.Context, rec *models.Record, st syncproto.PushStatus, resp *syncproto.PushResponse) error {
	v, err := p.nextVersion(ctx)
	if err != nil {
		return fmt.Errorf("next version: %w", err)
	}
	rec.Version = v
	rec.UpdatedAt = p.now
	if err := p.records.Upsert(ctx, rec); err != nil {
		return err
	}
	at := p.now
	resp.Results = append(resp.Results, syncproto.PushResult{
		EntityID:        rec.ID,
		Status:          st,
		ServerVersion:   v,
		ServerUpdatedAt: &at,
	})
	return nil
}

func (p *pusher) conflict(e syncproto.PushEntity, stored *models.Record, resp *syncproto.PushResponse) {
	at := stored.UpdatedAt
	resp.Results = append(resp.Results, syncproto.PushResult{
		EntityID:        e.EntityID,
		Status:          syncproto.StatusServerVersion,
		ServerVersion:   stored.Version,
		ServerUpdatedAt: &at,
		Winner:          syncproto.WinnerServer,
		ServerVersionData: &syncproto.ServerVersionData{
			HomeID:    stored.HomeID,
			Data:      append([]byte(nil), stored.Data...),
			Version:   stored.Version,
			UpdatedAt: stored.UpdatedAt,
			Deleted:   stored.Deleted,
		},
	})
}

// Pull returns the user's changes of one entity type above the request
// checkpoint. The since timestamp is not consulted; versions alone order
// changes.
func (s *SyncService) Pull(ctx context.Context, userID string, req *syncproto.PullRequest) (*syncproto.PullResponse, error) {
	if err := validate.Struct(typedRequest{EntityType: req.EntityType}); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInvalidArgument, err)
	}

	recs, err := s.repomanager.Records(s.db).SelectUpdated(ctx, userID, req.EntityType, req.HomeID, req.Checkpoint.LastPulledVersion)
	if err != nil {
		return nil, fmt.Errorf("pull %s: %w", req.EntityType, err)
	}

	resp := &syncproto.PullResponse{
		Entities:         []syncproto.PullEntity{},
		DeletedEntityIDs: []string{},
		Checkpoint:       req.Checkpoint,
		ServerTimestamp:  s.now().UTC(),
	}
	for _, r := range recs {
		if r.Version > resp.Checkpoint.LastPulledVersion {
			resp.Checkpoint.LastPulledVersion = r.Version
		}
		if r.Deleted {
			if req.IncludeDeleted {
				resp.DeletedEntityIDs = append(resp.DeletedEntityIDs, r.ID)
			}
			continue
		}
		resp.Entities = append(resp.Entities, syncproto.PullEntity{
			EntityID:        r.ID,
			HomeID:          r.HomeID,
			Data:            r.Data,
			Version:         r.Version,
			UpdatedAt:       r.UpdatedAt,
			ClientUpdatedAt: r.ClientUpdatedAt,
		})
	}

	s.logger.Debug(ctx, "pull served", "user", userID, "type", req.EntityType, "home", req.HomeID,
		"entities", len(resp.Entities), "deleted", len(resp.DeletedEntityIDs), "checkpoint", resp.Checkpoint.LastPulledVersion)
	return resp, nil
}
