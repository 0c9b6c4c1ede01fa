package services

import (
	"bytes"
	"time"

	"github.com/dmitrijs2005/homekeeper/internal/client/models"
	"github.com/dmitrijs2005/homekeeper/internal/syncproto"
)

// Resolve applies one push result to the current local copy of a record and
// returns the new local copy. local is never modified.
//
// sent is the snapshot that was pushed. When the payload of local no longer
// matches it, the record was edited while the push was in flight; a created or
// updated acknowledgment then keeps the edit pending on top of the server's
// version. A server_version verdict always replaces the local copy.
func Resolve(local, sent *models.Record, res syncproto.PushResult, now time.Time) *models.Record {
	out := local.Clone()
	editedSince := sent != nil && out.IsUsable() && !bytes.Equal(out.Payload, sent.Payload)

	serverAt := now
	if res.ServerUpdatedAt != nil {
		serverAt = *res.ServerUpdatedAt
	}

	switch res.Status {
	case syncproto.StatusCreated, syncproto.StatusUpdated:
		acknowledge(out, res, serverAt, now)

	case syncproto.StatusDeleted:
		out.ClearPending()
		if out.DeletedAt == nil {
			out.DeletedAt = models.TimePtr(serverAt)
		}
		out.ServerUpdatedAt = models.TimePtr(serverAt)
		out.LastSyncedAt = models.TimePtr(now)
		return out

	case syncproto.StatusServerVersion:
		if res.Winner == syncproto.WinnerClient {
			acknowledge(out, res, serverAt, now)
			break
		}
		return adoptServer(out, res, serverAt, now)

	default:
		return out
	}

	if editedSince {
		out.PendingUpdate = true
		out.Version++
	}
	return out
}

func acknowledge(rec *models.Record, res syncproto.PushResult, serverAt, now time.Time) {
	if res.Status == syncproto.StatusCreated {
		rec.PendingCreate = false
	}
	rec.PendingUpdate = false
	if res.ServerVersion > 0 {
		rec.Version = res.ServerVersion
	}
	rec.ServerUpdatedAt = models.TimePtr(serverAt)
	rec.LastSyncedAt = models.TimePtr(now)
}

// adoptServer replaces rec with the server snapshot. Without a snapshot there
// is nothing to adopt and rec is returned unchanged, still pending.
func adoptServer(rec *models.Record, res syncproto.PushResult, serverAt, now time.Time) *models.Record {
	sv := res.ServerVersionData
	if sv == nil {
		return rec
	}
	rec.ClearPending()
	rec.LastSyncedAt = models.TimePtr(now)

	updatedAt := sv.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = serverAt
	}
	rec.ServerUpdatedAt = models.TimePtr(updatedAt)

	if sv.Deleted {
		rec.Version = sv.Version
		if rec.DeletedAt == nil {
			rec.DeletedAt = models.TimePtr(updatedAt)
		}
		return rec
	}

	rec.Payload = append([]byte(nil), sv.Data...)
	rec.Version = sv.Version
	rec.DeletedAt = nil
	return rec
}
