// Package models defines the records the sync engine moves between the local
// document store and the server.
package models

import (
	"encoding/json"
	"time"
)

// AccountScope is the home id under which account-wide documents (the home
// list itself) are stored.
const AccountScope = ""

// Record is one entity of any kind together with its sync metadata.
// Payload is opaque to the sync engine.
type Record struct {
	ID              string          `json:"id"`
	HomeID          string          `json:"homeId"`
	Payload         json.RawMessage `json:"payload"`
	Version         int64           `json:"version"`
	ClientUpdatedAt time.Time       `json:"clientUpdatedAt"`
	ServerUpdatedAt *time.Time      `json:"serverUpdatedAt,omitempty"`
	LastSyncedAt    *time.Time      `json:"lastSyncedAt,omitempty"`
	DeletedAt       *time.Time      `json:"deletedAt,omitempty"`
	PendingCreate   bool            `json:"pendingCreate"`
	PendingUpdate   bool            `json:"pendingUpdate"`
	PendingDelete   bool            `json:"pendingDelete"`
}

// IsPending reports whether the record carries an unacknowledged local intent.
func (r *Record) IsPending() bool {
	return r.PendingCreate || r.PendingUpdate || r.PendingDelete
}

func (r *Record) IsDeleted() bool {
	return r.DeletedAt != nil
}

// IsUsable reports whether the record is live: not tombstoned and not
// waiting for a delete to be acknowledged.
func (r *Record) IsUsable() bool {
	return r.DeletedAt == nil && !r.PendingDelete
}

// NeverSynced reports whether the server has never confirmed this record.
func (r *Record) NeverSynced() bool {
	return r.ServerUpdatedAt == nil
}

func (r *Record) ClearPending() {
	r.PendingCreate = false
	r.PendingUpdate = false
	r.PendingDelete = false
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	c := *r
	if r.Payload != nil {
		c.Payload = append(json.RawMessage(nil), r.Payload...)
	}
	c.ServerUpdatedAt = cloneTime(r.ServerUpdatedAt)
	c.LastSyncedAt = cloneTime(r.LastSyncedAt)
	c.DeletedAt = cloneTime(r.DeletedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// TimePtr returns a pointer to a copy of t.
func TimePtr(t time.Time) *time.Time {
	return &t
}
