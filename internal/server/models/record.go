package models

import (
	"encoding/json"
	"time"
)

// Record is the server copy of one synced entity. IDs are unique per entity
// type across all users.
type Record struct {
	ID              string
	UserID          string
	EntityType      string
	HomeID          string
	Data            json.RawMessage
	Version         int64
	ClientUpdatedAt time.Time
	UpdatedAt       time.Time
	Deleted         bool
}

func (r *Record) Clone() *Record {
	c := *r
	c.Data = append(json.RawMessage(nil), r.Data...)
	return &c
}
