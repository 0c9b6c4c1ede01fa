package syncproto

import (
	"encoding/json"
	"time"
)

// PushStatus is the server verdict for one pushed entity.
type PushStatus string

const (
	StatusCreated       PushStatus = "created"
	StatusUpdated       PushStatus = "updated"
	StatusDeleted       PushStatus = "deleted"
	StatusServerVersion PushStatus = "server_version"
)

// Winner names the side whose copy survives a conflict. The server always wins.
type Winner string

const (
	WinnerServer Winner = "server"
	WinnerClient Winner = "client"
)

type Checkpoint struct {
	LastPulledVersion int64 `json:"lastPulledVersion"`
}

type PushEntity struct {
	EntityID        string          `json:"entityId"`
	HomeID          string          `json:"homeId"`
	Data            json.RawMessage `json:"data"`
	Version         int64           `json:"version"`
	ClientUpdatedAt time.Time       `json:"clientUpdatedAt"`
	PendingCreate   bool            `json:"pendingCreate"`
	PendingUpdate   bool            `json:"pendingUpdate"`
	PendingDelete   bool            `json:"pendingDelete"`
}

type PushRequest struct {
	EntityType   string       `json:"entityType"`
	Entities     []PushEntity `json:"entities"`
	LastPulledAt *time.Time   `json:"lastPulledAt,omitempty"`
	Checkpoint   Checkpoint   `json:"checkpoint"`
}

// ServerVersionData is the authoritative server copy sent with a
// server_version result.
type ServerVersionData struct {
	HomeID    string          `json:"homeId"`
	Data      json.RawMessage `json:"data"`
	Version   int64           `json:"version"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Deleted   bool            `json:"deleted"`
}

type PushResult struct {
	EntityID          string             `json:"entityId"`
	Status            PushStatus         `json:"status"`
	ServerUpdatedAt   *time.Time         `json:"serverUpdatedAt,omitempty"`
	ServerVersion     int64              `json:"serverVersion,omitempty"`
	Winner            Winner             `json:"winner,omitempty"`
	ServerVersionData *ServerVersionData `json:"serverVersionData,omitempty"`
}

type PushError struct {
	EntityID          string `json:"entityId"`
	Code              string `json:"code"`
	SuggestedEntityID string `json:"suggestedEntityId,omitempty"`
}

type PushResponse struct {
	Results []PushResult `json:"results"`
	Errors  []PushError  `json:"errors"`
}

type PullRequest struct {
	EntityType     string     `json:"entityType"`
	HomeID         string     `json:"homeId"`
	Since          *time.Time `json:"since,omitempty"`
	IncludeDeleted bool       `json:"includeDeleted"`
	Checkpoint     Checkpoint `json:"checkpoint"`
}

type PullEntity struct {
	EntityID        string          `json:"entityId"`
	HomeID          string          `json:"homeId"`
	Data            json.RawMessage `json:"data"`
	Version         int64           `json:"version"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	ClientUpdatedAt time.Time       `json:"clientUpdatedAt"`
}

type PullResponse struct {
	Entities         []PullEntity `json:"entities"`
	DeletedEntityIDs []string     `json:"deletedEntityIds"`
	Checkpoint       Checkpoint   `json:"checkpoint"`
	ServerTimestamp  time.Time    `json:"serverTimestamp"`
}

type PingRequest struct{}

type PingResponse struct {
	ServerTime time.Time `json:"serverTime"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password []byte `json:"password"`
}

type RegisterResponse struct {
	UserID string `json:"userId"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password []byte `json:"password"`
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}
