package models

// Operations carried by a Notification.
const (
	OpCreated    = "created"
	OpUpdated    = "updated"
	OpDeleted    = "deleted"
	OpSynced     = "synced"
	OpReassigned = "reassigned"
	OpActivated  = "activated"
)

// TopicActiveHome is published when the active home changes. Record and
// sync notifications use the entity kind as topic.
const TopicActiveHome = "active_home"

// Notification describes a change to local state.
type Notification struct {
	Kind   EntityKind
	HomeID string
	IDs    []string
	Op     string
	Err    error
}
