// Package models defines server-side data models persisted in the database.
package models

import "time"

type User struct {
	ID           string
	UserName     string
	PasswordHash []byte
	// CurrentVersion is the last version handed out to any of the user's
	// records. Every accepted write takes the next one.
	CurrentVersion int64
	CreatedAt      time.Time
}
