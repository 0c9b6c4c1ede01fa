// Package metadata stores small client-side settings that are not synced:
// who is logged in, the refresh token, and which home is active.
package metadata

import "context"

const (
	KeyUsername     = "username"
	KeyRefreshToken = "refresh_token"
	KeyActiveHome   = "active_home"
)

type Repository interface {
	// Get returns nil, nil when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
