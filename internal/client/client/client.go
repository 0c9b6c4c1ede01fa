package client

import (
	"context"

	"github.com/dmitrijs2005/homekeeper/internal/syncproto"
)

type Client interface {
	Close() error
	Register(ctx context.Context, username string, password []byte) error
	Login(ctx context.Context, username string, password []byte) (*syncproto.TokenPair, error)
	Ping(ctx context.Context) error
	Push(ctx context.Context, req *syncproto.PushRequest) (*syncproto.PushResponse, error)
	Pull(ctx context.Context, req *syncproto.PullRequest) (*syncproto.PullResponse, error)
	// RestoreSession lets a restarted client authenticate with a saved
	// refresh token.
	RestoreSession(refreshToken string)
	Logout()
}
