// Package services contains the application services of the homekeeper
// client: authentication, the sync coordinator and its scheduler, and the
// home lifecycle guard.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/homekeeper/internal/client/client"
	"github.com/dmitrijs2005/homekeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/homekeeper/internal/dbx"
	"golang.org/x/crypto/bcrypt"
)

const keyVerifier = "verifier"

var ErrLocalDataNotAvailable = errors.New("local data unavailable")

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - OnlineLogin: authenticate against the server and persist the session
//     and offline verifier.
//   - OfflineLogin: verify credentials against locally cached data.
//   - RestoreSession: hand a saved refresh token to the client and return the
//     username it belongs to.
//   - Register: create a new user on the server.
//   - Ping: check server liveness.
//   - Close: release underlying client resources.
//   - ClearOfflineData: wipe locally cached auth metadata.
type AuthService interface {
	OfflineLogin(ctx context.Context, username string, password []byte) error
	OnlineLogin(ctx context.Context, username string, password []byte) error
	RestoreSession(ctx context.Context) (string, error)
	Register(ctx context.Context, username string, password []byte) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
	ClearOfflineData(ctx context.Context) error
}

type authService struct {
	client client.Client
	db     *sql.DB
	cost   int
}

func NewAuthService(client client.Client, db *sql.DB) AuthService {
	return &authService{client: client, db: db, cost: bcrypt.DefaultCost}
}

func (a *authService) getMetadataRepo() metadata.Repository {
	return metadata.NewSQLiteRepository(a.db)
}

// OfflineLogin checks the password against the verifier saved by the last
// online login. If local data is missing, returns ErrLocalDataNotAvailable;
// if verification fails, returns client.ErrUnauthorized.
func (a *authService) OfflineLogin(ctx context.Context, username string, password []byte) error {
	metadataRepo := a.getMetadataRepo()

	savedUsername, err := metadataRepo.Get(ctx, metadata.KeyUsername)
	if err != nil {
		return err
	}
	savedVerifier, err := metadataRepo.Get(ctx, keyVerifier)
	if err != nil {
		return err
	}
	if savedUsername == nil || savedVerifier == nil {
		return ErrLocalDataNotAvailable
	}
	if string(savedUsername) != username {
		return client.ErrUnauthorized
	}

	if err := bcrypt.CompareHashAndPassword(savedVerifier, password); err != nil {
		return client.ErrUnauthorized
	}
	return nil
}

// OnlineLogin authenticates against the server and saves the session.
func (a *authService) OnlineLogin(ctx context.Context, userName string, password []byte) error {
	tokens, err := a.client.Login(ctx, userName, password)
	if err != nil {
		return fmt.Errorf("login error: %w", err)
	}

	verifier, err := bcrypt.GenerateFromPassword(password, a.cost)
	if err != nil {
		return fmt.Errorf("verifier error: %w", err)
	}

	if err := a.saveOfflineData(ctx, userName, verifier, tokens.RefreshToken); err != nil {
		return fmt.Errorf("offline data saving error: %w", err)
	}
	return nil
}

// saveOfflineData persists the username, verifier and refresh token in a
// single transaction.
func (a *authService) saveOfflineData(ctx context.Context, userName string, verifier []byte, refreshToken string) error {
	return dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		metadataRepo := metadata.NewSQLiteRepository(tx)
		if err := metadataRepo.Set(ctx, metadata.KeyUsername, []byte(userName)); err != nil {
			return err
		}
		if err := metadataRepo.Set(ctx, keyVerifier, verifier); err != nil {
			return err
		}
		return metadataRepo.Set(ctx, metadata.KeyRefreshToken, []byte(refreshToken))
	})
}

func (a *authService) RestoreSession(ctx context.Context) (string, error) {
	metadataRepo := a.getMetadataRepo()

	username, err := metadataRepo.Get(ctx, metadata.KeyUsername)
	if err != nil {
		return "", err
	}
	token, err := metadataRepo.Get(ctx, metadata.KeyRefreshToken)
	if err != nil {
		return "", err
	}
	if username == nil || len(token) == 0 {
		return "", ErrLocalDataNotAvailable
	}

	a.client.RestoreSession(string(token))
	return string(username), nil
}

// Register creates a new account on the server.
func (a *authService) Register(ctx context.Context, username string, password []byte) error {
	return a.client.Register(ctx, username, password)
}

// Ping proxies a liveness check to the underlying client.
func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

// Close releases resources held by the underlying client.
func (a *authService) Close(ctx context.Context) error {
	return a.client.Close()
}

// ClearOfflineData forgets the session (e.g., on logout). Synced data and
// the active home stay.
func (a *authService) ClearOfflineData(ctx context.Context) error {
	a.client.Logout()
	return dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		metadataRepo := metadata.NewSQLiteRepository(tx)
		for _, k := range []string{metadata.KeyUsername, keyVerifier, metadata.KeyRefreshToken} {
			if err := metadataRepo.Delete(ctx, k); err != nil {
				return err
			}
		}
		return nil
	})
}
