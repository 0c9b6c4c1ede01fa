// Package users stores accounts and their per-user version counter.
package users

import (
	"context"

	"github.com/dmitrijs2005/homekeeper/internal/server/models"
)

type Repository interface {
	// Create inserts user and fills its ID. A taken username returns
	// common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	// IncrementCurrentVersion reserves and returns the user's next version.
	IncrementCurrentVersion(ctx context.Context, userID string) (int64, error)
}
