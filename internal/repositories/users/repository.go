package users

import (
	"context"

	"github.com/msavelyev/calhub/internal/models"
)

// Repository stores the opaque user rows.
type Repository interface {
	// Create inserts a new user and returns its id.
	Create(ctx context.Context) (models.UserID, error)

	// Exists reports whether the user id is known.
	Exists(ctx context.Context, userID models.UserID) (bool, error)
}
