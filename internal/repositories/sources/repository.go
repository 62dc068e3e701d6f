package sources

import (
	"context"
	"time"

	"github.com/msavelyev/calhub/internal/models"
)

// Repository stores which providers each user has configured, with the
// per-provider watermark the orchestrator uses to pick sync candidates.
type Repository interface {
	// EnsureExists inserts a zero-watermark row unless one is already there.
	// Called on the first vault item write for a provider.
	EnsureExists(ctx context.Context, userID models.UserID, providerKey string) error

	// UsersForProvider lists users who have the given provider configured.
	UsersForProvider(ctx context.Context, providerKey string) ([]models.UserID, error)

	// ListForUser returns the user's configured providers.
	ListForUser(ctx context.Context, userID models.UserID) ([]*models.SyncSource, error)

	// UpdateLastSynced advances the provider-level watermark.
	UpdateLastSynced(ctx context.Context, userID models.UserID, providerKey string, t time.Time) error
}
