package bindings

import (
	"context"
	"time"

	"github.com/msavelyev/calhub/internal/models"
)

// Repository stores the remote calendar binding per user: which calendar the
// service identity may write to, and the user-level sync watermark.
type Repository interface {
	// GetByUserID returns the binding or common.ErrNotFound.
	GetByUserID(ctx context.Context, userID models.UserID) (*models.CalendarBinding, error)

	// GetBySubject looks a binding up by external account subject, used to
	// match a login to an existing user. Returns common.ErrNotFound when the
	// subject is unknown.
	GetBySubject(ctx context.Context, subject string) (*models.CalendarBinding, error)

	// Upsert creates the binding with a zero watermark or refreshes
	// calendar_id/acl_id on an existing one (the watermark is preserved).
	Upsert(ctx context.Context, b *models.CalendarBinding) error

	// UpdateLastSynced advances the user-level watermark.
	UpdateLastSynced(ctx context.Context, userID models.UserID, t time.Time) error
}
