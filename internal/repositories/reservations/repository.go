package reservations

import (
	"context"
	"time"

	"github.com/msavelyev/calhub/internal/models"
)

// Repository is the storage contract for reservation rows.
//
// Upsert carries the idempotence guarantee of the whole pipeline: writing an
// event identical to the stored row must not touch it (and in particular
// must not bump updated_at), so re-scrapes of unchanged data stay invisible
// to the remote reconciler.
type Repository interface {
	// Upsert inserts the event or conditionally updates it when any visible
	// field differs, stamping updated_at=now only in that case. Returns true
	// when a row was actually written.
	Upsert(ctx context.Context, userID models.UserID, ev *models.Event, now time.Time) (bool, error)

	// SelectInvalidIDs returns the subset of ids whose stored row is
	// currently flagged invalid.
	SelectInvalidIDs(ctx context.Context, userID models.UserID, ids []string) ([]string, error)

	// CancelMissing flags as invalid every not-yet-invalid row with the given
	// id prefix whose start is still in the future and whose id is not in
	// presentIDs, stamping updated_at so the cancellation reaches the remote
	// reconciler. Returns the number of rows cancelled.
	CancelMissing(ctx context.Context, userID models.UserID, prefix string, presentIDs []string, now time.Time) (int64, error)

	// SelectUpdatedSince returns all rows for the user with
	// updated_at > since.
	SelectUpdatedSince(ctx context.Context, userID models.UserID, since time.Time) ([]*models.Event, error)
}
