package mappings

import (
	"context"

	"github.com/msavelyev/calhub/internal/models"
)

// Repository stores the local-reservation to remote-event-id associations.
// Rows are append-only; an orphaned mapping (remote event gone) is harmless
// because reservation rows are never purged either.
type Repository interface {
	// SelectByReservationIDs returns reservationID -> remote event id for the
	// given ids (missing ids are simply absent from the map).
	SelectByReservationIDs(ctx context.Context, userID models.UserID, reservationIDs []string) (map[string]string, error)

	// InsertBatch persists newly created mappings.
	InsertBatch(ctx context.Context, items []*models.EventMapping) error
}
