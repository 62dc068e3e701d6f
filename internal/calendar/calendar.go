// Package calendar abstracts the remote calendar the reconciler writes to,
// and implements it for Google Calendar.
package calendar

import (
	"context"

	"github.com/msavelyev/calhub/internal/models"
)

// Client is the minimal remote calendar surface the reconciler needs.
// All calls are idempotent from the reconciler's point of view: deleting an
// event that is already gone is success.
type Client interface {
	// CreateEvent inserts the event and returns the remote event id.
	CreateEvent(ctx context.Context, calendarID string, ev *models.Event) (string, error)

	// PatchEvent overwrites the remote event's projected fields.
	PatchEvent(ctx context.Context, calendarID, eventID string, ev *models.Event) error

	// DeleteEvent removes the remote event. Not-found is not an error.
	DeleteEvent(ctx context.Context, calendarID, eventID string) error

	// CreateCalendar provisions a dedicated calendar and returns its id.
	CreateCalendar(ctx context.Context, summary string) (string, error)

	// GrantWriter grants the given account write access to the calendar and
	// returns the ACL rule id.
	GrantWriter(ctx context.Context, calendarID, email string) (string, error)
}
