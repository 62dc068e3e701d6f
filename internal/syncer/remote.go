package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/msavelyev/calhub/internal/calendar"
	"github.com/msavelyev/calhub/internal/common"
	"github.com/msavelyev/calhub/internal/dbx"
	"github.com/msavelyev/calhub/internal/logging"
	"github.com/msavelyev/calhub/internal/models"
	"github.com/msavelyev/calhub/internal/repositories/repomanager"
)

// Remote pushes local reservation changes to the user's calendar.
//
// The binding's last_synced watermark drives the diff: every row with
// updated_at past the watermark is reconciled, then the watermark advances.
// When some rows fail remotely, the watermark is parked just before the
// earliest failed row's updated_at, so exactly the failed rows (plus anything
// newer) are retried next time while successful work is never repeated.
type Remote struct {
	log logging.Logger
	rm  repomanager.RepositoryManager
	cal calendar.Client
	now func() time.Time
}

func NewRemote(log logging.Logger, rm repomanager.RepositoryManager, cal calendar.Client) *Remote {
	return &Remote{log: log, rm: rm, cal: cal, now: time.Now}
}

// SyncUser reconciles one user's calendar. A user without a calendar binding
// is reported as common.ErrNotFound.
func (r *Remote) SyncUser(ctx context.Context, userID models.UserID) error {
	conn := r.rm.Conn()
	log := r.log.With("user_id", userID)

	binding, err := r.rm.Bindings(conn).GetByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("loading calendar binding: %w", err)
	}
	passStart := r.now()

	events, err := r.rm.Reservations(conn).SelectUpdatedSince(ctx, userID, binding.LastSynced)
	if err != nil {
		return fmt.Errorf("selecting changed reservations: %w", err)
	}

	ids := make([]string, len(events))
	for i, ev := range events {
		ids[i] = ev.ID
	}
	mapped, err := r.rm.Mappings(conn).SelectByReservationIDs(ctx, userID, ids)
	if err != nil {
		return fmt.Errorf("loading event mappings: %w", err)
	}

	var created []*models.EventMapping
	var earliestFailed time.Time
	var ctxErr error
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			ctxErr = err
			break
		}
		if err := r.applyOne(ctx, binding.CalendarID, userID, ev, mapped, &created); err != nil {
			log.Error(ctx, "remote apply failed",
				"reservation_id", ev.ID, "error", err)
			if earliestFailed.IsZero() || ev.UpdatedAt.Before(earliestFailed) {
				earliestFailed = ev.UpdatedAt
			}
		}
	}

	if len(created) > 0 {
		// These events now exist on the calendar. Their mappings must land
		// even when the pass was cancelled mid-way, or the next pass would
		// create duplicates.
		insertCtx := context.WithoutCancel(ctx)
		err := dbx.WithTx(insertCtx, conn, nil, func(ctx context.Context, tx dbx.DBTX) error {
			return r.rm.Mappings(tx).InsertBatch(ctx, created)
		})
		if err != nil {
			// Without the mappings the created events would be recreated on
			// the next pass. Do not advance.
			return fmt.Errorf("storing event mappings: %w", err)
		}
	}

	if ctxErr != nil {
		return ctxErr
	}

	watermark := passStart
	if !earliestFailed.IsZero() {
		watermark = earliestFailed.Add(-time.Microsecond)
		log.Warn(ctx, "holding back sync watermark",
			"watermark", watermark, "changed", len(events))
	}
	if err := r.rm.Bindings(conn).UpdateLastSynced(ctx, userID, watermark); err != nil {
		return fmt.Errorf("advancing watermark: %w", err)
	}

	if len(events) > 0 {
		log.Info(ctx, "calendar reconciled",
			"changed", len(events), "created", len(created))
	}
	return nil
}

// applyOne pushes a single reservation change. The action depends on the
// pair (invalid, already mapped): delete, skip, patch or create.
func (r *Remote) applyOne(ctx context.Context, calendarID string, userID models.UserID, ev *models.Event, mapped map[string]string, created *[]*models.EventMapping) error {
	remoteID, has := mapped[ev.ID]
	switch {
	case ev.Invalid && has:
		return r.cal.DeleteEvent(ctx, calendarID, remoteID)
	case ev.Invalid:
		// Never made it to the calendar; nothing to remove.
		return nil
	case has:
		return r.cal.PatchEvent(ctx, calendarID, remoteID, ev)
	default:
		id, err := r.cal.CreateEvent(ctx, calendarID, ev)
		if err != nil {
			return err
		}
		*created = append(*created, &models.EventMapping{
			EventID:       id,
			UserID:        userID,
			ReservationID: ev.ID,
		})
		return nil
	}
}

// HasBinding reports whether the user has a calendar bound.
func (r *Remote) HasBinding(ctx context.Context, userID models.UserID) (bool, error) {
	_, err := r.rm.Bindings(r.rm.Conn()).GetByUserID(ctx, userID)
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
