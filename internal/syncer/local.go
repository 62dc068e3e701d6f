// Package syncer contains the reconcilers: local (provider fetch results into
// the reservation store) and remote (reservation store into the user's
// calendar), plus the orchestrator that schedules both.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/msavelyev/calhub/internal/dbx"
	"github.com/msavelyev/calhub/internal/logging"
	"github.com/msavelyev/calhub/internal/models"
	"github.com/msavelyev/calhub/internal/provider"
	"github.com/msavelyev/calhub/internal/repositories/repomanager"
	"github.com/msavelyev/calhub/internal/repositories/reservations"
)

// Local reconciles a fetched event batch into the reservation store.
// The store's conditional upsert makes the whole operation idempotent: a
// re-fetch of unchanged data writes nothing and stays invisible downstream.
type Local struct {
	log logging.Logger
	rm  repomanager.RepositoryManager
	loc *time.Location
	now func() time.Time
}

// NewLocal builds the reconciler. loc is the reference timezone the
// reservation date/time columns are expressed in.
func NewLocal(log logging.Logger, rm repomanager.RepositoryManager, loc *time.Location) *Local {
	return &Local{log: log, rm: rm, loc: loc, now: time.Now}
}

// UpsertEvents writes the batch and returns how many rows actually changed.
//
// The happy path runs in a single transaction. When any event fails there,
// the transaction is rolled back and the batch is retried event by event on
// plain connections, so one malformed event cannot sink its siblings; the
// per-event errors come back joined.
func (l *Local) UpsertEvents(ctx context.Context, userID models.UserID, events []*models.Event) (int64, error) {
	if len(events) == 0 {
		return 0, nil
	}
	now := l.now()

	l.warnResurrections(ctx, userID, events)

	var changed int64
	txErr := dbx.WithTx(ctx, l.rm.Conn(), nil, func(ctx context.Context, tx dbx.DBTX) error {
		n, err := l.upsertAll(ctx, l.rm.Reservations(tx), userID, events, now)
		if err != nil {
			return err
		}
		changed = n
		return nil
	})
	if txErr == nil {
		return changed, nil
	}

	l.log.Warn(ctx, "batch upsert failed, retrying event by event",
		"user_id", userID, "error", txErr)
	return l.upsertAll(ctx, l.rm.Reservations(l.rm.Conn()), userID, events, now)
}

func (l *Local) upsertAll(ctx context.Context, repo reservations.Repository, userID models.UserID, events []*models.Event, now time.Time) (int64, error) {
	var changed int64
	var errs []error
	for _, ev := range events {
		wrote, err := repo.Upsert(ctx, userID, ev, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("reservation %q: %w", ev.ID, err))
			continue
		}
		if wrote {
			changed++
		}
	}
	return changed, errors.Join(errs...)
}

// warnResurrections flags incoming valid events whose stored row is invalid.
// They are written like any other update, but a cancelled reservation coming
// back to life usually means the provider recycled an id.
func (l *Local) warnResurrections(ctx context.Context, userID models.UserID, events []*models.Event) {
	var ids []string
	for _, ev := range events {
		if !ev.Invalid {
			ids = append(ids, ev.ID)
		}
	}
	if len(ids) == 0 {
		return
	}

	invalid, err := l.rm.Reservations(l.rm.Conn()).SelectInvalidIDs(ctx, userID, ids)
	if err != nil {
		l.log.Debug(ctx, "resurrection check failed", "user_id", userID, "error", err)
		return
	}
	for _, id := range invalid {
		l.log.Warn(ctx, "cancelled reservation came back valid",
			"user_id", userID, "reservation_id", id)
	}
}

// CancelMissing invalidates future reservations of the provider that a
// successful exhaustive fetch no longer lists. "Future" is decided against
// the reference timezone, since that is what the date/time columns hold.
func (l *Local) CancelMissing(ctx context.Context, userID models.UserID, kind provider.Kind, presentIDs []string) (int64, error) {
	repo := l.rm.Reservations(l.rm.Conn())
	cancelled, err := repo.CancelMissing(ctx, userID, kind.Prefix(), presentIDs, l.now().In(l.loc))
	if err != nil {
		return 0, fmt.Errorf("cancelling missing reservations: %w", err)
	}
	if cancelled > 0 {
		l.log.Info(ctx, "reservations cancelled by absence",
			"user_id", userID, "provider", kind, "count", cancelled)
	}
	return cancelled, nil
}
