package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/msavelyev/calhub/internal/common"
	"github.com/msavelyev/calhub/internal/logging"
	"github.com/msavelyev/calhub/internal/models"
	"github.com/msavelyev/calhub/internal/provider"
	"github.com/msavelyev/calhub/internal/repositories/repomanager"
	"github.com/msavelyev/calhub/internal/vault"
)

// Orchestrator drives full sync passes: fetch from every provider for every
// eligible user, reconcile locally, then reconcile each touched user's
// calendar once.
//
// A user is eligible only while their vault session is unlocked in this
// process; locked users are silently skipped until they unlock again.
type Orchestrator struct {
	log       logging.Logger
	rm        repomanager.RepositoryManager
	registry  *provider.Registry
	vault     *vault.Service
	local     *Local
	remote    *Remote
	minResync time.Duration

	ticking atomic.Bool
	now     func() time.Time
}

func NewOrchestrator(log logging.Logger, rm repomanager.RepositoryManager, registry *provider.Registry, vlt *vault.Service, local *Local, remote *Remote, minResync time.Duration) *Orchestrator {
	return &Orchestrator{
		log:       log,
		rm:        rm,
		registry:  registry,
		vault:     vlt,
		local:     local,
		remote:    remote,
		minResync: minResync,
		now:       time.Now,
	}
}

// RunTick executes one scheduled pass. At most one tick runs at a time;
// an overlapping call is dropped with a log line.
func (o *Orchestrator) RunTick(ctx context.Context) {
	if !o.ticking.CompareAndSwap(false, true) {
		o.log.Warn(ctx, "previous tick still running, skipping")
		return
	}
	defer o.ticking.Store(false)

	started := o.now()
	touched := make(chan models.UserID)

	var wg sync.WaitGroup
	for _, adapter := range o.registry.All() {
		wg.Add(1)
		go func(a provider.Adapter) {
			defer wg.Done()
			o.syncProvider(ctx, a, touched)
		}(adapter)
	}
	go func() {
		wg.Wait()
		close(touched)
	}()

	users := make(map[models.UserID]struct{})
	for id := range touched {
		users[id] = struct{}{}
	}

	for id := range users {
		if ctx.Err() != nil {
			return
		}
		if err := o.remote.SyncUser(ctx, id); err != nil {
			o.log.Error(ctx, "remote reconciliation failed", "user_id", id, "error", err)
		}
	}

	o.log.Info(ctx, "tick finished",
		"touched_users", len(users), "elapsed", o.now().Sub(started))
}

// syncProvider runs one provider across its configured users, sequentially.
// Every user id whose local store changed is sent to touched.
func (o *Orchestrator) syncProvider(ctx context.Context, a provider.Adapter, touched chan<- models.UserID) {
	kind := a.Kind()
	log := o.log.With("provider", kind)

	userIDs, err := o.rm.Sources(o.rm.Conn()).UsersForProvider(ctx, string(kind))
	if err != nil {
		log.Error(ctx, "listing provider users failed", "error", err)
		return
	}

	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return
		}
		changed, err := o.syncProviderUser(ctx, a, userID)
		if err != nil {
			if errors.Is(err, common.ErrVaultLocked) {
				log.Debug(ctx, "vault locked, skipping user", "user_id", userID)
				continue
			}
			log.Error(ctx, "provider sync failed", "user_id", userID, "error", err)
			continue
		}
		if changed {
			touched <- userID
		}
	}
}

// syncProviderUser fetches one provider for one user and reconciles the
// local store. Returns whether anything changed.
func (o *Orchestrator) syncProviderUser(ctx context.Context, a provider.Adapter, userID models.UserID) (bool, error) {
	kind := a.Kind()

	var creds json.RawMessage
	if err := o.vault.GetItem(ctx, userID, string(kind), &creds); err != nil {
		return false, err
	}

	events, err := a.Fetch(ctx, creds)
	if err != nil {
		return false, fmt.Errorf("fetching reservations: %w", err)
	}

	batch := make([]*models.Event, len(events))
	present := make([]string, len(events))
	for i := range events {
		batch[i] = &events[i]
		present[i] = events[i].ID
	}

	changed, err := o.local.UpsertEvents(ctx, userID, batch)
	if err != nil {
		return changed > 0, err
	}

	// Absence implies cancellation only for adapters whose listings are
	// exhaustive, and only after a successful fetch.
	var cancelled int64
	if a.CancelByAbsence() {
		cancelled, err = o.local.CancelMissing(ctx, userID, kind, present)
		if err != nil {
			return changed > 0, err
		}
	}

	if err := o.rm.Sources(o.rm.Conn()).UpdateLastSynced(ctx, userID, string(kind), o.now()); err != nil {
		return changed+cancelled > 0, fmt.Errorf("advancing source watermark: %w", err)
	}

	return changed+cancelled > 0, nil
}

// SyncUser runs an on-demand pass for a single user across all their
// configured providers, then reconciles the calendar. Requests arriving
// sooner than the minimum re-sync interval after the last reconciliation are
// dropped.
func (o *Orchestrator) SyncUser(ctx context.Context, userID models.UserID) error {
	binding, err := o.rm.Bindings(o.rm.Conn()).GetByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("loading calendar binding: %w", err)
	}
	if o.minResync > 0 && o.now().Sub(binding.LastSynced) < o.minResync {
		o.log.Debug(ctx, "recently synced, skipping", "user_id", userID)
		return nil
	}

	srcs, err := o.rm.Sources(o.rm.Conn()).ListForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("listing sync sources: %w", err)
	}

	var errs []error
	for _, src := range srcs {
		kind, err := provider.ParseKind(src.ProviderKey)
		if err != nil {
			o.log.Warn(ctx, "unknown provider in sync_source", "provider", src.ProviderKey)
			continue
		}
		a := o.registry.Get(kind)
		if a == nil {
			o.log.Warn(ctx, "provider not wired", "provider", kind)
			continue
		}
		if _, err := o.syncProviderUser(ctx, a, userID); err != nil {
			errs = append(errs, fmt.Errorf("provider %s: %w", kind, err))
		}
	}

	if err := o.remote.SyncUser(ctx, userID); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
