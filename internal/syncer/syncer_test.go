package syncer

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/msavelyev/calhub/internal/common"
	"github.com/msavelyev/calhub/internal/dbx"
	"github.com/msavelyev/calhub/internal/logging"
	"github.com/msavelyev/calhub/internal/models"
	"github.com/msavelyev/calhub/internal/repositories/bindings"
	"github.com/msavelyev/calhub/internal/repositories/mappings"
	"github.com/msavelyev/calhub/internal/repositories/reservations"
	"github.com/msavelyev/calhub/internal/repositories/sources"
	"github.com/msavelyev/calhub/internal/repositories/users"
	"github.com/msavelyev/calhub/internal/repositories/vaultdata"
)

// fakeRM satisfies repomanager.RepositoryManager with in-memory repositories.
// Conn returns a sqlmock database pre-loaded with permissive transaction
// expectations, so code under test can open transactions freely.
type fakeRM struct {
	db           *sql.DB
	reservations reservations.Repository
	mappings     mappings.Repository
	sources      sources.Repository
	bindings     bindings.Repository
	vaultData    vaultdata.Repository
}

func newFakeRM(t *testing.T) *fakeRM {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 50; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
		mock.ExpectRollback()
	}

	return &fakeRM{
		db:       db,
		mappings: &fakeMappings{},
		sources:  &fakeSyncSources{},
		bindings: &fakeBindings{byUser: make(map[models.UserID]*models.CalendarBinding)},
	}
}

func (f *fakeRM) Conn() *sql.DB                        { return f.db }
func (f *fakeRM) RunMigrations(context.Context) error  { return nil }
func (f *fakeRM) Close() error                         { return f.db.Close() }
func (f *fakeRM) Users(dbx.DBTX) users.Repository      { return nil }
func (f *fakeRM) VaultData(dbx.DBTX) vaultdata.Repository {
	return f.vaultData
}
func (f *fakeRM) Reservations(dbx.DBTX) reservations.Repository { return f.reservations }
func (f *fakeRM) Mappings(dbx.DBTX) mappings.Repository         { return f.mappings }
func (f *fakeRM) Sources(dbx.DBTX) sources.Repository           { return f.sources }
func (f *fakeRM) Bindings(dbx.DBTX) bindings.Repository         { return f.bindings }

// fakeReservations answers from configured scripts instead of simulating
// storage, which keeps transactional retries deterministic.
type fakeReservations struct {
	mu         sync.Mutex
	upsertFn   func(ev *models.Event) (bool, error)
	upserted   []string
	invalidIDs []string
	changed    []*models.Event
	cancelFn   func(prefix string, presentIDs []string, now time.Time) (int64, error)
}

func (f *fakeReservations) Upsert(_ context.Context, _ models.UserID, ev *models.Event, _ time.Time) (bool, error) {
	f.mu.Lock()
	f.upserted = append(f.upserted, ev.ID)
	f.mu.Unlock()
	if f.upsertFn != nil {
		return f.upsertFn(ev)
	}
	return true, nil
}

func (f *fakeReservations) SelectInvalidIDs(_ context.Context, _ models.UserID, ids []string) ([]string, error) {
	var out []string
	for _, id := range ids {
		for _, inv := range f.invalidIDs {
			if id == inv {
				out = append(out, id)
			}
		}
	}
	return out, nil
}

func (f *fakeReservations) CancelMissing(_ context.Context, _ models.UserID, prefix string, presentIDs []string, now time.Time) (int64, error) {
	if f.cancelFn != nil {
		return f.cancelFn(prefix, presentIDs, now)
	}
	return 0, nil
}

func (f *fakeReservations) SelectUpdatedSince(_ context.Context, _ models.UserID, since time.Time) ([]*models.Event, error) {
	var out []*models.Event
	for _, ev := range f.changed {
		if ev.UpdatedAt.After(since) {
			out = append(out, ev)
		}
	}
	return out, nil
}

type fakeMappings struct {
	mu   sync.Mutex
	rows map[string]string
}

func (f *fakeMappings) SelectByReservationIDs(_ context.Context, _ models.UserID, ids []string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string)
	for _, id := range ids {
		if remoteID, ok := f.rows[id]; ok {
			out[id] = remoteID
		}
	}
	return out, nil
}

func (f *fakeMappings) InsertBatch(_ context.Context, items []*models.EventMapping) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rows == nil {
		f.rows = make(map[string]string)
	}
	for _, m := range items {
		f.rows[m.ReservationID] = m.EventID
	}
	return nil
}

type fakeSyncSources struct {
	mu         sync.Mutex
	byProvider map[string][]models.UserID
	byUser     map[models.UserID][]*models.SyncSource
	lastSynced map[string]time.Time
}

func sourceKey(userID models.UserID, providerKey string) string {
	return fmt.Sprintf("%d/%s", userID, providerKey)
}

func (f *fakeSyncSources) EnsureExists(_ context.Context, userID models.UserID, providerKey string) error {
	return nil
}

func (f *fakeSyncSources) UsersForProvider(_ context.Context, providerKey string) ([]models.UserID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byProvider[providerKey], nil
}

func (f *fakeSyncSources) ListForUser(_ context.Context, userID models.UserID) ([]*models.SyncSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byUser[userID], nil
}

func (f *fakeSyncSources) UpdateLastSynced(_ context.Context, userID models.UserID, providerKey string, t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lastSynced == nil {
		f.lastSynced = make(map[string]time.Time)
	}
	f.lastSynced[sourceKey(userID, providerKey)] = t
	return nil
}

func (f *fakeSyncSources) lastSyncedFor(userID models.UserID, providerKey string) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.lastSynced[sourceKey(userID, providerKey)]
	return t, ok
}

type fakeBindings struct {
	mu     sync.Mutex
	byUser map[models.UserID]*models.CalendarBinding
}

func (f *fakeBindings) GetByUserID(_ context.Context, userID models.UserID) (*models.CalendarBinding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.byUser[userID]
	if !ok {
		return nil, common.ErrNotFound
	}
	copy := *b
	return &copy, nil
}

func (f *fakeBindings) GetBySubject(_ context.Context, subject string) (*models.CalendarBinding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.byUser {
		if b.Subject == subject {
			copy := *b
			return &copy, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeBindings) Upsert(_ context.Context, b *models.CalendarBinding) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byUser[b.UserID] = b
	return nil
}

func (f *fakeBindings) UpdateLastSynced(_ context.Context, userID models.UserID, t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.byUser[userID]
	if !ok {
		return common.ErrNotFound
	}
	b.LastSynced = t
	return nil
}

// captureLogger records warnings and errors for assertions.
type captureLogger struct {
	logging.NopLogger
	mu     sync.Mutex
	warns  []string
	errors []string
}

func (c *captureLogger) Warn(_ context.Context, msg string, _ ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warns = append(c.warns, msg)
}

func (c *captureLogger) Error(_ context.Context, msg string, _ ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, msg)
}

func (c *captureLogger) With(...any) logging.Logger { return c }
