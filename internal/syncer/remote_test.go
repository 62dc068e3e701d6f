package syncer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msavelyev/calhub/internal/common"
	"github.com/msavelyev/calhub/internal/logging"
	"github.com/msavelyev/calhub/internal/models"
)

// scriptedCalendar records calls and fails where told to. afterCreate, when
// set, runs after each successful create.
type scriptedCalendar struct {
	mu          sync.Mutex
	created     []string
	patched     []string
	deleted     []string
	failOn      map[string]error
	nextID      int
	afterCreate func()
}

func (s *scriptedCalendar) CreateEvent(_ context.Context, _ string, ev *models.Event) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn[ev.ID]; err != nil {
		return "", err
	}
	s.created = append(s.created, ev.ID)
	s.nextID++
	id := fmt.Sprintf("remote-%d", s.nextID)
	if s.afterCreate != nil {
		s.afterCreate()
	}
	return id, nil
}

func (s *scriptedCalendar) PatchEvent(_ context.Context, _ string, eventID string, ev *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn[ev.ID]; err != nil {
		return err
	}
	s.patched = append(s.patched, eventID)
	return nil
}

func (s *scriptedCalendar) DeleteEvent(_ context.Context, _ string, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, eventID)
	return nil
}

func (s *scriptedCalendar) CreateCalendar(context.Context, string) (string, error) {
	return "cal-test", nil
}

func (s *scriptedCalendar) GrantWriter(context.Context, string, string) (string, error) {
	return "acl-test", nil
}

func changedEvent(id string, invalid bool, updatedAt time.Time) *models.Event {
	return &models.Event{
		ID:        id,
		Title:     id,
		Invalid:   invalid,
		DateBegin: time.Date(2026, 9, 20, 0, 0, 0, 0, time.UTC),
		UpdatedAt: updatedAt,
	}
}

func TestSyncUserConvergence(t *testing.T) {
	rm := newFakeRM(t)
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	rm.reservations = &fakeReservations{changed: []*models.Event{
		changedEvent("cgv/new", false, base.Add(1*time.Minute)),
		changedEvent("cgv/moved", false, base.Add(2*time.Minute)),
		changedEvent("cgv/gone", true, base.Add(3*time.Minute)),
		changedEvent("cgv/never-was", true, base.Add(4*time.Minute)),
		// Below the watermark: must not be touched at all.
		changedEvent("cgv/old", false, base.Add(-time.Hour)),
	}}
	rm.mappings = &fakeMappings{rows: map[string]string{
		"cgv/moved": "remote-moved",
		"cgv/gone":  "remote-gone",
	}}
	require.NoError(t, rm.bindings.Upsert(context.Background(),
		&models.CalendarBinding{UserID: 1, Subject: "s", CalendarID: "cal-1", LastSynced: base}))

	cal := &scriptedCalendar{}
	remote := NewRemote(logging.NewNopLogger(), rm, cal)
	passStart := base.Add(10 * time.Minute)
	remote.now = func() time.Time { return passStart }

	require.NoError(t, remote.SyncUser(context.Background(), 1))

	assert.Equal(t, []string{"cgv/new"}, cal.created)
	assert.Equal(t, []string{"remote-moved"}, cal.patched)
	assert.Equal(t, []string{"remote-gone"}, cal.deleted)

	// The new event got a mapping row.
	m, err := rm.mappings.SelectByReservationIDs(context.Background(), 1, []string{"cgv/new"})
	require.NoError(t, err)
	assert.Equal(t, "remote-1", m["cgv/new"])

	b, err := rm.bindings.GetByUserID(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, b.LastSynced.Equal(passStart))
}

func TestSyncUserHoldsWatermarkOnFailure(t *testing.T) {
	rm := newFakeRM(t)
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	failedAt := base.Add(2 * time.Minute)

	rm.reservations = &fakeReservations{changed: []*models.Event{
		changedEvent("cgv/ok", false, base.Add(1*time.Minute)),
		changedEvent("cgv/bad", false, failedAt),
		changedEvent("cgv/late", false, base.Add(3*time.Minute)),
	}}
	require.NoError(t, rm.bindings.Upsert(context.Background(),
		&models.CalendarBinding{UserID: 1, Subject: "s", CalendarID: "cal-1", LastSynced: base}))

	cal := &scriptedCalendar{failOn: map[string]error{"cgv/bad": common.ErrRemoteAPI}}
	log := &captureLogger{}
	remote := NewRemote(log, rm, cal)
	remote.now = func() time.Time { return base.Add(10 * time.Minute) }

	require.NoError(t, remote.SyncUser(context.Background(), 1))

	// The good rows went through and keep their mappings.
	assert.ElementsMatch(t, []string{"cgv/ok", "cgv/late"}, cal.created)
	assert.Contains(t, log.errors, "remote apply failed")

	// Watermark parked just before the failed row so it is retried.
	b, err := rm.bindings.GetByUserID(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, b.LastSynced.Equal(failedAt.Add(-time.Microsecond)))
}

func TestSyncUserPersistsMappingsOnCancel(t *testing.T) {
	rm := newFakeRM(t)
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	rm.reservations = &fakeReservations{changed: []*models.Event{
		changedEvent("cgv/a", false, base.Add(1*time.Minute)),
		changedEvent("cgv/b", false, base.Add(2*time.Minute)),
	}}
	require.NoError(t, rm.bindings.Upsert(context.Background(),
		&models.CalendarBinding{UserID: 1, Subject: "s", CalendarID: "cal-1", LastSynced: base}))

	ctx, cancel := context.WithCancel(context.Background())
	cal := &scriptedCalendar{afterCreate: cancel}
	remote := NewRemote(logging.NewNopLogger(), rm, cal)
	remote.now = func() time.Time { return base.Add(10 * time.Minute) }

	err := remote.SyncUser(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)

	// Only the first event reached the calendar.
	assert.Equal(t, []string{"cgv/a"}, cal.created)

	// Its mapping must have landed anyway, or the next pass would create a
	// duplicate of an event that already exists remotely.
	m, err := rm.mappings.SelectByReservationIDs(context.Background(), 1, []string{"cgv/a"})
	require.NoError(t, err)
	assert.Equal(t, "remote-1", m["cgv/a"])

	// The watermark stays put so the interrupted pass is retried in full.
	b, err := rm.bindings.GetByUserID(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, b.LastSynced.Equal(base))
}

func TestSyncUserNoBinding(t *testing.T) {
	rm := newFakeRM(t)
	rm.reservations = &fakeReservations{}
	remote := NewRemote(logging.NewNopLogger(), rm, &scriptedCalendar{})

	err := remote.SyncUser(context.Background(), 99)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSyncUserNothingChanged(t *testing.T) {
	rm := newFakeRM(t)
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	rm.reservations = &fakeReservations{}
	require.NoError(t, rm.bindings.Upsert(context.Background(),
		&models.CalendarBinding{UserID: 1, Subject: "s", CalendarID: "cal-1", LastSynced: base}))

	cal := &scriptedCalendar{}
	remote := NewRemote(logging.NewNopLogger(), rm, cal)
	passStart := base.Add(time.Hour)
	remote.now = func() time.Time { return passStart }

	require.NoError(t, remote.SyncUser(context.Background(), 1))
	assert.Empty(t, cal.created)

	// The watermark still advances on an empty pass.
	b, err := rm.bindings.GetByUserID(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, b.LastSynced.Equal(passStart))
}
