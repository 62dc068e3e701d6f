package calendar

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/msavelyev/calhub/internal/models"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func clock(h, m, s int) *time.Time {
	t := time.Date(0, 1, 1, h, m, s, 0, time.UTC)
	return &t
}

func TestProjectTimedEvent(t *testing.T) {
	loc := mustLoc(t, "Asia/Seoul")
	url := "https://example.com/r/42"
	ev := &models.Event{
		Title:     "Dune: Part Three",
		Detail:    "Screen 4, seats E7-E8",
		DateBegin: date(2026, time.September, 12),
		TimeBegin: clock(19, 30, 0),
		URL:       &url,
	}

	got := projectEvent(ev, loc)

	assert.Equal(t, "Dune: Part Three", got.Summary)
	assert.Equal(t, "Screen 4, seats E7-E8\nhttps://example.com/r/42", got.Description)
	// 19:30 KST is 10:30 UTC.
	assert.Equal(t, "2026-09-12T10:30:00Z", got.Start.DateTime)
	assert.Equal(t, "UTC", got.Start.TimeZone)
	// No explicit end: end equals start.
	assert.Equal(t, got.Start.DateTime, got.End.DateTime)
	assert.Empty(t, got.Start.Date)
}

func TestProjectTimedEventWithEnd(t *testing.T) {
	loc := mustLoc(t, "Asia/Seoul")
	endDate := date(2026, time.September, 13)
	ev := &models.Event{
		Title:     "Seoul to Busan",
		DateBegin: date(2026, time.September, 12),
		TimeBegin: clock(23, 40, 0),
		DateEnd:   &endDate,
		TimeEnd:   clock(3, 5, 0),
	}

	got := projectEvent(ev, loc)

	assert.Equal(t, "2026-09-12T14:40:00Z", got.Start.DateTime)
	assert.Equal(t, "2026-09-12T18:05:00Z", got.End.DateTime)
}

func TestProjectAllDayEvent(t *testing.T) {
	loc := mustLoc(t, "Asia/Seoul")
	where := "Jeju"
	ev := &models.Event{
		Title:     "Hotel stay",
		DateBegin: date(2026, time.September, 12),
		Location:  &where,
	}

	got := projectEvent(ev, loc)

	assert.Equal(t, "2026-09-12", got.Start.Date)
	// Exclusive end date: single-day events end the next day.
	assert.Equal(t, "2026-09-13", got.End.Date)
	assert.Empty(t, got.Start.DateTime)
	assert.Equal(t, "Jeju", got.Location)
}

func TestProjectAllDayEventWithEnd(t *testing.T) {
	loc := mustLoc(t, "Asia/Seoul")
	endDate := date(2026, time.September, 15)
	ev := &models.Event{
		Title:     "Hotel stay",
		DateBegin: date(2026, time.September, 12),
		DateEnd:   &endDate,
	}

	got := projectEvent(ev, loc)

	assert.Equal(t, "2026-09-12", got.Start.Date)
	assert.Equal(t, "2026-09-16", got.End.Date)
}

func TestDescriptionWithoutDetail(t *testing.T) {
	url := "https://example.com"
	assert.Equal(t, "https://example.com", description(&models.Event{URL: &url}))
	assert.Equal(t, "just detail", description(&models.Event{Detail: "just detail"}))
}

func TestIsGone(t *testing.T) {
	assert.True(t, isGone(&googleapi.Error{Code: http.StatusNotFound}))
	assert.True(t, isGone(&googleapi.Error{Code: http.StatusGone}))
	assert.False(t, isGone(&googleapi.Error{Code: http.StatusForbidden}))
	assert.False(t, isGone(assert.AnError))
}
