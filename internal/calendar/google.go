package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/msavelyev/calhub/internal/common"
	"github.com/msavelyev/calhub/internal/models"
)

const dateLayout = "2006-01-02"

// GoogleClient implements Client over the Google Calendar API with a service
// account identity. The service account owns the per-user calendars; users
// get a writer ACL grant on theirs.
type GoogleClient struct {
	svc *gcal.Service
	loc *time.Location
}

// NewGoogleClient builds a client from a service account credentials file.
// loc is the timezone reservation wall-clock fields are interpreted in.
func NewGoogleClient(ctx context.Context, credentialsFile string, loc *time.Location) (*GoogleClient, error) {
	svc, err := gcal.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gcal.CalendarScope))
	if err != nil {
		return nil, fmt.Errorf("calendar service init: %w", err)
	}
	return &GoogleClient{svc: svc, loc: loc}, nil
}

func (c *GoogleClient) CreateEvent(ctx context.Context, calendarID string, ev *models.Event) (string, error) {
	created, err := c.svc.Events.Insert(calendarID, projectEvent(ev, c.loc)).Context(ctx).Do()
	if err != nil {
		return "", wrapAPIError("event insert", err)
	}
	return created.Id, nil
}

func (c *GoogleClient) PatchEvent(ctx context.Context, calendarID, eventID string, ev *models.Event) error {
	_, err := c.svc.Events.Patch(calendarID, eventID, projectEvent(ev, c.loc)).Context(ctx).Do()
	if err != nil {
		return wrapAPIError("event patch", err)
	}
	return nil
}

func (c *GoogleClient) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	err := c.svc.Events.Delete(calendarID, eventID).Context(ctx).Do()
	if err != nil && !isGone(err) {
		return wrapAPIError("event delete", err)
	}
	return nil
}

func (c *GoogleClient) CreateCalendar(ctx context.Context, summary string) (string, error) {
	cal := &gcal.Calendar{Summary: summary, TimeZone: c.loc.String()}
	created, err := c.svc.Calendars.Insert(cal).Context(ctx).Do()
	if err != nil {
		return "", wrapAPIError("calendar insert", err)
	}
	return created.Id, nil
}

func (c *GoogleClient) GrantWriter(ctx context.Context, calendarID, email string) (string, error) {
	rule := &gcal.AclRule{
		Role:  "writer",
		Scope: &gcal.AclRuleScope{Type: "user", Value: email},
	}
	created, err := c.svc.Acl.Insert(calendarID, rule).Context(ctx).Do()
	if err != nil {
		return "", wrapAPIError("acl insert", err)
	}
	return created.Id, nil
}

// projectEvent maps a reservation to the remote representation.
//
// A reservation with a start time becomes a timed event: the wall clock is
// interpreted in loc and emitted as a UTC instant. One without a start time
// becomes an all-day event; the remote end date is exclusive, so a single-day
// reservation ends the following day.
func projectEvent(ev *models.Event, loc *time.Location) *gcal.Event {
	out := &gcal.Event{
		Summary:     ev.Title,
		Description: description(ev),
	}
	if ev.Location != nil {
		out.Location = *ev.Location
	}

	if ev.TimeBegin != nil {
		start := combine(ev.DateBegin, ev.TimeBegin, loc)
		end := start
		if ev.DateEnd != nil || ev.TimeEnd != nil {
			endDate := ev.DateBegin
			if ev.DateEnd != nil {
				endDate = *ev.DateEnd
			}
			end = combine(endDate, ev.TimeEnd, loc)
		}
		out.Start = &gcal.EventDateTime{DateTime: start.UTC().Format(time.RFC3339), TimeZone: "UTC"}
		out.End = &gcal.EventDateTime{DateTime: end.UTC().Format(time.RFC3339), TimeZone: "UTC"}
		return out
	}

	endDate := ev.DateBegin
	if ev.DateEnd != nil {
		endDate = *ev.DateEnd
	}
	out.Start = &gcal.EventDateTime{Date: ev.DateBegin.Format(dateLayout)}
	out.End = &gcal.EventDateTime{Date: endDate.AddDate(0, 0, 1).Format(dateLayout)}
	return out
}

func description(ev *models.Event) string {
	if ev.URL == nil {
		return ev.Detail
	}
	if ev.Detail == "" {
		return *ev.URL
	}
	return ev.Detail + "\n" + *ev.URL
}

// combine builds an instant from a date component and an optional wall-clock
// component in the given timezone. A nil clock means midnight.
func combine(date time.Time, clock *time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	var hh, mm, ss int
	if clock != nil {
		hh, mm, ss = clock.Clock()
	}
	return time.Date(y, m, d, hh, mm, ss, 0, loc)
}

func isGone(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
	}
	return false
}

func wrapAPIError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", common.ErrRemoteAPI, op, err)
}
