package googleauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/msavelyev/calhub/internal/calendar"
	"github.com/msavelyev/calhub/internal/common"
	"github.com/msavelyev/calhub/internal/logging"
	"github.com/msavelyev/calhub/internal/models"
	"github.com/msavelyev/calhub/internal/repositories/bindings"
	"github.com/msavelyev/calhub/internal/repositories/users"
)

const calendarSummary = "Reservations"

// LoginFlow is the handshake half of the login, implemented by Flow.
type LoginFlow interface {
	Begin() (authURL, state string)
	Complete(ctx context.Context, state, code string) (*Identity, error)
}

// Service turns a completed login into a local account. Known subjects map
// to their existing user; first logins from allow-listed emails get a user
// row, a dedicated calendar, and a writer grant on it.
type Service struct {
	log      logging.Logger
	flow     LoginFlow
	cal      calendar.Client
	users    users.Repository
	bindings bindings.Repository
	allowed  map[string]struct{}
}

func NewService(log logging.Logger, flow LoginFlow, cal calendar.Client, usr users.Repository, bnd bindings.Repository, allowedEmails []string) *Service {
	allowed := make(map[string]struct{}, len(allowedEmails))
	for _, e := range allowedEmails {
		allowed[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}
	return &Service{log: log, flow: flow, cal: cal, users: usr, bindings: bnd, allowed: allowed}
}

// BeginLogin starts the handshake.
func (s *Service) BeginLogin() (authURL, state string) {
	return s.flow.Begin()
}

// CompleteLogin redeems the callback and returns the local user id,
// provisioning the account on first login.
func (s *Service) CompleteLogin(ctx context.Context, state, code string) (models.UserID, error) {
	identity, err := s.flow.Complete(ctx, state, code)
	if err != nil {
		return 0, err
	}

	binding, err := s.bindings.GetBySubject(ctx, identity.Subject)
	switch {
	case err == nil:
		return binding.UserID, nil
	case errors.Is(err, common.ErrNotFound):
		return s.provision(ctx, identity)
	default:
		return 0, fmt.Errorf("looking up binding: %w", err)
	}
}

func (s *Service) provision(ctx context.Context, identity *Identity) (models.UserID, error) {
	if _, ok := s.allowed[strings.ToLower(identity.Email)]; !ok {
		s.log.Warn(ctx, "login rejected, email not allowed", "email", identity.Email)
		return 0, fmt.Errorf("%w: account not allowed", common.ErrUnauthorized)
	}

	userID, err := s.users.Create(ctx)
	if err != nil {
		return 0, fmt.Errorf("creating user: %w", err)
	}

	calendarID, err := s.cal.CreateCalendar(ctx, calendarSummary)
	if err != nil {
		return 0, fmt.Errorf("provisioning calendar: %w", err)
	}
	aclID, err := s.cal.GrantWriter(ctx, calendarID, identity.Email)
	if err != nil {
		return 0, fmt.Errorf("granting calendar access: %w", err)
	}

	b := &models.CalendarBinding{
		UserID:     userID,
		Subject:    identity.Subject,
		CalendarID: calendarID,
		ACLID:      aclID,
	}
	if err := s.bindings.Upsert(ctx, b); err != nil {
		return 0, fmt.Errorf("storing binding: %w", err)
	}

	s.log.Info(ctx, "account provisioned",
		"user_id", userID, "email", identity.Email, "calendar_id", calendarID)
	return userID, nil
}
