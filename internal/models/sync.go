package models

import "time"

// EventMapping associates a local reservation with the remote calendar's own
// event id. Rows are append-only: a mapping is written once after a
// successful remote create and never explicitly deleted.
type EventMapping struct {
	EventID       string
	UserID        UserID
	ReservationID string
}

// SyncSource records that a user has configured a given provider, plus the
// provider-level watermark. A row is created with a zero watermark on the
// first vault item write for that provider.
type SyncSource struct {
	UserID      UserID
	ProviderKey string
	LastSynced  time.Time
}

// CalendarBinding ties a user to their remote calendar: the calendar the
// service identity was granted write access to, and the watermark below
// which all local changes are known to be reconciled remotely.
//
// Subject is the external account subject used to match logins to users;
// ACLID is the id of the writer grant so re-login can verify it still exists
// instead of piling up duplicate grants.
type CalendarBinding struct {
	UserID     UserID
	Subject    string
	CalendarID string
	ACLID      string
	LastSynced time.Time
}
