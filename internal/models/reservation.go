// Package models holds the persistent domain records shared by repositories
// and services.
package models

import "time"

// UserID is the opaque numeric identity of an account.
type UserID int64

// Event is the canonical reservation record produced by provider adapters
// and stored in the reservation table.
//
// ID is "<provider>/<provider-native-id>" and must be stable across
// re-scrapes; together with the owning user it is the idempotency key.
// DateBegin carries only a calendar date; TimeBegin, when present, carries
// only a wall-clock time. An absent TimeBegin means all-day semantics.
// UpdatedAt is maintained by the store, never by adapters, and serves as the
// remote sync watermark.
type Event struct {
	ID        string
	Title     string
	Detail    string
	Invalid   bool
	DateBegin time.Time
	TimeBegin *time.Time
	DateEnd   *time.Time
	TimeEnd   *time.Time
	Location  *string
	URL       *string
	UpdatedAt time.Time
}
