package models

import "time"

// User is an opaque account row. Everything interesting about a user lives
// in its vault entry, calendar binding and sync sources.
type User struct {
	ID        UserID
	CreatedAt time.Time
}
