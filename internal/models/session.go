package models

import (
	"time"
)

// Session contains data about an active API session
type Session struct {
	// The session token handed out to the client
	ID string
	// The ID of the user that has logged-in for this session
	UserID string
	// When will the session expire?
	ExpiresAt time.Time
}
