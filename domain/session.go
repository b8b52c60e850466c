// Package domain contains core concepts of the sanctuary system.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"time"
)

type SessionID string

// Session describes an ephemeral anonymous room. It is created by the
// scheduling collaborator and activated on first host join.
type Session struct {
	ID              SessionID
	Topic           string
	MaxParticipants int
	IsActive        bool
	ExpiresAt       time.Time

	// Host authority material. HostToken is the credential handed to the
	// session creator; OwnerID binds an authenticated account; HostKeyHash
	// is the argon2 hash of the recovery key for anonymous hosts.
	HostToken   string
	OwnerID     string
	HostKeyHash string
}

func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
