// Package domain contains core concepts of the sanctuary system.
// This file defines Participant entities and related invariants.
package domain

import (
	"time"
)

type Role string

const (
	RoleHost        Role = "host"
	RoleModerator   Role = "moderator"
	RoleParticipant Role = "participant"
)

// Privileged reports whether the role carries host authority.
func (r Role) Privileged() bool {
	return r == RoleHost || r == RoleModerator
}

type ConnStatus string

const (
	StatusConnected    ConnStatus = "connected"
	StatusDisconnected ConnStatus = "disconnected"
)

// Participant is a member of a session's live set. The identifier is stable
// per connection attempt; a graceful disconnect keeps the record (and all
// moderation flags) so a reconnection resumes the same participant.
type Participant struct {
	ID          string
	Alias       string
	AvatarIndex int
	Role        Role
	IsAnonymous bool

	IsMuted    bool
	HostMuted  bool
	IsBlocked  bool
	IsKicked   bool
	HandRaised bool

	Status     ConnStatus
	JoinedAt   time.Time
	LastSeenAt time.Time
}

// ParticipantView is the roster-facing projection of a Participant.
type ParticipantView struct {
	ID          string     `json:"id"`
	Alias       string     `json:"alias"`
	AvatarIndex int        `json:"avatarIndex"`
	Role        Role       `json:"role"`
	IsMuted     bool       `json:"isMuted"`
	HostMuted   bool       `json:"hostMuted"`
	HandRaised  bool       `json:"handRaised"`
	Status      ConnStatus `json:"status"`
}

func (p Participant) View() ParticipantView {
	return ParticipantView{
		ID:          p.ID,
		Alias:       p.Alias,
		AvatarIndex: p.AvatarIndex,
		Role:        p.Role,
		IsMuted:     p.IsMuted,
		HostMuted:   p.HostMuted,
		HandRaised:  p.HandRaised,
		Status:      p.Status,
	}
}

// FlagDelta is a partial update of a participant's mutable state.
// Only non-nil fields are applied, so two concurrent deltas touching
// different flags never clobber each other (last-writer-wins per flag,
// not per participant).
type FlagDelta struct {
	IsMuted    *bool
	HostMuted  *bool
	IsBlocked  *bool
	IsKicked   *bool
	HandRaised *bool
	Role       *Role
	Status     *ConnStatus
}

// Apply merges the delta into the participant.
func (d FlagDelta) Apply(p *Participant) {
	if d.IsMuted != nil {
		p.IsMuted = *d.IsMuted
	}
	if d.HostMuted != nil {
		p.HostMuted = *d.HostMuted
	}
	if d.IsBlocked != nil {
		p.IsBlocked = *d.IsBlocked
	}
	if d.IsKicked != nil {
		p.IsKicked = *d.IsKicked
	}
	if d.HandRaised != nil {
		p.HandRaised = *d.HandRaised
	}
	if d.Role != nil {
		p.Role = *d.Role
	}
	if d.Status != nil {
		p.Status = *d.Status
	}
}
