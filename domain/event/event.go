// Package event defines the tagged-union room events exchanged between the
// coordinator and connected clients. One struct per event name; payloads are
// validated at the gateway boundary before they ever reach this package.
package event

import (
	"time"

	"sanctuary/domain"

	"github.com/google/uuid"
)

// RoomEvent is implemented by every event routed through a session.
type RoomEvent interface {
	SessionID() domain.SessionID
	Name() string
}

type ParticipantJoined struct {
	Session     domain.SessionID       `json:"sessionId"`
	Participant domain.ParticipantView `json:"participant"`
}

func (e ParticipantJoined) SessionID() domain.SessionID { return e.Session }
func (e ParticipantJoined) Name() string { return "participant_joined" }

// JoinConfirmed is sent to the caller only, with the current roster.
type JoinConfirmed struct {
	Session domain.SessionID         `json:"sessionId"`
	Self    domain.ParticipantView   `json:"self"`
	Roster  []domain.ParticipantView `json:"roster"`
	IsHost  bool                     `json:"isHost"`
}

func (e JoinConfirmed) SessionID() domain.SessionID { return e.Session }
func (e JoinConfirmed) Name() string { return "join_confirmed" }

type NewMessage struct {
	Session     domain.SessionID   `json:"sessionId"`
	ID          uuid.UUID          `json:"id"`
	SenderID    string             `json:"senderId"`
	SenderAlias string             `json:"senderAlias"`
	Content     string             `json:"content"`
	Type        domain.MessageType `json:"type"`
	ReplyTo     string             `json:"replyTo,omitempty"`
	Flagged     bool               `json:"flagged,omitempty"`
	At          time.Time          `json:"at"`
}

func (e NewMessage) SessionID() domain.SessionID { return e.Session }
func (e NewMessage) Name() string { return "new_message" }

type ParticipantMuted struct {
	Session     domain.SessionID `json:"sessionId"`
	Participant string           `json:"participantId"`
	By          string           `json:"by"`
}

func (e ParticipantMuted) SessionID() domain.SessionID { return e.Session }
func (e ParticipantMuted) Name() string { return "participant_muted" }

type ParticipantUnmuted struct {
	Session     domain.SessionID `json:"sessionId"`
	Participant string           `json:"participantId"`
	By          string           `json:"by"`
}

func (e ParticipantUnmuted) SessionID() domain.SessionID { return e.Session }
func (e ParticipantUnmuted) Name() string { return "participant_unmuted" }

type ParticipantsUnmuted struct {
	Session domain.SessionID `json:"sessionId"`
	By      string           `json:"by"`
}

func (e ParticipantsUnmuted) SessionID() domain.SessionID { return e.Session }
func (e ParticipantsUnmuted) Name() string { return "participants_unmuted" }

// ForceMuted targets the muted participant directly, independent of the room
// broadcast, so local UI feedback survives recipient dedup.
type ForceMuted struct {
	Session     domain.SessionID `json:"sessionId"`
	Participant string           `json:"participantId"`
}

func (e ForceMuted) SessionID() domain.SessionID { return e.Session }
func (e ForceMuted) Name() string { return "force_muted" }

type ForceUnmuted struct {
	Session     domain.SessionID `json:"sessionId"`
	Participant string           `json:"participantId"`
}

func (e ForceUnmuted) SessionID() domain.SessionID { return e.Session }
func (e ForceUnmuted) Name() string { return "force_unmuted" }

type ParticipantPromoted struct {
	Session     domain.SessionID `json:"sessionId"`
	Participant string           `json:"participantId"`
	Role        domain.Role      `json:"role"`
	By          string           `json:"by"`
}

func (e ParticipantPromoted) SessionID() domain.SessionID { return e.Session }
func (e ParticipantPromoted) Name() string { return "participant_promoted" }

// KickedFromRoom reaches the target before the forced disconnect so the
// client can render a reason first.
type KickedFromRoom struct {
	Session     domain.SessionID `json:"sessionId"`
	Participant string           `json:"participantId"`
	Reason      string           `json:"reason,omitempty"`
}

func (e KickedFromRoom) SessionID() domain.SessionID { return e.Session }
func (e KickedFromRoom) Name() string { return "kicked_from_room" }

type ParticipantKicked struct {
	Session     domain.SessionID `json:"sessionId"`
	Participant string           `json:"participantId"`
}

func (e ParticipantKicked) SessionID() domain.SessionID { return e.Session }
func (e ParticipantKicked) Name() string { return "participant_kicked" }

type HandRaised struct {
	Session     domain.SessionID `json:"sessionId"`
	Participant string           `json:"participantId"`
	IsRaised    bool             `json:"isRaised"`
}

func (e HandRaised) SessionID() domain.SessionID { return e.Session }
func (e HandRaised) Name() string { return "hand_raised" }

type ParticipantLeft struct {
	Session     domain.SessionID `json:"sessionId"`
	Participant string           `json:"participantId"`
}

func (e ParticipantLeft) SessionID() domain.SessionID { return e.Session }
func (e ParticipantLeft) Name() string { return "participant_left" }

// EmergencyAlert is routed to the operator room by the escalation
// dispatcher; severity is forced to critical upstream.
type EmergencyAlert struct {
	Session     domain.SessionID `json:"sessionId"`
	Participant string           `json:"participantId"`
	AlertType   string           `json:"alertType"`
	Message     string           `json:"message"`
	At          time.Time        `json:"at"`
}

func (e EmergencyAlert) SessionID() domain.SessionID { return e.Session }
func (e EmergencyAlert) Name() string { return "emergency_alert" }

// MessageBlocked informs the sender only; the room never learns a message
// was suppressed.
type MessageBlocked struct {
	Session domain.SessionID `json:"sessionId"`
	Message uuid.UUID        `json:"messageId"`
	Reason  string           `json:"reason"`
}

func (e MessageBlocked) SessionID() domain.SessionID { return e.Session }
func (e MessageBlocked) Name() string { return "message_blocked" }
