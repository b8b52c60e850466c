// Package ws is the WebSocket transport for the room event contract. Every
// inbound frame is an Envelope with one payload struct per event name,
// validated before dispatch; handlers never see loosely-typed payloads.
package ws

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
)

// Envelope is the tagged union carrying every client frame.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// ServerEvent wraps outbound events with their wire name.
type ServerEvent struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// ErrorReply goes to the acting socket only; failures never reach the room.
type ErrorReply struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type JoinRoomPayload struct {
	SessionID   string `json:"sessionId" validate:"required"`
	Alias       string `json:"alias" validate:"max=32"`
	AvatarIndex int    `json:"avatarIndex" validate:"gte=0,lte=23"`
	BearerToken string `json:"bearerToken"`
	HostToken   string `json:"hostToken"`
	HostKey     string `json:"hostKey"`
}

type SendMessagePayload struct {
	SessionID string `json:"sessionId" validate:"required"`
	Content   string `json:"content" validate:"required,max=2000"`
	Type      string `json:"type" validate:"omitempty,oneof=text emoji-reaction"`
	ReplyTo   string `json:"replyTo"`
}

// TargetPayload covers mute_participant, unmute_participant,
// kick_participant and promote_participant.
type TargetPayload struct {
	SessionID     string `json:"sessionId" validate:"required"`
	ParticipantID string `json:"participantId" validate:"required"`
	Reason        string `json:"reason" validate:"max=200"`
}

type SessionPayload struct {
	SessionID string `json:"sessionId" validate:"required"`
}

type RaiseHandPayload struct {
	SessionID string `json:"sessionId" validate:"required"`
	IsRaised  bool   `json:"isRaised"`
}

type EmergencyPayload struct {
	SessionID string `json:"sessionId" validate:"required"`
	AlertType string `json:"alertType" validate:"required,max=64"`
	Message   string `json:"message" validate:"max=2000"`
}

type HistoryPayload struct {
	SessionID string  `json:"sessionId" validate:"required"`
	Cursor    *string `json:"cursor"`
}

var validate = validator.New()

// decode unmarshals and validates a payload in one step.
func decode[T any](raw json.RawMessage) (T, error) {
	var payload T
	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, err
	}
	if err := validate.Struct(payload); err != nil {
		return payload, err
	}
	return payload, nil
}
