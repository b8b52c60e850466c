package domain

import (
	"time"

	"github.com/google/uuid"
)

type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type ModerationAction string

const (
	ActionNone     ModerationAction = "none"
	ActionWarning  ModerationAction = "warning"
	ActionMute     ModerationAction = "mute"
	ActionRemove   ModerationAction = "remove"
	ActionEscalate ModerationAction = "escalate"
)

type DetectionMethod string

const (
	MethodKeyword DetectionMethod = "keyword"
	MethodPattern DetectionMethod = "pattern"
	MethodAI      DetectionMethod = "ai"
)

// ModerationEvent is the audit record produced for every moderated message,
// approved or not. It is immutable except for the Resolved flag, which only
// ever transitions false -> true.
type ModerationEvent struct {
	ID            uuid.UUID
	SessionID     SessionID
	ParticipantID string
	MessageID     uuid.UUID
	Method        DetectionMethod
	Severity      Severity
	Action        ModerationAction
	Terms         []string
	Lang          string
	Resolved      bool
	Target        string
	CreatedAt     time.Time
}

// ActionFor maps a severity onto the default moderation action.
// The mapping is policy, total over every severity value: unknown values
// degrade to no action rather than guessing.
func ActionFor(s Severity) ModerationAction {
	switch s {
	case SeverityCritical:
		return ActionEscalate
	case SeverityHigh, SeverityMedium:
		return ActionWarning
	case SeverityLow, SeverityNone:
		return ActionNone
	default:
		return ActionNone
	}
}
