// Package domain contains core concepts of the sanctuary system.
// This file defines Message events and related rules.
// Messages are immutable and validated by the domain.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageText      MessageType = "text"
	MessageReaction  MessageType = "emoji-reaction"
	MessageSystem    MessageType = "system"
	MessageEmergency MessageType = "emergency"
)

// Message represents an immutable chat event. Sender alias is denormalized
// so history renders correctly even after the sender leaves.
type Message struct {
	ID          uuid.UUID
	SessionID   SessionID
	SenderID    string
	SenderAlias string
	Content     string
	Type        MessageType
	ReplyTo     string
	Lang        string
	Flagged     bool
	CreatedAt   time.Time
}
