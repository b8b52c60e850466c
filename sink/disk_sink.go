package sink

import (
	"context"
	"fmt"
	"log/slog"

	"sanctuary/domain"
	"sanctuary/domain/event"
	"sanctuary/repositories"
)

// DiskSink appends chat history to the durable store. It runs behind the
// persist queue, off the delivery path; a storage failure is logged and
// never surfaces to room members as a chat failure.
type DiskSink struct {
	repository repositories.IMessageRepository
	log        *slog.Logger
}

func NewDiskSink(repository repositories.IMessageRepository, log *slog.Logger) DiskSink {
	return DiskSink{repository: repository, log: log}
}

func (d DiskSink) Consume(_ context.Context, e event.RoomEvent) error {
	switch evt := e.(type) {
	case event.NewMessage:
		return d.repository.Append(toStoredMessage(evt))
	default:
		d.log.Debug(fmt.Sprintf("Not persisted event : %v", e.Name()))
		return nil
	}
}

func toStoredMessage(e event.NewMessage) domain.Message {
	return domain.Message{
		ID:          e.ID,
		SessionID:   e.Session,
		SenderID:    e.SenderID,
		SenderAlias: e.SenderAlias,
		Content:     e.Content,
		Type:        e.Type,
		ReplyTo:     e.ReplyTo,
		Flagged:     e.Flagged,
		CreatedAt:   e.At,
	}
}
