package workers

import (
	"context"
	"log/slog"
	"time"

	"sanctuary/domain"
	"sanctuary/domain/event"
	"sanctuary/moderation"
)

// Warner sends a direct moderation notice to one participant.
type Warner interface {
	Direct(ctx context.Context, sessionID domain.SessionID, participantID string, e event.RoomEvent) bool
}

// ClassifyWorker drains the classification queue: messages the prefilter
// let through get their asynchronous verdict here, concurrently with
// delivery. Nothing on this path ever blocks the broadcast router.
type ClassifyWorker struct {
	pipeline *moderation.Pipeline
	jobs     chan domain.Message
	warner   Warner
	log      *slog.Logger
}

func NewClassifyWorker(pipeline *moderation.Pipeline, jobs chan domain.Message,
	warner Warner, log *slog.Logger) *ClassifyWorker {
	return &ClassifyWorker{pipeline: pipeline, jobs: jobs, warner: warner, log: log}
}

func (w *ClassifyWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case msg, ok := <-w.jobs:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			evt := w.pipeline.Classify(ctx, msg)
			if evt.Action == domain.ActionWarning && w.warner != nil {
				w.warner.Direct(ctx, msg.SessionID, msg.SenderID, event.NewMessage{
					Session:     msg.SessionID,
					ID:          evt.ID,
					SenderAlias: "moderator",
					Content:     "Please keep this space supportive. Your last message was flagged.",
					Type:        domain.MessageSystem,
					At:          time.Now().UTC(),
				})
			}
		}
	}
}
