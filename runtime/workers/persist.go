package workers

import (
	"context"
	"log/slog"

	"sanctuary/contract"
	"sanctuary/domain/event"
)

// PersistWorker drains the history queue into the durable store. It sits
// behind the router so a slow or failing store never delays delivery;
// storage failures are logged, never surfaced to room members.
type PersistWorker struct {
	events chan event.RoomEvent
	sink   contract.EventSink
	log    *slog.Logger
}

func NewPersistWorker(events chan event.RoomEvent, sink contract.EventSink, log *slog.Logger) *PersistWorker {
	return &PersistWorker{events: events, sink: sink, log: log}
}

func (w *PersistWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case e, ok := <-w.events:
			if !ok {
				return nil
			}
			if err := w.sink.Consume(ctx, e); err != nil {
				w.log.Warn("history append failed",
					"event", e.Name(),
					"session_id", e.SessionID(),
					"error", err)
			}
		}
	}
}
