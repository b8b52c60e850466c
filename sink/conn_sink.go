// Package sink provides the event consumers hanging off the router: one per
// live connection, one for the durable store.
package sink

import (
	"context"
	"fmt"
	"log/slog"

	"sanctuary/domain/event"
	"sanctuary/errors"

	"github.com/google/uuid"
)

// ConnSink buffers events for a single physical connection. The transport's
// write pump drains Events; the router enqueues into it without ever
// blocking on a slow client.
type ConnSink struct {
	id     string
	Events chan event.RoomEvent
	log    *slog.Logger
}

func NewConnSink(log *slog.Logger, bufferSize int) *ConnSink {
	return &ConnSink{
		id:     uuid.NewString(),
		Events: make(chan event.RoomEvent, bufferSize),
		log:    log,
	}
}

func (s *ConnSink) ConnectionID() string { return s.id }

// Consume is called by the router. If the buffer is full the event is
// dropped for this connection only and the drop is reported as a delivery
// failure; the client resyncs from a snapshot.
func (s *ConnSink) Consume(ctx context.Context, e event.RoomEvent) error {
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		s.log.Debug("connection backpressure, dropping event",
			"connection_id", s.id, "event", e.Name())
		return fmt.Errorf("buffer full on connection %s: %w", s.id, errors.ErrDeliveryFailure)
	}
}
