package runtime

import (
	"context"
	"log/slog"

	"sanctuary/contract"
	"sanctuary/domain"
	"sanctuary/domain/event"
	"sanctuary/gateway"
)

// Router fans room events out to every connected member of a session.
//
// Delivery is best-effort with no retries: a failed sink is logged and the
// client resyncs from a roster snapshot. Recipients are deduplicated by
// connection across the room and host-control channels. Because Publish is
// invoked synchronously from each sender's read loop and sinks are ordered
// buffered channels, delivery is FIFO per sender; no cross-sender ordering
// is promised.
type Router struct {
	channels *gateway.ChannelTable
	registry contract.IRegistry
	persist  chan event.RoomEvent
	log      *slog.Logger
}

func NewRouter(channels *gateway.ChannelTable, registry contract.IRegistry,
	persist chan event.RoomEvent, log *slog.Logger) *Router {
	return &Router{channels: channels, registry: registry, persist: persist, log: log}
}

// Publish delivers the event to every connection in the session's channels,
// exactly once per connection. Chat messages are also queued for the durable
// store; that append is fire-and-forget and a full queue never delays or
// fails delivery.
func (r *Router) Publish(ctx context.Context, e event.RoomEvent) int {
	sinks := r.channels.Members(
		gateway.RoomChannel(e.SessionID()),
		gateway.HostChannel(e.SessionID()),
	)

	delivered := 0
	for _, sink := range sinks {
		if err := sink.Consume(ctx, e); err != nil {
			r.log.Warn("event delivery failed",
				"event", e.Name(),
				"session_id", e.SessionID(),
				"connection_id", sink.ConnectionID(),
				"error", err)
			continue
		}
		delivered++
	}

	if _, isMessage := e.(event.NewMessage); isMessage {
		select {
		case r.persist <- e:
		default:
			r.log.Warn("persist queue full, dropping history append",
				"session_id", e.SessionID())
		}
	}
	return delivered
}

// Direct targets one participant's connection, independent of any room
// broadcast, so the affected client gets local UI feedback even under
// recipient dedup.
func (r *Router) Direct(ctx context.Context, sessionID domain.SessionID, participantID string, e event.RoomEvent) bool {
	sink, ok := r.registry.SinkOf(sessionID, participantID)
	if !ok {
		return false
	}
	if err := sink.Consume(ctx, e); err != nil {
		r.log.Warn("direct delivery failed",
			"event", e.Name(),
			"session_id", sessionID,
			"participant_id", participantID,
			"error", err)
		return false
	}
	return true
}
