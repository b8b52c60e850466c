package sink

import (
	"context"
	"log/slog"
	"testing"

	"sanctuary/domain/event"
	"sanctuary/errors"

	"github.com/stretchr/testify/require"
)

func TestConnSink_Buffers_In_Order(t *testing.T) {
	req := require.New(t)
	s := NewConnSink(slog.Default(), 4)

	req.NoError(s.Consume(context.Background(), event.HandRaised{Session: "s1", Participant: "a"}))
	req.NoError(s.Consume(context.Background(), event.HandRaised{Session: "s1", Participant: "b"}))

	first := (<-s.Events).(event.HandRaised)
	second := (<-s.Events).(event.HandRaised)
	req.Equal("a", first.Participant)
	req.Equal("b", second.Participant)
}

func TestConnSink_Drops_When_Full_Without_Blocking(t *testing.T) {
	req := require.New(t)
	s := NewConnSink(slog.Default(), 1)

	req.NoError(s.Consume(context.Background(), event.HandRaised{Session: "s1", Participant: "a"}))
	// The buffer is full; the slow client loses this event, the caller
	// never blocks and learns about the drop.
	err := s.Consume(context.Background(), event.HandRaised{Session: "s1", Participant: "b"})

	req.ErrorIs(err, errors.ErrDeliveryFailure)
	req.Len(s.Events, 1)
}

func TestConnSink_Unique_Connection_IDs(t *testing.T) {
	req := require.New(t)

	a := NewConnSink(slog.Default(), 1)
	b := NewConnSink(slog.Default(), 1)

	req.NotEqual(a.ConnectionID(), b.ConnectionID())
}
