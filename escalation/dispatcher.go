// Package escalation delivers crisis alerts to human moderators over one or
// more channels, with a bounded retry. Suppressing a potential crisis
// silently is the unacceptable failure mode: exhausted deliveries are logged
// and the moderation event stays unresolved for human follow-up.
package escalation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"sanctuary/domain"
	"sanctuary/domain/event"
	"sanctuary/errors"
)

// AlertChannel is one independent delivery target. Failure of one channel
// must not prevent attempting the others.
type AlertChannel interface {
	Name() string
	Notify(ctx context.Context, e domain.ModerationEvent) error
}

// Dispatcher queues escalations and delivers them off the send path. It is
// run as a supervised worker.
type Dispatcher struct {
	channels []AlertChannel
	queue    chan domain.ModerationEvent
	backoff  time.Duration
	log      *slog.Logger
}

func NewDispatcher(channels []AlertChannel, queueSize int, backoff time.Duration, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		channels: channels,
		queue:    make(chan domain.ModerationEvent, queueSize),
		backoff:  backoff,
		log:      log,
	}
}

// Escalate enqueues exactly one delivery attempt for the event. The send
// blocks rather than drops: losing a crisis alert is worse than briefly
// backpressuring the caller.
func (d *Dispatcher) Escalate(ctx context.Context, e domain.ModerationEvent) {
	select {
	case d.queue <- e:
	case <-ctx.Done():
		d.log.Error("escalation not enqueued, context canceled", "event_id", e.ID)
	}
}

// Run drains the queue until the context ends.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			d.log.Debug("Stopping worker")
			return ctx.Err()
		case e, ok := <-d.queue:
			if !ok {
				return nil
			}
			d.deliver(ctx, e)
		}
	}
}

// deliver attempts every channel independently: one try, one retry with
// backoff. Exhaustion is logged; the event remains resolved=false.
func (d *Dispatcher) deliver(ctx context.Context, e domain.ModerationEvent) {
	for _, ch := range d.channels {
		err := ch.Notify(ctx, e)
		if err == nil {
			continue
		}
		d.log.Warn("escalation delivery failed, retrying",
			"channel", ch.Name(), "event_id", e.ID, "error", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(d.backoff):
		}

		if err = ch.Notify(ctx, e); err != nil {
			d.log.Error("escalation delivery exhausted, event left unresolved",
				"channel", ch.Name(), "event_id", e.ID, "error", err)
		}
	}
}

// WebhookChannel posts the alert to a configured moderator webhook.
type WebhookChannel struct {
	url    string
	client *http.Client
}

func NewWebhookChannel(url string, timeout time.Duration) *WebhookChannel {
	return &WebhookChannel{url: url, client: &http.Client{Timeout: timeout}}
}

func (w *WebhookChannel) Name() string { return "webhook" }

func (w *WebhookChannel) Notify(ctx context.Context, e domain.ModerationEvent) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d: %w", resp.StatusCode, errors.ErrEscalationDelivery)
	}
	return nil
}

// Publisher is the slice of the router the operator channel needs.
type Publisher interface {
	Publish(ctx context.Context, e event.RoomEvent) int
}

// OperatorRoomChannel broadcasts the alert into the operator-facing room so
// on-shift moderators see it in real time.
type OperatorRoomChannel struct {
	session domain.SessionID
	router  Publisher
}

func NewOperatorRoomChannel(session domain.SessionID, router Publisher) *OperatorRoomChannel {
	return &OperatorRoomChannel{session: session, router: router}
}

func (o *OperatorRoomChannel) Name() string { return "operator_room" }

func (o *OperatorRoomChannel) Notify(ctx context.Context, e domain.ModerationEvent) error {
	alertType := ""
	if len(e.Terms) > 0 {
		alertType = e.Terms[0]
	}
	delivered := o.router.Publish(ctx, event.EmergencyAlert{
		Session:     o.session,
		Participant: e.ParticipantID,
		AlertType:   alertType,
		Message:     fmt.Sprintf("severity=%s session=%s", e.Severity, e.SessionID),
		At:          e.CreatedAt,
	})
	if delivered == 0 {
		return fmt.Errorf("no operator connected: %w", errors.ErrEscalationDelivery)
	}
	return nil
}
