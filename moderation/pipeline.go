package moderation

import (
	"context"
	"log/slog"
	"time"

	"sanctuary/contract"
	"sanctuary/domain"
	"sanctuary/repositories"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"
)

// Escalator delivers crisis alerts to human moderators. Implemented by the
// escalation dispatcher.
type Escalator interface {
	Escalate(ctx context.Context, e domain.ModerationEvent)
}

// Decision is the synchronous outcome for one message on the send path.
type Decision struct {
	Hit   Hit
	Block bool
	Tag   bool
	Event domain.ModerationEvent
}

// Pipeline walks every message through Received -> Prefiltered ->
// (Escalated | Classified) -> Logged. The prefilter runs synchronously on
// the send path; classification runs concurrently with delivery, never
// before it. Every path, approved or not, records exactly one
// ModerationEvent; a critical severity produces exactly one escalation
// attempt.
type Pipeline struct {
	prefilter  *Prefilter
	classifier contract.Classifier
	repo       repositories.IModerationRepository
	escalator  Escalator
	log        *slog.Logger
	deliverTag bool
	now        func() time.Time
}

func NewPipeline(prefilter *Prefilter, classifier contract.Classifier,
	repo repositories.IModerationRepository, escalator Escalator,
	deliverTagged bool, log *slog.Logger) *Pipeline {
	return &Pipeline{
		prefilter:  prefilter,
		classifier: classifier,
		repo:       repo,
		escalator:  escalator,
		log:        log,
		deliverTag: deliverTagged,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Inspect runs the synchronous prefilter tier. A hit short-circuits: the
// message is blocked (or delivered tagged, per policy), the event is logged,
// and a crisis routes straight to escalation without waiting on the
// classifier. A clean result means the caller should deliver now and queue
// the message for asynchronous classification.
func (p *Pipeline) Inspect(ctx context.Context, msg domain.Message) Decision {
	hit := p.prefilter.Scan(msg.Content)
	if !hit.Matched() {
		return Decision{Hit: hit}
	}

	evt := p.record(ctx, msg, hit.Method, hit.Severity, hit.Terms)
	return Decision{
		Hit:   hit,
		Block: !p.deliverTag,
		Tag:   p.deliverTag,
		Event: evt,
	}
}

// Classify runs the asynchronous tier for messages the prefilter let pass.
// The Fallback combinator absorbs classifier timeouts, outages and garbage;
// by construction the local heuristic answer is fail-open for ordinary
// content and fail-closed for anything crisis-shaped.
func (p *Pipeline) Classify(ctx context.Context, msg domain.Message) domain.ModerationEvent {
	verdict, err := p.classifier.Classify(ctx, msg.Content)
	if err != nil {
		// Both tiers failed; default to approved, low severity.
		p.log.Error("classification failed on both tiers", "message_id", msg.ID, "error", err)
		verdict = contract.Verdict{Severity: domain.SeverityLow, Action: domain.ActionNone}
	}
	return p.record(ctx, msg, domain.MethodAI, verdict.Severity, verdict.Topics)
}

// Emergency is the direct path for participant-raised alerts: severity is
// forced to critical and the classifier is bypassed entirely.
func (p *Pipeline) Emergency(ctx context.Context, sessionID domain.SessionID, participantID, alertType, message string) domain.ModerationEvent {
	msg := domain.Message{
		ID:        uuid.New(),
		SessionID: sessionID,
		SenderID:  participantID,
		Content:   message,
		Type:      domain.MessageEmergency,
		CreatedAt: p.now(),
	}
	return p.record(ctx, msg, domain.MethodKeyword, domain.SeverityCritical, []string{alertType})
}

// record writes the single audit event for a message and fires the single
// escalation attempt when severity is critical.
func (p *Pipeline) record(ctx context.Context, msg domain.Message,
	method domain.DetectionMethod, severity domain.Severity, terms []string) domain.ModerationEvent {
	info := whatlanggo.Detect(msg.Content)
	evt := domain.ModerationEvent{
		ID:            uuid.New(),
		SessionID:     msg.SessionID,
		ParticipantID: msg.SenderID,
		MessageID:     msg.ID,
		Method:        method,
		Severity:      severity,
		Action:        domain.ActionFor(severity),
		Terms:         terms,
		Lang:          info.Lang.Iso6391(),
		Resolved:      false,
		CreatedAt:     p.now(),
	}

	if err := p.repo.Append(evt); err != nil {
		p.log.Error("moderation event not persisted", "event_id", evt.ID, "error", err)
	}

	if severity == domain.SeverityCritical {
		p.escalator.Escalate(ctx, evt)
	}
	return evt
}
