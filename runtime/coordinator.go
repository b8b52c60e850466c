package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"sanctuary/authority"
	"sanctuary/contract"
	"sanctuary/domain"
	"sanctuary/domain/event"
	"sanctuary/errors"
	"sanctuary/escalation"
	"sanctuary/gateway"
	"sanctuary/moderation"
	"sanctuary/repositories"
	"sanctuary/runtime/workers"
	"sanctuary/sink"

	"github.com/google/uuid"
)

// Options groups the coordinator's tunables, loaded from configuration.
type Options struct {
	BufferSize        int
	AbsenceGrace      time.Duration
	KickNotifyDelay   time.Duration
	MirrorInterval    time.Duration
	SweepInterval     time.Duration
	EscalationBackoff time.Duration
	WebhookURL        string
	WebhookTimeout    time.Duration
	OperatorSession   domain.SessionID
	DeliverTagged     bool
}

// Repositories groups the durable-store collaborators.
type Repositories struct {
	Sessions   repositories.ISessionRepository
	Messages   repositories.IMessageRepository
	Moderation repositories.IModerationRepository
}

// Coordinator wires the registry, gateway, authority module, router,
// moderation pipeline and escalation dispatcher together and exposes the
// operations the transport consumes. It is the single coordination process
// per deployment instance.
type Coordinator struct {
	log        *slog.Logger
	opts       Options
	registry   *Registry
	channels   *gateway.ChannelTable
	gateway    *gateway.Gateway
	router     *Router
	authority  *authority.Authority
	pipeline   *moderation.Pipeline
	dispatcher *escalation.Dispatcher
	absence    *gateway.AbsenceTimers
	repos      Repositories
	supervisor contract.ISupervisor

	classifyJobs chan domain.Message
	persistQueue chan event.RoomEvent

	mu           sync.RWMutex
	disconnector authority.Disconnector
}

func NewCoordinator(log *slog.Logger, supervisor contract.ISupervisor,
	registry *Registry, gw *gateway.Gateway, prefilter *moderation.Prefilter,
	classifier contract.Classifier, repos Repositories, opts Options) *Coordinator {

	c := &Coordinator{
		log:          log,
		opts:         opts,
		registry:     registry,
		channels:     gateway.NewChannelTable(),
		gateway:      gw,
		absence:      gateway.NewAbsenceTimers(opts.AbsenceGrace),
		repos:        repos,
		supervisor:   supervisor,
		classifyJobs: make(chan domain.Message, opts.BufferSize),
		persistQueue: make(chan event.RoomEvent, opts.BufferSize),
	}

	c.router = NewRouter(c.channels, registry, c.persistQueue, log)

	var channels []escalation.AlertChannel
	if opts.WebhookURL != "" {
		channels = append(channels, escalation.NewWebhookChannel(opts.WebhookURL, opts.WebhookTimeout))
	}
	if opts.OperatorSession != "" {
		channels = append(channels, escalation.NewOperatorRoomChannel(opts.OperatorSession, c.router))
	}
	c.dispatcher = escalation.NewDispatcher(channels, opts.BufferSize, opts.EscalationBackoff, log)

	c.pipeline = moderation.NewPipeline(prefilter, classifier, repos.Moderation,
		c.dispatcher, opts.DeliverTagged, log)

	// The coordinator stands in as disconnector so the transport can be
	// wired after construction.
	c.authority = authority.NewAuthority(registry, c.router, c.channels, c, opts.KickNotifyDelay, log)

	return c
}

// SetDisconnector registers the transport's forced-disconnect hook.
func (c *Coordinator) SetDisconnector(d authority.Disconnector) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnector = d
}

// Disconnect implements authority.Disconnector. It always cleans local
// state, then lets the transport close the socket if one is registered.
func (c *Coordinator) Disconnect(sessionID domain.SessionID, participantID string) {
	if s, ok := c.registry.SinkOf(sessionID, participantID); ok {
		c.channels.LeaveAll(s.ConnectionID())
	}
	_ = c.registry.Leave(sessionID, participantID)

	c.mu.RLock()
	d := c.disconnector
	c.mu.RUnlock()
	if d != nil {
		d.Disconnect(sessionID, participantID)
	}
}

// Start registers the background workers and runs the supervision loop
// until the context ends.
func (c *Coordinator) Start(ctx context.Context) {
	c.supervisor.Add(
		workers.NewClassifyWorker(c.pipeline, c.classifyJobs, c.router, c.log),
		workers.NewPersistWorker(c.persistQueue, sink.NewDiskSink(c.repos.Messages, c.log), c.log),
		workers.NewMirrorWorker(c.registry, c.repos.Sessions, c.opts.MirrorInterval, c.log),
		workers.NewSweepWorker(c.registry, c.opts.SweepInterval, c.log),
		c.dispatcher,
	)
	c.log.Info("Starting coordinator and all supervised workers")
	go c.supervisor.Run(ctx)
}

func (c *Coordinator) Stop() {
	c.absence.StopAll()
	c.supervisor.Stop()
}

// JoinResult is returned to the transport after a successful admission.
type JoinResult struct {
	Identity gateway.Identity
	Self     domain.ParticipantView
	Roster   []domain.ParticipantView
	IsHost   bool
}

// JoinSession admits a connection into a session: identity resolution, host
// proof, registry join, channel membership, and the join broadcasts.
func (c *Coordinator) JoinSession(ctx context.Context, sessionID domain.SessionID,
	creds gateway.Credentials, connSink contract.ConnSink) (JoinResult, error) {

	session, err := c.registry.Session(sessionID)
	if err != nil {
		// Session records are created by the scheduling collaborator;
		// pull from the durable store on first join.
		stored, found, loadErr := c.repos.Sessions.Get(sessionID)
		if loadErr != nil {
			c.log.Warn("session load failed", "session_id", sessionID, "error", loadErr)
		}
		if !found {
			return JoinResult{}, errors.ErrSessionNotFound
		}
		c.registry.Activate(stored)
		session = stored
	}

	identity, err := c.gateway.Admit(creds)
	if err != nil {
		return JoinResult{}, err
	}

	role, hostErr := c.gateway.ResolveHost(session, creds, identity)
	if hostErr != nil && creds.HostToken == "" && creds.HostKey == "" && identity.IsAnonymous {
		// No host claim was made; nothing to report.
		hostErr = nil
	}
	if hostErr != nil {
		// Failed host claims demote to participant, never disconnect.
		c.log.Info("host claim rejected", "session_id", sessionID, "participant_id", identity.ParticipantID)
	}

	c.absence.Cancel(sessionID, identity.ParticipantID)

	now := time.Now().UTC()
	view, err := c.registry.Join(sessionID, identity.Participant(role, now), connSink)
	if err != nil {
		return JoinResult{}, err
	}

	c.channels.Join(gateway.RoomChannel(sessionID), connSink)
	if role.Privileged() {
		c.channels.Join(gateway.HostChannel(sessionID), connSink)
	}

	c.router.Publish(ctx, event.ParticipantJoined{Session: sessionID, Participant: view})

	roster := c.registry.Snapshot(sessionID)
	confirmed := event.JoinConfirmed{
		Session: sessionID,
		Self:    view,
		Roster:  roster,
		IsHost:  role.Privileged(),
	}
	if err := connSink.Consume(ctx, confirmed); err != nil {
		c.log.Warn("join confirmation not delivered", "session_id", sessionID, "error", err)
	}

	return JoinResult{Identity: identity, Self: view, Roster: roster, IsHost: role.Privileged()}, nil
}

// SendMessage publishes a chat message and feeds the moderation pipeline.
// The prefilter runs synchronously before any broadcast; classification of
// clean messages runs concurrently with delivery, never before it.
func (c *Coordinator) SendMessage(ctx context.Context, sessionID domain.SessionID,
	senderID, content string, msgType domain.MessageType, replyTo string) error {

	p, err := c.registry.Participant(sessionID, senderID)
	if err != nil {
		return err
	}
	if p.IsKicked {
		return errors.ErrParticipantBanned
	}

	msg := domain.Message{
		ID:          uuid.New(),
		SessionID:   sessionID,
		SenderID:    senderID,
		SenderAlias: p.Alias,
		Content:     content,
		Type:        msgType,
		ReplyTo:     replyTo,
		CreatedAt:   time.Now().UTC(),
	}

	decision := c.pipeline.Inspect(ctx, msg)
	if decision.Block {
		c.router.Direct(ctx, sessionID, senderID, event.MessageBlocked{
			Session: sessionID,
			Message: msg.ID,
			Reason:  string(decision.Event.Severity),
		})
		return nil
	}

	c.router.Publish(ctx, event.NewMessage{
		Session:     sessionID,
		ID:          msg.ID,
		SenderID:    msg.SenderID,
		SenderAlias: msg.SenderAlias,
		Content:     msg.Content,
		Type:        msg.Type,
		ReplyTo:     msg.ReplyTo,
		Flagged:     decision.Tag && decision.Hit.Matched(),
		At:          msg.CreatedAt,
	})

	if !decision.Hit.Matched() {
		// Blocking send: every message must reach the audit trail, and the
		// queue is the bounded buffer absorbing classifier slowness.
		select {
		case c.classifyJobs <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// RaiseHand flips the hand flag and tells the room.
func (c *Coordinator) RaiseHand(ctx context.Context, sessionID domain.SessionID, participantID string, isRaised bool) error {
	if _, err := c.registry.ApplyFlag(sessionID, participantID, domain.FlagDelta{HandRaised: &isRaised}); err != nil {
		return err
	}
	c.router.Publish(ctx, event.HandRaised{Session: sessionID, Participant: participantID, IsRaised: isRaised})
	return nil
}

// Emergency routes a participant-raised alert straight to the escalation
// dispatcher with severity forced to critical, bypassing the classifier.
func (c *Coordinator) Emergency(ctx context.Context, sessionID domain.SessionID, participantID, alertType, message string) {
	c.pipeline.Emergency(ctx, sessionID, participantID, alertType, message)
}

// Mute and friends delegate to the authority module.
func (c *Coordinator) Mute(ctx context.Context, sessionID domain.SessionID, actorID, targetID string) error {
	return c.authority.Mute(ctx, sessionID, actorID, targetID)
}

func (c *Coordinator) Unmute(ctx context.Context, sessionID domain.SessionID, actorID, targetID string) error {
	return c.authority.Unmute(ctx, sessionID, actorID, targetID)
}

func (c *Coordinator) UnmuteAll(ctx context.Context, sessionID domain.SessionID, actorID string) error {
	return c.authority.UnmuteAll(ctx, sessionID, actorID)
}

func (c *Coordinator) SelfUnmute(ctx context.Context, sessionID domain.SessionID, participantID string) error {
	return c.authority.SelfUnmute(ctx, sessionID, participantID)
}

func (c *Coordinator) Promote(ctx context.Context, sessionID domain.SessionID, actorID, targetID string) error {
	return c.authority.Promote(ctx, sessionID, actorID, targetID)
}

func (c *Coordinator) Kick(ctx context.Context, sessionID domain.SessionID, actorID, targetID, reason string) error {
	return c.authority.Kick(ctx, sessionID, actorID, targetID, reason)
}

// Leave handles a graceful disconnect: status flips, flags survive, and the
// absence timer performs the true removal after the grace window unless the
// same participant reconnects first.
func (c *Coordinator) Leave(ctx context.Context, sessionID domain.SessionID, participantID, connID string) {
	c.channels.LeaveAll(connID)

	p, err := c.registry.Participant(sessionID, participantID)
	if err != nil {
		return
	}
	if err := c.registry.Leave(sessionID, participantID); err != nil {
		return
	}
	if p.IsKicked {
		// The room already saw participant_kicked; a tombstone gets no
		// absence window and no participant_left.
		return
	}

	c.absence.Schedule(sessionID, participantID, func() {
		if err := c.registry.Remove(sessionID, participantID); err != nil {
			return
		}
		c.router.Publish(context.Background(), event.ParticipantLeft{
			Session:     sessionID,
			Participant: participantID,
		})
	})
}

// Snapshot exposes the roster for client resync.
func (c *Coordinator) Snapshot(sessionID domain.SessionID) []domain.ParticipantView {
	return c.registry.Snapshot(sessionID)
}

// History pages stored messages, newest first.
func (c *Coordinator) History(sessionID domain.SessionID, cursor *string) ([]domain.Message, *string, error) {
	return c.repos.Messages.History(sessionID, cursor)
}
