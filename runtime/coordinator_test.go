package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"sanctuary/contract"
	"sanctuary/domain"
	"sanctuary/domain/event"
	"sanctuary/errors"
	"sanctuary/gateway"
	"sanctuary/moderation"
	"sanctuary/runtime/workers"
	"sanctuary/sink"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[domain.SessionID]domain.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[domain.SessionID]domain.Session)}
}

func (r *memSessionRepo) Upsert(session domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = session
	return nil
}

func (r *memSessionRepo) Get(id domain.SessionID) (domain.Session, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok, nil
}

func (r *memSessionRepo) AppendParticipant(id domain.SessionID, view domain.ParticipantView) error {
	return nil
}

type memMessageRepo struct {
	mu       sync.Mutex
	messages []domain.Message
}

func (r *memMessageRepo) Append(message domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	return nil
}

func (r *memMessageRepo) History(sessionID domain.SessionID, cursor *string) ([]domain.Message, *string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Message
	for i := len(r.messages) - 1; i >= 0; i-- {
		if r.messages[i].SessionID == sessionID {
			out = append(out, r.messages[i])
		}
	}
	return out, nil, nil
}

type memAuditRepo struct {
	mu     sync.Mutex
	events []domain.ModerationEvent
}

func (r *memAuditRepo) Append(e domain.ModerationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *memAuditRepo) Resolve(sessionID domain.SessionID, id uuid.UUID) error { return nil }

func (r *memAuditRepo) Unresolved(sessionID domain.SessionID) ([]domain.ModerationEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ModerationEvent(nil), r.events...), nil
}

type approveAllClassifier struct{}

func (approveAllClassifier) Classify(ctx context.Context, text string) (contract.Verdict, error) {
	return contract.Verdict{Severity: domain.SeverityLow, Action: domain.ActionNone}, nil
}

type coordinatorFixture struct {
	coordinator *Coordinator
	sessions    *memSessionRepo
	audit       *memAuditRepo
	session     domain.Session
}

func newCoordinatorFixture(t *testing.T) *coordinatorFixture {
	t.Helper()
	log := slog.Default()

	lexicon, err := moderation.LoadLexicon()
	require.NoError(t, err)
	prefilter, err := moderation.NewPrefilter(lexicon)
	require.NoError(t, err)

	sessions := newMemSessionRepo()
	audit := &memAuditRepo{}
	session := domain.Session{
		ID:              domain.SessionID(uuid.NewString()),
		Topic:           "late night check-in",
		MaxParticipants: 8,
		ExpiresAt:       time.Now().UTC().Add(time.Hour),
		HostToken:       "host-token-1",
	}
	require.NoError(t, sessions.Upsert(session))

	coordinator := NewCoordinator(
		log,
		workers.NewSupervisor(log, time.Second),
		NewRegistry(),
		gateway.NewGateway(nil, log),
		prefilter,
		approveAllClassifier{},
		Repositories{Sessions: sessions, Messages: &memMessageRepo{}, Moderation: audit},
		Options{
			BufferSize:      32,
			AbsenceGrace:    20 * time.Millisecond,
			KickNotifyDelay: time.Millisecond,
		},
	)
	return &coordinatorFixture{coordinator: coordinator, sessions: sessions, audit: audit, session: session}
}

func (f *coordinatorFixture) join(t *testing.T, creds gateway.Credentials) (JoinResult, *sink.ConnSink) {
	t.Helper()
	s := sink.NewConnSink(slog.Default(), 32)
	result, err := f.coordinator.JoinSession(context.Background(), f.session.ID, creds, s)
	require.NoError(t, err)
	return result, s
}

// drain empties the sink's buffered events.
func drain(s *sink.ConnSink) []event.RoomEvent {
	var out []event.RoomEvent
	for {
		select {
		case e := <-s.Events:
			out = append(out, e)
		default:
			return out
		}
	}
}

func eventNames(events []event.RoomEvent) []string {
	names := make([]string, 0, len(events))
	for _, e := range events {
		names = append(names, e.Name())
	}
	return names
}

func TestCoordinator_Join_Activates_Stored_Session(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t)

	result, s := f.join(t, gateway.Credentials{Alias: "Willow", HostToken: "host-token-1"})

	req.True(result.IsHost)
	req.Equal("Willow", result.Self.Alias)
	req.Len(result.Roster, 1)

	// join_confirmed was delivered directly, participant_joined via the room
	names := eventNames(drain(s))
	req.Contains(names, "participant_joined")
	req.Contains(names, "join_confirmed")
}

func TestCoordinator_Join_Unknown_Session(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t)
	s := sink.NewConnSink(slog.Default(), 32)

	_, err := f.coordinator.JoinSession(context.Background(), "missing", gateway.Credentials{}, s)

	req.ErrorIs(err, errors.ErrSessionNotFound)
}

func TestCoordinator_Failed_Host_Claim_Demotes(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t)

	result, _ := f.join(t, gateway.Credentials{Alias: "Imposter", HostToken: "wrong-token"})

	// Demoted, not disconnected
	req.False(result.IsHost)
	req.Equal(domain.RoleParticipant, result.Self.Role)
}

func TestCoordinator_SendMessage_Clean_Broadcast(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t)
	_, hostSink := f.join(t, gateway.Credentials{HostToken: "host-token-1"})
	member, memberSink := f.join(t, gateway.Credentials{Alias: "Harbor"})
	drain(hostSink)
	drain(memberSink)

	err := f.coordinator.SendMessage(context.Background(), f.session.ID,
		member.Identity.ParticipantID, "thanks for being here", domain.MessageText, "")
	req.NoError(err)

	for _, s := range []*sink.ConnSink{hostSink, memberSink} {
		events := drain(s)
		req.Len(events, 1)
		msg, ok := events[0].(event.NewMessage)
		req.True(ok)
		req.Equal("thanks for being here", msg.Content)
		req.Equal("Harbor", msg.SenderAlias)
		req.False(msg.Flagged)
	}
}

func TestCoordinator_SendMessage_Crisis_Blocked_And_Audited(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t)
	_, hostSink := f.join(t, gateway.Credentials{HostToken: "host-token-1"})
	member, memberSink := f.join(t, gateway.Credentials{Alias: "Harbor"})
	drain(hostSink)
	drain(memberSink)

	err := f.coordinator.SendMessage(context.Background(), f.session.ID,
		member.Identity.ParticipantID, "i want to end it all", domain.MessageText, "")
	req.NoError(err)

	// The room never sees the message; the sender gets the block notice
	req.Empty(drain(hostSink))
	names := eventNames(drain(memberSink))
	req.Equal([]string{"message_blocked"}, names)

	// Exactly one critical audit record
	f.audit.mu.Lock()
	defer f.audit.mu.Unlock()
	req.Len(f.audit.events, 1)
	req.Equal(domain.SeverityCritical, f.audit.events[0].Severity)
}

func TestCoordinator_SendMessage_From_Kicked_Participant(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t)
	host, _ := f.join(t, gateway.Credentials{HostToken: "host-token-1"})
	member, _ := f.join(t, gateway.Credentials{Alias: "Harbor"})

	req.NoError(f.coordinator.Kick(context.Background(), f.session.ID,
		host.Identity.ParticipantID, member.Identity.ParticipantID, "spam"))

	err := f.coordinator.SendMessage(context.Background(), f.session.ID,
		member.Identity.ParticipantID, "hello again", domain.MessageText, "")
	req.ErrorIs(err, errors.ErrParticipantBanned)
}

func TestCoordinator_Kicked_Participant_Cannot_Rejoin(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t)
	host, _ := f.join(t, gateway.Credentials{HostToken: "host-token-1"})
	member, _ := f.join(t, gateway.Credentials{Alias: "Harbor"})

	req.NoError(f.coordinator.Kick(context.Background(), f.session.ID,
		host.Identity.ParticipantID, member.Identity.ParticipantID, "spam"))

	// The kicked identifier can never re-enter the live set
	_, err := f.coordinator.registry.Join(f.session.ID, domain.Participant{
		ID: member.Identity.ParticipantID,
	}, sink.NewConnSink(slog.Default(), 32))
	req.ErrorIs(err, errors.ErrParticipantBanned)

	// And the roster no longer lists it
	for _, view := range f.coordinator.Snapshot(f.session.ID) {
		req.NotEqual(member.Identity.ParticipantID, view.ID)
	}
}

func TestCoordinator_Kicked_Participant_Stops_Receiving_Broadcasts(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t)
	host, hostSink := f.join(t, gateway.Credentials{HostToken: "host-token-1"})
	member, memberSink := f.join(t, gateway.Credentials{Alias: "Harbor"})
	drain(hostSink)
	drain(memberSink)

	req.NoError(f.coordinator.Kick(context.Background(), f.session.ID,
		host.Identity.ParticipantID, member.Identity.ParticipantID, "spam"))
	// The direct kicked_from_room notice is the last thing this connection sees
	req.Contains(eventNames(drain(memberSink)), "kicked_from_room")

	req.NoError(f.coordinator.SendMessage(context.Background(), f.session.ID,
		host.Identity.ParticipantID, "back to the check-in", domain.MessageText, ""))

	// The room still hears the host; the kicked connection hears nothing,
	// even before the deferred socket close runs.
	req.Contains(eventNames(drain(hostSink)), "new_message")
	req.Empty(drain(memberSink))
}

func TestCoordinator_Drop_After_Kick_Emits_No_Participant_Left(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t)
	host, hostSink := f.join(t, gateway.Credentials{HostToken: "host-token-1"})
	member, memberSink := f.join(t, gateway.Credentials{Alias: "Harbor"})

	req.NoError(f.coordinator.Kick(context.Background(), f.session.ID,
		host.Identity.ParticipantID, member.Identity.ParticipantID, "spam"))

	// The transport notices the closed socket and runs its normal drop path
	f.coordinator.Leave(context.Background(), f.session.ID,
		member.Identity.ParticipantID, memberSink.ConnectionID())

	// Past the grace window the room hears nothing more about the tombstone:
	// it already saw participant_kicked
	time.Sleep(50 * time.Millisecond)
	req.NotContains(eventNames(drain(hostSink)), "participant_left")

	// And the ban stayed enforceable
	_, err := f.coordinator.registry.Join(f.session.ID, domain.Participant{
		ID: member.Identity.ParticipantID,
	}, sink.NewConnSink(slog.Default(), 32))
	req.ErrorIs(err, errors.ErrParticipantBanned)
}

func TestCoordinator_Mute_Then_SelfUnmute_Rejected(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t)
	host, _ := f.join(t, gateway.Credentials{HostToken: "host-token-1"})
	member, memberSink := f.join(t, gateway.Credentials{Alias: "Harbor"})
	drain(memberSink)

	req.NoError(f.coordinator.Mute(context.Background(), f.session.ID,
		host.Identity.ParticipantID, member.Identity.ParticipantID))

	err := f.coordinator.SelfUnmute(context.Background(), f.session.ID, member.Identity.ParticipantID)
	req.ErrorIs(err, errors.ErrHostMuted)

	req.NoError(f.coordinator.UnmuteAll(context.Background(), f.session.ID, host.Identity.ParticipantID))

	names := eventNames(drain(memberSink))
	req.Contains(names, "force_muted")
	req.Contains(names, "force_unmuted")
}

func TestCoordinator_RaiseHand_Broadcasts(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t)
	member, memberSink := f.join(t, gateway.Credentials{Alias: "Harbor"})
	drain(memberSink)

	req.NoError(f.coordinator.RaiseHand(context.Background(), f.session.ID,
		member.Identity.ParticipantID, true))

	events := drain(memberSink)
	req.Len(events, 1)
	raised, ok := events[0].(event.HandRaised)
	req.True(ok)
	req.True(raised.IsRaised)
}

func TestCoordinator_Leave_Then_Rejoin_Within_Grace(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t)
	member, memberSink := f.join(t, gateway.Credentials{Alias: "Harbor"})

	f.coordinator.Leave(context.Background(), f.session.ID,
		member.Identity.ParticipantID, memberSink.ConnectionID())

	// Rejoining the same identifier inside the grace window cancels removal.
	// The anonymous flow mints fresh identifiers, so reuse the registry path
	// the transport uses after a reconnect.
	_, err := f.coordinator.registry.Join(f.session.ID, domain.Participant{
		ID: member.Identity.ParticipantID,
	}, sink.NewConnSink(slog.Default(), 32))
	req.NoError(err)
	f.coordinator.absence.Cancel(f.session.ID, member.Identity.ParticipantID)

	time.Sleep(50 * time.Millisecond)
	p, err := f.coordinator.registry.Participant(f.session.ID, member.Identity.ParticipantID)
	req.NoError(err)
	req.Equal(domain.StatusConnected, p.Status)
}

func TestCoordinator_Leave_Removal_After_Grace(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t)
	_, hostSink := f.join(t, gateway.Credentials{HostToken: "host-token-1"})
	member, memberSink := f.join(t, gateway.Credentials{Alias: "Harbor"})
	drain(hostSink)

	f.coordinator.Leave(context.Background(), f.session.ID,
		member.Identity.ParticipantID, memberSink.ConnectionID())

	req.Eventually(func() bool {
		_, err := f.coordinator.registry.Participant(f.session.ID, member.Identity.ParticipantID)
		return errors.Is(err, errors.ErrParticipantNotFound)
	}, time.Second, 10*time.Millisecond)

	names := eventNames(drain(hostSink))
	req.Contains(names, "participant_left")
}

func TestCoordinator_Emergency_Records_Critical_Audit(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t)
	member, _ := f.join(t, gateway.Credentials{Alias: "Harbor"})

	f.coordinator.Emergency(context.Background(), f.session.ID,
		member.Identity.ParticipantID, "panic-attack", "i need someone right now")

	f.audit.mu.Lock()
	defer f.audit.mu.Unlock()
	req.Len(f.audit.events, 1)
	req.Equal(domain.SeverityCritical, f.audit.events[0].Severity)
	req.Equal(domain.ActionEscalate, f.audit.events[0].Action)
}

func TestCoordinator_Capacity_Enforced(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t)
	small := f.session
	small.ID = domain.SessionID(uuid.NewString())
	small.MaxParticipants = 1
	req.NoError(f.sessions.Upsert(small))

	s1 := sink.NewConnSink(slog.Default(), 32)
	_, err := f.coordinator.JoinSession(context.Background(), small.ID, gateway.Credentials{}, s1)
	req.NoError(err)

	s2 := sink.NewConnSink(slog.Default(), 32)
	_, err = f.coordinator.JoinSession(context.Background(), small.ID, gateway.Credentials{}, s2)
	req.ErrorIs(err, errors.ErrSessionFull)
}

func TestCoordinator_Messages_Queue_For_Classification(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t)
	member, memberSink := f.join(t, gateway.Credentials{Alias: "Harbor"})
	drain(memberSink)

	for i := 0; i < 3; i++ {
		req.NoError(f.coordinator.SendMessage(context.Background(), f.session.ID,
			member.Identity.ParticipantID, fmt.Sprintf("checking in %d", i), domain.MessageText, ""))
	}

	// Clean messages go to the async classification queue after delivery
	req.Len(f.coordinator.classifyJobs, 3)
}
