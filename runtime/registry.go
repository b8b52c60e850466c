// Package runtime handles session state, event routing and worker wiring.
// It orchestrates the system without containing business policy.
package runtime

import (
	"hash/fnv"
	"sync"
	"time"

	"sanctuary/contract"
	"sanctuary/domain"
	"sanctuary/errors"
)

const shardCount = 16

// Registry is the authoritative in-memory map of active sessions and their
// participants: the single source of truth for "who is here right now".
// Mutations are short critical sections on the owning shard; no lock is ever
// held across I/O. Host actions against one session are linearized by its
// shard lock.
type Registry struct {
	shards [shardCount]*shard
	now    func() time.Time
}

type shard struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*liveSession
}

type liveSession struct {
	meta         domain.Session
	participants map[string]*domain.Participant
	sinks        map[string]contract.ConnSink
}

func NewRegistry() *Registry {
	r := &Registry{now: func() time.Time { return time.Now().UTC() }}
	for i := range r.shards {
		r.shards[i] = &shard{sessions: make(map[domain.SessionID]*liveSession)}
	}
	return r
}

func (r *Registry) shardFor(id domain.SessionID) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return r.shards[h.Sum32()%shardCount]
}

// Activate registers a session record, idempotently. Sessions are created by
// the scheduling collaborator; activation happens on first host join.
func (r *Registry) Activate(session domain.Session) {
	s := r.shardFor(session.ID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if live, ok := s.sessions[session.ID]; ok {
		live.meta.IsActive = true
		return
	}
	session.IsActive = true
	s.sessions[session.ID] = &liveSession{
		meta:         session,
		participants: make(map[string]*domain.Participant),
		sinks:        make(map[string]contract.ConnSink),
	}
}

// Session returns the session record.
func (r *Registry) Session(sessionID domain.SessionID) (domain.Session, error) {
	s := r.shardFor(sessionID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	live, ok := s.sessions[sessionID]
	if !ok {
		return domain.Session{}, errors.ErrSessionNotFound
	}
	return live.meta, nil
}

// Join admits a participant and binds its connection sink.
//
// Idempotent per participant identifier: rejoining a present, non-kicked
// participant refreshes connection status and socket binding instead of
// duplicating the roster entry. A tombstoned (kicked) identifier can never
// re-enter the live set. The capacity check happens atomically with the
// insertion under the shard lock.
func (r *Registry) Join(sessionID domain.SessionID, p domain.Participant, sink contract.ConnSink) (domain.ParticipantView, error) {
	s := r.shardFor(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	live, ok := s.sessions[sessionID]
	if !ok || !live.meta.IsActive {
		return domain.ParticipantView{}, errors.ErrSessionNotFound
	}

	now := r.now()
	if existing, ok := live.participants[p.ID]; ok {
		if existing.IsKicked {
			return domain.ParticipantView{}, errors.ErrParticipantBanned
		}
		existing.Status = domain.StatusConnected
		existing.LastSeenAt = now
		if sink != nil {
			live.sinks[p.ID] = sink
		}
		return existing.View(), nil
	}

	if countLive(live) >= live.meta.MaxParticipants {
		return domain.ParticipantView{}, errors.ErrSessionFull
	}

	if p.Role == "" {
		p.Role = domain.RoleParticipant
	}
	p.Status = domain.StatusConnected
	p.JoinedAt = now
	p.LastSeenAt = now
	live.participants[p.ID] = &p
	if sink != nil {
		live.sinks[p.ID] = sink
	}
	return p.View(), nil
}

// countLive counts non-kicked roster entries; kicked tombstones never count
// against capacity.
func countLive(live *liveSession) int {
	n := 0
	for _, p := range live.participants {
		if !p.IsKicked {
			n++
		}
	}
	return n
}

// Leave marks a participant disconnected without deleting the record, so a
// reconnection inside the grace window resumes with moderation flags intact.
func (r *Registry) Leave(sessionID domain.SessionID, participantID string) error {
	s := r.shardFor(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	live, ok := s.sessions[sessionID]
	if !ok {
		return errors.ErrSessionNotFound
	}
	p, ok := live.participants[participantID]
	if !ok {
		return errors.ErrParticipantNotFound
	}
	p.Status = domain.StatusDisconnected
	p.LastSeenAt = r.now()
	delete(live.sinks, participantID)
	return nil
}

// Remove deletes a participant from the live set. Kicked participants stay
// as tombstones so the ban remains enforceable for the session lifetime.
func (r *Registry) Remove(sessionID domain.SessionID, participantID string) error {
	s := r.shardFor(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	live, ok := s.sessions[sessionID]
	if !ok {
		return errors.ErrSessionNotFound
	}
	p, ok := live.participants[participantID]
	if !ok {
		return errors.ErrParticipantNotFound
	}
	delete(live.sinks, participantID)
	if !p.IsKicked {
		delete(live.participants, participantID)
	}
	return nil
}

// ApplyFlag is the only path that mutates participant flag state. Deltas are
// merged field by field (last-writer-wins per flag), so a concurrent mute
// and hand-lower never clobber each other.
func (r *Registry) ApplyFlag(sessionID domain.SessionID, participantID string, delta domain.FlagDelta) (domain.Participant, error) {
	s := r.shardFor(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	live, ok := s.sessions[sessionID]
	if !ok {
		return domain.Participant{}, errors.ErrSessionNotFound
	}
	p, ok := live.participants[participantID]
	if !ok {
		return domain.Participant{}, errors.ErrParticipantNotFound
	}
	delta.Apply(p)
	p.LastSeenAt = r.now()
	if p.IsKicked {
		delete(live.sinks, participantID)
	}
	return *p, nil
}

// Participant returns a copy of the participant record.
func (r *Registry) Participant(sessionID domain.SessionID, participantID string) (domain.Participant, error) {
	s := r.shardFor(sessionID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	live, ok := s.sessions[sessionID]
	if !ok {
		return domain.Participant{}, errors.ErrSessionNotFound
	}
	p, ok := live.participants[participantID]
	if !ok {
		return domain.Participant{}, errors.ErrParticipantNotFound
	}
	return *p, nil
}

// ClearSelfMute clears IsMuted for a participant-initiated unmute. The
// check runs under the shard lock so it cannot race a concurrent host mute:
// while HostMuted is set, only a host unmute or unmute_all clears the flag.
func (r *Registry) ClearSelfMute(sessionID domain.SessionID, participantID string) (domain.Participant, error) {
	s := r.shardFor(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	live, ok := s.sessions[sessionID]
	if !ok {
		return domain.Participant{}, errors.ErrSessionNotFound
	}
	p, ok := live.participants[participantID]
	if !ok || p.IsKicked {
		return domain.Participant{}, errors.ErrParticipantNotFound
	}
	if p.HostMuted {
		return *p, errors.ErrHostMuted
	}
	p.IsMuted = false
	p.LastSeenAt = r.now()
	return *p, nil
}

// ApplyFlagAll applies the delta to every non-kicked participant and returns
// the affected identifiers. Used by unmute_all.
func (r *Registry) ApplyFlagAll(sessionID domain.SessionID, delta domain.FlagDelta) ([]string, error) {
	s := r.shardFor(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	live, ok := s.sessions[sessionID]
	if !ok {
		return nil, errors.ErrSessionNotFound
	}
	var ids []string
	for id, p := range live.participants {
		if p.IsKicked {
			continue
		}
		delta.Apply(p)
		ids = append(ids, id)
	}
	return ids, nil
}

// Snapshot returns the current roster, kicked tombstones excluded. Clients
// resync from it after a delivery failure.
func (r *Registry) Snapshot(sessionID domain.SessionID) []domain.ParticipantView {
	s := r.shardFor(sessionID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	live, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	var views []domain.ParticipantView
	for _, p := range live.participants {
		if p.IsKicked {
			continue
		}
		views = append(views, p.View())
	}
	return views
}

// Role re-reads the participant's current role. Host actions call this on
// every invocation so stale authority is caught.
func (r *Registry) Role(sessionID domain.SessionID, participantID string) (domain.Role, error) {
	s := r.shardFor(sessionID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	live, ok := s.sessions[sessionID]
	if !ok {
		return "", errors.ErrSessionNotFound
	}
	p, ok := live.participants[participantID]
	if !ok || p.IsKicked {
		return "", errors.ErrParticipantNotFound
	}
	return p.Role, nil
}

// SinksFor returns the connection sinks of every connected participant.
func (r *Registry) SinksFor(sessionID domain.SessionID) []contract.ConnSink {
	s := r.shardFor(sessionID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	live, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	sinks := make([]contract.ConnSink, 0, len(live.sinks))
	for _, sink := range live.sinks {
		sinks = append(sinks, sink)
	}
	return sinks
}

// SinkOf resolves the direct connection of one participant, if connected.
func (r *Registry) SinkOf(sessionID domain.SessionID, participantID string) (contract.ConnSink, bool) {
	s := r.shardFor(sessionID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	live, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	sink, ok := live.sinks[participantID]
	return sink, ok
}

// Retire deactivates and drops the session. Ban tombstones die with it.
func (r *Registry) Retire(sessionID domain.SessionID) {
	s := r.shardFor(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// ActiveSessions lists the session records currently held in memory, for
// the mirror worker.
func (r *Registry) ActiveSessions() []domain.Session {
	var sessions []domain.Session
	for _, s := range r.shards {
		s.mu.RLock()
		for _, live := range s.sessions {
			sessions = append(sessions, live.meta)
		}
		s.mu.RUnlock()
	}
	return sessions
}

// Expired lists sessions past their expiry, for the sweep worker.
func (r *Registry) Expired(now time.Time) []domain.SessionID {
	var ids []domain.SessionID
	for _, s := range r.shards {
		s.mu.RLock()
		for id, live := range s.sessions {
			if live.meta.Expired(now) {
				ids = append(ids, id)
			}
		}
		s.mu.RUnlock()
	}
	return ids
}
