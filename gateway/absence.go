package gateway

import (
	"sync"
	"time"

	"sanctuary/domain"
)

// AbsenceTimers schedules the true removal of disconnected participants
// after a grace window, so a quick reconnection resumes the same roster
// entry with moderation flags intact.
type AbsenceTimers struct {
	mu     sync.Mutex
	grace  time.Duration
	timers map[string]*time.Timer
}

func NewAbsenceTimers(grace time.Duration) *AbsenceTimers {
	return &AbsenceTimers{grace: grace, timers: make(map[string]*time.Timer)}
}

func key(sessionID domain.SessionID, participantID string) string {
	return string(sessionID) + "|" + participantID
}

// Schedule arms (or re-arms) the removal timer for a disconnected
// participant. expire runs once, after the grace window, unless Cancel is
// called first by a matching reconnection.
func (a *AbsenceTimers) Schedule(sessionID domain.SessionID, participantID string, expire func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	k := key(sessionID, participantID)
	if t, ok := a.timers[k]; ok {
		t.Stop()
	}
	a.timers[k] = time.AfterFunc(a.grace, func() {
		a.mu.Lock()
		delete(a.timers, k)
		a.mu.Unlock()
		expire()
	})
}

// Cancel disarms the timer when the same participant identifier reconnects
// first. Returns true if a pending timer was stopped.
func (a *AbsenceTimers) Cancel(sessionID domain.SessionID, participantID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	k := key(sessionID, participantID)
	t, ok := a.timers[k]
	if !ok {
		return false
	}
	t.Stop()
	delete(a.timers, k)
	return true
}

// StopAll disarms everything, for shutdown.
func (a *AbsenceTimers) StopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for k, t := range a.timers {
		t.Stop()
		delete(a.timers, k)
	}
}
