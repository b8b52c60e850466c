package workers

import (
	"context"
	"log/slog"
	"time"

	"sanctuary/domain"
	"sanctuary/repositories"
)

// RegistryState is the read side of the registry the mirror needs.
type RegistryState interface {
	ActiveSessions() []domain.Session
	Snapshot(sessionID domain.SessionID) []domain.ParticipantView
}

// MirrorWorker periodically copies registry state into the durable store.
// Strictly best-effort and eventually consistent: the in-memory registry
// stays the source of truth for who is live right now.
type MirrorWorker struct {
	registry RegistryState
	sessions repositories.ISessionRepository
	interval time.Duration
	log      *slog.Logger
}

func NewMirrorWorker(registry RegistryState, sessions repositories.ISessionRepository,
	interval time.Duration, log *slog.Logger) *MirrorWorker {
	return &MirrorWorker{registry: registry, sessions: sessions, interval: interval, log: log}
}

func (w *MirrorWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case <-ticker.C:
			w.mirror()
		}
	}
}

func (w *MirrorWorker) mirror() {
	for _, session := range w.registry.ActiveSessions() {
		if err := w.sessions.Upsert(session); err != nil {
			w.log.Warn("session mirror failed", "session_id", session.ID, "error", err)
			continue
		}
		for _, view := range w.registry.Snapshot(session.ID) {
			if err := w.sessions.AppendParticipant(session.ID, view); err != nil {
				w.log.Warn("participant mirror failed",
					"session_id", session.ID,
					"participant_id", view.ID,
					"error", err)
			}
		}
	}
}
