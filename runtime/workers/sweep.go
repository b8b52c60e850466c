package workers

import (
	"context"
	"log/slog"
	"time"

	"sanctuary/domain"
)

// ExpiringRegistry is the slice of the registry the sweep needs.
type ExpiringRegistry interface {
	Expired(now time.Time) []domain.SessionID
	Retire(sessionID domain.SessionID)
}

// SweepWorker retires sessions that idled past their expiry. Retirement
// drops the roster and the ban tombstones with it.
type SweepWorker struct {
	registry ExpiringRegistry
	interval time.Duration
	log      *slog.Logger
}

func NewSweepWorker(registry ExpiringRegistry, interval time.Duration, log *slog.Logger) *SweepWorker {
	return &SweepWorker{registry: registry, interval: interval, log: log}
}

func (w *SweepWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case <-ticker.C:
			now := time.Now().UTC()
			for _, id := range w.registry.Expired(now) {
				w.log.Info("retiring expired session", "session_id", id)
				w.registry.Retire(id)
			}
		}
	}
}
