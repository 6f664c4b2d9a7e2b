package service

import (
	"context"
	"log/slog"
	"time"

	"hoofprint/internal/domain"
	"hoofprint/internal/observability"
)

// SessionSweeper periodically deletes expired sessions. Expired sessions are
// already invisible to readers, so sweeping only reclaims storage.
type SessionSweeper struct {
	sessions domain.SessionRepository
	interval time.Duration
	logger   *slog.Logger
}

func NewSessionSweeper(sessions domain.SessionRepository, interval time.Duration, logger *slog.Logger) *SessionSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionSweeper{
		sessions: sessions,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *SessionSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.SweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce deletes expired sessions and returns how many went. Failures are
// logged and counted; the next tick retries.
func (s *SessionSweeper) SweepOnce(ctx context.Context) int64 {
	n, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			observability.SessionSweepFailuresTotal.Inc()
			s.logger.Error("failed to sweep expired sessions", "error", err)
		}
		return 0
	}
	if n > 0 {
		observability.SessionsSweptTotal.Add(float64(n))
		s.logger.Debug("swept expired sessions", "count", n)
	}
	return n
}
