// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sbnpy/clubsight/internal/session"
)

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron     *cron.Cron
	sessions *session.Store
	period   time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a new job scheduler. period is the session-janitor
// interval.
func NewScheduler(sessions *session.Store, period time.Duration, logger *slog.Logger) *Scheduler {
	// Create cron with seconds disabled (standard 5-field format)
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:     c,
		sessions: sessions,
		period:   period,
		logger:   logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.period), s.reapIdleSessions)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
		slog.Duration("janitor_period", s.period),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow manually triggers the session janitor (for testing/admin).
func (s *Scheduler) RunNow() {
	go s.reapIdleSessions()
}

func (s *Scheduler) reapIdleSessions() {
	reaped := s.sessions.Reap()
	s.logger.Debug("session janitor pass completed",
		slog.Int("reaped", reaped),
		slog.Int("live", s.sessions.Len()),
	)
}
