package scheduler

import (
	"context"
	"time"

	"jobspool/internal/metrics"
	logx "jobspool/pkg/logx"
)

// tick is one scheduling cycle: reap finished jobs first (freeing
// capacity), then admit queued jobs into the freed slots.
func (s *Service) tick(ctx context.Context) {
	s.ReapOnce(ctx)
	s.admit(ctx)
	queued, active := s.store.Counts()
	metrics.ObserveCounts(queued, active)
}

// Run drives the loop for the nominal duration and then drains: it returns
// only once the duration has elapsed AND the queue and active set are both
// empty. A zero duration still admits and drains everything already queued.
// In-flight jobs are never killed by duration expiry.
//
// Context cancellation aborts the loop early without waiting for drain;
// running processes keep running detached.
func (s *Service) Run(ctx context.Context, duration time.Duration) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	deadline := time.Now().Add(duration)
	s.log.Info("scheduler started",
		logx.Int("max_concurrent", s.cfg.MaxConcurrent),
		logx.Duration("poll_interval", s.cfg.PollInterval),
		logx.Duration("run_for", duration),
	)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		s.tick(ctx)

		queued, active := s.store.Counts()
		if queued == 0 && active == 0 && !time.Now().Before(deadline) {
			s.log.Info("scheduler drained")
			return nil
		}

		select {
		case <-ctx.Done():
			s.log.Warn("scheduler aborted",
				logx.Int("queued", queued),
				logx.Int("active", active),
			)
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Serve ticks until the context is cancelled, without a drain condition.
// This is the long-running mode behind the HTTP API and recurring
// submissions.
func (s *Service) Serve(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	s.log.Info("scheduler serving",
		logx.Int("max_concurrent", s.cfg.MaxConcurrent),
		logx.Duration("poll_interval", s.cfg.PollInterval),
	)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		s.tick(ctx)
		select {
		case <-ctx.Done():
			// Final pass so already-exited jobs make it into history.
			s.ReapOnce(ctx)
			return nil
		case <-ticker.C:
		}
	}
}
