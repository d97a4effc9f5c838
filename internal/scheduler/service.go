package scheduler

import (
	"context"
	"time"

	"jobspool/internal/job"
	"jobspool/internal/metrics"
	"jobspool/internal/store"
	logx "jobspool/pkg/logx"
)

// Submit enqueues a job. Duplicate names (still queued or running) are
// rejected; names of retired jobs may be reused.
func (s *Service) Submit(ctx context.Context, name, command string, priority int) error {
	ev, err := s.store.Submit(name, command, priority, time.Now())
	if err != nil {
		return err
	}
	metrics.Submitted.Inc()
	s.record(ctx, ev)
	s.log.Info("job submitted",
		logx.String("job", name),
		logx.Int("priority", priority),
	)
	return nil
}

// Cancel retires a queued job directly, or kills a running job's process
// group and lets the reaper retire it with a cancelled outcome.
func (s *Service) Cancel(ctx context.Context, name string) error {
	res, err := s.store.Cancel(name, time.Now())
	if err != nil {
		return err
	}
	if res.Queued {
		metrics.Completed.WithLabelValues(string(job.OutcomeCancelled)).Inc()
		s.record(ctx, res.Event)
		s.log.Info("queued job cancelled", logx.String("job", name))
		return nil
	}
	if err := res.Handle.Kill(); err != nil {
		// Process may have exited between the flag and the kill; the next
		// reap pass settles it either way.
		s.log.Warn("cancel kill failed", logx.String("job", name), logx.Err(err))
	} else {
		s.log.Info("running job cancelled", logx.String("job", name), logx.Int("pid", res.Handle.PID()))
	}
	return nil
}

// ReapOnce performs a single reap pass without admission: every active job
// whose process has terminated is retired to history with its real exit
// status. Exposed for out-of-band invocation; the tick loop calls it too.
func (s *Service) ReapOnce(ctx context.Context) int {
	reaped := 0
	for _, ap := range s.store.ActiveProcs() {
		res, done := ap.Handle.Poll()
		if !done {
			continue
		}
		ev, ok := s.store.Retire(ap.Name, res, time.Now())
		if !ok {
			continue
		}
		reaped++
		metrics.Completed.WithLabelValues(string(ev.Outcome)).Inc()
		s.record(ctx, ev)

		switch ev.Outcome {
		case job.OutcomeSucceeded:
			s.log.Info("job completed",
				logx.String("job", ap.Name),
				logx.Int64("took_ms", ev.TookMS),
			)
		case job.OutcomeCancelled:
			s.log.Info("job cancelled",
				logx.String("job", ap.Name),
				logx.Int64("took_ms", ev.TookMS),
			)
		case job.OutcomeUnknown:
			s.log.Warn("job exit status unknown",
				logx.String("job", ap.Name),
				logx.String("err", ev.Error),
			)
		default:
			s.log.Warn("job failed",
				logx.String("job", ap.Name),
				logx.Int("exit_code", ev.ExitCode),
				logx.Int64("took_ms", ev.TookMS),
			)
		}
	}
	return reaped
}

// admit fills free capacity from the queue, highest priority first.
// A launch failure retires that job and moves on to the next candidate
// within the same tick.
func (s *Service) admit(ctx context.Context) {
	for {
		queued, active := s.store.Counts()
		if queued == 0 || active >= s.cfg.MaxConcurrent {
			return
		}
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
		}
		adm, ok := s.store.AdmitNext(time.Now(), func(j job.Job) (job.Handle, string, error) {
			return s.launcher.Launch(j.Name, j.Command)
		})
		if !ok {
			return
		}
		if adm.OK {
			s.log.Info("job admitted",
				logx.String("job", adm.Job.Name),
				logx.Int("priority", adm.Job.Priority),
				logx.Int("pid", adm.Job.PID),
			)
		} else {
			metrics.LaunchFailures.Inc()
			metrics.Completed.WithLabelValues(string(job.OutcomeLaunchError)).Inc()
			s.log.Warn("job launch failed",
				logx.String("job", adm.Job.Name),
				logx.Err(adm.Err),
			)
		}
		s.record(ctx, adm.Event)
	}
}

// Snapshot returns the operator status view. Safe at any time, including
// mid-run; it never mutates the collections.
func (s *Service) Snapshot() store.Snapshot {
	snap := s.store.Snapshot(time.Now(), s.cfg.HistoryTail)
	return snap
}

// record forwards a history event to the persistent sink and the event
// publisher. Both are best-effort: failures are logged, never propagated.
func (s *Service) record(ctx context.Context, ev job.Event) {
	if s.sink != nil {
		sctx, cancel := context.WithTimeout(withoutCancel(ctx), 2*time.Second)
		if err := s.sink.Append(sctx, ev); err != nil {
			s.log.Warn("history append failed", logx.String("job", ev.Job), logx.Err(err))
		}
		cancel()
	}
	if err := s.pub.Publish(ev); err != nil {
		s.log.Debug("event publish failed", logx.String("job", ev.Job), logx.Err(err))
	}
}

// withoutCancel keeps history writes alive during shutdown: a drained run's
// final completions must still reach the sink even if the caller's context
// was already cancelled.
func withoutCancel(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}
