package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"jobspool/internal/store"
	logx "jobspool/pkg/logx"
)

// Template declares a job that is resubmitted on a schedule while the
// scheduler serves.
type Template struct {
	Name     string
	Command  string
	Priority int
	// Schedule is a cron spec (5 or 6 fields), a descriptor like
	// "@hourly", or "@every 30s".
	Schedule string
}

// StartRecurring registers the templates with a cron runner and starts it.
// A firing whose previous submission is still queued or running is skipped,
// so recurring jobs never pile up behind a slow run.
//
// The returned stop function blocks until in-flight submissions finish.
func (s *Service) StartRecurring(ctx context.Context, defs []Template) (stop func(), err error) {
	// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser))

	for _, d := range defs {
		d := d
		if strings.TrimSpace(d.Name) == "" {
			return nil, errors.New("recurring job: name is required")
		}
		if strings.TrimSpace(d.Schedule) == "" {
			return nil, fmt.Errorf("recurring job %q: schedule is required", d.Name)
		}
		if _, err := c.AddFunc(d.Schedule, func() {
			err := s.Submit(ctx, d.Name, d.Command, d.Priority)
			if errors.Is(err, store.ErrDuplicate) {
				s.log.Debug("recurring submission skipped; previous run still pending",
					logx.String("job", d.Name))
				return
			}
			if err != nil {
				s.log.Warn("recurring submission failed",
					logx.String("job", d.Name), logx.Err(err))
			}
		}); err != nil {
			return nil, fmt.Errorf("recurring job %q: invalid schedule %q: %w", d.Name, d.Schedule, err)
		}
	}

	c.Start()
	s.log.Info("recurring submissions started", logx.Int("templates", len(defs)))
	return func() { <-c.Stop().Done() }, nil
}
