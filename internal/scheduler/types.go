package scheduler

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"jobspool/internal/events"
	"jobspool/internal/history"
	"jobspool/internal/job"
	"jobspool/internal/store"
	logx "jobspool/pkg/logx"
)

// Config controls the scheduler loop.
type Config struct {
	// MaxConcurrent caps the number of simultaneously running jobs.
	MaxConcurrent int
	// PollInterval is the sleep between ticks; each tick reaps first, then
	// admits.
	PollInterval time.Duration
	// HistorySize bounds the in-memory history ring (default 200).
	HistorySize int
	// HistoryTail is how many trailing history events a status snapshot
	// carries (default 50).
	HistoryTail int
	// LaunchRatePerSec throttles process spawns across ticks. 0 disables
	// throttling.
	LaunchRatePerSec int
}

// Validate rejects configurations the loop must never start with.
func (c Config) Validate() error {
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("scheduler: max_concurrent must be positive, got %d", c.MaxConcurrent)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("scheduler: poll_interval must be positive, got %s", c.PollInterval)
	}
	return nil
}

// Launcher spawns a job's command without blocking on its completion.
// launcher.Launcher is the real implementation; tests substitute fakes.
type Launcher interface {
	Launch(name, command string) (job.Handle, string, error)
}

// Service ties the store, launcher, reaper and admission controller
// together. The tick loop is the sole mutator of the store's queue and
// active set; Submit and Cancel only append or flag through store methods
// that are safe next to it.
type Service struct {
	cfg      Config
	log      logx.Logger
	store    *store.Store
	launcher Launcher

	sink    history.Sink // nil when persistence is disabled
	pub     events.Publisher
	limiter *rate.Limiter // nil when unthrottled
}

func New(cfg Config, st *store.Store, l Launcher, log logx.Logger) *Service {
	if cfg.HistoryTail <= 0 {
		cfg.HistoryTail = 50
	}
	s := &Service{
		cfg:      cfg,
		log:      log,
		store:    st,
		launcher: l,
		pub:      events.Nop{},
	}
	if cfg.LaunchRatePerSec > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.LaunchRatePerSec), cfg.LaunchRatePerSec)
	}
	return s
}

// SetHistorySink attaches an optional persistent lifecycle log.
func (s *Service) SetHistorySink(sink history.Sink) { s.sink = sink }

// SetPublisher attaches an optional lifecycle event publisher.
func (s *Service) SetPublisher(pub events.Publisher) {
	if pub != nil {
		s.pub = pub
	}
}
