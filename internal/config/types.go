package config

// Config is the on-disk configuration (YAML or JSON; YAML is coerced to
// JSON before strict decoding, so both formats share one schema).
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`

	// History controls the optional persistent lifecycle log.
	// If omitted, only the in-memory history ring is kept.
	History *HistoryConfig `json:"history,omitempty"`

	// API controls the optional HTTP surface (serve mode).
	API APIConfig `json:"api,omitempty"`

	// Events controls the optional NATS lifecycle event publisher.
	Events EventsConfig `json:"events,omitempty"`

	// Jobs are submitted at startup. Entries with an "every" schedule are
	// resubmitted on that schedule while serving instead.
	Jobs []JobConfig `json:"jobs,omitempty"`
}

// SchedulerConfig controls the admission/reap loop.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
//
// Defaults (when fields are omitted/zero):
//   - poll_interval: "1s"
//   - run_for: "0s" (drain immediately after the queue empties)
//   - history_size: 200
//   - history_tail: 50
//   - log_dir: os temp dir
type SchedulerConfig struct {
	// MaxConcurrent caps simultaneously running jobs. Required, positive.
	MaxConcurrent int `json:"max_concurrent"`

	// PollInterval is the sleep between scheduling ticks.
	PollInterval string `json:"poll_interval,omitempty"`

	// RunFor is the nominal run duration in run mode; the loop keeps
	// draining past it and never kills in-flight jobs.
	RunFor string `json:"run_for,omitempty"`

	HistorySize int `json:"history_size,omitempty"`
	HistoryTail int `json:"history_tail,omitempty"`

	// LogDir is where per-job stdout/stderr artifacts land.
	LogDir string `json:"log_dir,omitempty"`

	// LaunchRatePerSec throttles process spawns. 0 disables throttling.
	LaunchRatePerSec int `json:"launch_rate_per_sec,omitempty"`
}

// HistoryConfig controls the persistent lifecycle log.
//
// Example:
//
//	"history": { "driver": "sqlite", "path": "./jobspool.db" }
type HistoryConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:8640"
}

type EventsConfig struct {
	// NatsURL enables lifecycle event publishing when set
	// (e.g. "nats://localhost:4222").
	NatsURL string `json:"nats_url,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// JobConfig declares a job in the config file.
type JobConfig struct {
	Name     string `json:"name"`
	Command  string `json:"command"`
	Priority int    `json:"priority"`

	// Every makes the job recurring: a cron spec, descriptor ("@hourly")
	// or "@every 30s". Empty means submit once at startup.
	Every string `json:"every,omitempty"`
}
