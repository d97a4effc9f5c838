package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	path := writeTemp(t, "jobspool.yaml", `
logging:
  level: debug
  console: true
scheduler:
  max_concurrent: 3
  poll_interval: 250ms
  run_for: 10s
history:
  driver: sqlite
  path: ./jobspool.db
jobs:
  - name: backup
    command: "tar czf /tmp/backup.tgz /etc"
    priority: 5
  - name: pulse
    command: "true"
    every: "@every 1m"
`)

	mgr := NewManager(path)
	cfg, err := mgr.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if cfg.Scheduler.MaxConcurrent != 3 || cfg.Scheduler.PollInterval != "250ms" {
		t.Fatalf("scheduler = %+v", cfg.Scheduler)
	}
	if cfg.History == nil || cfg.History.Driver != "sqlite" {
		t.Fatalf("history = %+v", cfg.History)
	}
	if len(cfg.Jobs) != 2 || cfg.Jobs[1].Every != "@every 1m" {
		t.Fatalf("jobs = %+v", cfg.Jobs)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if mgr.Get() != cfg {
		t.Fatal("Get did not return the committed config")
	}
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	path := writeTemp(t, "jobspool.json", `{
  "logging": {"level": "info", "console": false, "file": {"enabled": false, "path": ""}},
  "scheduler": {"max_concurrent": 1}
}`)

	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Scheduler.MaxConcurrent != 1 {
		t.Fatalf("scheduler = %+v", cfg.Scheduler)
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	t.Parallel()
	path := writeTemp(t, "jobspool.yaml", `
scheduler:
  max_concurrent: 1
  max_concurent: 2
`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected unknown-field error")
	}
}

func TestValidateRejections(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "zero concurrency",
			cfg:  Config{},
			want: "max_concurrent",
		},
		{
			name: "bad poll interval",
			cfg: Config{Scheduler: SchedulerConfig{
				MaxConcurrent: 1, PollInterval: "soonish",
			}},
			want: "poll_interval",
		},
		{
			name: "job missing command",
			cfg: Config{
				Scheduler: SchedulerConfig{MaxConcurrent: 1},
				Jobs:      []JobConfig{{Name: "a"}},
			},
			want: "command is required",
		},
		{
			name: "duplicate job names",
			cfg: Config{
				Scheduler: SchedulerConfig{MaxConcurrent: 1},
				Jobs: []JobConfig{
					{Name: "a", Command: "true"},
					{Name: "a", Command: "false"},
				},
			},
			want: "duplicate name",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %q, want substring %q", err, tt.want)
			}
		})
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("f", "1500ms"); err != nil || d != 1500*time.Millisecond {
		t.Fatalf("got %v, %v", d, err)
	}
	if d, err := ParseDurationField("f", ""); err != nil || d != 0 {
		t.Fatalf("empty: got %v, %v", d, err)
	}
	if _, err := ParseDurationField("f", "yesterday"); err == nil {
		t.Fatal("expected parse error")
	}
	if d, err := ParseDurationOrDefault("f", "", 2*time.Second); err != nil || d != 2*time.Second {
		t.Fatalf("default: got %v, %v", d, err)
	}
}
