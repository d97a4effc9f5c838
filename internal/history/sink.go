package history

import (
	"context"
	"errors"
	"strings"
	"time"

	"jobspool/internal/job"
	logx "jobspool/pkg/logx"
)

// Sink is the minimal persistence API for lifecycle events. Entries are
// never updated or deleted once appended.
type Sink interface {
	Append(ctx context.Context, ev job.Event) error
	Close() error
}

// Config configures history persistence.
//
// Driver values:
//   - "file": dependency-free jsonl backend
//   - "sqlite": SQLite database file
//   - "postgres": PostgreSQL (Path holds the DSN)
//
// If Driver is empty or "none", persistence is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Open initializes the configured sink.
// It returns (nil, nil) if persistence is disabled.
func Open(cfg Config, log logx.Logger) (Sink, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "postgres", "postgresql":
		return openPostgres(cfg, log)
	default:
		return nil, errors.New("unknown history driver: " + driver)
	}
}
