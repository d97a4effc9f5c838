package history

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"jobspool/internal/job"
	logx "jobspool/pkg/logx"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS job_events (
    id        BIGSERIAL PRIMARY KEY,
    at        TIMESTAMPTZ NOT NULL,
    job       TEXT NOT NULL,
    type      TEXT NOT NULL,
    priority  INTEGER NOT NULL DEFAULT 0,
    pid       INTEGER NOT NULL DEFAULT 0,
    outcome   TEXT,
    exit_code INTEGER NOT NULL DEFAULT 0,
    took_ms   BIGINT NOT NULL DEFAULT 0,
    err       TEXT
);
CREATE INDEX IF NOT EXISTS idx_job_events_job ON job_events(job);
`

type postgresSink struct {
	db  *sql.DB
	log logx.Logger
}

func openPostgres(cfg Config, log logx.Logger) (Sink, error) {
	dsn := strings.TrimSpace(cfg.Path)
	if dsn == "" {
		return nil, errors.New("history.path must hold the DSN for postgres driver")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &postgresSink{db: db, log: log}, nil
}

func (s *postgresSink) Append(ctx context.Context, ev job.Event) error {
	if s == nil || s.db == nil {
		return errors.New("history sink closed")
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_events (at, job, type, priority, pid, outcome, exit_code, took_ms, err)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ev.At, ev.Job, string(ev.Type), ev.Priority, ev.PID,
		nullStr(string(ev.Outcome)), ev.ExitCode, ev.TookMS, nullStr(ev.Error),
	)
	return err
}

func (s *postgresSink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
