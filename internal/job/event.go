package job

import "time"

type EventType string

const (
	EventSubmitted EventType = "submitted"
	EventStarted   EventType = "started"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventCancelled EventType = "cancelled"
)

// Event records one lifecycle transition for the append-only history log.
// Keep it compact and schema-stable.
type Event struct {
	At       time.Time `json:"at"`
	Job      string    `json:"job"`
	Type     EventType `json:"type"`
	Priority int       `json:"priority,omitempty"`
	PID      int       `json:"pid,omitempty"`
	Outcome  Outcome   `json:"outcome,omitempty"`
	ExitCode int       `json:"exit_code,omitempty"`
	TookMS   int64     `json:"took_ms,omitempty"`
	Error    string    `json:"error,omitempty"`
}
