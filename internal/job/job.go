package job

import "time"

// State is the lifecycle position of a job.
//
// Transitions:
//
//	queued --(admitted, launch ok)--> running --(exit observed)--> completed
//	queued --(launch failure)-------> completed (outcome launch_error)
//	queued --(cancel)---------------> cancelled
//	running --(cancel, kill, exit)--> cancelled
//
// Nothing ever moves a job back to queued.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
)

// Outcome qualifies a completed job.
//
// OutcomeUnknown means the reaper could not determine the real exit status
// (wait failed, handle reclaimed). It is deliberately distinct from both
// succeeded and failed so operators never mistake ambiguity for success.
type Outcome string

const (
	OutcomeSucceeded   Outcome = "succeeded"
	OutcomeFailed      Outcome = "failed"
	OutcomeLaunchError Outcome = "launch_error"
	OutcomeCancelled   Outcome = "cancelled"
	OutcomeUnknown     Outcome = "unknown"
)

// Job is a named unit of work: an opaque command plus a numeric priority
// (higher = more urgent).
type Job struct {
	Name        string    `json:"name"`
	Command     string    `json:"command"`
	Priority    int       `json:"priority"`
	State       State     `json:"state"`
	SubmittedAt time.Time `json:"submitted_at"`
	StartedAt   time.Time `json:"started_at,omitzero"`
	EndedAt     time.Time `json:"ended_at,omitzero"`
	PID         int       `json:"pid,omitempty"`
	LogPath     string    `json:"log_path,omitempty"`
	Outcome     Outcome   `json:"outcome,omitempty"`
	Error       string    `json:"error,omitempty"`
}
