package job

import "time"

// Result is the collected termination status of a job's process.
type Result struct {
	// ExitCode is the real exit code of the child. -1 when the process was
	// terminated by a signal.
	ExitCode int
	// Err is set when the status could not be collected at all;
	// ExitCode is meaningless then.
	Err     error
	EndedAt time.Time
}

// Outcome maps a result onto the job outcome taxonomy.
func (r Result) Outcome() Outcome {
	switch {
	case r.Err != nil:
		return OutcomeUnknown
	case r.ExitCode == 0:
		return OutcomeSucceeded
	default:
		return OutcomeFailed
	}
}

// Handle is a joinable reference to a launched process.
//
// The launcher keeps a goroutine wait()ing on the child, so Poll never has
// to probe the OS for "does this pid still exist" — it reads the already
// collected exit status.
type Handle interface {
	PID() int
	// Poll reports the termination result without blocking.
	// ok is false while the process is still running.
	Poll() (res Result, ok bool)
	// Kill terminates the job's whole process group.
	Kill() error
}
