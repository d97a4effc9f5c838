package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"jobspool/internal/job"
)

var (
	// ErrDuplicate rejects a submission whose name is already queued or
	// running. Names of retired jobs may be reused.
	ErrDuplicate = errors.New("job name already queued or running")
	ErrNotFound  = errors.New("no such job")
)

const defaultHistorySize = 200

// Store owns the three scheduler collections: the pending queue, the
// active-job set and the append-only history ring.
//
// The scheduler loop is the only mutator of queue/active during normal
// operation; the mutex exists so external Submit/Cancel callers and
// read-only Snapshot stay safe next to it.
type Store struct {
	mu       sync.Mutex
	queue    map[string]*job.Job
	active   map[string]*activeEntry
	history  []job.Event
	histSize int
}

type activeEntry struct {
	job       *job.Job
	handle    job.Handle
	cancelled bool
}

func New(historySize int) *Store {
	if historySize <= 0 {
		historySize = defaultHistorySize
	}
	return &Store{
		queue:    map[string]*job.Job{},
		active:   map[string]*activeEntry{},
		histSize: historySize,
	}
}

// Submit appends a queued job and its audit event.
func (s *Store) Submit(name, command string, priority int, now time.Time) (job.Event, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return job.Event{}, errors.New("job name is required")
	}
	if strings.TrimSpace(command) == "" {
		return job.Event{}, fmt.Errorf("job %q: command is required", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.queue[name]; ok {
		return job.Event{}, fmt.Errorf("%w: %q", ErrDuplicate, name)
	}
	if _, ok := s.active[name]; ok {
		return job.Event{}, fmt.Errorf("%w: %q", ErrDuplicate, name)
	}

	s.queue[name] = &job.Job{
		Name:        name,
		Command:     command,
		Priority:    priority,
		State:       job.StateQueued,
		SubmittedAt: now,
	}
	ev := job.Event{At: now, Job: name, Type: job.EventSubmitted, Priority: priority}
	s.appendHistoryLocked(ev)
	return ev, nil
}

// LaunchFunc spawns the job's command and returns its process handle plus
// the log artifact path. It runs while the store lock is held so a status
// snapshot can never observe a job missing from both collections.
type LaunchFunc func(j job.Job) (job.Handle, string, error)

// Admission is the outcome of one admission attempt.
type Admission struct {
	Job   job.Job
	Event job.Event
	OK    bool  // launch succeeded, job is now running
	Err   error // launch error when !OK; the job retired as failed
}

// AdmitNext pops the highest-priority queued job and launches it.
// Ties break on earliest submission time, then name, so admission order is
// deterministic for a fixed queue snapshot. Priorities compare numerically;
// they are never stringified.
//
// On launch failure the job retires straight to history as a failed
// completion and never occupies an active slot. The second return is false
// only when the queue is empty.
func (s *Store) AdmitNext(now time.Time, launch LaunchFunc) (Admission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j := s.nextQueuedLocked()
	if j == nil {
		return Admission{}, false
	}
	delete(s.queue, j.Name)

	handle, logPath, err := launch(*j)
	if err != nil {
		j.State = job.StateCompleted
		j.Outcome = job.OutcomeLaunchError
		j.EndedAt = now
		j.Error = err.Error()
		ev := job.Event{
			At:      now,
			Job:     j.Name,
			Type:    job.EventFailed,
			Outcome: job.OutcomeLaunchError,
			Error:   err.Error(),
		}
		s.appendHistoryLocked(ev)
		return Admission{Job: *j, Event: ev, Err: err}, true
	}

	j.State = job.StateRunning
	j.StartedAt = now
	j.PID = handle.PID()
	j.LogPath = logPath
	s.active[j.Name] = &activeEntry{job: j, handle: handle}

	ev := job.Event{At: now, Job: j.Name, Type: job.EventStarted, Priority: j.Priority, PID: j.PID}
	s.appendHistoryLocked(ev)
	return Admission{Job: *j, Event: ev, OK: true}, true
}

func (s *Store) nextQueuedLocked() *job.Job {
	var best *job.Job
	for _, j := range s.queue {
		if best == nil || admitBefore(j, best) {
			best = j
		}
	}
	return best
}

func admitBefore(a, b *job.Job) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.SubmittedAt.Equal(b.SubmittedAt) {
		return a.SubmittedAt.Before(b.SubmittedAt)
	}
	return a.Name < b.Name
}

// ActiveProc pairs an active job name with its joinable handle, for the
// reaper's per-tick scan.
type ActiveProc struct {
	Name   string
	Handle job.Handle
}

func (s *Store) ActiveProcs() []ActiveProc {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ActiveProc, 0, len(s.active))
	for name, e := range s.active {
		out = append(out, ActiveProc{Name: name, Handle: e.handle})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

// Retire moves a terminated job from the active set to history with its
// collected exit result. A cancel-flagged job retires as cancelled no
// matter how the process actually exited.
func (s *Store) Retire(name string, res job.Result, now time.Time) (job.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.active[name]
	if !ok {
		return job.Event{}, false
	}
	delete(s.active, name)

	j := e.job
	ended := res.EndedAt
	if ended.IsZero() {
		ended = now
	}
	j.EndedAt = ended
	j.State = job.StateCompleted
	j.Outcome = res.Outcome()
	if res.Err != nil {
		j.Error = res.Err.Error()
	} else if res.ExitCode != 0 {
		j.Error = fmt.Sprintf("exit status %d", res.ExitCode)
	}

	ev := job.Event{
		At:       ended,
		Job:      name,
		PID:      j.PID,
		ExitCode: res.ExitCode,
		TookMS:   ended.Sub(j.StartedAt).Milliseconds(),
	}
	switch {
	case e.cancelled:
		j.State = job.StateCancelled
		j.Outcome = job.OutcomeCancelled
		ev.Type = job.EventCancelled
		ev.Outcome = job.OutcomeCancelled
	case j.Outcome == job.OutcomeSucceeded:
		ev.Type = job.EventCompleted
		ev.Outcome = job.OutcomeSucceeded
	default:
		ev.Type = job.EventFailed
		ev.Outcome = j.Outcome
		ev.Error = j.Error
	}
	s.appendHistoryLocked(ev)
	return ev, true
}

// CancelResult reports how a cancellation was applied.
type CancelResult struct {
	// Queued is true when the job never started; it has been retired
	// directly and Event holds the history record.
	Queued bool
	Event  job.Event
	// Handle is non-nil when the job was running. The caller kills the
	// process group; the reaper retires the job once the exit is observed.
	Handle job.Handle
}

func (s *Store) Cancel(name string, now time.Time) (CancelResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j, ok := s.queue[name]; ok {
		delete(s.queue, name)
		j.State = job.StateCancelled
		j.Outcome = job.OutcomeCancelled
		j.EndedAt = now
		ev := job.Event{At: now, Job: name, Type: job.EventCancelled, Outcome: job.OutcomeCancelled}
		s.appendHistoryLocked(ev)
		return CancelResult{Queued: true, Event: ev}, nil
	}
	if e, ok := s.active[name]; ok {
		e.cancelled = true
		return CancelResult{Handle: e.handle}, nil
	}
	return CancelResult{}, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// Counts returns the current queue and active-set sizes.
func (s *Store) Counts() (queued, active int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue), len(s.active)
}

func (s *Store) appendHistoryLocked(ev job.Event) {
	s.history = append(s.history, ev)
	if len(s.history) > s.histSize {
		s.history = s.history[len(s.history)-s.histSize:]
	}
}
