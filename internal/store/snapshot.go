package store

import (
	"sort"
	"time"

	"jobspool/internal/job"
)

// QueuedJob is the operator view of one pending job.
type QueuedJob struct {
	Name        string    `json:"name"`
	Priority    int       `json:"priority"`
	Command     string    `json:"command"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ActiveJob is the operator view of one running job.
type ActiveJob struct {
	Name      string        `json:"name"`
	PID       int           `json:"pid"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`
	LogPath   string        `json:"log_path,omitempty"`
}

// Snapshot is a consistent, side-effect-free view of all three collections.
type Snapshot struct {
	QueueLen  int         `json:"queue_len"`
	ActiveLen int         `json:"active_len"`
	Queue     []QueuedJob `json:"queue"`
	Active    []ActiveJob `json:"active"`
	History   []job.Event `json:"history"`
}

// Snapshot copies the collections under one lock acquisition, so a reader
// never sees a half-applied tick. The queue is listed in admission order;
// history carries at most tail entries (all retained entries when tail <= 0).
func (s *Store) Snapshot(now time.Time, tail int) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		QueueLen:  len(s.queue),
		ActiveLen: len(s.active),
		Queue:     make([]QueuedJob, 0, len(s.queue)),
		Active:    make([]ActiveJob, 0, len(s.active)),
	}

	queued := make([]*job.Job, 0, len(s.queue))
	for _, j := range s.queue {
		queued = append(queued, j)
	}
	sort.Slice(queued, func(i, k int) bool { return admitBefore(queued[i], queued[k]) })
	for _, j := range queued {
		snap.Queue = append(snap.Queue, QueuedJob{
			Name:        j.Name,
			Priority:    j.Priority,
			Command:     j.Command,
			SubmittedAt: j.SubmittedAt,
		})
	}

	for _, e := range s.active {
		snap.Active = append(snap.Active, ActiveJob{
			Name:      e.job.Name,
			PID:       e.job.PID,
			StartedAt: e.job.StartedAt,
			Elapsed:   now.Sub(e.job.StartedAt),
			LogPath:   e.job.LogPath,
		})
	}
	sort.Slice(snap.Active, func(i, k int) bool {
		a, b := snap.Active[i], snap.Active[k]
		if !a.StartedAt.Equal(b.StartedAt) {
			return a.StartedAt.Before(b.StartedAt)
		}
		return a.Name < b.Name
	})

	if tail <= 0 || tail > len(s.history) {
		tail = len(s.history)
	}
	snap.History = append([]job.Event(nil), s.history[len(s.history)-tail:]...)
	return snap
}
