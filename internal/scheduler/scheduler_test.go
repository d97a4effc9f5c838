package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"jobspool/internal/job"
	"jobspool/internal/store"
	logx "jobspool/pkg/logx"
)

// fakeHandle is a controllable stand-in for a child process.
type fakeHandle struct {
	pid  int
	done chan struct{}

	mu  sync.Mutex
	res job.Result

	once sync.Once
}

func (h *fakeHandle) PID() int { return h.pid }

func (h *fakeHandle) Poll() (job.Result, bool) {
	select {
	case <-h.done:
	default:
		return job.Result{}, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.res, true
}

func (h *fakeHandle) Kill() error {
	h.finish(job.Result{ExitCode: -1, EndedAt: time.Now()})
	return nil
}

func (h *fakeHandle) finish(res job.Result) {
	h.once.Do(func() {
		h.mu.Lock()
		h.res = res
		h.mu.Unlock()
		close(h.done)
	})
}

// fakeLauncher hands out fakeHandles. Jobs listed in autoExit terminate
// immediately with that code; others run until the test finishes them.
type fakeLauncher struct {
	mu       sync.Mutex
	autoExit map[string]int
	failErr  map[string]error
	handles  map[string]*fakeHandle
	nextPID  int
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{
		autoExit: map[string]int{},
		failErr:  map[string]error{},
		handles:  map[string]*fakeHandle{},
		nextPID:  1000,
	}
}

func (l *fakeLauncher) Launch(name, command string) (job.Handle, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err, ok := l.failErr[name]; ok {
		return nil, "", err
	}
	l.nextPID++
	h := &fakeHandle{pid: l.nextPID, done: make(chan struct{})}
	l.handles[name] = h
	if code, ok := l.autoExit[name]; ok {
		h.finish(job.Result{ExitCode: code, EndedAt: time.Now()})
	}
	return h, "/dev/null", nil
}

func (l *fakeLauncher) finish(name string, code int) {
	l.mu.Lock()
	h := l.handles[name]
	l.mu.Unlock()
	if h != nil {
		h.finish(job.Result{ExitCode: code, EndedAt: time.Now()})
	}
}

func newTestService(maxConcurrent int, fl *fakeLauncher) *Service {
	st := store.New(0)
	return New(Config{
		MaxConcurrent: maxConcurrent,
		PollInterval:  5 * time.Millisecond,
	}, st, fl, logx.Nop())
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func activeNames(s *Service) map[string]bool {
	out := map[string]bool{}
	for _, a := range s.Snapshot().Active {
		out[a.Name] = true
	}
	return out
}

func completionOrder(s *Service) []string {
	var names []string
	for _, ev := range s.Snapshot().History {
		if ev.Type == job.EventCompleted || ev.Type == job.EventFailed {
			names = append(names, ev.Job)
		}
	}
	return names
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "valid", cfg: Config{MaxConcurrent: 1, PollInterval: time.Second}},
		{name: "zero concurrency", cfg: Config{MaxConcurrent: 0, PollInterval: time.Second}, wantErr: true},
		{name: "negative concurrency", cfg: Config{MaxConcurrent: -2, PollInterval: time.Second}, wantErr: true},
		{name: "zero poll interval", cfg: Config{MaxConcurrent: 1}, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRunRejectsBadConfig(t *testing.T) {
	t.Parallel()
	fl := newFakeLauncher()
	svc := New(Config{MaxConcurrent: 0, PollInterval: time.Second}, store.New(0), fl, logx.Nop())
	if err := svc.Run(context.Background(), 0); err == nil {
		t.Fatal("expected configuration error before first tick")
	}
}

// Higher priority completes first under a single slot, and history records
// the completion order.
func TestPriorityCompletionOrder(t *testing.T) {
	t.Parallel()
	fl := newFakeLauncher()
	svc := newTestService(1, fl)
	ctx := context.Background()

	if err := svc.Submit(ctx, "p1", "sleep 1", 5); err != nil {
		t.Fatalf("submit p1: %v", err)
	}
	if err := svc.Submit(ctx, "p2", "sleep 1", 8); err != nil {
		t.Fatalf("submit p2: %v", err)
	}

	runDone := make(chan error, 1)
	go func() { runDone <- svc.Run(ctx, 0) }()

	waitFor(t, "p2 running", func() bool { return activeNames(svc)["p2"] })
	if activeNames(svc)["p1"] {
		t.Fatal("p1 admitted alongside p2 despite MaxConcurrent=1")
	}
	fl.finish("p2", 0)

	waitFor(t, "p1 running", func() bool { return activeNames(svc)["p1"] })
	fl.finish("p1", 0)

	if err := <-runDone; err != nil {
		t.Fatalf("run: %v", err)
	}
	got := completionOrder(svc)
	if len(got) != 2 || got[0] != "p2" || got[1] != "p1" {
		t.Fatalf("completion order = %v, want [p2 p1]", got)
	}
}

// One tick fills both slots with the two highest priorities; the third job
// waits for a free slot. |ActiveSet| never exceeds the cap.
func TestAdmissionFillsCapacity(t *testing.T) {
	t.Parallel()
	fl := newFakeLauncher()
	svc := newTestService(2, fl)
	ctx := context.Background()

	for _, j := range []struct {
		name string
		prio int
	}{{"low", 1}, {"mid", 2}, {"high", 3}} {
		if err := svc.Submit(ctx, j.name, "sleep 1", j.prio); err != nil {
			t.Fatalf("submit %s: %v", j.name, err)
		}
	}

	svc.tick(ctx)

	snap := svc.Snapshot()
	if snap.ActiveLen != 2 {
		t.Fatalf("active = %d, want 2", snap.ActiveLen)
	}
	active := activeNames(svc)
	if !active["high"] || !active["mid"] {
		t.Fatalf("active set = %v, want high+mid", active)
	}
	if snap.QueueLen != 1 || snap.Queue[0].Name != "low" {
		t.Fatalf("queue = %+v, want [low]", snap.Queue)
	}

	fl.finish("high", 0)
	svc.tick(ctx)

	snap = svc.Snapshot()
	if snap.ActiveLen > 2 {
		t.Fatalf("capacity invariant violated: active = %d", snap.ActiveLen)
	}
	if !activeNames(svc)["low"] {
		t.Fatal("low not admitted after slot freed")
	}
}

// A launch failure retires the job as failed and the controller moves on to
// the next candidate within the same tick.
func TestLaunchFailureIsolated(t *testing.T) {
	t.Parallel()
	fl := newFakeLauncher()
	fl.failErr["bad"] = errors.New("exec: not found")
	svc := newTestService(1, fl)
	ctx := context.Background()

	if err := svc.Submit(ctx, "bad", "/nonexistent", 9); err != nil {
		t.Fatalf("submit bad: %v", err)
	}
	if err := svc.Submit(ctx, "good", "sleep 1", 5); err != nil {
		t.Fatalf("submit good: %v", err)
	}

	svc.tick(ctx)

	snap := svc.Snapshot()
	if !activeNames(svc)["good"] {
		t.Fatal("good not admitted in the same tick")
	}
	var badFailed bool
	for _, ev := range snap.History {
		if ev.Job == "bad" && ev.Type == job.EventFailed && ev.Outcome == job.OutcomeLaunchError {
			badFailed = true
		}
	}
	if !badFailed {
		t.Fatalf("no launch failure recorded for bad: %+v", snap.History)
	}
}

// run(0, ...) with a non-empty queue still admits and drains everything.
func TestZeroDurationStillDrains(t *testing.T) {
	t.Parallel()
	fl := newFakeLauncher()
	svc := newTestService(2, fl)
	ctx := context.Background()

	for i, name := range []string{"a", "b", "c"} {
		fl.autoExit[name] = 0
		if err := svc.Submit(ctx, name, "true", i); err != nil {
			t.Fatalf("submit %s: %v", name, err)
		}
	}

	start := time.Now()
	if err := svc.Run(ctx, 0); err != nil {
		t.Fatalf("run: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("drain took %s", elapsed)
	}

	snap := svc.Snapshot()
	if snap.QueueLen != 0 || snap.ActiveLen != 0 {
		t.Fatalf("not drained: %d/%d", snap.QueueLen, snap.ActiveLen)
	}
	if got := completionOrder(svc); len(got) != 3 {
		t.Fatalf("completions = %v, want 3", got)
	}
}

// The loop keeps ticking for the nominal duration even with nothing to do.
func TestRunHonorsDuration(t *testing.T) {
	t.Parallel()
	fl := newFakeLauncher()
	svc := newTestService(1, fl)

	start := time.Now()
	if err := svc.Run(context.Background(), 100*time.Millisecond); err != nil {
		t.Fatalf("run: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Fatalf("returned after %s, want >= 100ms", elapsed)
	}
}

func TestReapOnceDoesNotAdmit(t *testing.T) {
	t.Parallel()
	fl := newFakeLauncher()
	svc := newTestService(1, fl)
	ctx := context.Background()

	if err := svc.Submit(ctx, "first", "sleep 1", 2); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := svc.Submit(ctx, "second", "sleep 1", 1); err != nil {
		t.Fatalf("submit: %v", err)
	}
	svc.tick(ctx)
	fl.finish("first", 0)

	if n := svc.ReapOnce(ctx); n != 1 {
		t.Fatalf("reaped = %d, want 1", n)
	}
	snap := svc.Snapshot()
	if snap.ActiveLen != 0 {
		t.Fatalf("active = %d after reap", snap.ActiveLen)
	}
	// Reap alone never admits; second stays queued until the next tick.
	if snap.QueueLen != 1 {
		t.Fatalf("queue = %d, want 1", snap.QueueLen)
	}
}

func TestCancelRunningJob(t *testing.T) {
	t.Parallel()
	fl := newFakeLauncher()
	svc := newTestService(1, fl)
	ctx := context.Background()

	if err := svc.Submit(ctx, "victim", "sleep 60", 1); err != nil {
		t.Fatalf("submit: %v", err)
	}
	svc.tick(ctx)
	waitFor(t, "victim running", func() bool { return activeNames(svc)["victim"] })

	if err := svc.Cancel(ctx, "victim"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	svc.tick(ctx)

	snap := svc.Snapshot()
	if snap.ActiveLen != 0 {
		t.Fatal("victim still active after cancel + reap")
	}
	var cancelled bool
	for _, ev := range snap.History {
		if ev.Job == "victim" && ev.Type == job.EventCancelled {
			cancelled = true
		}
	}
	if !cancelled {
		t.Fatalf("no cancelled event: %+v", snap.History)
	}
}

func TestCancelUnknownJob(t *testing.T) {
	t.Parallel()
	fl := newFakeLauncher()
	svc := newTestService(1, fl)
	if err := svc.Cancel(context.Background(), "nobody"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecurringInvalidSchedule(t *testing.T) {
	t.Parallel()
	fl := newFakeLauncher()
	svc := newTestService(1, fl)
	_, err := svc.StartRecurring(context.Background(), []Template{
		{Name: "broken", Command: "true", Schedule: "not a schedule"},
	})
	if err == nil {
		t.Fatal("expected schedule parse error")
	}
}

func TestRecurringResubmits(t *testing.T) {
	t.Parallel()
	fl := newFakeLauncher()
	fl.autoExit["pulse"] = 0
	svc := newTestService(1, fl)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop, err := svc.StartRecurring(ctx, []Template{
		{Name: "pulse", Command: "true", Priority: 1, Schedule: "@every 25ms"},
	})
	if err != nil {
		t.Fatalf("start recurring: %v", err)
	}
	defer stop()

	waitFor(t, "recurring submission", func() bool {
		for _, ev := range svc.Snapshot().History {
			if ev.Job == "pulse" && ev.Type == job.EventSubmitted {
				return true
			}
		}
		return false
	})
}
