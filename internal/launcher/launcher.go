// Package launcher spawns job commands as detached OS processes.
//
// Launching is fire-and-forget with respect to completion: Launch returns a
// joinable Handle immediately and a background goroutine collects the real
// exit status, so the reaper never has to probe pids for liveness.
package launcher

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"jobspool/internal/job"
	logx "jobspool/pkg/logx"
)

// Error reports a failure to create the process at all (missing executable,
// permission denied, unwritable log dir). The job never ran.
type Error struct {
	Job string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("launch %q: %v", e.Job, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

type Launcher struct {
	logDir string
	log    logx.Logger
}

func New(logDir string, log logx.Logger) *Launcher {
	if strings.TrimSpace(logDir) == "" {
		logDir = os.TempDir()
	}
	return &Launcher{logDir: logDir, log: log}
}

// Launch starts the job's command in its own process group with
// stdout/stderr redirected to a per-job log artifact. It does not wait for
// completion. The returned path points at the log artifact.
func (l *Launcher) Launch(name, command string) (job.Handle, string, error) {
	if err := os.MkdirAll(l.logDir, 0o755); err != nil {
		return nil, "", &Error{Job: name, Err: err}
	}
	logPath := filepath.Join(l.logDir, fmt.Sprintf("%s-%d.log", sanitizeName(name), time.Now().UnixNano()))
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, "", &Error{Job: name, Err: err}
	}

	cmd := buildCmd(command)
	cmd.Stdout = f
	cmd.Stderr = f
	// Own process group so Kill can take down the whole command tree.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		_ = f.Close()
		_ = os.Remove(logPath)
		return nil, "", &Error{Job: name, Err: err}
	}

	h := &Handle{pid: cmd.Process.Pid, done: make(chan struct{})}
	go h.wait(cmd, f)

	l.log.Debug("process launched",
		logx.String("job", name),
		logx.Int("pid", h.pid),
		logx.String("log", logPath),
	)
	return h, logPath, nil
}

// buildCmd runs the command through the shell only when it actually needs
// one. Plain argv commands exec directly, so a missing executable surfaces
// as a launch error instead of a shell exiting 127.
func buildCmd(command string) *exec.Cmd {
	if strings.ContainsAny(command, "|&;<>()$`\\\"'*?[]{}~\n") {
		return exec.Command("/bin/sh", "-c", command)
	}
	argv := strings.Fields(command)
	return exec.Command(argv[0], argv[1:]...)
}

func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

// Handle implements job.Handle for a real child process.
type Handle struct {
	pid  int
	done chan struct{}

	mu  sync.Mutex
	res job.Result
}

func (h *Handle) PID() int { return h.pid }

// Poll reads the collected exit result without blocking.
func (h *Handle) Poll() (job.Result, bool) {
	select {
	case <-h.done:
	default:
		return job.Result{}, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.res, true
}

// Kill sends SIGKILL to the job's process group.
func (h *Handle) Kill() error {
	return syscall.Kill(-h.pid, syscall.SIGKILL)
}

func (h *Handle) wait(cmd *exec.Cmd, logFile *os.File) {
	err := cmd.Wait()
	_ = logFile.Close()

	res := job.Result{EndedAt: time.Now()}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.ExitCode = 0
	case errors.As(err, &exitErr):
		// Real exit code; -1 when the process died from a signal.
		res.ExitCode = exitErr.ExitCode()
	default:
		// Wait itself failed: status is genuinely unknown.
		res.ExitCode = -1
		res.Err = err
	}

	h.mu.Lock()
	h.res = res
	h.mu.Unlock()
	close(h.done)
}
