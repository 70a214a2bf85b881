// Package runner supervises converted Python scripts: it stages code under a
// work directory, runs it with line-wise log capture into a bounded ring,
// and exposes status, incremental logs, stop, and cleanup. All methods are
// safe for concurrent use.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNotFound       = errors.New("run not found")
	ErrAlreadyStarted = errors.New("run already started")
	ErrNotRunning     = errors.New("run is not running")
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusSaved     Status = "saved"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusStopped   Status = "stopped"
)

// Finished reports whether the status is terminal.
func (s Status) Finished() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusStopped
}

// RunInfo is a point-in-time snapshot of one run.
type RunInfo struct {
	ID         string        `json:"id"`
	Status     Status        `json:"status"`
	PID        int           `json:"pid,omitempty"`
	ExitCode   int           `json:"exitCode"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Duration   time.Duration `json:"duration"`
	Killed     bool          `json:"killed"`
	KillReason string        `json:"killReason,omitempty"`
}

// Config tunes the runner.
type Config struct {
	// Interpreter to invoke on staged scripts
	Command string

	// Directory holding the scripts/ subdirectory
	WorkDir string

	// Per-run wall clock limit
	Timeout time.Duration

	// Log lines retained per run
	LogBuffer int

	// Cap on total captured output in bytes
	MaxOutput int64
}

// DefaultConfig returns the default runner configuration.
func DefaultConfig() Config {
	return Config{
		Command:   "python3",
		WorkDir:   ".sasbridge/runs",
		Timeout:   10 * time.Minute,
		LogBuffer: 1000,
		MaxOutput: 10 * 1024 * 1024,
	}
}

type run struct {
	mu       sync.Mutex
	id       string
	path     string
	status   Status
	pid      int
	exitCode int
	created  time.Time
	started  time.Time
	finished time.Time
	killed   bool
	reason   string
	stopping bool
	logs     *logRing
	cmd      *exec.Cmd
	cancel   context.CancelFunc
	done     chan struct{}
}

// Runner stages and executes scripts.
type Runner struct {
	config Config
	logger *zap.Logger

	mu   sync.Mutex
	runs map[string]*run
}

// New creates a runner with the default configuration.
func New(logger *zap.Logger) *Runner {
	return NewWithConfig(DefaultConfig(), logger)
}

// NewWithConfig creates a runner. Zero config fields fall back to defaults;
// a nil logger is replaced with a no-op one.
func NewWithConfig(config Config, logger *zap.Logger) *Runner {
	defaults := DefaultConfig()
	if config.Command == "" {
		config.Command = defaults.Command
	}
	if config.WorkDir == "" {
		config.WorkDir = defaults.WorkDir
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.LogBuffer <= 0 {
		config.LogBuffer = defaults.LogBuffer
	}
	if config.MaxOutput <= 0 {
		config.MaxOutput = defaults.MaxOutput
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		config: config,
		logger: logger,
		runs:   map[string]*run{},
	}
}

// Save stages code as a script file and registers a run for it. Returns the
// run ID and the script path.
func (r *Runner) Save(code string) (string, string, error) {
	dir := filepath.Join(r.config.WorkDir, "scripts")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", "", fmt.Errorf("failed to create scripts directory: %w", err)
	}

	id := uuid.New().String()
	path := filepath.Join(dir, id+".py")
	if err := os.WriteFile(path, []byte(code), 0o600); err != nil {
		return "", "", fmt.Errorf("failed to write script: %w", err)
	}

	r.mu.Lock()
	r.runs[id] = &run{
		id:       id,
		path:     path,
		status:   StatusSaved,
		exitCode: -1,
		created:  time.Now(),
		logs:     newLogRing(r.config.LogBuffer, r.config.MaxOutput),
		done:     make(chan struct{}),
	}
	r.mu.Unlock()

	r.logger.Debug("Saved script", zap.String("id", id), zap.String("path", path))
	return id, path, nil
}

// Start launches the interpreter on a saved run. It returns once the process
// has started; capture and supervision continue in the background until the
// process exits, ctx is canceled, or the configured timeout fires.
func (r *Runner) Start(ctx context.Context, id string) error {
	rn, err := r.lookup(id)
	if err != nil {
		return err
	}

	rn.mu.Lock()
	if rn.status != StatusSaved {
		rn.mu.Unlock()
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	cmd := exec.CommandContext(runCtx, r.config.Command, rn.path)
	setProcessGroup(cmd)
	// Cancellation kills the whole process group, not just the interpreter;
	// WaitDelay bounds how long Wait blocks on pipes an orphaned child may
	// still hold open after the interpreter exits.
	cmd.Cancel = func() error {
		killProcessGroup(cmd)
		return cmd.Process.Kill()
	}
	cmd.WaitDelay = 5 * time.Second

	out := newStreamWriter(rn.logs, "stdout")
	errOut := newStreamWriter(rn.logs, "stderr")
	cmd.Stdout = out
	cmd.Stderr = errOut

	if err := cmd.Start(); err != nil {
		rn.status = StatusFailed
		rn.finished = time.Now()
		rn.mu.Unlock()
		cancel()
		close(rn.done)
		return fmt.Errorf("failed to start %s: %w", r.config.Command, err)
	}

	rn.status = StatusRunning
	rn.pid = cmd.Process.Pid
	rn.started = time.Now()
	rn.cmd = cmd
	rn.cancel = cancel
	rn.mu.Unlock()

	r.logger.Info("Run started",
		zap.String("id", id),
		zap.Int("pid", cmd.Process.Pid),
		zap.String("command", r.config.Command))

	go r.supervise(rn, runCtx, cancel, out, errOut)
	return nil
}

// supervise waits for the process and exec's stream copiers, then records
// the terminal state. Wait joins the copiers before returning, so flushing
// the writers here is safe; WaitDelay makes Wait force-close the pipes if
// an orphaned child keeps them open instead of blocking forever.
func (r *Runner) supervise(rn *run, runCtx context.Context, cancel context.CancelFunc, out, errOut *streamWriter) {
	defer cancel()

	waitErr := rn.cmd.Wait()
	out.flush()
	errOut.flush()

	rn.mu.Lock()
	rn.finished = time.Now()
	if ps := rn.cmd.ProcessState; ps != nil {
		rn.exitCode = ps.ExitCode()
	}
	switch {
	case rn.stopping:
		rn.status = StatusStopped
		rn.killed = true
	case runCtx.Err() == context.DeadlineExceeded:
		rn.status = StatusStopped
		rn.killed = true
		rn.reason = fmt.Sprintf("timeout after %s", r.config.Timeout)
	case runCtx.Err() == context.Canceled:
		rn.status = StatusStopped
		rn.killed = true
		rn.reason = "context canceled"
	case waitErr == nil:
		rn.status = StatusCompleted
	case errors.Is(waitErr, exec.ErrWaitDelay):
		// The interpreter exited but something it spawned kept the output
		// pipes open past the grace period. The exit code is still valid.
		if rn.exitCode == 0 {
			rn.status = StatusCompleted
		} else {
			rn.status = StatusFailed
		}
		rn.logs.add("stderr", "runner: "+waitErr.Error())
	default:
		rn.status = StatusFailed
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			rn.logs.add("stderr", "runner: "+waitErr.Error())
		}
	}
	status, exitCode := rn.status, rn.exitCode
	rn.mu.Unlock()

	close(rn.done)
	r.logger.Info("Run finished",
		zap.String("id", rn.id),
		zap.String("status", string(status)),
		zap.Int("exitCode", exitCode))
}

// Logs returns the retained entries with Seq > after, plus the newest
// sequence number for the next poll.
func (r *Runner) Logs(id string, after int) ([]LogEntry, int, error) {
	rn, err := r.lookup(id)
	if err != nil {
		return nil, 0, err
	}
	return rn.logs.since(after), rn.logs.lastSeq(), nil
}

// Status returns a snapshot of the run.
func (r *Runner) Status(id string) (RunInfo, error) {
	rn, err := r.lookup(id)
	if err != nil {
		return RunInfo{}, err
	}

	rn.mu.Lock()
	defer rn.mu.Unlock()
	info := RunInfo{
		ID:         rn.id,
		Status:     rn.status,
		PID:        rn.pid,
		ExitCode:   rn.exitCode,
		StartedAt:  rn.started,
		FinishedAt: rn.finished,
		Killed:     rn.killed,
		KillReason: rn.reason,
	}
	switch {
	case rn.status == StatusRunning:
		info.Duration = time.Since(rn.started)
	case rn.status.Finished() && !rn.started.IsZero():
		info.Duration = rn.finished.Sub(rn.started)
	}
	return info, nil
}

// Stop terminates a running script's process group.
func (r *Runner) Stop(id string) error {
	rn, err := r.lookup(id)
	if err != nil {
		return err
	}

	rn.mu.Lock()
	if rn.status != StatusRunning {
		rn.mu.Unlock()
		return ErrNotRunning
	}
	rn.stopping = true
	rn.reason = "stop requested"
	cancel := rn.cancel
	rn.mu.Unlock()

	r.logger.Info("Stopping run", zap.String("id", id))
	cancel()
	return nil
}

// Done returns a channel closed when the run reaches a terminal state. For
// a run that was saved but never started, the channel never closes.
func (r *Runner) Done(id string) (<-chan struct{}, error) {
	rn, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	return rn.done, nil
}

// Cleanup deletes script files for finished or never-started runs older than
// maxAge and drops their records. Returns the number of runs removed.
func (r *Runner) Cleanup(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, rn := range r.runs {
		rn.mu.Lock()
		var expired bool
		switch {
		case rn.status == StatusSaved:
			expired = rn.created.Before(cutoff)
		case rn.status.Finished():
			expired = rn.finished.Before(cutoff)
		}
		path := rn.path
		rn.mu.Unlock()

		if !expired {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			r.logger.Warn("Failed to remove script", zap.String("path", path), zap.Error(err))
		}
		delete(r.runs, id)
		removed++
	}
	if removed > 0 {
		r.logger.Debug("Cleaned up runs", zap.Int("removed", removed))
	}
	return removed
}

func (r *Runner) lookup(id string) (*run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rn, ok := r.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rn, nil
}
