package action

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"
)

const (
	// outputLimit caps how much stdout/stderr is kept per invocation.
	outputLimit = 64 * 1024

	// waitDelay bounds how long Wait keeps reading output after a timed-out
	// command was killed (grandchildren may still hold the pipes).
	waitDelay = 5 * time.Second
)

// Config holds configuration for the recovery command.
type Config struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Binary is the path to the executable, or a name resolved through PATH.
	Binary string

	// Args are fixed command-line arguments.
	Args []string

	// Async runs each invocation on its own goroutine.
	Async bool

	// Timeout kills the command after this long. 0 means no limit.
	Timeout time.Duration
}

// Logger defines the logging interface for the runner.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder receives the outcome of every invocation.
type Recorder interface {
	RecordAction(o Outcome)
}

// Outcome is the result of one invocation.
type Outcome struct {
	Reason   string
	Stdout   string
	Stderr   string
	ExitCode int // -1 if the command never started or was killed
	Started  time.Time
	Duration time.Duration
	Err      error // *LaunchError, *ExecutionError or nil
}

// Success reports whether the command ran and exited with code 0.
func (o Outcome) Success() bool {
	return o.Err == nil
}

// Runner runs the recovery command. It never panics or exits on command
// failure; every outcome is logged and the caller carries on.
type Runner struct {
	config   Config
	logger   Logger
	recorder Recorder

	wg       sync.WaitGroup
	runs     atomic.Int64
	failures atomic.Int64
	inFlight atomic.Int64
}

// NewRunner creates a runner for the given command.
func NewRunner(cfg Config) *Runner {
	if cfg.Name == "" {
		cfg.Name = cfg.Binary
	}

	return &Runner{
		config: cfg,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the runner.
func (r *Runner) SetLogger(logger Logger) {
	r.logger = logger
}

// SetRecorder sets an optional sink for invocation outcomes.
func (r *Runner) SetRecorder(recorder Recorder) {
	r.recorder = recorder
}

// Dispatch runs the command once for one firing.
//
// In async mode the invocation gets its own goroutine and Dispatch returns
// immediately; concurrent firings are each run, never queued or merged.
// Otherwise the command runs inline and Dispatch blocks until it exits.
func (r *Runner) Dispatch(ctx context.Context, reason string) {
	if !r.config.Async {
		r.Invoke(ctx, reason)
		return
	}

	r.wg.Add(1)
	r.inFlight.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.inFlight.Add(-1)
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("action panic recovered",
					"name", r.config.Name,
					"panic", rec,
				)
			}
		}()

		r.Invoke(ctx, reason)
	}()
}

// Invoke runs the command synchronously and reports its outcome.
//
// The command is detached from ctx cancellation: shutting the watcher down
// does not kill a recovery that is already under way. Only the configured
// Timeout does.
func (r *Runner) Invoke(ctx context.Context, reason string) Outcome {
	ctx = context.WithoutCancel(ctx)
	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	r.runs.Add(1)
	outcome := Outcome{
		Reason:   reason,
		ExitCode: -1,
		Started:  time.Now(),
	}

	r.logger.Info("starting action",
		"name", r.config.Name,
		"binary", r.config.Binary,
		"args", r.config.Args,
		"reason", reason,
	)

	cmd := exec.CommandContext(ctx, r.config.Binary, r.config.Args...) //nolint:gosec // Binary and args come from config, never from message payloads

	stdout := &limitedBuffer{limit: outputLimit}
	stderr := &limitedBuffer{limit: outputLimit}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if r.config.Timeout > 0 {
		cmd.WaitDelay = waitDelay
	}

	if err := cmd.Start(); err != nil {
		outcome.Duration = time.Since(outcome.Started)
		outcome.Err = &LaunchError{Binary: r.config.Binary, Err: err}
		r.failures.Add(1)

		r.logger.Error("action failed to start",
			"name", r.config.Name,
			"exit_code", outcome.ExitCode,
			"error", outcome.Err,
		)
		r.record(outcome)
		return outcome
	}

	waitErr := cmd.Wait()

	outcome.Duration = time.Since(outcome.Started)
	outcome.Stdout = stdout.String()
	outcome.Stderr = stderr.String()
	if cmd.ProcessState != nil {
		outcome.ExitCode = cmd.ProcessState.ExitCode()
	}

	if waitErr != nil {
		if ctx.Err() != nil {
			waitErr = fmt.Errorf("%w (%w)", waitErr, ctx.Err())
		}
		outcome.Err = &ExecutionError{
			Binary:   r.config.Binary,
			ExitCode: outcome.ExitCode,
			Stderr:   outcome.Stderr,
			Err:      waitErr,
		}
		r.failures.Add(1)

		r.logger.Error("action failed",
			"name", r.config.Name,
			"exit_code", outcome.ExitCode,
			"duration", outcome.Duration,
			"stdout", strings.TrimSpace(outcome.Stdout),
			"stderr", strings.TrimSpace(outcome.Stderr),
			"error", waitErr,
		)
		r.record(outcome)
		return outcome
	}

	r.logger.Info("action finished",
		"name", r.config.Name,
		"exit_code", outcome.ExitCode,
		"duration", outcome.Duration,
		"stdout", strings.TrimSpace(outcome.Stdout),
	)
	r.record(outcome)
	return outcome
}

func (r *Runner) record(o Outcome) {
	if r.recorder != nil {
		r.recorder.RecordAction(o)
	}
}

// Wait blocks until all asynchronous invocations have finished or ctx is done.
// Commands still running when ctx expires are left alone.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %d running action(s): %w", r.inFlight.Load(), ctx.Err())
	}
}

// Runs returns the number of invocations attempted.
func (r *Runner) Runs() int64 {
	return r.runs.Load()
}

// Failures returns the number of invocations that failed to launch or exited non-zero.
func (r *Runner) Failures() int64 {
	return r.failures.Load()
}

// InFlight returns the number of asynchronous invocations still running.
func (r *Runner) InFlight() int64 {
	return r.inFlight.Load()
}

// limitedBuffer keeps the first limit bytes written and discards the rest.
// exec.Cmd writes to it from a single copying goroutine per stream.
type limitedBuffer struct {
	buf       []byte
	limit     int
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - len(b.buf); room > 0 {
		if len(p) > room {
			// Cut on a rune boundary so the kept text stays valid UTF-8
			for room > 0 && !utf8.RuneStart(p[room]) {
				room--
			}
			b.buf = append(b.buf, p[:room]...)
			b.limit = len(b.buf)
			b.truncated = true
		} else {
			b.buf = append(b.buf, p...)
		}
	} else if len(p) > 0 {
		b.truncated = true
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	if b.truncated {
		return string(b.buf) + "…[truncated]"
	}
	return string(b.buf)
}
