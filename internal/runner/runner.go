// Package runner executes the diagnostic commands used by the collectors.
//
// Commands are always given as an argument vector and never pass through a
// shell. A command that cannot be started, exits non-zero or times out is
// reported as NotAvailable instead of failing the caller.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/breeze-rmm/host-inventory/internal/logging"
)

// NotAvailable is substituted for the output of any command that failed.
const NotAvailable = "N/A"

const (
	// DefaultTimeout bounds a single command invocation.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxOutput is the maximum amount of combined output captured.
	DefaultMaxOutput = 4 * 1024 * 1024 // 4MB
)

// Command is a program plus its arguments.
type Command struct {
	Name string
	Args []string
}

// Cmd builds a Command.
func Cmd(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// String renders the command line for logs.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	for _, p := range append([]string{c.Name}, c.Args...) {
		if p == "" || strings.ContainsAny(p, " \t\n\"'\\") {
			p = strconv.Quote(p)
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, " ")
}

// Runner runs a command and returns its trimmed output, or NotAvailable.
type Runner interface {
	Run(ctx context.Context, cmd Command) string
}

// ExecError describes a command that did not complete successfully.
type ExecError struct {
	Command  Command
	ExitCode int // -1 when the process never produced an exit status
	Output   string
	Err      error
}

func (e *ExecError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("command failed: %s: exit status %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("command failed: %s: %v", e.Command, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// ErrTimeout is wrapped by an ExecError when a command exceeded its timeout.
var ErrTimeout = errors.New("command timed out")

// ExecRunner runs commands on the local host.
type ExecRunner struct {
	log       *slog.Logger
	timeout   time.Duration
	maxOutput int
}

// Option configures an ExecRunner.
type Option func(*ExecRunner)

// WithTimeout sets the per-command timeout. Zero or less disables it.
func WithTimeout(d time.Duration) Option {
	return func(r *ExecRunner) {
		r.timeout = d
	}
}

// WithMaxOutput caps captured output at n bytes.
func WithMaxOutput(n int) Option {
	return func(r *ExecRunner) {
		if n > 0 {
			r.maxOutput = n
		}
	}
}

// New creates an ExecRunner that logs through log.
func New(log *slog.Logger, opts ...Option) *ExecRunner {
	if log == nil {
		log = logging.Discard().Logger
	}
	r := &ExecRunner{
		log:       log,
		timeout:   DefaultTimeout,
		maxOutput: DefaultMaxOutput,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes cmd and returns its trimmed combined output. Any failure is
// logged and NotAvailable is returned.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) string {
	r.log.Info("running command", logging.KeyCommand, cmd.String())

	start := time.Now()
	out, err := r.Exec(ctx, cmd)
	if err != nil {
		attrs := []any{logging.KeyCommand, cmd.String(), logging.KeyError, err}
		var execErr *ExecError
		if errors.As(err, &execErr) {
			attrs = append(attrs, logging.KeyExitCode, execErr.ExitCode, logging.KeyOutput, execErr.Output)
		}
		r.log.Error("command failed", attrs...)
		return NotAvailable
	}

	r.log.Info("executed command",
		logging.KeyCommand, cmd.String(),
		logging.KeyDurationMs, time.Since(start).Milliseconds(),
	)
	return out
}

// Exec executes cmd and returns its trimmed combined output. Failures are
// returned as *ExecError.
func (r *ExecRunner) Exec(ctx context.Context, cmd Command) (string, error) {
	if cmd.Name == "" {
		return "", &ExecError{Command: cmd, ExitCode: -1, Err: errors.New("empty command")}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)

	// Stdout and stderr share one writer so their output interleaves the
	// way it would on a terminal.
	var buf bytes.Buffer
	w := &limitedWriter{buf: &buf, limit: r.maxOutput}
	c.Stdout = w
	c.Stderr = w

	setProcessGroup(c)
	c.Cancel = func() error {
		return killProcessGroup(c)
	}
	c.WaitDelay = 5 * time.Second

	err := c.Run()
	output := strings.TrimSpace(buf.String())

	if err == nil {
		return output, nil
	}

	execErr := &ExecError{Command: cmd, ExitCode: -1, Output: output, Err: err}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		execErr.Err = fmt.Errorf("%w after %s", ErrTimeout, r.timeout)
		return "", execErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		execErr.ExitCode = exitErr.ExitCode()
	}
	return "", execErr
}

// limitedWriter wraps a buffer with a size limit
type limitedWriter struct {
	buf     *bytes.Buffer
	limit   int
	written int
}

// Write never reports a short write; bytes past the limit are discarded.
func (w *limitedWriter) Write(p []byte) (int, error) {
	total := len(p)
	if w.written >= w.limit {
		return total, nil
	}

	if remaining := w.limit - w.written; len(p) > remaining {
		p = p[:remaining]
	}

	n, err := w.buf.Write(p)
	w.written += n
	return total, err
}
