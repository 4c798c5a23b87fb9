package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Key constants for structured log fields.
const (
	KeyComponent  = "component"
	KeyCommand    = "command"
	KeyExitCode   = "exitCode"
	KeyOutput     = "output"
	KeyDurationMs = "durationMs"
	KeyPath       = "path"
	KeyError      = "error"
)

// Options configures the log sink opened at startup.
type Options struct {
	FilePath   string
	Format     string // "json" or "text" (default "text")
	Level      string // "debug", "info", "warn", "error" (default "info")
	MaxSizeMB  int
	MaxBackups int
}

// Logger is the process log. It is built once in main and handed to every
// component that needs it; there is no package-level default.
type Logger struct {
	*slog.Logger
	sink io.Closer
}

// Open creates the log file sink described by opts and returns a logger
// writing to it. The caller owns the returned logger and must Close it.
func Open(opts Options) (*Logger, error) {
	if opts.FilePath == "" {
		return New(os.Stderr, opts.Format, opts.Level), nil
	}

	rw, err := NewRotatingWriter(opts.FilePath, opts.MaxSizeMB, opts.MaxBackups)
	if err != nil {
		return nil, err
	}

	l := New(rw, opts.Format, opts.Level)
	l.sink = rw
	return l, nil
}

// New returns a logger writing to output with the given format and level.
func New(output io.Writer, format, level string) *Logger {
	if output == nil {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return New(io.Discard, "text", "error")
}

// L returns a logger tagged with the given component name.
func (l *Logger) L(component string) *slog.Logger {
	return l.With(slog.String(KeyComponent, component))
}

// Close flushes and closes the underlying sink, if any.
func (l *Logger) Close() error {
	if l == nil || l.sink == nil {
		return nil
	}
	return l.sink.Close()
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
