package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Redacted replaces the value of attributes that carry credentials
const Redacted = "[REDACTED]"

// secretKeys are attribute keys whose values never reach a log sink
var secretKeys = map[string]bool{
	"authorization": true,
	"access_token":  true,
	"refresh_token": true,
	"password":      true,
	"code":          true,
}

// Config selects where and how CLI log records are written
type Config struct {
	Level  slog.Level
	File   string // empty means no file sink
	Stderr bool
	Format string // "json" or "text"
}

// Setup builds the CLI logger. The returned close func releases the log file
// and is safe to call when no file was opened.
func Setup(cfg Config) (*slog.Logger, func() error, error) {
	var writers []io.Writer
	closeFn := func() error { return nil }

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o700); err != nil {
			return nil, nil, err
		}
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, err
		}
		writers = append(writers, file)
		closeFn = file.Close
	}
	if cfg.Stderr {
		writers = append(writers, os.Stderr)
	}

	var w io.Writer = io.Discard
	switch len(writers) {
	case 0:
	case 1:
		w = writers[0]
	default:
		w = io.MultiWriter(writers...)
	}

	return slog.New(NewHandler(w, cfg.Format, cfg.Level)), closeFn, nil
}

// NewHandler returns a text or JSON handler that redacts credential attributes
func NewHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   level <= slog.LevelDebug,
		ReplaceAttr: redact,
	}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func redact(groups []string, a slog.Attr) slog.Attr {
	if secretKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, Redacted)
	}
	return a
}

// ParseLevel converts a --log-level value to slog.Level, defaulting to info
func ParseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo
	}
	return l
}

// WithCommand tags a logger with the CLI command being run
func WithCommand(logger *slog.Logger, cmd string) *slog.Logger {
	return logger.With("command", cmd)
}

// WithContext tags a logger with the config context in use
func WithContext(logger *slog.Logger, name string) *slog.Logger {
	return logger.With("context", name)
}

func WithHTTPRequest(logger *slog.Logger, method, path string) *slog.Logger {
	return logger.With("http_method", method, "http_path", path)
}

func WithDuration(logger *slog.Logger, duration time.Duration) *slog.Logger {
	return logger.With("duration_ms", duration.Milliseconds())
}

// DefaultLogFile is the log path used by --log-file=default
func DefaultLogFile(component string) string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		dir = "."
	}
	return filepath.Join(dir, "openfolio", "logs", component+".log")
}
