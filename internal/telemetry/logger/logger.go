package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Logger is the structured logger handed out by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger

	// Component returns a child logger tagging records with the subsystem
	// name ("lobby", "session", "journal").
	Component(name string) Logger

	// Slog returns the underlying *slog.Logger for components that take one.
	Slog() *slog.Logger
}

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// Format is the output format (json, text).
	Format string
	// Output is the output writer (defaults to os.Stderr).
	Output io.Writer
	// AddSource adds source file information to log entries.
	AddSource bool
	// RedactAddrs masks the host part of peer address attributes.
	RedactAddrs bool
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json", Output: os.Stderr}
}

var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// level is shared by every logger built here, so SetLevel applies to the
// whole process.
var level = new(slog.LevelVar)

type handle struct {
	l *slog.Logger
}

// New creates a new logger with the given configuration.
func New(cfg Config) (Logger, error) {
	return &handle{l: NewSlog(cfg)}, nil
}

// NewSlog creates a *slog.Logger with the given configuration. The level
// follows SetLevel.
func NewSlog(cfg Config) *slog.Logger {
	level.Set(parseLevel(cfg.Level))

	redactAddrs := cfg.RedactAddrs
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			return redactSensitive(a, redactAddrs)
		},
	}

	w := cfg.Output
	if w == nil {
		w = os.Stderr
	}
	if f := strings.ToLower(cfg.Format); f == "text" || f == "console" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func (h *handle) Debug(msg string, args ...any) { h.l.Debug(msg, args...) }
func (h *handle) Info(msg string, args ...any)  { h.l.Info(msg, args...) }
func (h *handle) Warn(msg string, args ...any)  { h.l.Warn(msg, args...) }
func (h *handle) Error(msg string, args ...any) { h.l.Error(msg, args...) }

func (h *handle) With(args ...any) Logger {
	return &handle{l: h.l.With(args...)}
}

func (h *handle) Component(name string) Logger {
	return h.With("component", name)
}

func (h *handle) Slog() *slog.Logger {
	return h.l
}

// SetLevel changes the process log level. Unknown names mean info.
func SetLevel(name string) {
	level.Set(parseLevel(name))
}

// GetLevel returns the current log level name.
func GetLevel() string {
	switch l := level.Level(); {
	case l <= slog.LevelDebug:
		return "debug"
	case l >= slog.LevelError:
		return "error"
	case l >= slog.LevelWarn:
		return "warn"
	}
	return "info"
}

// ValidLevel reports whether name is a supported level.
func ValidLevel(name string) bool {
	_, ok := levels[strings.ToLower(name)]
	return ok
}

func parseLevel(name string) slog.Level {
	if l, ok := levels[strings.ToLower(name)]; ok {
		return l
	}
	return slog.LevelInfo
}

var defaultLogger atomic.Pointer[handle]

func init() {
	defaultLogger.Store(&handle{l: NewSlog(DefaultConfig())})
}

// SetDefault installs l as the package default and as slog.Default.
func SetDefault(l Logger) {
	h, ok := l.(*handle)
	if !ok {
		return
	}
	defaultLogger.Store(h)
	slog.SetDefault(h.l)
}

// Default returns the process-wide logger.
func Default() Logger {
	return defaultLogger.Load()
}
