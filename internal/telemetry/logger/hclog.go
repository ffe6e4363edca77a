package logger

import (
	"context"
	"log"
	"log/slog"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// NewHCLogger returns an hclog.Logger named name whose lines are forwarded
// into l at the level hclog assigned them. The level starts at the current
// global level.
func NewHCLogger(l *slog.Logger, name string) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:        name,
		Level:       hclogLevel(level.Level()),
		Output:      &lineWriter{logger: l},
		DisableTime: true,
	})
}

// NewStdLogger returns a *log.Logger for libraries that only accept the
// standard logger (memberlist). Level prefixes such as "[WARN]" in the
// library's messages are honoured.
func NewStdLogger(l *slog.Logger, name string) *log.Logger {
	return NewHCLogger(l, name).StandardLogger(&hclog.StandardLoggerOptions{
		InferLevels: true,
	})
}

func hclogLevel(level slog.Level) hclog.Level {
	switch {
	case level <= slog.LevelDebug:
		return hclog.Debug
	case level <= slog.LevelInfo:
		return hclog.Info
	case level <= slog.LevelWarn:
		return hclog.Warn
	default:
		return hclog.Error
	}
}

// lineWriter adapts hclog's formatted output to slog records.
type lineWriter struct {
	logger *slog.Logger
}

func (w *lineWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line == "" {
			continue
		}
		level, msg := splitLevel(line)
		w.logger.Log(context.Background(), level, msg)
	}
	return len(p), nil
}

// splitLevel strips hclog's "[LEVEL] " prefix.
func splitLevel(line string) (slog.Level, string) {
	prefixes := []struct {
		tag   string
		level slog.Level
	}{
		{"[ERROR]", slog.LevelError},
		{"[WARN]", slog.LevelWarn},
		{"[INFO]", slog.LevelInfo},
		{"[DEBUG]", slog.LevelDebug},
		{"[TRACE]", slog.LevelDebug},
	}
	for _, p := range prefixes {
		if strings.HasPrefix(line, p.tag) {
			return p.level, strings.TrimSpace(strings.TrimPrefix(line, p.tag))
		}
	}
	return slog.LevelInfo, strings.TrimSpace(line)
}
