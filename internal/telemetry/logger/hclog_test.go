package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewStdLogger_InfersLevels(t *testing.T) {
	SetLevel("debug")
	defer SetLevel("info")

	var buf bytes.Buffer
	sl := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	std := NewStdLogger(sl, "memberlist")
	std.Printf("[WARN] memberlist: refuting suspect message")

	out := buf.String()
	if !strings.Contains(out, `"level":"WARN"`) {
		t.Errorf("warn level not inferred: %s", out)
	}
	if !strings.Contains(out, "refuting suspect message") {
		t.Errorf("message missing: %s", out)
	}
}

func TestNewHCLogger_FiltersBelowLevel(t *testing.T) {
	SetLevel("warn")
	defer SetLevel("info")

	var buf bytes.Buffer
	sl := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	hl := NewHCLogger(sl, "gossip")
	hl.Info("dropped")
	hl.Error("kept", "node", "peer-1")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("info line passed a warn-level hclog logger: %s", out)
	}
	if !strings.Contains(out, `"level":"ERROR"`) || !strings.Contains(out, "kept") {
		t.Errorf("error line missing: %s", out)
	}
}

func TestSplitLevel(t *testing.T) {
	tests := []struct {
		line  string
		level slog.Level
		msg   string
	}{
		{"[ERROR] x: boom", slog.LevelError, "x: boom"},
		{"[DEBUG] memberlist: ping", slog.LevelDebug, "memberlist: ping"},
		{"plain", slog.LevelInfo, "plain"},
	}
	for _, tt := range tests {
		level, msg := splitLevel(tt.line)
		if level != tt.level || msg != tt.msg {
			t.Errorf("splitLevel(%q) = %v, %q, want %v, %q", tt.line, level, msg, tt.level, tt.msg)
		}
	}
}
