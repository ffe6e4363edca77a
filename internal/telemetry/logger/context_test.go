package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestWithLogger_FromContext(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := WithLogger(context.Background(), l)
	FromContext(ctx).Info("test message")

	if buf.Len() == 0 {
		t.Error("Logger from context should produce output")
	}
}

func TestFromContext_Default(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Error("FromContext should return default logger, got nil")
	}
}

func TestSessionID(t *testing.T) {
	ctx := WithSessionID(context.Background(), "gnss-01h")
	if got := SessionIDFromContext(ctx); got != "gnss-01h" {
		t.Errorf("SessionIDFromContext() = %q, want gnss-01h", got)
	}
	if got := SessionIDFromContext(context.Background()); got != "" {
		t.Errorf("SessionIDFromContext(empty) = %q, want empty", got)
	}
}

func TestParticipantID(t *testing.T) {
	ctx := WithParticipantID(context.Background(), 12345)
	if got, ok := ParticipantIDFromContext(ctx); !ok || got != 12345 {
		t.Errorf("ParticipantIDFromContext() = %d, %v, want 12345, true", got, ok)
	}
	if _, ok := ParticipantIDFromContext(context.Background()); ok {
		t.Error("ParticipantIDFromContext(empty) reported a value")
	}
}

func TestL_Enriches(t *testing.T) {
	var buf bytes.Buffer
	l, _ := New(Config{Level: "info", Format: "json", Output: &buf})

	ctx := WithLogger(context.Background(), l)
	ctx = WithSessionID(ctx, "gnss-abc")
	ctx = WithParticipantID(ctx, 7)
	L(ctx).Info("tick")

	out := buf.String()
	if !strings.Contains(out, `"session_id":"gnss-abc"`) {
		t.Errorf("session_id missing: %s", out)
	}
	if !strings.Contains(out, `"participant_id":7`) {
		t.Errorf("participant_id missing: %s", out)
	}
}
