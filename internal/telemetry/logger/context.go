package logger

import "context"

// contextKey is a type for context keys to avoid collisions.
type contextKey string

const (
	loggerKey    contextKey = "goudanet.logger"
	sessionIDKey contextKey = "goudanet.session_id"
	peerIDKey    contextKey = "goudanet.participant_id"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the logger from context.
// Returns the default logger if none is set.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return Default()
}

// WithSessionID adds a session ID to the context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// SessionIDFromContext extracts the session ID from context.
func SessionIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey).(string); ok {
		return id
	}
	return ""
}

// WithParticipantID adds this process's discovery participant id to the context.
func WithParticipantID(ctx context.Context, id uint64) context.Context {
	return context.WithValue(ctx, peerIDKey, id)
}

// ParticipantIDFromContext extracts the participant id from context.
func ParticipantIDFromContext(ctx context.Context) (uint64, bool) {
	id, ok := ctx.Value(peerIDKey).(uint64)
	return id, ok
}

// L is a shorthand for FromContext that also enriches the logger
// with the session and participant ids from the context.
func L(ctx context.Context) Logger {
	l := FromContext(ctx)

	if id := SessionIDFromContext(ctx); id != "" {
		l = l.With("session_id", id)
	}
	if id, ok := ParticipantIDFromContext(ctx); ok {
		l = l.With("participant_id", id)
	}
	return l
}
