package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// New returns a logger configured from the LOG_LEVEL and LOG_FORMAT
// environment variables. LOG_FORMAT=json selects a JSON handler, anything
// else a text handler writing to STDERR so row output on STDOUT stays clean.
func New() *slog.Logger {
	opts := &slog.HandlerOptions{Level: levelFromEnv()}
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// ForStudy returns the base logger tagged with the study identity.
func ForStudy(studyID string) *slog.Logger {
	return New().With("study_id", studyID)
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
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

type ctxKey struct{}

// NewContext returns a copy of ctx with the logger stored.
func NewContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext retrieves a logger from ctx or returns slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
