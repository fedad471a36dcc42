package logger

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

// RunIDKey is the context key for the analysis run ID.
const RunIDKey contextKey = "run_id"

// NewRunID returns a fresh identifier for one analysis run.
func NewRunID() string {
	return uuid.New().String()
}

// WithRunID adds a run ID to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// GetRunID retrieves the run ID from context.
func GetRunID(ctx context.Context) string {
	if runID, ok := ctx.Value(RunIDKey).(string); ok {
		return runID
	}
	return ""
}
