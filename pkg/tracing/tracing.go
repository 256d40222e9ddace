// Package tracing carries run identifiers through context.Context so that the
// launcher and the detached cleaner it spawns log under the same run ID.
package tracing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// contextKey is unexported so no other package can collide with these keys.
// Pointers to zero-size values may compare equal, so the keys are distinct ints.
type contextKey int

const (
	runIDKey contextKey = iota
	operationKey
	startTimeKey
)

// WithRunID adds a run ID to the context, generating one when runID is empty
func WithRunID(parent context.Context, runID string) context.Context {
	if runID == "" {
		runID = GenerateRunID()
	}
	return context.WithValue(parent, runIDKey, runID)
}

// GetRunID retrieves the run ID from context, or "" if none was set
func GetRunID(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// WithOperation adds an operation name to the context
func WithOperation(parent context.Context, operation string) context.Context {
	return context.WithValue(parent, operationKey, operation)
}

// GetOperation retrieves the operation name from context
func GetOperation(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey).(string); ok {
		return op
	}
	return ""
}

// WithStartTime adds the operation start time to the context
func WithStartTime(parent context.Context, startTime time.Time) context.Context {
	return context.WithValue(parent, startTimeKey, startTime)
}

// GetDuration returns the time elapsed since the start time in ctx, or 0
func GetDuration(ctx context.Context) time.Duration {
	if t, ok := ctx.Value(startTimeKey).(time.Time); ok {
		return time.Since(t)
	}
	return 0
}

// GenerateRunID creates a new unique run ID
func GenerateRunID() string {
	return "run_" + uuid.New().String()
}

// Enrich adds a run ID (if missing), the operation name and a start time
func Enrich(parent context.Context, operation string) context.Context {
	ctx := parent
	if GetRunID(ctx) == "" {
		ctx = WithRunID(ctx, "")
	}
	ctx = WithOperation(ctx, operation)
	return WithStartTime(ctx, time.Now())
}
