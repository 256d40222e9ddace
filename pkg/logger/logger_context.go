package logger

import (
	"context"

	"github.com/slnstrip/slnstrip/pkg/tracing"
)

// WithContext returns a logger that adds the run ID and operation found in ctx
// to every entry.
func WithContext(ctx context.Context, log Logger) Logger {
	if ctx == nil {
		return log
	}
	return &contextualLogger{
		ctx:    ctx,
		logger: log,
	}
}

type contextualLogger struct {
	ctx    context.Context
	logger Logger
}

func (cl *contextualLogger) fields(fields []Field) []Field {
	var all []Field
	if runID := tracing.GetRunID(cl.ctx); runID != "" {
		all = append(all, WithField("run", runID))
	}
	if op := tracing.GetOperation(cl.ctx); op != "" {
		all = append(all, WithField("op", op))
	}
	return append(all, fields...)
}

func (cl *contextualLogger) Info(message string, fields ...Field) {
	cl.logger.Info(message, cl.fields(fields)...)
}

func (cl *contextualLogger) Error(message string, fields ...Field) {
	cl.logger.Error(message, cl.fields(fields)...)
}

func (cl *contextualLogger) Warn(message string, fields ...Field) {
	cl.logger.Warn(message, cl.fields(fields)...)
}

func (cl *contextualLogger) Debug(message string, fields ...Field) {
	cl.logger.Debug(message, cl.fields(fields)...)
}

func (cl *contextualLogger) Success(message string, fields ...Field) {
	// Duration is only meaningful once the operation has finished
	if d := tracing.GetDuration(cl.ctx); d > 0 {
		fields = append(fields, WithField("duration_ms", d.Milliseconds()))
	}
	cl.logger.Success(message, cl.fields(fields)...)
}

func (cl *contextualLogger) WithComponent(component string) Logger {
	return &contextualLogger{
		ctx:    cl.ctx,
		logger: cl.logger.WithComponent(component),
	}
}
