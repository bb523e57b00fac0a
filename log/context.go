package log

import (
	"context"

	"github.com/google/uuid"
)

// ContextFields is a map of fields to add to log messages
type ContextFields map[string]interface{}

// MergeContextFields merges multiple context fields maps into a single map
func MergeContextFields(fieldSets ...ContextFields) ContextFields {
	result := make(ContextFields)
	for _, fields := range fieldSets {
		for k, v := range fields {
			result[k] = v
		}
	}
	return result
}

// NewTraceID generates a new trace ID for distributed tracing
func NewTraceID() string {
	return uuid.New().String()
}

// NewRequestContext creates a new context with a logger that has a trace ID
// This is useful for tracking requests through multiple services
func NewRequestContext(parentCtx context.Context, moduleName string) (context.Context, *Logger) {
	traceID := NewTraceID()
	logger := New(moduleName).WithTraceID(traceID)
	ctx := logger.WithContext(parentCtx)
	return ctx, logger
}

// Debug logs a debug message with the logger from the context
func Debug(ctx context.Context, msg string, fields ...ContextFields) {
	logger := FromContext(ctx)
	if len(fields) > 0 {
		logger.Debug(msg, fields[0])
	} else {
		logger.Debug(msg)
	}
}

// Info logs an info message with the logger from the context
func Info(ctx context.Context, msg string, fields ...ContextFields) {
	logger := FromContext(ctx)
	if len(fields) > 0 {
		logger.Info(msg, fields[0])
	} else {
		logger.Info(msg)
	}
}

// Warn logs a warning message with the logger from the context
func Warn(ctx context.Context, msg string, fields ...ContextFields) {
	logger := FromContext(ctx)
	if len(fields) > 0 {
		logger.Warn(msg, fields[0])
	} else {
		logger.Warn(msg)
	}
}

// Error logs an error message with the logger from the context
func Error(ctx context.Context, err error, msg string, fields ...ContextFields) {
	logger := FromContext(ctx)
	if len(fields) > 0 {
		logger.Error(err, msg, fields[0])
	} else {
		logger.Error(err, msg)
	}
}
