// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	runIDKey     contextKey = "run_id"
	requestIDKey contextKey = "request_id"
	taskKey      contextKey = "task"
)

// NewRunID creates a short identifier for one pipeline run.
// Eight characters of a UUID are enough to tell runs apart in a log stream.
func NewRunID() string {
	return uuid.New().String()[:8]
}

// NewRequestID creates a full UUID request ID.
func NewRequestID() string {
	return uuid.New().String()
}

// ContextWithRunID returns a context carrying the given run ID.
func ContextWithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext returns the run ID stored in ctx, or "".
func RunIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithRequestID returns a context carrying the HTTP request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request ID stored in ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithTask returns a context tagged with a task name.
func ContextWithTask(ctx context.Context, task string) context.Context {
	return context.WithValue(ctx, taskKey, task)
}

// TaskFromContext returns the task name stored in ctx, or "".
func TaskFromContext(ctx context.Context) string {
	if task, ok := ctx.Value(taskKey).(string); ok {
		return task
	}
	return ""
}

// Ctx returns the global logger with run_id, request_id and task fields
// taken from ctx.
//
//	logging.Ctx(ctx).Info().Msg("Upload complete")
//	// {"level":"info","run_id":"1a2b3c4d","task":"daily","message":"Upload complete"}
func Ctx(ctx context.Context) *zerolog.Logger {
	logger := CtxWith(ctx).Logger()
	return &logger
}

// CtxWith returns a logger context builder pre-populated from ctx.
//
//	logger := logging.CtxWith(ctx).Str("backend", "offsite").Logger()
func CtxWith(ctx context.Context) zerolog.Context {
	logCtx := With()
	if id := RunIDFromContext(ctx); id != "" {
		logCtx = logCtx.Str("run_id", id)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		logCtx = logCtx.Str("request_id", id)
	}
	if task := TaskFromContext(ctx); task != "" {
		logCtx = logCtx.Str("task", task)
	}
	return logCtx
}
