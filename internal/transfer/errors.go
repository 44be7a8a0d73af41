// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

package transfer

import (
	"errors"
	"fmt"
)

var (
	// ErrQueued is returned when the task was added to, or already sits in,
	// the wait queue instead of running.
	ErrQueued = errors.New("task queued behind running task")

	// ErrAlreadyRunning is returned when the task itself is running.
	ErrAlreadyRunning = errors.New("task already running")

	// ErrTaskNotFound is returned for a task missing from the current
	// configuration.
	ErrTaskNotFound = errors.New("task not found")

	// ErrDestinationMissing is returned when the destination backend cannot
	// be resolved.
	ErrDestinationMissing = errors.New("destination backend not found")

	// ErrShuttingDown is returned by triggers after Close.
	ErrShuttingDown = errors.New("orchestrator is shutting down")
)

// SourceMissingError reports a source that cannot be archived: an unknown
// backend, a backend that is not a local directory, or a missing path.
type SourceMissingError struct {
	Task    string
	Backend string
	Path    string
	Err     error
}

func (e *SourceMissingError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("task %s: source %s (%s) unavailable: %v", e.Task, e.Backend, e.Path, e.Err)
	}
	return fmt.Sprintf("task %s: source %s unavailable: %v", e.Task, e.Backend, e.Err)
}

func (e *SourceMissingError) Unwrap() error { return e.Err }

// EncryptionConfigError reports unusable encryption settings.
type EncryptionConfigError struct {
	Task   string
	Reason string
}

func (e *EncryptionConfigError) Error() string {
	return fmt.Sprintf("task %s: encryption misconfigured: %s", e.Task, e.Reason)
}

// StageError records the pipeline stage an error occurred in.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
