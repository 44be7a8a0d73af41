// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

package config

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedBackend marks a backend whose type is not local or s3.
	ErrUnsupportedBackend = errors.New("unsupported backend type")

	// ErrUnknownBackend marks a task referencing a backend that is not defined.
	ErrUnknownBackend = errors.New("unknown backend")

	// ErrInvalidEntry marks a backend or task that failed field validation.
	ErrInvalidEntry = errors.New("invalid configuration entry")
)

// ConfigError describes one backend or task that was excluded at load time.
//
//nolint:revive // config.ConfigError reads naturally at call sites
type ConfigError struct {
	// Kind is "backend" or "task".
	Kind string
	Name string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Kind, e.Name, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func backendError(name string, err error) *ConfigError {
	return &ConfigError{Kind: "backend", Name: name, Err: err}
}

func taskError(name string, err error) *ConfigError {
	return &ConfigError{Kind: "task", Name: name, Err: err}
}
