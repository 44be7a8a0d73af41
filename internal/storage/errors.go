// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

package storage

import (
	"errors"
	"fmt"
)

// ErrUnsupportedBackend is returned by New for an unknown variant.
var ErrUnsupportedBackend = errors.New("unsupported backend")

// IOError is a failed list, write or delete against a backend.
type IOError struct {
	Op      string // "list", "write", "delete"
	Backend string
	Key     string
	Err     error
}

func (e *IOError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("storage %s on %s: %v", e.Op, e.Backend, e.Err)
	}
	return fmt.Sprintf("storage %s %s on %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// UploadError is a network or authorization failure while writing to an
// object store.
type UploadError struct {
	Backend string
	Key     string
	// Code is the service error code when the store returned one.
	Code string
	Err  error
}

func (e *UploadError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("upload %s to %s failed (%s): %v", e.Key, e.Backend, e.Code, e.Err)
	}
	return fmt.Sprintf("upload %s to %s failed: %v", e.Key, e.Backend, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }
