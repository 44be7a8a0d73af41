// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/stowage/internal/transfer"
)

// Error codes
const (
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeStorage            = "STORAGE_ERROR"
	ErrCodeReloadFailed       = "CONFIG_RELOAD_FAILED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// ErrHubUnavailable is returned when the status feed is not running.
var ErrHubUnavailable = errors.New("websocket hub not initialized")

// triggerErrorStatus maps an orchestrator trigger error to an HTTP status
// and error code.
func triggerErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, transfer.ErrTaskNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, transfer.ErrShuttingDown):
		return http.StatusServiceUnavailable, ErrCodeServiceUnavailable
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}
