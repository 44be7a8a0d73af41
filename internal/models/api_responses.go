// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

package models

import (
	"time"
)

// Response status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// APIResponse is the envelope for every JSON API response.
//
// Example successful response:
//
//	{
//	  "status": "success",
//	  "data": {"task": "daily", "decision": "queued"},
//	  "metadata": {"timestamp": "2026-03-01T03:00:00Z", "request_id": "..."}
//	}
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "data": null,
//	  "error": {"code": "NOT_FOUND", "message": "task not found: weekly"},
//	  "metadata": {"timestamp": "2026-03-01T03:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata accompanies every response.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
	Count     *int      `json:"count,omitempty"`
}

// APIError describes a failed request.
//
// Common error codes:
//   - NOT_FOUND: unknown task or backend
//   - SERVICE_UNAVAILABLE: the service is shutting down
//   - STORAGE_ERROR: a backend could not be reached or listed
//   - CONFIG_RELOAD_FAILED: the configuration file could not be loaded
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Success wraps data in a success envelope.
func Success(data interface{}) *APIResponse {
	return &APIResponse{
		Status:   StatusSuccess,
		Data:     data,
		Metadata: Metadata{Timestamp: time.Now().UTC()},
	}
}

// Failure wraps an error code and message in an error envelope.
func Failure(code, message string) *APIResponse {
	return &APIResponse{
		Status:   StatusError,
		Metadata: Metadata{Timestamp: time.Now().UTC()},
		Error:    &APIError{Code: code, Message: message},
	}
}
