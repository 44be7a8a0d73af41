// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

// Package models defines the JSON envelope shared by all API responses.
//
// Domain types (tasks, backends, archives, gate state) live in their own
// packages and are embedded in APIResponse.Data as-is.
package models
