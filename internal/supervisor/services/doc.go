// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

// Package services adapts components without a native suture.Service
// implementation: the HTTP server and the configuration file watcher.
//
// The scheduler and the websocket hub implement Serve and String
// themselves and are added to the tree directly.
package services
