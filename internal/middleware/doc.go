// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

/*
Package middleware provides HTTP middleware for the Stowage API.

Key Components:

  - RequestID: X-Request-ID propagation into the logging context
  - PrometheusMetrics: request counts and latency by route pattern
  - Compression: gzip responses using klauspost/compress

All middleware uses the http.HandlerFunc form; the api package adapts it to
chi's func(http.Handler) http.Handler.

Usage Example:

	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chiMiddleware(middleware.PrometheusMetrics))
	r.With(chiMiddleware(middleware.Compression)).Get("/tasks", h.ListTasks)

Route patterns rather than raw paths label the metrics, so task names in
URLs such as /api/tasks/{name}/status do not create new series.
*/
package middleware
