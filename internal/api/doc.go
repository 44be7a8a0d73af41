// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

/*
Package api provides the HTTP API for Stowage.

The API is a thin layer over the orchestrator, the execution gate and the
configuration store. It never runs a pipeline on the request goroutine:
POST /api/tasks/{name}/execute returns 202 as soon as the gate has decided
whether the task starts now or waits in the queue.

Endpoints:

  - GET  /api/tasks                   task definitions, passwords redacted
  - GET  /api/backends                backend definitions, secrets masked
  - GET  /api/tasks/{name}/archives   destination listing for the task
  - POST /api/tasks/{name}/execute    non-blocking manual trigger
  - GET  /api/tasks/{name}/status     gate state of one task
  - GET  /api/tasks/status            gate state of all tasks
  - GET  /api/schedule                cron entries with next run times
  - POST /api/config/reload           reload configuration and re-schedule
  - GET  /api/ws                      live task status feed (websocket)
  - GET  /metrics                     Prometheus metrics
  - GET  /health/live                 liveness probe

All JSON responses use models.APIResponse.

Usage Example:

	handler := api.NewHandler(api.Dependencies{
	    Config:   store,
	    Gate:     g,
	    Runner:   orch,
	    Backends: registry,
	    Schedule: sched,
	    Hub:      hub,
	})
	mw := api.NewChiMiddlewareFromServer(cfg.Server)
	router := api.NewRouter(handler, mw)
	srv := &http.Server{Handler: router.SetupChi()}
*/
package api
