// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/stowage/internal/config"
	"github.com/tomtom215/stowage/internal/gate"
	"github.com/tomtom215/stowage/internal/logging"
	"github.com/tomtom215/stowage/internal/scheduler"
	"github.com/tomtom215/stowage/internal/storage"
	ws "github.com/tomtom215/stowage/internal/websocket"
)

// ConfigStore publishes and reloads the configuration snapshot.
type ConfigStore interface {
	Current() *config.Snapshot
	Reload() (*config.Snapshot, error)
}

// StatusReader reads execution gate state.
type StatusReader interface {
	State(name string) gate.TaskState
	Snapshot() gate.Snapshot
}

// TaskRunner starts or queues a task without blocking.
type TaskRunner interface {
	Trigger(name string) (gate.Decision, error)
}

// BackendResolver returns the storage backend for a configured backend.
type BackendResolver interface {
	Get(ctx context.Context, cfg config.Backend) (storage.Backend, error)
}

// ScheduleLister reports the active cron entries.
type ScheduleLister interface {
	Entries() []scheduler.Entry
}

// Dependencies are the collaborators of a Handler. Schedule and Hub are
// optional.
type Dependencies struct {
	Config      ConfigStore
	Gate        StatusReader
	Runner      TaskRunner
	Backends    BackendResolver
	Schedule    ScheduleLister
	Hub         *ws.Hub
	CORSOrigins []string
}

// Handler serves the Stowage API.
type Handler struct {
	config      ConfigStore
	gate        StatusReader
	runner      TaskRunner
	backends    BackendResolver
	schedule    ScheduleLister
	wsHub       *ws.Hub
	corsOrigins []string
	startTime   time.Time
}

// NewHandler creates a Handler.
func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		config:      deps.Config,
		gate:        deps.Gate,
		runner:      deps.Runner,
		backends:    deps.Backends,
		schedule:    deps.Schedule,
		wsHub:       deps.Hub,
		corsOrigins: deps.CORSOrigins,
		startTime:   time.Now(),
	}
}

// getUpgrader creates a websocket upgrader with origin checking and a
// handshake timeout.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin accepts only origins listed in the CORS
// configuration. Browsers always send Origin, so a missing one is rejected.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	for _, allowed := range h.corsOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected: origin not allowed")
	return false
}

// WebSocket upgrades the connection and subscribes it to the status feed.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsHub == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "WebSocket service unavailable", ErrHubUnavailable)
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	h.wsHub.Register <- client
	client.Start()
}
