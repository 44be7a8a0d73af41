// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/stowage/internal/middleware"
)

// Router wires handlers and middleware into a chi mux.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a Router. A nil chiMW uses the default configuration.
func NewRouter(handler *Handler, chiMW *ChiMiddleware) *Router {
	if chiMW == nil {
		chiMW = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, chiMiddleware: chiMW}
}

// chiMiddleware adapts http.HandlerFunc middleware to Chi's
// func(http.Handler) http.Handler.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight is handled

	r.Get("/health/live", router.handler.HealthLive)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware(middleware.Compression))

			r.Get("/tasks", router.handler.ListTasks)
			r.Get("/tasks/status", router.handler.AllTaskStatus)
			r.Get("/tasks/{name}/status", router.handler.TaskStatus)
			r.Get("/tasks/{name}/archives", router.handler.TaskArchives)
			r.Post("/tasks/{name}/execute", router.handler.ExecuteTask)
			r.Get("/backends", router.handler.ListBackends)
			r.Get("/schedule", router.handler.Schedule)
			r.Post("/config/reload", router.handler.ReloadConfig)
		})

		r.Get("/ws", router.handler.WebSocket)
	})

	return r
}
