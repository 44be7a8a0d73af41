// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/stowage/internal/api"
	"github.com/tomtom215/stowage/internal/config"
	"github.com/tomtom215/stowage/internal/gate"
	"github.com/tomtom215/stowage/internal/logging"
	"github.com/tomtom215/stowage/internal/scheduler"
	"github.com/tomtom215/stowage/internal/storage"
	"github.com/tomtom215/stowage/internal/supervisor"
	"github.com/tomtom215/stowage/internal/supervisor/services"
	"github.com/tomtom215/stowage/internal/transfer"
	ws "github.com/tomtom215/stowage/internal/websocket"
)

// httpShutdownTimeout bounds graceful HTTP shutdown.
const httpShutdownTimeout = 10 * time.Second

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
		Output: os.Stderr,
	})

	logging.Info().Msg("Starting Stowage with supervisor tree")

	store := config.NewStore(cfg)
	snap := store.Current()
	for _, skipped := range snap.Skipped {
		logging.Warn().Err(skipped).Msg("Configuration entry skipped")
	}
	logging.Info().
		Str("config_path", cfg.Path).
		Int("backends", len(snap.Backends)).
		Int("tasks", len(snap.Tasks)).
		Int("skipped", len(snap.Skipped)).
		Str("temp_dir", cfg.Transfer.TempDir).
		Msg("Configuration loaded")

	if err := os.MkdirAll(cfg.Transfer.TempDir, 0o700); err != nil {
		logging.Fatal().Err(err).Str("temp_dir", cfg.Transfer.TempDir).Msg("Failed to create temp directory")
	}

	// === CORE COMPONENTS ===

	execGate := gate.New()
	registry := storage.NewRegistry()
	hub := ws.NewHub(execGate.Subscribe)

	orch := transfer.New(transfer.Options{
		Config:   store,
		Gate:     execGate,
		Backends: registry,
		TempDir:  cfg.Transfer.TempDir,
		Observer: func(ev transfer.Event) {
			hub.BroadcastJSON(ws.MessageTypeTaskEvent, ev)
		},
	})

	sched := scheduler.New(orch)
	scheduled := sched.Reload(snap)
	logging.Info().Int("entries", scheduled).Msg("Scheduler configured")

	store.OnReload(func(_ *config.Config, snap *config.Snapshot) {
		sched.Reload(snap)
		registry.Retain(snap)
		for _, skipped := range snap.Skipped {
			logging.Warn().Err(skipped).Msg("Configuration entry skipped")
		}
	})

	// === HTTP API ===

	handler := api.NewHandler(api.Dependencies{
		Config:      store,
		Gate:        execGate,
		Runner:      orch,
		Backends:    registry,
		Schedule:    sched,
		Hub:         hub,
		CORSOrigins: cfg.Server.CORSOrigins,
	})
	router := api.NewRouter(handler, api.NewChiMiddlewareFromServer(cfg.Server))

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	// === SUPERVISOR TREE ===

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddControlService(sched)
	if cfg.Watch && store.Path() != "" {
		tree.AddControlService(services.NewConfigWatchService(store))
		logging.Info().Str("path", store.Path()).Msg("Config file watcher added to supervisor tree")
	}
	tree.AddMessagingService(hub)
	tree.AddAPIService(services.NewHTTPServerService(server, httpShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Received shutdown signal, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
		stop()
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}

	// Refuse new triggers and let the active run finish; queued tasks are dropped.
	if running := execGate.Running(); running != "" {
		logging.Info().Str("task", running).Msg("Waiting for in-flight run to finish")
	}
	orch.Close()

	logging.Info().Msg("Application stopped gracefully")
}
