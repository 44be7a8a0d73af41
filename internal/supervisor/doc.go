// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

/*
Package supervisor provides process supervision for Stowage using suture v4.

The supervisor tree organizes long-running services into three layers:

	RootSupervisor ("stowage")
	├── ControlSupervisor ("control-layer")
	│   ├── scheduler
	│   └── config-watcher (if watch is enabled)
	├── MessagingSupervisor ("messaging-layer")
	│   └── websocket-hub
	└── APISupervisor ("api-layer")
	    └── http-server

A crashed service is restarted with backoff without touching the other
layers. Supervisor events are logged through sutureslog into zerolog.

# Usage Example

	logger := logging.NewSlogLogger("supervisor")
	tree, err := supervisor.NewSupervisorTree(logger, supervisor.DefaultTreeConfig())
	if err != nil {
	    logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddControlService(sched)
	tree.AddMessagingService(hub)
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := tree.ServeBackground(ctx)
	<-ctx.Done()
	<-errCh

Shutdown does not wait for pipeline runs; the orchestrator's Close does.
*/
package supervisor
