// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

/*
Package main is the entry point for the Stowage server.

Stowage archives source directories on a schedule, optionally encrypts the
archives, uploads them to local or S3-compatible backends and prunes old
archives according to each task's retention.

# Application Architecture

The server runs under a Suture v4 supervisor tree:

	RootSupervisor ("stowage")
	├── ControlSupervisor ("control-layer")
	│   ├── Scheduler (cron triggers)
	│   └── Config watcher (optional, watch: true)
	├── MessagingSupervisor ("messaging-layer")
	│   └── WebSocket Hub (task status feed)
	└── APISupervisor ("api-layer")
	    └── HTTP Server

Pipeline runs are owned by the transfer orchestrator, not the tree. Only one
task runs at a time; further requests wait in FIFO order.

Component initialization order:

 1. Configuration: Koanf v2 with a YAML file and environment variables
 2. Logging: zerolog with level and format from configuration
 3. Execution gate, backend registry, orchestrator and scheduler
 4. WebSocket hub fed by gate snapshots and pipeline events
 5. HTTP API (Chi router) and supervisor tree

# Configuration

The config file is taken from CONFIG_PATH, else the first of config.yaml,
config.yml or /etc/stowage/config.yaml that exists. Environment variables
override global settings:

	HTTP_HOST, HTTP_PORT, LOG_LEVEL, LOG_FORMAT, STOWAGE_TEMP_DIR, CONFIG_WATCH

# Signal Handling

On SIGINT or SIGTERM the server stops the supervisor tree (HTTP server,
scheduler, hub), refuses new triggers, drops queued tasks and waits for the
in-flight run to finish.

# Example Usage

	export CONFIG_PATH=/etc/stowage/config.yaml
	export LOG_FORMAT=console
	./stowage
*/
package main
