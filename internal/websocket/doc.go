// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

/*
Package websocket pushes live task status to connected clients.

The hub follows the execution gate: every gate snapshot is broadcast as a
"task_status" message, and pipeline state and progress events are broadcast
as "task_event" messages. A newly connected client immediately receives the
latest status snapshot.

	┌──────────┐   snapshots   ┌─────┐
	│   gate   │ ────────────▶ │ Hub │ ──▶ Client1, Client2, ...
	└──────────┘               └─────┘
	                              ▲
	  transfer.Event ─────────────┘

Each client runs two goroutines: readPump answers application pings and
detects disconnects; writePump serializes messages and sends keepalive
pings.

The hub runs as a supervised service:

	hub := websocket.NewHub(gate.Subscribe)
	tree.AddMessagingService(hub)
*/
package websocket
