// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

package websocket

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/stowage/internal/gate"
)

func newTestClient(hub *Hub, buffer int) *Client {
	return &Client{
		id:   clientIDCounter.Add(1),
		hub:  hub,
		send: make(chan Message, buffer),
		done: make(chan struct{}),
	}
}

func startHub(t *testing.T, hub *Hub) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.RunWithContext(ctx) }()
	t.Cleanup(cancel)
	return cancel, done
}

// waitFor reads from ch until match returns true.
func waitFor(t *testing.T, ch <-chan Message, match func(Message) bool) Message {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				t.Fatal("client channel closed while waiting")
			}
			if match(msg) {
				return msg
			}
		case <-deadline:
			t.Fatal("timed out waiting for message")
		}
	}
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for hub.GetClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", hub.GetClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func isRunning(name string) func(Message) bool {
	return func(m Message) bool {
		if m.Type != MessageTypeTaskStatus {
			return false
		}
		snap, ok := m.Data.(gate.Snapshot)
		return ok && snap.Running == name
	}
}

func TestHubForwardsGateSnapshots(t *testing.T) {
	t.Parallel()

	g := gate.New()
	hub := NewHub(g.Subscribe)
	startHub(t, hub)

	client := newTestClient(hub, 16)
	hub.Register <- client
	waitForClients(t, hub, 1)

	if d := g.RequestStart("nightly"); d != gate.Started {
		t.Fatalf("RequestStart = %v", d)
	}
	waitFor(t, client.send, isRunning("nightly"))

	g.RequestStart("weekly")
	msg := waitFor(t, client.send, func(m Message) bool {
		snap, ok := m.Data.(gate.Snapshot)
		return ok && len(snap.Queue) == 1
	})
	snap := msg.Data.(gate.Snapshot)
	if snap.Queue[0] != "weekly" || snap.Tasks["weekly"].QueuePosition != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestHubSendsLatestSnapshotOnRegister(t *testing.T) {
	t.Parallel()

	g := gate.New()
	g.RequestStart("nightly")

	hub := NewHub(g.Subscribe)
	startHub(t, hub)

	// The first client forces the hub to have consumed at least one snapshot.
	first := newTestClient(hub, 16)
	hub.Register <- first
	waitFor(t, first.send, isRunning("nightly"))

	late := newTestClient(hub, 16)
	hub.Register <- late
	waitFor(t, late.send, isRunning("nightly"))
}

func TestHubBroadcastJSON(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	startHub(t, hub)

	a := newTestClient(hub, 4)
	b := newTestClient(hub, 4)
	hub.Register <- a
	hub.Register <- b
	waitForClients(t, hub, 2)

	hub.BroadcastJSON(MessageTypeTaskEvent, map[string]string{"task": "nightly", "state": "uploading"})

	for _, c := range []*Client{a, b} {
		msg := waitFor(t, c.send, func(m Message) bool { return m.Type == MessageTypeTaskEvent })
		data, ok := msg.Data.(map[string]string)
		if !ok || data["state"] != "uploading" {
			t.Errorf("client %d got %+v", c.id, msg.Data)
		}
	}
}

func TestHubDropsSlowClients(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	startHub(t, hub)

	slow := newTestClient(hub, 1)
	fast := newTestClient(hub, 8)
	hub.Register <- slow
	hub.Register <- fast
	waitForClients(t, hub, 2)

	hub.BroadcastJSON(MessageTypeTaskEvent, 1)
	hub.BroadcastJSON(MessageTypeTaskEvent, 2)
	waitForClients(t, hub, 1)

	// The slow client's channel is closed after its buffered message.
	<-slow.send
	if _, ok := <-slow.send; ok {
		t.Error("slow client channel still open")
	}
}

func TestHubUnregister(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	startHub(t, hub)

	c := newTestClient(hub, 1)
	hub.Register <- c
	waitForClients(t, hub, 1)

	hub.Unregister <- c
	waitForClients(t, hub, 0)
	if _, ok := <-c.send; ok {
		t.Error("send channel still open after unregister")
	}

	// A second unregister is harmless.
	hub.Unregister <- c
	waitForClients(t, hub, 0)
}

func TestHubShutdownClosesClients(t *testing.T) {
	t.Parallel()

	g := gate.New()
	hub := NewHub(g.Subscribe)
	cancel, done := startHub(t, hub)

	c := newTestClient(hub, 16)
	hub.Register <- c
	waitForClients(t, hub, 1)

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("RunWithContext() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("hub did not stop")
	}

	if hub.GetClientCount() != 0 {
		t.Errorf("client count after shutdown = %d", hub.GetClientCount())
	}
	for range c.send {
	}

	// The gate subscription is released.
	g.RequestStart("after")
}

func TestGetShutdownReason(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := getShutdownReason(ctx); got != ShutdownReasonContextCanceled {
		t.Errorf("canceled reason = %q", got)
	}

	dctx, dcancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer dcancel()
	if got := getShutdownReason(dctx); got != ShutdownReasonContextDeadline {
		t.Errorf("deadline reason = %q", got)
	}
}

func TestHubString(t *testing.T) {
	t.Parallel()
	if got := NewHub(nil).String(); got != "websocket-hub" {
		t.Errorf("String() = %q", got)
	}
}
