// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/stowage/internal/config"
	"github.com/tomtom215/stowage/internal/gate"
	"github.com/tomtom215/stowage/internal/metrics"
)

type recordingTrigger struct {
	mu    sync.Mutex
	calls []string
	fired chan string
}

func newRecordingTrigger() *recordingTrigger {
	return &recordingTrigger{fired: make(chan string, 16)}
}

func (r *recordingTrigger) Trigger(name string) (gate.Decision, error) {
	r.mu.Lock()
	r.calls = append(r.calls, name)
	r.mu.Unlock()
	select {
	case r.fired <- name:
	default:
	}
	return gate.Started, nil
}

func snapshotWith(schedules map[string]string) *config.Snapshot {
	snap := &config.Snapshot{Tasks: map[string]config.Task{}, Backends: map[string]config.Backend{}}
	for name, schedule := range schedules {
		snap.Tasks[name] = config.Task{Name: name, Schedule: schedule}
	}
	return snap
}

func TestReloadSkipsInvalidAndUnscheduled(t *testing.T) {
	s := New(newRecordingTrigger())

	n := s.Reload(snapshotWith(map[string]string{
		"daily":   "0 3 * * *",
		"hourly":  "@hourly",
		"broken":  "not a cron",
		"seconds": "*/5 * * * * *",
		"manual":  "",
	}))
	if n != 2 {
		t.Fatalf("Reload() = %d, want 2", n)
	}
	if got := testutil.ToFloat64(metrics.SchedulerEntries); got != 2 {
		t.Errorf("scheduler entries gauge = %v", got)
	}

	entries := s.Entries()
	if len(entries) != 2 || entries[0].Task != "daily" || entries[1].Task != "hourly" {
		t.Fatalf("Entries() = %+v", entries)
	}
	if entries[0].Schedule != "0 3 * * *" {
		t.Errorf("schedule = %q", entries[0].Schedule)
	}
}

func TestReloadReplacesEntries(t *testing.T) {
	s := New(newRecordingTrigger())

	s.Reload(snapshotWith(map[string]string{"a": "@daily", "b": "@weekly"}))
	n := s.Reload(snapshotWith(map[string]string{"c": "@monthly"}))
	if n != 1 {
		t.Fatalf("Reload() = %d, want 1", n)
	}
	entries := s.Entries()
	if len(entries) != 1 || entries[0].Task != "c" {
		t.Errorf("Entries() = %+v, want only c", entries)
	}
	if len(s.cron.Entries()) != 1 {
		t.Errorf("cron holds %d entries, want 1", len(s.cron.Entries()))
	}
}

func TestServeFiresTrigger(t *testing.T) {
	trigger := newRecordingTrigger()
	s := New(trigger)
	s.Reload(snapshotWith(map[string]string{"fast": "@every 1s"}))

	before := testutil.ToFloat64(metrics.SchedulerTriggers.WithLabelValues("fast"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	select {
	case name := <-trigger.fired:
		if name != "fast" {
			t.Errorf("fired %q, want fast", name)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("trigger never fired")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	if got := testutil.ToFloat64(metrics.SchedulerTriggers.WithLabelValues("fast")); got < before+1 {
		t.Errorf("trigger counter = %v, want at least %v", got, before+1)
	}
	if s.String() != "scheduler" {
		t.Errorf("String() = %q", s.String())
	}
}

type failingTrigger struct{}

func (failingTrigger) Trigger(string) (gate.Decision, error) {
	return 0, errors.New("task not found")
}

func TestFireLogsTriggerErrors(t *testing.T) {
	s := New(failingTrigger{})
	before := testutil.ToFloat64(metrics.SchedulerTriggers.WithLabelValues("ghost"))
	s.fire("ghost")
	if got := testutil.ToFloat64(metrics.SchedulerTriggers.WithLabelValues("ghost")); got != before+1 {
		t.Errorf("trigger counter = %v", got)
	}
}
