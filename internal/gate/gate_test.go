// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

package gate

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestRequestStartTransitions(t *testing.T) {
	t.Parallel()

	g := New()
	steps := []struct {
		task string
		want Decision
	}{
		{"a", Started},
		{"a", AlreadyRunning},
		{"b", Queued},
		{"c", Queued},
		{"b", AlreadyQueued},
	}
	for _, s := range steps {
		if got := g.RequestStart(s.task); got != s.want {
			t.Fatalf("RequestStart(%q) = %v, want %v", s.task, got, s.want)
		}
	}

	if g.StatusOf("a") != StatusRunning || g.StatusOf("b") != StatusWaiting || g.StatusOf("c") != StatusWaiting {
		t.Errorf("unexpected statuses: %v", g.AllStatuses())
	}
	if g.StatusOf("unknown") != StatusNotRunning {
		t.Error("unknown task should be not running")
	}
	snap := g.Snapshot()
	if len(snap.Queue) != 2 || snap.Queue[0] != "b" || snap.Queue[1] != "c" {
		t.Errorf("queue = %v, want [b c]", snap.Queue)
	}
	if snap.Tasks["c"].QueuePosition != 2 {
		t.Errorf("c position = %d", snap.Tasks["c"].QueuePosition)
	}
}

func TestCompletePromotesFIFO(t *testing.T) {
	t.Parallel()

	g := New()
	g.RequestStart("a")
	g.RequestStart("b")
	g.RequestStart("c")

	next, ok := g.Complete("a")
	if !ok || next != "b" {
		t.Fatalf("Complete(a) = %q, %v; want b, true", next, ok)
	}
	if g.Running() != "b" || g.StatusOf("b") != StatusRunning {
		t.Errorf("b should hold the slot, running = %q", g.Running())
	}
	if st := g.State("a"); st.Status != StatusNotRunning || st.LastOutcome != OutcomeSucceeded {
		t.Errorf("a state = %+v", st)
	}

	next, ok = g.Fail("b", errors.New("upload failed"))
	if !ok || next != "c" {
		t.Fatalf("Fail(b) = %q, %v; want c, true", next, ok)
	}
	if st := g.State("b"); st.LastOutcome != OutcomeFailed || st.LastError != "upload failed" {
		t.Errorf("b state = %+v", st)
	}

	next, ok = g.Complete("c")
	if ok || next != "" {
		t.Errorf("Complete(c) = %q, %v; want no promotion", next, ok)
	}
	if g.Running() != "" {
		t.Errorf("slot should be free, running = %q", g.Running())
	}
	if g.RequestStart("a") != Started {
		t.Error("idle gate should start a")
	}
}

func TestReleaseByNonHolderIsIgnored(t *testing.T) {
	t.Parallel()

	g := New()
	g.RequestStart("a")
	g.RequestStart("b")

	if next, ok := g.Complete("b"); ok || next != "" {
		t.Errorf("Complete(b) = %q, %v; want ignored", next, ok)
	}
	if g.Running() != "a" || g.StatusOf("b") != StatusWaiting {
		t.Error("state changed by a release from a non-holder")
	}
}

func TestSingleRunnerUnderContention(t *testing.T) {
	t.Parallel()

	g := New()
	var wg sync.WaitGroup
	started := make(chan string, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("task-%d", i)
			if g.RequestStart(name) == Started {
				started <- name
			}
		}(i)
	}
	wg.Wait()
	close(started)

	count := 0
	for range started {
		count++
	}
	if count != 1 {
		t.Fatalf("%d tasks started, want exactly 1", count)
	}

	// Drain the queue; exactly one task runs at every step.
	running := g.Running()
	for i := 0; i < 49; i++ {
		next, ok := g.Complete(running)
		if !ok {
			t.Fatalf("queue drained early after %d promotions", i)
		}
		n := 0
		for _, s := range g.AllStatuses() {
			if s == StatusRunning {
				n++
			}
		}
		if n != 1 {
			t.Fatalf("%d running tasks, want 1", n)
		}
		running = next
	}
	if _, ok := g.Complete(running); ok {
		t.Error("unexpected promotion after queue drained")
	}
}

func TestSubscribe(t *testing.T) {
	t.Parallel()

	g := New()
	ch, cancel := g.Subscribe()

	select {
	case snap := <-ch:
		if snap.Running != "" || len(snap.Queue) != 0 {
			t.Errorf("initial snapshot = %+v", snap)
		}
	case <-time.After(time.Second):
		t.Fatal("no initial snapshot")
	}

	g.RequestStart("a")
	g.RequestStart("b")

	// Slow subscriber sees only the newest state.
	select {
	case snap := <-ch:
		if snap.Running != "a" || len(snap.Queue) != 1 || snap.Queue[0] != "b" {
			t.Errorf("latest snapshot = %+v", snap)
		}
	case <-time.After(time.Second):
		t.Fatal("no update")
	}

	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}
	g.RequestStart("c")
}

func TestDecisionString(t *testing.T) {
	t.Parallel()

	for d, want := range map[Decision]string{
		Started: "started", Queued: "queued", AlreadyQueued: "already_queued",
		AlreadyRunning: "already_running", Decision(99): "unknown",
	} {
		if d.String() != want {
			t.Errorf("%d.String() = %q, want %q", d, d.String(), want)
		}
	}
}
