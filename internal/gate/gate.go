// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

/*
Package gate enforces that at most one pipeline runs at a time.

A task that asks to start while another task is running joins a FIFO wait
queue; asking again while waiting changes nothing. When the running task
completes or fails, the head of the queue is promoted to running and returned
to the caller, which is responsible for actually launching it. The gate never
calls pipeline code.

One Gate is created in main and shared by every trigger source.
*/
package gate

import (
	"sync"
	"time"

	"github.com/tomtom215/stowage/internal/logging"
	"github.com/tomtom215/stowage/internal/metrics"
)

// Status is a task's position relative to the execution slot.
type Status string

const (
	StatusNotRunning Status = "not_running"
	StatusWaiting    Status = "waiting"
	StatusRunning    Status = "running"
)

// Outcome is the result of a task's most recent run.
type Outcome string

const (
	OutcomeNone      Outcome = ""
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// Decision is the gate's answer to RequestStart.
type Decision int

const (
	// Started means the caller holds the slot and must run the task.
	Started Decision = iota
	// Queued means the task was appended to the wait queue.
	Queued
	// AlreadyQueued means the task was already waiting.
	AlreadyQueued
	// AlreadyRunning means the task itself holds the slot.
	AlreadyRunning
)

func (d Decision) String() string {
	switch d {
	case Started:
		return "started"
	case Queued:
		return "queued"
	case AlreadyQueued:
		return "already_queued"
	case AlreadyRunning:
		return "already_running"
	default:
		return "unknown"
	}
}

// TaskState is the gate's view of one task.
type TaskState struct {
	Name          string    `json:"name"`
	Status        Status    `json:"status"`
	QueuePosition int       `json:"queue_position,omitempty"`
	LastOutcome   Outcome   `json:"last_outcome,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
	StartedAt     time.Time `json:"started_at,omitempty"`
	FinishedAt    time.Time `json:"finished_at,omitempty"`
}

// Snapshot is a point-in-time copy of every known task state.
type Snapshot struct {
	Running string               `json:"running,omitempty"`
	Queue   []string             `json:"queue"`
	Tasks   map[string]TaskState `json:"tasks"`
	At      time.Time            `json:"at"`
}

// Gate is the process-wide execution slot with its wait queue.
type Gate struct {
	mu          sync.Mutex
	states      map[string]*TaskState
	queue       []string
	running     string
	subscribers map[chan Snapshot]struct{}
	now         func() time.Time
}

// New returns an idle gate.
func New() *Gate {
	return &Gate{
		states:      make(map[string]*TaskState),
		subscribers: make(map[chan Snapshot]struct{}),
		now:         time.Now,
	}
}

// state returns the entry for name, creating it lazily. Caller holds mu.
func (g *Gate) state(name string) *TaskState {
	s, ok := g.states[name]
	if !ok {
		s = &TaskState{Name: name, Status: StatusNotRunning}
		g.states[name] = s
	}
	return s
}

// RequestStart asks for the execution slot on behalf of name.
func (g *Gate) RequestStart(name string) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.state(name)
	var d Decision
	switch {
	case g.running == name:
		d = AlreadyRunning
	case g.running == "":
		g.markRunning(s)
		d = Started
	case s.Status == StatusWaiting:
		d = AlreadyQueued
	default:
		s.Status = StatusWaiting
		g.queue = append(g.queue, name)
		d = Queued
	}

	logging.Debug().Str("task", name).Str("decision", d.String()).Int("queue_depth", len(g.queue)).
		Msg("Gate decision")
	metrics.RecordGateDecision(d.String())
	if d == Started || d == Queued {
		g.changed()
	}
	return d
}

// Complete releases the slot held by name after a successful run and
// promotes the next waiting task, if any.
func (g *Gate) Complete(name string) (next string, promoted bool) {
	return g.finish(name, OutcomeSucceeded, nil)
}

// Fail releases the slot held by name after a failed run and promotes the
// next waiting task, if any.
func (g *Gate) Fail(name string, err error) (next string, promoted bool) {
	return g.finish(name, OutcomeFailed, err)
}

func (g *Gate) finish(name string, outcome Outcome, err error) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running != name {
		logging.Warn().Str("task", name).Str("running", g.running).
			Msg("Gate release for a task that does not hold the slot")
		return "", false
	}

	s := g.state(name)
	s.Status = StatusNotRunning
	s.LastOutcome = outcome
	s.LastError = ""
	if err != nil {
		s.LastError = err.Error()
	}
	s.FinishedAt = g.now()
	g.running = ""

	var next string
	promoted := len(g.queue) > 0
	if promoted {
		next = g.queue[0]
		g.queue = g.queue[1:]
		g.markRunning(g.state(next))
		logging.Info().Str("task", next).Str("after", name).Msg("Promoted queued task")
	}
	g.changed()
	return next, promoted
}

// markRunning gives s the slot. Caller holds mu.
func (g *Gate) markRunning(s *TaskState) {
	s.Status = StatusRunning
	s.StartedAt = g.now()
	g.running = s.Name
}

// Running returns the task holding the slot, or "".
func (g *Gate) Running() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// StatusOf returns the status of name; unknown tasks are not running.
func (g *Gate) StatusOf(name string) Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.states[name]; ok {
		return s.Status
	}
	return StatusNotRunning
}

// State returns a copy of name's state.
func (g *Gate) State(name string) TaskState {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.states[name]; ok {
		out := *s
		out.QueuePosition = g.position(name)
		return out
	}
	return TaskState{Name: name, Status: StatusNotRunning}
}

// AllStatuses returns the status of every task the gate has seen.
func (g *Gate) AllStatuses() map[string]Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]Status, len(g.states))
	for name, s := range g.states {
		out[name] = s.Status
	}
	return out
}

// Snapshot returns a copy of the full gate state.
func (g *Gate) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshot()
}

func (g *Gate) snapshot() Snapshot {
	snap := Snapshot{
		Running: g.running,
		Queue:   append([]string(nil), g.queue...),
		Tasks:   make(map[string]TaskState, len(g.states)),
		At:      g.now(),
	}
	if snap.Queue == nil {
		snap.Queue = []string{}
	}
	for name, s := range g.states {
		c := *s
		c.QueuePosition = g.position(name)
		snap.Tasks[name] = c
	}
	return snap
}

// position is the 1-based queue position of name, or 0. Caller holds mu.
func (g *Gate) position(name string) int {
	for i, q := range g.queue {
		if q == name {
			return i + 1
		}
	}
	return 0
}

// Subscribe returns a channel that receives a Snapshot after every state
// change, starting with the current one. A slow subscriber only ever sees
// the latest snapshot. The returned func unsubscribes and closes the
// channel.
func (g *Gate) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	g.mu.Lock()
	g.subscribers[ch] = struct{}{}
	ch <- g.snapshot()
	g.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.subscribers, ch)
			close(ch)
			g.mu.Unlock()
		})
	}
}

// changed publishes the new state. Caller holds mu.
func (g *Gate) changed() {
	metrics.UpdateGate(len(g.queue), g.running != "")
	if len(g.subscribers) == 0 {
		return
	}
	snap := g.snapshot()
	for ch := range g.subscribers {
		select {
		case ch <- snap:
		default:
			// Replace the stale snapshot.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
