// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

package transfer

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// progressEventInterval is the minimum gap between two progress events.
const progressEventInterval = 500 * time.Millisecond

// State is a pipeline run's current stage.
type State string

const (
	StateIdle       State = "idle"
	StateArchiving  State = "archiving"
	StateEncrypting State = "encrypting"
	StateUploading  State = "uploading"
	StatePruning    State = "pruning"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// transitions lists the legal successors of each non-terminal state.
// Failed is reachable from all of them.
var transitions = map[State][]State{
	StateIdle:       {StateArchiving},
	StateArchiving:  {StateEncrypting, StateUploading},
	StateEncrypting: {StateUploading},
	StateUploading:  {StatePruning},
	StatePruning:    {StateDone},
}

func canTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Event is published on every state transition and progress report.
type Event struct {
	Task      string    `json:"task"`
	RunID     string    `json:"run_id"`
	State     State     `json:"state"`
	Processed int64     `json:"processed,omitempty"`
	Total     int64     `json:"total,omitempty"`
	Archive   string    `json:"archive,omitempty"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// Observer receives run events. It is called synchronously from the run and
// must not block.
type Observer func(Event)

// tracker holds one run's state and publishes its transitions.
type tracker struct {
	task      string
	runID     string
	state     State
	archive   string
	observer  Observer
	now       func() time.Time
	sometimes rate.Sometimes
}

func newTracker(task, runID string, observer Observer, now func() time.Time) *tracker {
	return &tracker{
		task:      task,
		runID:     runID,
		state:     StateIdle,
		observer:  observer,
		now:       now,
		sometimes: rate.Sometimes{First: 1, Interval: progressEventInterval},
	}
}

func (t *tracker) emit(e Event) {
	if t.observer == nil {
		return
	}
	e.Task, e.RunID, e.At = t.task, t.runID, t.now()
	if e.Archive == "" {
		e.Archive = t.archive
	}
	if e.State == "" {
		e.State = t.state
	}
	t.observer(e)
}

// enter moves the run to next.
func (t *tracker) enter(next State) error {
	if !canTransition(t.state, next) {
		return fmt.Errorf("illegal transition %s -> %s", t.state, next)
	}
	t.state = next
	t.sometimes = rate.Sometimes{First: 1, Interval: progressEventInterval}
	t.emit(Event{State: next})
	return nil
}

// fail moves the run to Failed, recording err.
func (t *tracker) fail(err error) {
	if t.state.Terminal() {
		return
	}
	t.state = StateFailed
	t.emit(Event{State: StateFailed, Error: err.Error()})
}

// progress publishes byte progress, throttled except for the final report.
func (t *tracker) progress(processed, total int64) {
	if t.observer == nil {
		return
	}
	if total > 0 && processed >= total {
		t.emit(Event{Processed: processed, Total: total})
		return
	}
	t.sometimes.Do(func() { t.emit(Event{Processed: processed, Total: total}) })
}
