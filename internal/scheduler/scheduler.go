// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

// Package scheduler fires task triggers from cron expressions.
//
// Each task with a schedule gets one cron entry. Invalid expressions are
// logged and skipped; the task can still be run manually. Reload replaces
// every entry at once when the configuration changes.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tomtom215/stowage/internal/config"
	"github.com/tomtom215/stowage/internal/gate"
	"github.com/tomtom215/stowage/internal/logging"
	"github.com/tomtom215/stowage/internal/metrics"
	"github.com/tomtom215/stowage/internal/validation"
)

// Trigger starts or queues a task without blocking.
type Trigger interface {
	Trigger(name string) (gate.Decision, error)
}

// Entry describes one scheduled task.
type Entry struct {
	Task     string    `json:"task"`
	Schedule string    `json:"schedule"`
	Next     time.Time `json:"next"`
	Prev     time.Time `json:"prev,omitempty"`
}

// Scheduler owns the cron entries for all tasks.
type Scheduler struct {
	cron    *cron.Cron
	trigger Trigger

	mu      sync.Mutex
	entries map[string]cron.EntryID
	specs   map[string]string
}

// New returns a Scheduler that calls trigger when an entry fires.
func New(trigger Trigger) *Scheduler {
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(validation.CronParser),
			cron.WithLogger(cronLogger{}),
		),
		trigger: trigger,
		entries: make(map[string]cron.EntryID),
		specs:   make(map[string]string),
	}
}

// Reload removes every entry and schedules the tasks of snap. It returns
// the number of scheduled tasks.
func (s *Scheduler) Reload(snap *config.Snapshot) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, id := range s.entries {
		s.cron.Remove(id)
		delete(s.entries, name)
		delete(s.specs, name)
	}

	for _, name := range snap.TaskNames() {
		task, _ := snap.Task(name)
		if task.Schedule == "" {
			logging.Debug().Str("task", name).Msg("Task has no schedule, manual trigger only")
			continue
		}
		id, err := s.cron.AddFunc(task.Schedule, func() { s.fire(name) })
		if err != nil {
			logging.Error().Err(err).Str("task", name).Str("schedule", task.Schedule).
				Msg("Invalid cron expression, task not scheduled")
			continue
		}
		s.entries[name] = id
		s.specs[name] = task.Schedule
		logging.Info().Str("task", name).Str("schedule", task.Schedule).Msg("Scheduled task")
	}

	metrics.SchedulerEntries.Set(float64(len(s.entries)))
	return len(s.entries)
}

func (s *Scheduler) fire(name string) {
	metrics.SchedulerTriggers.WithLabelValues(name).Inc()
	d, err := s.trigger.Trigger(name)
	if err != nil {
		logging.Error().Err(err).Str("task", name).Msg("Scheduled trigger failed")
		return
	}
	logging.Info().Str("task", name).Str("decision", d.String()).Msg("Scheduled trigger fired")
}

// Entries returns the scheduled tasks sorted by name.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.entries))
	for name, id := range s.entries {
		e := s.cron.Entry(id)
		out = append(out, Entry{Task: name, Schedule: s.specs[name], Next: e.Next, Prev: e.Prev})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Task < out[j].Task })
	return out
}

// Serve runs the cron loop until ctx is canceled. It implements
// suture.Service.
func (s *Scheduler) Serve(ctx context.Context) error {
	s.cron.Start()
	logging.Info().Msg("Scheduler started")

	<-ctx.Done()

	stopped := s.cron.Stop()
	<-stopped.Done()
	logging.Info().Msg("Scheduler stopped")
	return ctx.Err()
}

// String names the service in supervisor logs.
func (s *Scheduler) String() string {
	return "scheduler"
}

// cronLogger routes cron's internal logging to zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logging.Trace().Str("component", "cron").Fields(keysAndValues).Msg(msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logging.Error().Str("component", "cron").Err(err).Fields(keysAndValues).Msg(msg)
}
