// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/stowage/internal/config"
	"github.com/tomtom215/stowage/internal/gate"
	"github.com/tomtom215/stowage/internal/scheduler"
	"github.com/tomtom215/stowage/internal/storage"
)

// TaskView is a task definition with its current gate status.
type TaskView struct {
	config.Task
	Status  gate.Status `json:"status"`
	NextRun *time.Time  `json:"next_run,omitempty"`
}

// ArchiveListing is the response of TaskArchives.
type ArchiveListing struct {
	Task     string            `json:"task"`
	Backend  string            `json:"backend"`
	Archives []storage.Archive `json:"archives"`
}

// ExecuteResult is the response of ExecuteTask.
type ExecuteResult struct {
	Task     string         `json:"task"`
	Decision string         `json:"decision"`
	State    gate.TaskState `json:"state"`
}

// ReloadResult is the response of ReloadConfig.
type ReloadResult struct {
	Tasks     int               `json:"tasks"`
	Backends  int               `json:"backends"`
	Skipped   []string          `json:"skipped"`
	Scheduled []scheduler.Entry `json:"scheduled,omitempty"`
	LoadedAt  time.Time         `json:"loaded_at"`
}

// ListTasks returns every valid task, passwords redacted.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	snap := h.config.Current()

	next := make(map[string]time.Time)
	if h.schedule != nil {
		for _, e := range h.schedule.Entries() {
			next[e.Task] = e.Next
		}
	}

	views := make([]TaskView, 0, len(snap.Tasks))
	for _, name := range snap.TaskNames() {
		task, _ := snap.Task(name)
		view := TaskView{Task: task.Redacted(), Status: h.gate.State(name).Status}
		if t, ok := next[name]; ok && !t.IsZero() {
			view.NextRun = &t
		}
		views = append(views, view)
	}
	respondList(w, r, views)
}

// ListBackends returns every valid backend, credentials masked.
func (h *Handler) ListBackends(w http.ResponseWriter, r *http.Request) {
	snap := h.config.Current()

	backends := make([]config.Backend, 0, len(snap.Backends))
	for _, name := range snap.BackendNames() {
		b, _ := snap.Backend(name)
		backends = append(backends, b.Redacted())
	}
	respondList(w, r, backends)
}

// TaskArchives lists the archives of a task on its destination, newest
// first.
func (h *Handler) TaskArchives(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	snap := h.config.Current()

	task, ok := snap.Task(name)
	if !ok {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, fmt.Sprintf("task not found: %s", name), nil)
		return
	}
	dest, ok := snap.Backend(task.Destination)
	if !ok {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, fmt.Sprintf("backend not found: %s", task.Destination), nil)
		return
	}

	backend, err := h.backends.Get(r.Context(), dest)
	if err != nil {
		respondError(w, r, http.StatusBadGateway, ErrCodeStorage, "Failed to open destination backend", err)
		return
	}
	archives, err := backend.List(r.Context(), task.Prefix)
	if err != nil {
		respondError(w, r, http.StatusBadGateway, ErrCodeStorage, "Failed to list archives", err)
		return
	}
	if archives == nil {
		archives = []storage.Archive{}
	}

	respondSuccess(w, r, http.StatusOK, ArchiveListing{
		Task:     name,
		Backend:  dest.Name,
		Archives: archives,
	})
}

// ExecuteTask starts or queues a task and returns 202 without waiting for
// the run.
func (h *Handler) ExecuteTask(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	decision, err := h.runner.Trigger(name)
	if err != nil {
		status, code := triggerErrorStatus(err)
		respondError(w, r, status, code, err.Error(), err)
		return
	}

	respondSuccess(w, r, http.StatusAccepted, ExecuteResult{
		Task:     name,
		Decision: decision.String(),
		State:    h.gate.State(name),
	})
}

// TaskStatus returns the gate state of one task.
func (h *Handler) TaskStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, ok := h.config.Current().Task(name); !ok {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, fmt.Sprintf("task not found: %s", name), nil)
		return
	}
	respondSuccess(w, r, http.StatusOK, h.gate.State(name))
}

// AllTaskStatus returns the running task, the queue and every task the
// gate has seen.
func (h *Handler) AllTaskStatus(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, http.StatusOK, h.gate.Snapshot())
}

// Schedule returns the active cron entries.
func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	var entries []scheduler.Entry
	if h.schedule != nil {
		entries = h.schedule.Entries()
	}
	respondList(w, r, entries)
}

// ReloadConfig re-reads the configuration file. On failure the previous
// configuration stays active.
func (h *Handler) ReloadConfig(w http.ResponseWriter, r *http.Request) {
	snap, err := h.config.Reload()
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeReloadFailed, err.Error(), err)
		return
	}

	result := ReloadResult{
		Tasks:    len(snap.Tasks),
		Backends: len(snap.Backends),
		Skipped:  make([]string, 0, len(snap.Skipped)),
		LoadedAt: snap.LoadedAt,
	}
	for _, skipped := range snap.Skipped {
		result.Skipped = append(result.Skipped, skipped.Error())
	}
	if h.schedule != nil {
		result.Scheduled = h.schedule.Entries()
	}
	respondSuccess(w, r, http.StatusOK, result)
}
