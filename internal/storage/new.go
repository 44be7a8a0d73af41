// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

package storage

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/tomtom215/stowage/internal/config"
)

// New builds the backend variant selected by cfg.Type.
func New(ctx context.Context, cfg config.Backend) (Backend, error) {
	switch cfg.Type {
	case config.BackendLocal:
		if cfg.Local == nil {
			return nil, fmt.Errorf("%w: local backend %q has no settings", ErrUnsupportedBackend, cfg.Name)
		}
		return NewLocal(cfg.Name, cfg.Local.Path), nil
	case config.BackendS3:
		return NewS3(ctx, cfg.Name, cfg.S3)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, cfg.Type)
	}
}

type registryEntry struct {
	cfg     config.Backend
	backend Backend
}

// Registry caches constructed backends by name so that client state such as
// circuit breakers survives between runs. An entry is rebuilt when its
// configuration changes.
type Registry struct {
	mu      sync.Mutex
	entries map[string]registryEntry
	build   func(context.Context, config.Backend) (Backend, error)
}

// NewRegistry returns an empty registry that constructs backends with New.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registryEntry), build: New}
}

// Get returns the backend for cfg, constructing it on first use or when the
// configuration differs from the cached one.
func (r *Registry) Get(ctx context.Context, cfg config.Backend) (Backend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[cfg.Name]; ok && reflect.DeepEqual(e.cfg, cfg) {
		return e.backend, nil
	}
	backend, err := r.build(ctx, cfg)
	if err != nil {
		return nil, err
	}
	r.entries[cfg.Name] = registryEntry{cfg: cfg, backend: backend}
	return backend, nil
}

// Retain drops cached backends that are not present in snap.
func (r *Registry) Retain(snap *config.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name := range r.entries {
		if _, ok := snap.Backend(name); !ok {
			delete(r.entries, name)
		}
	}
}

// Len returns the number of cached backends.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
