// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

package config

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/knadh/koanf/providers/file"

	"github.com/tomtom215/stowage/internal/logging"
	"github.com/tomtom215/stowage/internal/metrics"
)

// ReloadFunc is called after a successful reload with the new configuration.
type ReloadFunc func(cfg *Config, snap *Snapshot)

// Store holds the current configuration snapshot. Reads are lock-free;
// reloads are serialized and replace the snapshot as a whole.
type Store struct {
	cfg     atomic.Pointer[Config]
	current atomic.Pointer[Snapshot]

	path string
	load func(path string) (*Config, error)

	mu        sync.Mutex
	listeners []ReloadFunc
}

// NewStore publishes the snapshot built from cfg. Later reloads read
// cfg.Path again.
func NewStore(cfg *Config) *Store {
	s := &Store{path: cfg.Path, load: LoadFile}
	s.cfg.Store(cfg)
	s.current.Store(BuildSnapshot(cfg))
	return s
}

// Current returns the active snapshot.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Config returns the configuration the active snapshot was built from.
func (s *Store) Config() *Config {
	return s.cfg.Load()
}

// Path returns the watched config file path ("" when none).
func (s *Store) Path() string {
	return s.path
}

// OnReload registers fn to run after every successful reload.
func (s *Store) OnReload(fn ReloadFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Reload re-reads the configuration and swaps in a new snapshot. On error
// the previous snapshot stays active.
func (s *Store) Reload() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.load(s.path)
	metrics.RecordConfigReload(err)
	if err != nil {
		logging.Error().Err(err).Str("path", s.path).Msg("Configuration reload failed, keeping previous configuration")
		return nil, fmt.Errorf("reload configuration: %w", err)
	}
	snap := BuildSnapshot(cfg)
	s.cfg.Store(cfg)
	s.current.Store(snap)

	logging.Info().Str("path", s.path).Int("tasks", len(snap.Tasks)).Msg("Configuration reloaded")
	for _, fn := range s.listeners {
		fn(cfg, snap)
	}
	return snap, nil
}

// watchDebounce coalesces bursts of file events from editors that write
// a file in several steps.
const watchDebounce = 500 * time.Millisecond

// Watch reloads the configuration whenever the config file changes. It
// blocks until ctx is canceled.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		<-ctx.Done()
		return ctx.Err()
	}

	changed := make(chan struct{}, 1)
	provider := file.Provider(s.path)
	err := provider.Watch(func(_ interface{}, err error) {
		if err != nil {
			logging.Warn().Err(err).Str("path", s.path).Msg("Config file watcher error")
			return
		}
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return fmt.Errorf("watch %s: %w", s.path, err)
	}
	defer func() {
		if err := provider.Unwatch(); err != nil {
			logging.Debug().Err(err).Msg("Failed to stop config file watcher")
		}
	}()

	logging.Info().Str("path", s.path).Msg("Watching configuration file for changes")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
			timer := time.NewTimer(watchDebounce)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			// Drain events that arrived during the debounce window.
			select {
			case <-changed:
			default:
			}
			_, _ = s.Reload() // failures are logged; the old snapshot stays active
		}
	}
}
