// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

package services

import (
	"context"
)

// ConfigWatcher is satisfied by *config.Store.
type ConfigWatcher interface {
	Watch(ctx context.Context) error
	Path() string
}

// ConfigWatchService reloads configuration when its file changes.
type ConfigWatchService struct {
	watcher ConfigWatcher
}

// NewConfigWatchService wraps watcher.
func NewConfigWatchService(watcher ConfigWatcher) *ConfigWatchService {
	return &ConfigWatchService{watcher: watcher}
}

// Serve implements suture.Service.
func (c *ConfigWatchService) Serve(ctx context.Context) error {
	return c.watcher.Watch(ctx)
}

// String names the service in supervisor logs.
func (c *ConfigWatchService) String() string {
	return "config-watcher:" + c.watcher.Path()
}
