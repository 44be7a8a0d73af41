// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

package transfer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// workspace owns every temporary file of one run. release removes them all
// and is deferred once, right after creation.
type workspace struct {
	dir    string
	files  []string
	logger *zerolog.Logger
}

// newWorkspace creates a private directory for the run under root.
func newWorkspace(root, task string, logger *zerolog.Logger) (*workspace, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create temp root: %w", err)
	}
	dir, err := os.MkdirTemp(root, strings.ReplaceAll(task, string(os.PathSeparator), "_")+"-")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &workspace{dir: dir, logger: logger}, nil
}

// path registers name as a temp file and returns its location.
func (w *workspace) path(name string) string {
	p := filepath.Join(w.dir, name)
	w.files = append(w.files, p)
	return p
}

// discard removes one temp file early.
func (w *workspace) discard(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		w.logger.Warn().Err(err).Str("file", path).Msg("Failed to remove temp file")
	}
}

// release removes every registered file and the workspace directory.
func (w *workspace) release() {
	for _, f := range w.files {
		w.discard(f)
	}
	if err := os.RemoveAll(w.dir); err != nil {
		w.logger.Warn().Err(err).Str("dir", w.dir).Msg("Failed to remove workspace")
		return
	}
	w.logger.Debug().Str("dir", w.dir).Msg("Workspace released")
}
