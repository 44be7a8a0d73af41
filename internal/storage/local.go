// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tomtom215/stowage/internal/config"
	"github.com/tomtom215/stowage/internal/logging"
)

// Local stores archives as files in one directory.
type Local struct {
	name string
	dir  string
}

// NewLocal returns a Local backend rooted at dir.
func NewLocal(name, dir string) *Local {
	return &Local{name: name, dir: filepath.Clean(dir)}
}

// Name returns the backend name.
func (l *Local) Name() string { return l.name }

// Kind returns config.BackendLocal.
func (l *Local) Kind() config.BackendType { return config.BackendLocal }

// Dir returns the backend directory.
func (l *Local) Dir() string { return l.dir }

// Key returns the absolute file path for name.
func (l *Local) Key(name string) string {
	return filepath.Join(l.dir, name)
}

// List returns matching archives; a missing directory lists as empty.
func (l *Local) List(_ context.Context, prefix string) ([]Archive, error) {
	entries, err := os.ReadDir(l.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []Archive{}, nil
	}
	if err != nil {
		return nil, &IOError{Op: "list", Backend: l.name, Err: err}
	}

	archives := make([]Archive, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !MatchesArchive(entry.Name(), prefix) {
			continue
		}
		info, err := entry.Info()
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, &IOError{Op: "list", Backend: l.name, Key: entry.Name(), Err: err}
		}
		archives = append(archives, Archive{
			Name:      entry.Name(),
			Key:       l.Key(entry.Name()),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}
	SortNewestFirst(archives)
	return archives, nil
}

// Write streams r into a hidden partial file, syncs it and renames it to
// name. The partial file is removed on failure.
//
//nolint:gosec // G304: path is built from the configured directory and a generated name
func (l *Local) Write(_ context.Context, name string, r io.Reader, size int64, progress ProgressFunc) (Archive, error) {
	key := l.Key(name)
	fail := func(err error) (Archive, error) {
		return Archive{}, &IOError{Op: "write", Backend: l.name, Key: key, Err: err}
	}

	if err := os.MkdirAll(l.dir, 0o750); err != nil {
		return fail(fmt.Errorf("create directory: %w", err))
	}

	partial := filepath.Join(l.dir, "."+name+".partial")
	f, err := os.OpenFile(partial, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return fail(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = f.Close()
			if rmErr := os.Remove(partial); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				logging.Warn().Err(rmErr).Str("file", partial).Msg("Failed to remove partial archive")
			}
		}
	}()

	src := r
	if size >= 0 {
		src = io.LimitReader(r, size+1)
	}
	pw := &progressWriter{dst: f, total: size, report: progress}
	if _, err := io.CopyBuffer(pw, src, make([]byte, copyBufferSize)); err != nil {
		return fail(err)
	}
	if size >= 0 && pw.written != size {
		return fail(fmt.Errorf("wrote %d bytes, expected %d", pw.written, size))
	}
	if err := f.Sync(); err != nil {
		return fail(fmt.Errorf("sync: %w", err))
	}
	if err := f.Close(); err != nil {
		return fail(fmt.Errorf("close: %w", err))
	}
	if err := os.Rename(partial, key); err != nil {
		return fail(fmt.Errorf("rename: %w", err))
	}
	committed = true

	info, err := os.Stat(key)
	if err != nil {
		return fail(err)
	}
	return Archive{Name: name, Key: key, Size: info.Size(), CreatedAt: info.ModTime()}, nil
}

// Delete removes the archive file. Keys outside the backend directory are
// rejected.
func (l *Local) Delete(_ context.Context, key string) error {
	if filepath.Dir(filepath.Clean(key)) != l.dir {
		return &IOError{Op: "delete", Backend: l.name, Key: key, Err: fs.ErrPermission}
	}
	if err := os.Remove(key); err != nil {
		return &IOError{Op: "delete", Backend: l.name, Key: key, Err: err}
	}
	return nil
}
