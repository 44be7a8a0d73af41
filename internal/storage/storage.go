// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

/*
Package storage implements the archive storage backends.

Two variants exist, selected once from configuration by New:

  - Local: archives are files in a directory. Writes go to a hidden
    ".{name}.partial" file that is fsynced and renamed into place, so a
    listing never shows a partially written archive.
  - S3: archives are objects in an S3-compatible bucket under an optional
    key prefix. Calls go through a circuit breaker and are not retried.

Archives are never tracked in an index; a backend's listing is the source of
truth. Listings only include names that start with "{prefix}-" and end in
".zip" or ".zip.crypt", newest first.
*/
package storage

import (
	"context"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/tomtom215/stowage/internal/config"
)

const (
	// ZipExtension is the extension of plain archives.
	ZipExtension = ".zip"

	// CryptExtension is appended to encrypted archives.
	CryptExtension = ".crypt"

	// timestampLayout is ISO-8601 UTC with milliseconds.
	timestampLayout = "2006-01-02T15:04:05.000Z"

	copyBufferSize = 32 * 1024
)

// Archive is one stored archive.
type Archive struct {
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Encrypted reports whether the archive carries the cipher extension.
func (a Archive) Encrypted() bool {
	return strings.HasSuffix(a.Name, CryptExtension)
}

// ProgressFunc receives cumulative bytes written and the expected total.
type ProgressFunc func(written, total int64)

// Backend is a storage target for archives.
type Backend interface {
	// Name is the configured backend name.
	Name() string

	// Kind is the backend variant.
	Kind() config.BackendType

	// List returns archives whose name matches prefix, newest first.
	// An empty prefix matches every archive name.
	List(ctx context.Context, prefix string) ([]Archive, error)

	// Write stores r under name. size is the exact byte count of r.
	Write(ctx context.Context, name string, r io.Reader, size int64, progress ProgressFunc) (Archive, error)

	// Delete removes the archive with the given key.
	Delete(ctx context.Context, key string) error

	// Key returns the storage key for an archive name.
	Key(name string) string
}

// ArchiveName builds "{prefix}-{timestamp}.zip" (plus ".crypt" when
// encrypted). The timestamp is t in UTC with ':' and '.' replaced by '-',
// for example "daily-2024-01-02T03-04-05-678Z.zip".
func ArchiveName(prefix string, t time.Time, encrypted bool) string {
	if prefix == "" {
		prefix = config.DefaultPrefix
	}
	stamp := strings.NewReplacer(":", "-", ".", "-").Replace(t.UTC().Format(timestampLayout))
	name := prefix + "-" + stamp + ZipExtension
	if encrypted {
		name += CryptExtension
	}
	return name
}

// ParseArchiveTime extracts the timestamp embedded by ArchiveName.
func ParseArchiveTime(name string) (time.Time, bool) {
	base := strings.TrimSuffix(strings.TrimSuffix(name, CryptExtension), ZipExtension)
	if len(base) < len(timestampLayout) {
		return time.Time{}, false
	}
	stamp := []byte(base[len(base)-len(timestampLayout):])
	stamp[13], stamp[16], stamp[19] = ':', ':', '.'
	t, err := time.Parse(timestampLayout, string(stamp))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// archiveTime is ParseArchiveTime falling back to now.
func archiveTime(name string) time.Time {
	if t, ok := ParseArchiveTime(name); ok {
		return t
	}
	return time.Now().UTC()
}

// MatchesArchive reports whether name is an archive belonging to prefix.
func MatchesArchive(name, prefix string) bool {
	if !strings.HasSuffix(name, ZipExtension) && !strings.HasSuffix(name, ZipExtension+CryptExtension) {
		return false
	}
	return prefix == "" || strings.HasPrefix(name, prefix+"-")
}

// SortNewestFirst orders archives by creation time descending, then by
// name descending.
func SortNewestFirst(archives []Archive) {
	sort.SliceStable(archives, func(i, j int) bool {
		if !archives[i].CreatedAt.Equal(archives[j].CreatedAt) {
			return archives[i].CreatedAt.After(archives[j].CreatedAt)
		}
		return archives[i].Name > archives[j].Name
	})
}

// progressWriter counts bytes passing through to dst.
type progressWriter struct {
	dst     io.Writer
	written int64
	total   int64
	report  ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.dst.Write(b)
	p.written += int64(n)
	if p.report != nil && n > 0 {
		p.report(p.written, p.total)
	}
	return n, err
}
