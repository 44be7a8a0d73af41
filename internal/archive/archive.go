// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

/*
Package archive builds zip archives of a directory's immediate files.

Only regular files directly inside the source directory are added;
subdirectories are not descended into. Entries are written with deflate at
maximum compression. The total size of all files is computed before the
first byte is written so progress can be reported as processed/total.

Writer chain:

	source file -> 32 KiB copy buffer -> zip entry (flate level 9) -> output

An entry that disappears between listing and opening is logged and skipped.
Any other I/O error aborts the build.
*/
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/tomtom215/stowage/internal/logging"
)

const copyBufferSize = 32 * 1024

// ProgressFunc receives cumulative processed bytes and the precomputed total.
type ProgressFunc func(processed, total int64)

// Result describes a finished archive.
type Result struct {
	// Files is the number of entries written.
	Files int

	// Skipped lists entries that vanished before they could be read.
	Skipped []string

	// TotalBytes is the precomputed uncompressed size of all candidate files.
	TotalBytes int64

	// ProcessedBytes is the uncompressed size actually written.
	ProcessedBytes int64
}

type entry struct {
	name string
	path string
	info fs.FileInfo
}

// Build streams the immediate regular files of dir into a zip written to w.
// The zip central directory is written before Build returns; w itself is
// not closed.
func Build(ctx context.Context, dir string, w io.Writer, progress ProgressFunc) (*Result, error) {
	logger := logging.CtxWith(ctx).Str("component", "archive").Logger()

	entries, total, err := scan(dir)
	if err != nil {
		return nil, err
	}
	result := &Result{TotalBytes: total}

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	counter := &progressCounter{total: total, report: progress}
	buf := make([]byte, copyBufferSize)

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		err := addEntry(zw, e, counter, buf)
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn().Str("file", e.path).Msg("File vanished before archiving, skipping")
			result.Skipped = append(result.Skipped, e.name)
			continue
		}
		if err != nil {
			return nil, err
		}
		result.Files++
		logger.Debug().Str("file", e.path).Int64("size", e.info.Size()).Msg("Added file to archive")
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	result.ProcessedBytes = counter.processed
	return result, nil
}

// BuildFile builds the archive of dir at dst. It returns only after dst has
// been synced and closed; on error dst is removed.
//
//nolint:gosec // G304: dst is a workspace path
func BuildFile(ctx context.Context, dir, dst string, progress ProgressFunc) (result *Result, err error) {
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = out.Close()
			_ = os.Remove(dst)
		}
	}()

	result, err = Build(ctx, dir, out, progress)
	if err != nil {
		return nil, err
	}
	if err = out.Sync(); err != nil {
		return nil, fmt.Errorf("failed to sync archive file: %w", err)
	}
	if err = out.Close(); err != nil {
		return nil, fmt.Errorf("failed to close archive file: %w", err)
	}
	return result, nil
}

// scan lists the regular files of dir and sums their sizes.
func scan(dir string) ([]entry, int64, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read source directory: %w", err)
	}

	var (
		entries []entry
		total   int64
	)
	for _, de := range dirEntries {
		path := filepath.Join(dir, de.Name())
		info, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			logging.Warn().Str("file", path).Msg("Entry vanished during scan, skipping")
			continue
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if !info.Mode().IsRegular() {
			continue
		}
		entries = append(entries, entry{name: de.Name(), path: path, info: info})
		total += info.Size()
	}
	return entries, total, nil
}

//nolint:gosec // G304: path comes from listing the configured source directory
func addEntry(zw *zip.Writer, e entry, counter *progressCounter, buf []byte) error {
	f, err := os.Open(e.path)
	if err != nil {
		return err
	}
	defer f.Close()

	header, err := zip.FileInfoHeader(e.info)
	if err != nil {
		return fmt.Errorf("failed to build header for %s: %w", e.name, err)
	}
	header.Name = e.name
	header.Method = zip.Deflate

	ew, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create entry %s: %w", e.name, err)
	}
	counter.dst = ew
	if _, err := io.CopyBuffer(counter, onlyReader{f}, buf); err != nil {
		return fmt.Errorf("failed to archive %s: %w", e.name, err)
	}
	return nil
}

// onlyReader hides WriterTo so CopyBuffer uses the bounded buffer.
type onlyReader struct{ io.Reader }

// progressCounter forwards writes and reports cumulative bytes.
type progressCounter struct {
	dst       io.Writer
	processed int64
	total     int64
	report    ProgressFunc
}

func (c *progressCounter) Write(p []byte) (int, error) {
	n, err := c.dst.Write(p)
	c.processed += int64(n)
	if c.report != nil && n > 0 {
		c.report(c.processed, c.total)
	}
	return n, err
}
