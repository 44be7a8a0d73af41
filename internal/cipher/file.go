// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

package cipher

import (
	"fmt"
	"io"
	"os"
)

// copyBufferSize bounds each chunk moved between files.
const copyBufferSize = 32 * 1024

// streamCloser is implemented by EncryptWriter and DecryptWriter.
type streamCloser interface {
	io.Writer
	Close() error
}

// EncryptFile encrypts src into a new file at dst.
func EncryptFile(src, dst, password string) error {
	return transformFile(src, dst, func(w io.Writer) (streamCloser, error) {
		return NewEncryptWriter(w, password)
	})
}

// DecryptFile decrypts src into a new file at dst.
func DecryptFile(src, dst, password string) error {
	return transformFile(src, dst, func(w io.Writer) (streamCloser, error) {
		return NewDecryptWriter(w, password)
	})
}

//nolint:gosec // G304: paths come from the pipeline workspace
func transformFile(src, dst string, wrap func(io.Writer) (streamCloser, error)) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", dst, cerr)
		}
	}()

	stream, err := wrap(out)
	if err != nil {
		return err
	}
	if _, err = io.CopyBuffer(stream, in, make([]byte, copyBufferSize)); err != nil {
		return fmt.Errorf("failed to stream %s: %w", src, err)
	}
	if err = stream.Close(); err != nil {
		return err
	}
	if err = out.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", dst, err)
	}
	return nil
}
