// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

package cipher

import (
	"bytes"
	"crypto/aes"
	stdcipher "crypto/cipher"
	"fmt"
	"io"
)

// EncryptWriter encrypts everything written to it. The header is emitted
// before the first ciphertext byte and Close writes the final padded block.
// Close does not close the underlying writer.
type EncryptWriter struct {
	dst     io.Writer
	mode    stdcipher.BlockMode
	header  []byte
	pending []byte
	out     []byte
	closed  bool
}

// NewEncryptWriter returns an EncryptWriter with a fresh random salt.
func NewEncryptWriter(dst io.Writer, password string) (*EncryptWriter, error) {
	salt, err := newSalt()
	if err != nil {
		return nil, err
	}
	return newEncryptWriter(dst, password, salt)
}

func newEncryptWriter(dst io.Writer, password string, salt []byte) (*EncryptWriter, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	key, iv := deriveKeyIV([]byte(password), salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	return &EncryptWriter{
		dst:     dst,
		mode:    stdcipher.NewCBCEncrypter(block, iv),
		header:  header(salt),
		pending: make([]byte, 0, blockSize),
	}, nil
}

// Write encrypts every complete block of pending plus p and buffers the rest.
func (w *EncryptWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, ErrClosed
	}
	if err := w.writeHeader(); err != nil {
		return 0, err
	}

	total := len(w.pending) + len(p)
	full := total - total%blockSize
	if full == 0 {
		w.pending = append(w.pending, p...)
		return len(p), nil
	}

	used := full - len(w.pending)
	w.out = append(w.out[:0], w.pending...)
	w.out = append(w.out, p[:used]...)
	w.mode.CryptBlocks(w.out, w.out)
	w.pending = append(w.pending[:0], p[used:]...)
	if _, err := w.dst.Write(w.out); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close pads and encrypts the remaining bytes. An empty stream still yields
// the header and one padding block.
func (w *EncryptWriter) Close() error {
	if w.closed {
		return nil
	}
	if err := w.writeHeader(); err != nil {
		return err
	}
	w.closed = true

	final := pad(w.pending)
	w.mode.CryptBlocks(final, final)
	w.pending = nil
	_, err := w.dst.Write(final)
	return err
}

func (w *EncryptWriter) writeHeader() error {
	if w.header == nil {
		return nil
	}
	if _, err := w.dst.Write(w.header); err != nil {
		return fmt.Errorf("failed to write cipher header: %w", err)
	}
	w.header = nil
	return nil
}

// DecryptWriter decrypts an OpenSSL salted stream written to it. The last
// complete block is held back until Close so the padding can be checked.
// Close does not close the underlying writer.
type DecryptWriter struct {
	dst      io.Writer
	password []byte
	head     []byte
	mode     stdcipher.BlockMode
	pending  []byte
	out      []byte
	closed   bool
}

// NewDecryptWriter returns a DecryptWriter writing plaintext to dst.
func NewDecryptWriter(dst io.Writer, password string) (*DecryptWriter, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	return &DecryptWriter{
		dst:      dst,
		password: []byte(password),
		head:     make([]byte, 0, HeaderSize),
	}, nil
}

// Write consumes ciphertext.
func (w *DecryptWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, ErrClosed
	}
	n := len(p)

	if w.mode == nil {
		take := min(HeaderSize-len(w.head), len(p))
		w.head = append(w.head, p[:take]...)
		p = p[take:]
		if len(w.head) < HeaderSize {
			return n, nil
		}
		if err := w.init(); err != nil {
			return 0, err
		}
	}

	w.pending = append(w.pending, p...)
	if len(w.pending) <= blockSize {
		return n, nil
	}

	// Decrypt every block except the one that may be last.
	ready := (len(w.pending) - 1) / blockSize * blockSize
	w.out = append(w.out[:0], w.pending[:ready]...)
	w.mode.CryptBlocks(w.out, w.out)
	rest := copy(w.pending, w.pending[ready:])
	w.pending = w.pending[:rest]

	if _, err := w.dst.Write(w.out); err != nil {
		return 0, err
	}
	return n, nil
}

func (w *DecryptWriter) init() error {
	if !bytes.Equal(w.head[:len(magic)], []byte(magic)) {
		return fmt.Errorf("%w: missing %q header", ErrFormat, magic)
	}
	key, iv := deriveKeyIV(w.password, w.head[len(magic):])
	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("failed to create AES cipher: %w", err)
	}
	w.mode = stdcipher.NewCBCDecrypter(block, iv)
	return nil
}

// Close validates block alignment and padding and writes the last plaintext.
func (w *DecryptWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if w.mode == nil {
		return fmt.Errorf("%w: stream shorter than header", ErrFormat)
	}
	if len(w.pending) != blockSize {
		return fmt.Errorf("%w: truncated ciphertext", ErrFormat)
	}
	w.mode.CryptBlocks(w.pending, w.pending)
	plain, err := unpad(w.pending)
	if err != nil {
		return err
	}
	if len(plain) == 0 {
		return nil
	}
	_, err = w.dst.Write(plain)
	return err
}

// decryptReader adapts DecryptWriter to pull-based reads.
type decryptReader struct {
	src io.Reader
	dw  *DecryptWriter
	out bytes.Buffer
	buf []byte
	err error
}

// NewDecryptReader returns a reader yielding the plaintext of src. A format
// error surfaces from Read once src is exhausted.
func NewDecryptReader(src io.Reader, password string) (io.Reader, error) {
	r := &decryptReader{src: src, buf: make([]byte, 32*1024)}
	dw, err := NewDecryptWriter(&r.out, password)
	if err != nil {
		return nil, err
	}
	r.dw = dw
	return r, nil
}

func (r *decryptReader) Read(p []byte) (int, error) {
	for r.out.Len() == 0 && r.err == nil {
		n, err := r.src.Read(r.buf)
		if n > 0 {
			if _, werr := r.dw.Write(r.buf[:n]); werr != nil {
				r.err = werr
				break
			}
		}
		switch {
		case err == io.EOF:
			if cerr := r.dw.Close(); cerr != nil {
				r.err = cerr
			} else {
				r.err = io.EOF
			}
		case err != nil:
			r.err = err
		}
	}
	if r.out.Len() > 0 {
		return r.out.Read(p)
	}
	return 0, r.err
}
