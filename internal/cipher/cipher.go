// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

// Package cipher implements streaming encryption compatible with the
// OpenSSL "Salted__" file format produced by:
//
//	openssl enc -aes-256-cbc -md md5 -salt -pass pass:PASSWORD
//
// Format:
//   - 8-byte magic "Salted__" followed by an 8-byte random salt
//   - AES-256-CBC ciphertext with PKCS#7 padding
//   - Key and IV derived with EVP_BytesToKey (MD5, one iteration)
//
// Encryption and decryption are streaming; memory is bounded by one write
// chunk plus one cipher block.
package cipher

import (
	"bytes"
	"crypto/aes"
	"crypto/md5" //nolint:gosec // MD5 is fixed by the OpenSSL legacy key derivation
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// Algorithm is the only supported algorithm name.
	Algorithm = "aes-256-cbc"

	// Extension is appended to encrypted archive names.
	Extension = ".crypt"

	// HeaderSize is the length of magic plus salt.
	HeaderSize = len(magic) + SaltSize

	// SaltSize is the length of the random salt.
	SaltSize = 8

	keySize   = 32
	blockSize = aes.BlockSize
)

const magic = "Salted__"

var (
	// ErrFormat is returned for bad magic, bad padding or truncated input.
	ErrFormat = errors.New("invalid encrypted stream")

	// ErrClosed is returned when writing to a closed stream.
	ErrClosed = errors.New("write to closed cipher stream")

	// ErrEmptyPassword is returned when no password is supplied.
	ErrEmptyPassword = errors.New("encryption password cannot be empty")
)

// SupportedAlgorithm reports whether name is an accepted algorithm. An empty
// name selects the default.
func SupportedAlgorithm(name string) bool {
	return name == "" || strings.EqualFold(name, Algorithm)
}

// deriveKeyIV is EVP_BytesToKey with MD5 and a single iteration:
// h_i = MD5(h_{i-1} || password || salt), concatenated until 48 bytes.
func deriveKeyIV(password, salt []byte) (key, iv []byte) {
	material := make([]byte, 0, keySize+blockSize+md5.Size)
	var prev []byte
	for len(material) < keySize+blockSize {
		h := md5.New() //nolint:gosec // OpenSSL legacy format
		h.Write(prev)
		h.Write(password)
		h.Write(salt)
		prev = h.Sum(nil)
		material = append(material, prev...)
	}
	return material[:keySize], material[keySize : keySize+blockSize]
}

func newSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

func header(salt []byte) []byte {
	h := make([]byte, 0, HeaderSize)
	h = append(h, magic...)
	return append(h, salt...)
}

// pad appends PKCS#7 padding; the result is always at least one block.
func pad(data []byte) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

// unpad validates and strips PKCS#7 padding from the final block.
func unpad(block []byte) ([]byte, error) {
	if len(block) != blockSize {
		return nil, fmt.Errorf("%w: final block is %d bytes", ErrFormat, len(block))
	}
	n := int(block[blockSize-1])
	if n == 0 || n > blockSize {
		return nil, fmt.Errorf("%w: bad padding", ErrFormat)
	}
	for _, b := range block[blockSize-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrFormat)
		}
	}
	return block[:blockSize-n], nil
}
