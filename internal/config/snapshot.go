// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tomtom215/stowage/internal/logging"
	"github.com/tomtom215/stowage/internal/validation"
)

// BackendType names a storage variant.
type BackendType string

const (
	BackendLocal BackendType = "local"
	BackendS3    BackendType = "s3"
)

// DefaultPrefix is the archive name prefix used when a task sets none.
const DefaultPrefix = "archive"

// DefaultAlgorithm is the only supported encryption algorithm.
const DefaultAlgorithm = "aes-256-cbc"

// Backend is a validated storage target. Exactly one of Local and S3 is set,
// matching Type.
type Backend struct {
	Name  string        `json:"name"`
	Type  BackendType   `json:"type"`
	Local *LocalBackend `json:"local,omitempty"`
	S3    *S3Backend    `json:"s3,omitempty"`
}

// LocalBackend stores archives in a directory.
type LocalBackend struct {
	Path string `koanf:"path" json:"path" validate:"required"`
}

// S3Backend stores archives in an S3-compatible bucket.
type S3Backend struct {
	Bucket          string `koanf:"bucket" json:"bucket" validate:"required"`
	Region          string `koanf:"region" json:"region" validate:"required"`
	AccessKeyID     string `koanf:"access_key_id" json:"access_key_id" validate:"required"`
	SecretAccessKey string `koanf:"secret_access_key" json:"secret_access_key" validate:"required"`
	Endpoint        string `koanf:"endpoint" json:"endpoint,omitempty"`
	Prefix          string `koanf:"s3_prefix" json:"s3_prefix,omitempty"`
	ForcePathStyle  bool   `koanf:"force_path_style" json:"force_path_style"`
	SSLEnabled      bool   `koanf:"ssl_enabled" json:"ssl_enabled"`
}

// Task is a validated archive job.
type Task struct {
	Name        string     `koanf:"name" json:"name"`
	Source      string     `koanf:"source" json:"source" validate:"required"`
	Destination string     `koanf:"destination" json:"destination" validate:"required"`
	Schedule    string     `koanf:"schedule" json:"schedule,omitempty"`
	Retention   int        `koanf:"retention" json:"retention" validate:"gte=0"`
	Prefix      string     `koanf:"prefix" json:"prefix" validate:"filename,max=128"`
	Encryption  Encryption `koanf:"encryption" json:"encryption"`
}

// Encryption holds a task's archive encryption settings.
type Encryption struct {
	Enabled   bool   `koanf:"enabled" json:"enabled"`
	Password  string `koanf:"password" json:"password,omitempty"`
	Algorithm string `koanf:"algorithm" json:"algorithm" validate:"oneof=aes-256-cbc"`
}

// Snapshot is an immutable, validated view of backends and tasks.
// Callers must not modify it.
type Snapshot struct {
	Backends map[string]Backend
	Tasks    map[string]Task
	Skipped  []*ConfigError
	Path     string
	LoadedAt time.Time
}

// Task looks up a task by name.
func (s *Snapshot) Task(name string) (Task, bool) {
	t, ok := s.Tasks[name]
	return t, ok
}

// Backend looks up a backend by name.
func (s *Snapshot) Backend(name string) (Backend, bool) {
	b, ok := s.Backends[name]
	return b, ok
}

// TaskNames returns task names in sorted order.
func (s *Snapshot) TaskNames() []string {
	return sortedKeys(s.Tasks)
}

// BackendNames returns backend names in sorted order.
func (s *Snapshot) BackendNames() []string {
	return sortedKeys(s.Backends)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// BuildSnapshot validates backends and tasks. Invalid or unsupported
// backends, and tasks that reference them, are skipped; each skip is logged
// and recorded in Snapshot.Skipped.
func BuildSnapshot(cfg *Config) *Snapshot {
	snap := &Snapshot{
		Backends: make(map[string]Backend, len(cfg.Backends)),
		Tasks:    make(map[string]Task, len(cfg.Tasks)),
		Path:     cfg.Path,
		LoadedAt: time.Now(),
	}

	for _, name := range sortedKeys(cfg.Backends) {
		backend, err := buildBackend(name, cfg.Backends[name])
		if err != nil {
			snap.skip(backendError(name, err))
			continue
		}
		snap.Backends[name] = backend
	}

	for _, name := range sortedKeys(cfg.Tasks) {
		task, err := buildTask(name, cfg.Tasks[name])
		if err == nil {
			err = snap.checkReferences(task)
		}
		if err != nil {
			snap.skip(taskError(name, err))
			continue
		}
		snap.Tasks[name] = task
	}

	logging.Info().
		Strs("backends", snap.BackendNames()).
		Strs("tasks", snap.TaskNames()).
		Int("skipped", len(snap.Skipped)).
		Msg("Configuration snapshot built")
	return snap
}

func (s *Snapshot) skip(err *ConfigError) {
	s.Skipped = append(s.Skipped, err)
	logging.Warn().Str("kind", err.Kind).Str("name", err.Name).Err(err.Err).Msg("Skipping configuration entry")
}

func (s *Snapshot) checkReferences(task Task) error {
	if _, ok := s.Backends[task.Source]; !ok {
		return fmt.Errorf("source %q: %w", task.Source, ErrUnknownBackend)
	}
	if _, ok := s.Backends[task.Destination]; !ok {
		return fmt.Errorf("destination %q: %w", task.Destination, ErrUnknownBackend)
	}
	return nil
}

func buildBackend(name string, raw BackendConfig) (Backend, error) {
	backend := Backend{Name: name, Type: BackendType(strings.ToLower(raw.Type))}

	switch backend.Type {
	case BackendLocal:
		local := &LocalBackend{Path: raw.Path}
		if err := validation.ValidateStruct(local); err != nil {
			return Backend{}, fmt.Errorf("%w: %w", ErrInvalidEntry, err)
		}
		backend.Local = local
	case BackendS3:
		s3 := &S3Backend{
			Bucket:          raw.Bucket,
			Region:          raw.Region,
			AccessKeyID:     raw.AccessKeyID,
			SecretAccessKey: raw.SecretAccessKey,
			Endpoint:        raw.Endpoint,
			Prefix:          strings.Trim(raw.S3Prefix, "/"),
			ForcePathStyle:  boolOr(raw.ForcePathStyle, raw.Endpoint != ""),
			SSLEnabled:      boolOr(raw.SSLEnabled, true),
		}
		if err := validation.ValidateStruct(s3); err != nil {
			return Backend{}, fmt.Errorf("%w: %w", ErrInvalidEntry, err)
		}
		backend.S3 = s3
	default:
		return Backend{}, fmt.Errorf("%w: %q", ErrUnsupportedBackend, raw.Type)
	}
	return backend, nil
}

func buildTask(name string, raw TaskConfig) (Task, error) {
	task := Task{
		Name:        name,
		Source:      raw.Source,
		Destination: raw.Destination,
		Schedule:    strings.TrimSpace(raw.Schedule),
		Retention:   raw.Retention,
		Prefix:      raw.Prefix,
		Encryption: Encryption{
			Enabled:   raw.Encryption.Enabled,
			Password:  raw.Encryption.Password,
			Algorithm: strings.ToLower(raw.Encryption.Algorithm),
		},
	}
	if task.Prefix == "" {
		task.Prefix = DefaultPrefix
	}
	if task.Encryption.Algorithm == "" {
		task.Encryption.Algorithm = DefaultAlgorithm
	}
	if err := validation.ValidateStruct(&task); err != nil {
		return Task{}, fmt.Errorf("%w: %w", ErrInvalidEntry, err)
	}
	return task, nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
