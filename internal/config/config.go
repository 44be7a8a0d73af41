// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

// Package config loads and publishes Stowage configuration.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in values for server, logging and transfer settings
//  2. Config File: YAML file with backends and tasks
//  3. Environment Variables: override server, logging and transfer settings
//
// The raw Config is turned into an immutable Snapshot by BuildSnapshot.
// Backends of unsupported type and tasks that reference missing or
// unsupported backends are dropped with a warning rather than failing the
// whole load. A Store holds the current Snapshot and swaps it atomically on
// reload.
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    logging.Fatal().Err(err).Msg("Failed to load configuration")
//	}
//	store := config.NewStore(cfg)
//	snap := store.Current()
//	task, ok := snap.Task("daily")
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config is the raw, unmarshaled configuration.
type Config struct {
	Server   ServerConfig             `koanf:"server"`
	Logging  LoggingConfig            `koanf:"logging"`
	Transfer TransferConfig           `koanf:"transfer"`
	Backends map[string]BackendConfig `koanf:"backends"`
	Tasks    map[string]TaskConfig    `koanf:"tasks"`

	// Watch enables hot reload when the config file changes.
	Watch bool `koanf:"watch"`

	// Path is the file the configuration was read from ("" when none).
	Path string `koanf:"-"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host    string        `koanf:"host" validate:"required"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout" validate:"gte=0"`

	// CORSOrigins lists allowed origins; empty allows none cross-origin.
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimit is requests per minute per client IP (0 disables limiting).
	RateLimit int `koanf:"rate_limit" validate:"gte=0"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// TransferConfig holds pipeline settings shared by all tasks.
type TransferConfig struct {
	// TempDir holds intermediate archive files during a run.
	TempDir string `koanf:"temp_dir" validate:"required"`
}

// BackendConfig is one entry of the backends map. Which fields apply
// depends on Type.
type BackendConfig struct {
	Type string `koanf:"type"`

	// local
	Path string `koanf:"path"`

	// s3
	Bucket          string `koanf:"bucket"`
	Region          string `koanf:"region"`
	AccessKeyID     string `koanf:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key"`
	Endpoint        string `koanf:"endpoint"`
	S3Prefix        string `koanf:"s3_prefix"`
	ForcePathStyle  *bool  `koanf:"force_path_style"`
	SSLEnabled      *bool  `koanf:"ssl_enabled"`
}

// TaskConfig is one entry of the tasks map.
type TaskConfig struct {
	Source      string           `koanf:"source"`
	Destination string           `koanf:"destination"`
	Schedule    string           `koanf:"schedule"`
	Retention   int              `koanf:"retention"`
	Prefix      string           `koanf:"prefix"`
	Encryption  EncryptionConfig `koanf:"encryption"`
}

// EncryptionConfig enables password-based archive encryption.
type EncryptionConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Password  string `koanf:"password"`
	Algorithm string `koanf:"algorithm"`
}

// defaultConfig returns the values applied before the file and environment.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:      "0.0.0.0",
			Port:      3001,
			Timeout:   30 * time.Second,
			RateLimit: 100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Transfer: TransferConfig{
			TempDir: filepath.Join(os.TempDir(), "stowage"),
		},
	}
}
