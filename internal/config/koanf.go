// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/stowage/internal/validation"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/stowage/config.yaml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// envMappings maps environment variables (lower-cased) to koanf paths.
// Unlisted variables are ignored.
var envMappings = map[string]string{
	"http_host":        "server.host",
	"http_port":        "server.port",
	"http_timeout":     "server.timeout",
	"cors_origins":     "server.cors_origins",
	"rate_limit":       "server.rate_limit",
	"log_level":        "logging.level",
	"log_format":       "logging.format",
	"log_caller":       "logging.caller",
	"stowage_temp_dir": "transfer.temp_dir",
	"config_watch":     "watch",
}

// sliceConfigPaths are parsed from comma-separated environment values.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// Load reads configuration from the first config file found and the
// environment.
func Load() (*Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile reads configuration from path ("" for none) and the environment.
// Global sections are validated; backends and tasks are validated later by
// BuildSnapshot so a single bad entry does not prevent startup.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	cfg.Path = path

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the server, logging and transfer sections.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.Server); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := validation.ValidateStruct(&c.Logging); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := validation.ValidateStruct(&c.Transfer); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	return nil
}

// findConfigFile returns CONFIG_PATH if set, else the first existing
// default path, else "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		return envPath
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps an environment variable name to its koanf path.
//
//   - HTTP_PORT -> server.port
//   - LOG_LEVEL -> logging.level
//   - STOWAGE_TEMP_DIR -> transfer.temp_dir
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// processSliceFields splits comma-separated strings for known slice paths.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}
