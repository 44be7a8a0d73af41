// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
server:
  host: 127.0.0.1
  port: 8080
  timeout: 45s
logging:
  level: debug
  format: console
transfer:
  temp_dir: /var/tmp/stowage
backends:
  data:
    type: local
    path: /srv/data
  nas:
    type: local
    path: /mnt/nas/backups
  offsite:
    type: s3
    bucket: backups
    region: us-east-1
    access_key_id: AKIAEXAMPLEKEY
    secret_access_key: supersecretvalue
    s3_prefix: /nightly/
    endpoint: minio:9000
    ssl_enabled: false
  ftp:
    type: ftp
    path: /pub
tasks:
  daily:
    source: data
    destination: offsite
    schedule: "0 3 * * *"
    retention: 7
    prefix: daily
    encryption:
      enabled: true
      password: hunter2
  local-copy:
    source: data
    destination: nas
    schedule: "@hourly"
  via-ftp:
    source: data
    destination: ftp
  dangling:
    source: data
    destination: nowhere
  bad-algo:
    source: data
    destination: nas
    encryption:
      enabled: true
      password: x
      algorithm: des
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	if cfg.Server.Port != 3001 {
		t.Errorf("default port = %d, want 3001", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("default host = %q", cfg.Server.Host)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("default logging = %+v", cfg.Logging)
	}
	if cfg.Transfer.TempDir == "" {
		t.Error("default temp dir should be set")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, sampleYAML)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Path != path {
		t.Errorf("Path = %q, want %q", cfg.Path, path)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 8080 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Server.Timeout != 45*time.Second {
		t.Errorf("timeout = %v", cfg.Server.Timeout)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "console" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Transfer.TempDir != "/var/tmp/stowage" {
		t.Errorf("temp dir = %q", cfg.Transfer.TempDir)
	}
	if len(cfg.Backends) != 4 || len(cfg.Tasks) != 5 {
		t.Errorf("got %d backends and %d tasks", len(cfg.Backends), len(cfg.Tasks))
	}
	if cfg.Backends["offsite"].SSLEnabled == nil || *cfg.Backends["offsite"].SSLEnabled {
		t.Error("expected ssl_enabled=false to be preserved")
	}
}

func TestLoadFileEnvOverrides(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("STOWAGE_TEMP_DIR", "/scratch")
	t.Setenv("CONFIG_WATCH", "true")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want env override 9090", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("level = %q, want warn", cfg.Logging.Level)
	}
	if cfg.Transfer.TempDir != "/scratch" {
		t.Errorf("temp dir = %q", cfg.Transfer.TempDir)
	}
	if !cfg.Watch {
		t.Error("expected CONFIG_WATCH to enable watching")
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("cors origins = %v", cfg.Server.CORSOrigins)
	}
}

func TestLoadFileValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad port", "server:\n  port: 70000\n"},
		{"bad level", "logging:\n  level: chatty\n"},
		{"bad format", "logging:\n  format: xml\n"},
		{"malformed yaml", "server: [unterminated\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadFile(writeConfig(t, tt.yaml)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestFindConfigFile(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "/custom/stowage.yaml")
	if got := findConfigFile(); got != "/custom/stowage.yaml" {
		t.Errorf("findConfigFile() = %q", got)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"HTTP_PORT":        "server.port",
		"LOG_FORMAT":       "logging.format",
		"LOG_CALLER":       "logging.caller",
		"STOWAGE_TEMP_DIR": "transfer.temp_dir",
		"CONFIG_WATCH":     "watch",
		"PATH":             "",
		"HOME":             "",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildSnapshot(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	snap := BuildSnapshot(cfg)

	if got := snap.BackendNames(); len(got) != 3 || got[0] != "data" || got[2] != "offsite" {
		t.Errorf("backends = %v, want [data nas offsite]", got)
	}
	if got := snap.TaskNames(); len(got) != 2 || got[0] != "daily" || got[1] != "local-copy" {
		t.Errorf("tasks = %v, want [daily local-copy]", got)
	}

	offsite, ok := snap.Backend("offsite")
	if !ok || offsite.Type != BackendS3 || offsite.S3 == nil {
		t.Fatalf("offsite backend = %+v", offsite)
	}
	if offsite.S3.Prefix != "nightly" {
		t.Errorf("s3 prefix = %q, want slashes trimmed", offsite.S3.Prefix)
	}
	if !offsite.S3.ForcePathStyle {
		t.Error("path style should default to true with a custom endpoint")
	}
	if offsite.S3.SSLEnabled {
		t.Error("ssl_enabled=false should be honored")
	}

	daily, _ := snap.Task("daily")
	if daily.Prefix != "daily" || daily.Retention != 7 || !daily.Encryption.Enabled {
		t.Errorf("daily task = %+v", daily)
	}
	if daily.Encryption.Algorithm != DefaultAlgorithm {
		t.Errorf("algorithm = %q, want default", daily.Encryption.Algorithm)
	}
	local, _ := snap.Task("local-copy")
	if local.Prefix != DefaultPrefix {
		t.Errorf("prefix = %q, want %q", local.Prefix, DefaultPrefix)
	}

	skipped := make(map[string]*ConfigError)
	for _, e := range snap.Skipped {
		skipped[e.Kind+"/"+e.Name] = e
	}
	if e := skipped["backend/ftp"]; e == nil || !errors.Is(e, ErrUnsupportedBackend) {
		t.Errorf("ftp backend skip = %v", e)
	}
	if e := skipped["task/via-ftp"]; e == nil || !errors.Is(e, ErrUnknownBackend) {
		t.Errorf("via-ftp task skip = %v", e)
	}
	if e := skipped["task/dangling"]; e == nil || !errors.Is(e, ErrUnknownBackend) {
		t.Errorf("dangling task skip = %v", e)
	}
	if e := skipped["task/bad-algo"]; e == nil || !errors.Is(e, ErrInvalidEntry) {
		t.Errorf("bad-algo task skip = %v", e)
	}

	var cfgErr *ConfigError
	if !errors.As(snap.Skipped[0], &cfgErr) {
		t.Error("skipped entries should be *ConfigError")
	}
}

func TestBuildSnapshotBackendValidation(t *testing.T) {
	t.Parallel()

	yes := true
	cfg := &Config{
		Backends: map[string]BackendConfig{
			"no-path":   {Type: "local"},
			"no-creds":  {Type: "s3", Bucket: "b", Region: "r"},
			"aws":       {Type: "S3", Bucket: "b", Region: "r", AccessKeyID: "a", SecretAccessKey: "s"},
			"forced":    {Type: "s3", Bucket: "b", Region: "r", AccessKeyID: "a", SecretAccessKey: "s", ForcePathStyle: &yes},
			"no-type":   {Path: "/tmp"},
			"good-path": {Type: "local", Path: "/tmp"},
		},
	}
	snap := BuildSnapshot(cfg)

	if got := snap.BackendNames(); len(got) != 3 {
		t.Fatalf("valid backends = %v, want aws, forced, good-path", got)
	}
	aws, _ := snap.Backend("aws")
	if aws.S3.ForcePathStyle {
		t.Error("path style should default to false without an endpoint")
	}
	if !aws.S3.SSLEnabled {
		t.Error("ssl should default to true")
	}
	forced, _ := snap.Backend("forced")
	if !forced.S3.ForcePathStyle {
		t.Error("explicit force_path_style should be honored")
	}
	if len(snap.Skipped) != 3 {
		t.Errorf("skipped = %d, want 3", len(snap.Skipped))
	}
}

func TestRedaction(t *testing.T) {
	t.Parallel()

	b := Backend{Name: "offsite", Type: BackendS3, S3: &S3Backend{AccessKeyID: "AKIAEXAMPLEKEY", SecretAccessKey: "supersecretvalue"}}
	r := b.Redacted()
	if r.S3.AccessKeyID != "****...EKEY" || r.S3.SecretAccessKey != "****...alue" {
		t.Errorf("redacted = %+v", r.S3)
	}
	if b.S3.SecretAccessKey != "supersecretvalue" {
		t.Error("Redacted must not modify the original")
	}

	task := Task{Encryption: Encryption{Enabled: true, Password: "hunter2"}}
	if task.Redacted().Encryption.Password != "****" {
		t.Error("task password not redacted")
	}
	if MaskCredential("") != "" || MaskCredential("abc") != "****" {
		t.Error("MaskCredential short values")
	}
}

func TestStoreReload(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	store := NewStore(cfg)
	first := store.Current()
	if _, ok := first.Task("daily"); !ok {
		t.Fatal("expected daily task")
	}

	var notified *Snapshot
	store.OnReload(func(_ *Config, snap *Snapshot) { notified = snap })

	updated := `
backends:
  data: {type: local, path: /srv/data}
  nas: {type: local, path: /mnt/nas}
tasks:
  weekly: {source: data, destination: nas, schedule: "@weekly", retention: 4}
`
	if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
		t.Fatal(err)
	}
	snap, err := store.Reload()
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if store.Current() != snap || notified != snap {
		t.Error("reload should publish and notify the new snapshot")
	}
	if _, ok := snap.Task("daily"); ok {
		t.Error("removed task still present after reload")
	}
	if _, ok := snap.Task("weekly"); !ok {
		t.Error("new task missing after reload")
	}
	if _, ok := first.Task("daily"); !ok {
		t.Error("previous snapshot must stay unchanged")
	}

	if err := os.WriteFile(path, []byte("server: [broken\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Reload(); err == nil {
		t.Fatal("expected reload error for malformed file")
	}
	if store.Current() != snap {
		t.Error("failed reload must keep the previous snapshot")
	}
}
