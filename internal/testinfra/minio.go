// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultMinIOImage is the MinIO server image.
	DefaultMinIOImage = "minio/minio:latest"

	// DefaultMinIOPort is the S3 API port inside the container.
	DefaultMinIOPort = "9000"

	// DefaultMinIOUser and DefaultMinIOPassword are the root credentials.
	DefaultMinIOUser     = "stowage"
	DefaultMinIOPassword = "stowage-secret"
)

// MinIOContainer is a running MinIO server.
type MinIOContainer struct {
	testcontainers.Container

	// Endpoint is host:port of the S3 API, without scheme.
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// MinIOOption configures the MinIO container.
type MinIOOption func(*minioConfig)

type minioConfig struct {
	image        string
	startTimeout time.Duration
}

// WithMinIOImage sets a custom MinIO image.
func WithMinIOImage(image string) MinIOOption {
	return func(c *minioConfig) {
		c.image = image
	}
}

// WithStartTimeout sets how long to wait for MinIO to become healthy.
func WithStartTimeout(timeout time.Duration) MinIOOption {
	return func(c *minioConfig) {
		c.startTimeout = timeout
	}
}

// NewMinIOContainer starts a single-node MinIO server.
//
//	minio, err := testinfra.NewMinIOContainer(ctx)
//	if err != nil {
//	    t.Fatal(err)
//	}
//	testinfra.CleanupContainer(t, minio)
//	backend := &config.S3Backend{Endpoint: minio.Endpoint, ...}
func NewMinIOContainer(ctx context.Context, opts ...MinIOOption) (*MinIOContainer, error) {
	cfg := &minioConfig{
		image:        DefaultMinIOImage,
		startTimeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{DefaultMinIOPort + "/tcp"},
		Cmd:          []string{"server", "/data"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     DefaultMinIOUser,
			"MINIO_ROOT_PASSWORD": DefaultMinIOPassword,
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(DefaultMinIOPort+"/tcp"),
			wait.ForHTTP("/minio/health/live").WithPort(DefaultMinIOPort+"/tcp"),
		).WithStartupTimeout(cfg.startTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, DefaultMinIOPort)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get mapped port: %w", err)
	}

	return &MinIOContainer{
		Container:       container,
		Endpoint:        fmt.Sprintf("%s:%s", host, port.Port()),
		AccessKeyID:     DefaultMinIOUser,
		SecretAccessKey: DefaultMinIOPassword,
	}, nil
}

// CreateBucket creates bucket using the MinIO client bundled in the image.
func (m *MinIOContainer) CreateBucket(ctx context.Context, bucket string) error {
	alias := fmt.Sprintf("mc alias set local http://127.0.0.1:%s %s %s", DefaultMinIOPort, m.AccessKeyID, m.SecretAccessKey)
	code, _, err := m.Exec(ctx, []string{"sh", "-c", alias + " && mc mb --ignore-existing local/" + bucket})
	if err != nil {
		return fmt.Errorf("exec mc mb: %w", err)
	}
	if code != 0 {
		return fmt.Errorf("mc mb %s exited with code %d", bucket, code)
	}
	return nil
}
