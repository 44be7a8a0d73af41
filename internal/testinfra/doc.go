// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

// Package testinfra provides containers for integration tests.
//
// Everything here is behind the "integration" build tag and needs Docker:
//
//	go test -tags integration ./internal/storage/...
//
// # MinIO Container
//
// MinIOContainer runs a real S3-compatible server so the S3 backend can be
// exercised end to end (listing, uploads of unknown size, deletes):
//
//	func TestS3Backend(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    minio, err := testinfra.NewMinIOContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    testinfra.CleanupContainer(t, minio)
//	    if err := minio.CreateBucket(ctx, "archives"); err != nil {
//	        t.Fatal(err)
//	    }
//	}
package testinfra
