// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

// Package validation wraps go-playground/validator v10 with a shared,
// lazily built validator instance and readable error messages.
//
// Field names in messages use the struct's koanf tag, so errors read the
// same way the YAML configuration is written:
//
//	type S3Settings struct {
//	    Bucket string `koanf:"bucket" validate:"required"`
//	}
//	// -> "bucket is required"
//
// Custom tags:
//   - cron: a standard five-field cron expression or an @every/@daily style descriptor
//   - filename: a single path segment usable as an archive name prefix
//
// Errors convert to the API error shape with ToAPIError.
package validation
