// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

// Package retention decides which archives exceed a task's keep-count and
// deletes them. Each deletion is attempted independently; one failure never
// stops the others.
package retention

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/stowage/internal/logging"
	"github.com/tomtom215/stowage/internal/storage"
)

// Deleter removes an archive by storage key.
type Deleter interface {
	Delete(ctx context.Context, key string) error
}

// Failure is one archive that could not be deleted.
type Failure struct {
	Archive storage.Archive
	Err     error
}

func (f Failure) Error() string {
	return fmt.Sprintf("prune %s: %v", f.Archive.Name, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Result summarizes a prune pass.
type Result struct {
	Kept    []storage.Archive
	Deleted []storage.Archive
	Failed  []Failure
}

// Err joins all deletion failures, or returns nil.
func (r Result) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failed))
	for i, f := range r.Failed {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Plan returns the archives beyond the keep newest. archives must be sorted
// newest first. keep <= 0 means unlimited and plans nothing.
func Plan(archives []storage.Archive, keep int) []storage.Archive {
	if keep <= 0 || len(archives) <= keep {
		return nil
	}
	return archives[keep:]
}

// Prune deletes every archive Plan selects.
func Prune(ctx context.Context, d Deleter, archives []storage.Archive, keep int) Result {
	doomed := Plan(archives, keep)
	res := Result{Kept: archives[:len(archives)-len(doomed)]}

	log := logging.Ctx(ctx)
	for _, a := range doomed {
		if err := d.Delete(ctx, a.Key); err != nil {
			log.Warn().Err(err).Str("archive", a.Name).Msg("Failed to prune archive")
			res.Failed = append(res.Failed, Failure{Archive: a, Err: err})
			continue
		}
		log.Info().Str("archive", a.Name).Time("created_at", a.CreatedAt).Msg("Pruned archive")
		res.Deleted = append(res.Deleted, a)
	}
	return res
}
