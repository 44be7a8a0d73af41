// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

/*
Package transfer runs the archive pipeline for a task.

One run moves through Idle, Archiving, optionally Encrypting, Uploading,
Pruning and Done; any stage may end in Failed. Every run first takes the
process-wide slot from the gate. A task that cannot start is queued by the
gate, and the orchestrator launches it when the gate promotes it.

Runs are not cancelable once started: they execute on a context detached
from the caller, and Close waits for them.

All temporary files of a run live in one workspace directory that is
removed on every exit path.
*/
package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/stowage/internal/archive"
	"github.com/tomtom215/stowage/internal/cipher"
	"github.com/tomtom215/stowage/internal/config"
	"github.com/tomtom215/stowage/internal/gate"
	"github.com/tomtom215/stowage/internal/logging"
	"github.com/tomtom215/stowage/internal/metrics"
	"github.com/tomtom215/stowage/internal/retention"
	"github.com/tomtom215/stowage/internal/storage"
)

// SnapshotSource provides the current configuration snapshot.
type SnapshotSource interface {
	Current() *config.Snapshot
}

// BackendResolver turns a backend definition into a usable backend.
type BackendResolver interface {
	Get(ctx context.Context, cfg config.Backend) (storage.Backend, error)
}

// Options configure an Orchestrator.
type Options struct {
	Config   SnapshotSource
	Gate     *gate.Gate
	Backends BackendResolver
	// TempDir is the parent of per-run workspaces.
	TempDir string
	// Observer, if set, receives state and progress events.
	Observer Observer
	// Now overrides the clock used for archive names.
	Now func() time.Time
}

// Orchestrator composes archive, cipher, storage and retention into task
// runs, one at a time.
type Orchestrator struct {
	cfg      SnapshotSource
	gate     *gate.Gate
	backends BackendResolver
	tempDir  string
	observer Observer
	now      func() time.Time

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New returns an Orchestrator.
func New(opts Options) *Orchestrator {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	tempDir := opts.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Orchestrator{
		cfg:      opts.Config,
		gate:     opts.Gate,
		backends: opts.Backends,
		tempDir:  tempDir,
		observer: opts.Observer,
		now:      now,
	}
}

// request asks the gate for the slot. When the run may start, the wait
// group is incremented before the lock is released so Close cannot miss it.
func (o *Orchestrator) request(name string) (gate.Decision, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return 0, ErrShuttingDown
	}
	d := o.gate.RequestStart(name)
	if d == gate.Started {
		o.wg.Add(1)
	}
	return d, nil
}

// Trigger starts name in the background, or queues it behind the running
// task. It never blocks on the pipeline.
func (o *Orchestrator) Trigger(name string) (gate.Decision, error) {
	if _, ok := o.cfg.Current().Task(name); !ok {
		return 0, fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}
	d, err := o.request(name)
	if err != nil {
		return 0, err
	}
	if d == gate.Started {
		go func() {
			defer o.wg.Done()
			_ = o.execute(context.Background(), name)
		}()
	}
	return d, nil
}

// Run executes name synchronously and returns the pipeline error. If the
// gate does not grant the slot, Run returns ErrQueued or ErrAlreadyRunning
// without running; a queued task is launched later by promotion.
func (o *Orchestrator) Run(ctx context.Context, name string) error {
	d, err := o.request(name)
	if err != nil {
		return err
	}
	switch d {
	case gate.Queued, gate.AlreadyQueued:
		return ErrQueued
	case gate.AlreadyRunning:
		return ErrAlreadyRunning
	}
	defer o.wg.Done()
	return o.execute(context.WithoutCancel(ctx), name)
}

// Wait blocks until every in-flight and promoted run has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Close stops accepting triggers and waits for in-flight runs. Tasks still
// queued are released from the gate without running.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.wg.Wait()
}

// execute runs the pipeline of a task that holds the slot, releases the
// slot and launches whatever the gate promotes.
func (o *Orchestrator) execute(ctx context.Context, name string) error {
	err := o.pipeline(ctx, name)

	var next string
	var promoted bool
	if err != nil {
		next, promoted = o.gate.Fail(name, err)
	} else {
		next, promoted = o.gate.Complete(name)
	}
	if promoted {
		o.launch(next)
	}
	return err
}

// launch runs a promoted task in the background.
func (o *Orchestrator) launch(name string) {
	for {
		o.mu.Lock()
		if !o.closed {
			o.wg.Add(1)
			o.mu.Unlock()
			go func() {
				defer o.wg.Done()
				_ = o.execute(context.Background(), name)
			}()
			return
		}
		o.mu.Unlock()

		logging.Warn().Str("task", name).Msg("Dropping queued task during shutdown")
		next, promoted := o.gate.Fail(name, ErrShuttingDown)
		if !promoted {
			return
		}
		name = next
	}
}

// plan is everything preflight resolved for a run.
type plan struct {
	task      config.Task
	sourceDir string
	dest      storage.Backend
}

// preflight validates a run before any archive or network work.
func (o *Orchestrator) preflight(ctx context.Context, name string) (*plan, error) {
	snap := o.cfg.Current()
	task, ok := snap.Task(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}

	src, ok := snap.Backend(task.Source)
	if !ok {
		return nil, &SourceMissingError{Task: name, Backend: task.Source, Err: config.ErrUnknownBackend}
	}
	if src.Type != config.BackendLocal || src.Local == nil {
		return nil, &SourceMissingError{Task: name, Backend: task.Source,
			Err: fmt.Errorf("%w: source must be a local directory, got %s", config.ErrUnsupportedBackend, src.Type)}
	}
	info, err := os.Stat(src.Local.Path)
	if err != nil {
		return nil, &SourceMissingError{Task: name, Backend: task.Source, Path: src.Local.Path, Err: err}
	}
	if !info.IsDir() {
		return nil, &SourceMissingError{Task: name, Backend: task.Source, Path: src.Local.Path,
			Err: errors.New("not a directory")}
	}

	destCfg, ok := snap.Backend(task.Destination)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDestinationMissing, task.Destination)
	}

	if task.Encryption.Enabled {
		if task.Encryption.Password == "" {
			return nil, &EncryptionConfigError{Task: name, Reason: "password is empty"}
		}
		if !cipher.SupportedAlgorithm(task.Encryption.Algorithm) {
			return nil, &EncryptionConfigError{Task: name,
				Reason: fmt.Sprintf("unsupported algorithm %q", task.Encryption.Algorithm)}
		}
	}

	dest, err := o.backends.Get(ctx, destCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDestinationMissing, task.Destination, err)
	}
	return &plan{task: task, sourceDir: src.Local.Path, dest: dest}, nil
}

// pipeline performs one run of name. The caller holds the gate slot.
func (o *Orchestrator) pipeline(ctx context.Context, name string) (err error) {
	runID := logging.NewRunID()
	ctx = logging.ContextWithRunID(ctx, runID)
	ctx = logging.ContextWithTask(ctx, name)
	log := logging.Ctx(ctx)
	tr := newTracker(name, runID, o.observer, o.now)
	start := time.Now()

	log.Info().Msg("Pipeline run started")
	defer func() {
		stage := ""
		if err != nil {
			tr.fail(err)
			stage = "preflight"
			var se *StageError
			if errors.As(err, &se) {
				stage = string(se.Stage)
			}
			log.Error().Err(err).Str("stage", stage).Dur("duration", time.Since(start)).Msg("Pipeline run failed")
		} else {
			log.Info().Str("archive", tr.archive).Dur("duration", time.Since(start)).Msg("Pipeline run succeeded")
		}
		metrics.RecordPipelineRun(name, stage, time.Since(start), err)
	}()

	p, err := o.preflight(ctx, name)
	if err != nil {
		return err
	}

	ws, err := newWorkspace(o.tempDir, name, log)
	if err != nil {
		return &StageError{Stage: StateArchiving, Err: err}
	}
	defer ws.release()

	if err := tr.enter(StateArchiving); err != nil {
		return err
	}
	artifact, err := o.buildArchive(ctx, tr, ws, p, log)
	if err != nil {
		return &StageError{Stage: StateArchiving, Err: err}
	}

	encrypted := p.task.Encryption.Enabled
	if encrypted {
		if err := tr.enter(StateEncrypting); err != nil {
			return err
		}
		cryptPath := ws.path(name + storage.ZipExtension + cipher.Extension)
		if err := cipher.EncryptFile(artifact, cryptPath, p.task.Encryption.Password); err != nil {
			return &StageError{Stage: StateEncrypting, Err: err}
		}
		ws.discard(artifact)
		artifact = cryptPath
		log.Debug().Str("algorithm", p.task.Encryption.Algorithm).Msg("Archive encrypted")
	}

	archiveName := storage.ArchiveName(p.task.Prefix, o.now(), encrypted)
	tr.archive = archiveName
	if err := tr.enter(StateUploading); err != nil {
		return err
	}
	uploaded, err := o.upload(ctx, tr, p.dest, artifact, archiveName, log)
	if err != nil {
		return &StageError{Stage: StateUploading, Err: err}
	}
	metrics.RecordUploaded(name, p.dest.Name(), uploaded.Size)
	log.Info().Str("backend", p.dest.Name()).Str("key", uploaded.Key).Int64("size", uploaded.Size).
		Msg("Archive uploaded")

	if err := tr.enter(StatePruning); err != nil {
		return err
	}
	o.prune(ctx, p, log)

	return tr.enter(StateDone)
}

func (o *Orchestrator) buildArchive(ctx context.Context, tr *tracker, ws *workspace, p *plan, log *zerolog.Logger) (string, error) {
	zipPath := ws.path(p.task.Name + storage.ZipExtension)
	progress := logging.NewProgressLogger(*log, string(StateArchiving), 0)

	res, err := archive.BuildFile(ctx, p.sourceDir, zipPath, func(processed, total int64) {
		progress.Report(processed, total)
		tr.progress(processed, total)
	})
	if err != nil {
		return "", err
	}

	info, err := os.Stat(zipPath)
	if err != nil {
		return "", err
	}
	metrics.RecordArchived(p.task.Name, res.ProcessedBytes)
	log.Info().Int("files", res.Files).Int("skipped", len(res.Skipped)).
		Int64("bytes", res.ProcessedBytes).Int64("archive_size", info.Size()).Msg("Archive built")
	return zipPath, nil
}

func (o *Orchestrator) upload(ctx context.Context, tr *tracker, dest storage.Backend, artifact, name string, log *zerolog.Logger) (storage.Archive, error) {
	f, err := os.Open(artifact) //nolint:gosec // G304: workspace path
	if err != nil {
		return storage.Archive{}, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return storage.Archive{}, err
	}

	progress := logging.NewProgressLogger(*log, string(StateUploading), 0)
	return dest.Write(ctx, name, f, info.Size(), func(written, total int64) {
		progress.Report(written, total)
		tr.progress(written, total)
	})
}

// prune applies the task's retention to the destination. Failures are
// logged and counted; they never fail the run.
func (o *Orchestrator) prune(ctx context.Context, p *plan, log *zerolog.Logger) {
	if p.task.Retention <= 0 {
		return
	}
	archives, err := p.dest.List(ctx, p.task.Prefix)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to list archives for pruning")
		metrics.RecordPrune(p.task.Name, 0, 1)
		return
	}

	res := retention.Prune(ctx, p.dest, archives, p.task.Retention)
	metrics.RecordPrune(p.task.Name, len(res.Deleted), len(res.Failed))
	if err := res.Err(); err != nil {
		log.Warn().Err(err).Int("failed", len(res.Failed)).Int("deleted", len(res.Deleted)).
			Msg("Some archives could not be pruned")
		return
	}
	log.Info().Int("kept", len(res.Kept)).Int("deleted", len(res.Deleted)).Msg("Retention applied")
}
