package queue

import (
	"context"
	"errors"
	"iter"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/whisper-transcriber/internal/transcription"
	"github.com/codebuildervaibhav/whisper-transcriber/internal/types"
)

// ErrShuttingDown is returned by Submit once Shutdown has been called.
var ErrShuttingDown = errors.New("worker pool is shutting down")

// ArtifactRemover deletes spooled uploads. Remove must be idempotent.
type ArtifactRemover interface {
	Remove(path string) error
}

// Archiver stores the result of a completed job somewhere outside the registry.
type Archiver interface {
	Archive(ctx context.Context, jobID, requestName, sourceType string, result *types.TranscriptionResult) error
}

// Options tunes a WorkerPool.
type Options struct {
	// Workers bounds concurrently running jobs; zero or less is unbounded.
	Workers int
	// Archiver is optional.
	Archiver Archiver
}

// WorkerPool admits transcription jobs and runs each one on its own
// goroutine, optionally bounded by a fixed number of slots.
type WorkerPool struct {
	registry  *Registry
	engine    transcription.Engine
	artifacts ArtifactRemover
	archiver  Archiver
	slots     chan struct{}
	log       logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// NewWorkerPool creates a worker pool backed by registry.
func NewWorkerPool(
	registry *Registry,
	engine transcription.Engine,
	artifacts ArtifactRemover,
	log logrus.FieldLogger,
	opts Options,
) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	wp := &WorkerPool{
		registry:  registry,
		engine:    engine,
		artifacts: artifacts,
		archiver:  opts.Archiver,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
	}
	if opts.Workers > 0 {
		wp.slots = make(chan struct{}, opts.Workers)
		log.Infof("Worker pool started with %d slots", opts.Workers)
	} else {
		log.Info("Worker pool started without a concurrency bound")
	}
	return wp
}

// Submit registers a queued job for the artifact and starts its worker.
// It returns as soon as the job is registered.
func (wp *WorkerPool) Submit(artifact Artifact, language string) (string, error) {
	if language == "" {
		language = types.LanguageAuto
	}

	wp.mu.Lock()
	if wp.closing {
		wp.mu.Unlock()
		return "", ErrShuttingDown
	}
	id := wp.registry.Create(artifact.Name, language)
	wp.wg.Add(1)
	wp.mu.Unlock()

	go wp.run(id, artifact, language)

	wp.log.WithFields(logrus.Fields{
		"job_id":   id,
		"source":   artifact.SourceType,
		"name":     artifact.Name,
		"language": language,
	}).Info("Job enqueued")
	return id, nil
}

// Cancel requests cooperative cancellation of the job.
func (wp *WorkerPool) Cancel(id string) error {
	if err := wp.registry.RequestCancel(id); err != nil {
		return err
	}
	wp.log.WithField("job_id", id).Info("Cancel requested")
	return nil
}

// Get returns a snapshot of the job.
func (wp *WorkerPool) Get(id string) (types.Snapshot, error) {
	return wp.registry.Get(id)
}

// Observe streams snapshots of the job until it is terminal.
func (wp *WorkerPool) Observe(ctx context.Context, id string) (iter.Seq[types.Snapshot], error) {
	return wp.registry.Observe(ctx, id)
}

// Len returns the number of tracked jobs.
func (wp *WorkerPool) Len() int {
	return wp.registry.Len()
}

// Shutdown stops admitting jobs, asks every live job to cancel and waits for
// the workers. When ctx expires first, running engines are torn down.
func (wp *WorkerPool) Shutdown(ctx context.Context) error {
	wp.mu.Lock()
	wp.closing = true
	wp.mu.Unlock()

	for _, id := range wp.registry.Active() {
		if err := wp.registry.RequestCancel(id); err != nil && !errors.Is(err, ErrNotFound) {
			wp.log.WithError(err).WithField("job_id", id).Warn("Failed to cancel job during shutdown")
		}
	}

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	defer wp.cancel()
	select {
	case <-done:
		wp.log.Info("Worker pool stopped")
		return nil
	case <-ctx.Done():
		wp.log.Warn("Worker pool shutdown timed out, stopping engines")
		return ctx.Err()
	}
}

// acquire waits for a free slot. It reports false when the job was
// cancelled or the pool stopped before a slot became available.
func (wp *WorkerPool) acquire(id string) bool {
	cancelled, err := wp.registry.cancelSignal(id)
	if err != nil {
		return false
	}
	if wp.slots == nil {
		return !wp.registry.CancelRequested(id)
	}

	select {
	case <-cancelled:
		return false
	case <-wp.ctx.Done():
		return false
	case wp.slots <- struct{}{}:
	}

	if wp.registry.CancelRequested(id) {
		wp.release()
		return false
	}
	return true
}

func (wp *WorkerPool) release() {
	if wp.slots != nil {
		<-wp.slots
	}
}
