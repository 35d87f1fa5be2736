package queue

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codebuildervaibhav/whisper-transcriber/internal/types"
)

var (
	// ErrNotFound is returned for ids the registry never issued or has reaped.
	ErrNotFound = errors.New("job not found")
	// ErrInvalidTransition is returned when an update breaks the job state machine.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// maxRunningProgress caps progress for every status other than completed.
const maxRunningProgress = 99

// Change is a partial mutation applied by Registry.Update. Zero fields are
// left untouched; Progress only ever moves forward.
type Change struct {
	Status   types.Status
	Progress float64
	Result   *types.TranscriptionResult
	Error    string
}

// Registry maps job ids to job records. It is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*job
	now  func() time.Time
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]*job),
		now:  time.Now,
	}
}

// Create registers a new queued job and returns its id.
func (r *Registry) Create(name, language string) string {
	id := uuid.New().String()
	j := newJob(id, name, language, r.now())

	r.mu.Lock()
	r.jobs[id] = j
	r.mu.Unlock()
	return id
}

func (r *Registry) lookup(id string) (*job, error) {
	r.mu.RLock()
	j, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return j, nil
}

// Get returns a snapshot of the job.
func (r *Registry) Get(id string) (types.Snapshot, error) {
	j, err := r.lookup(id)
	if err != nil {
		return types.Snapshot{}, err
	}
	return j.snapshot(), nil
}

// Update applies c to the job atomically. Updates to a terminal job are
// ignored so that a late worker tick never races a finished outcome.
func (r *Registry) Update(id string, c Change) error {
	j, err := r.lookup(id)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status.Terminal() {
		return nil
	}

	next := j.status
	if c.Status != "" {
		next = c.Status
	}
	if next != j.status && !validTransition(j.status, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.status, next)
	}

	switch next {
	case types.StatusCompleted:
		if c.Result == nil {
			return fmt.Errorf("%w: completed without result", ErrInvalidTransition)
		}
	case types.StatusFailed:
		if c.Error == "" {
			return fmt.Errorf("%w: failed without error", ErrInvalidTransition)
		}
	}

	changed := false
	if next != j.status {
		j.status = next
		changed = true
	}

	progress := c.Progress
	if progress > maxRunningProgress {
		progress = maxRunningProgress
	}
	if next == types.StatusCompleted {
		progress = 100
	}
	if progress > j.progress {
		j.progress = progress
		changed = true
	}

	switch next {
	case types.StatusCompleted:
		res := *c.Result
		j.result = &res
	case types.StatusFailed:
		j.errMsg = c.Error
	}

	if !changed {
		return nil
	}

	j.updatedAt = r.now()
	if next.Terminal() {
		j.finishedAt = j.updatedAt
	}
	j.notifyLocked()
	return nil
}

// RequestCancel flags the job for cooperative cancellation. It succeeds for
// any known id; a terminal job is left as it is.
func (r *Registry) RequestCancel(id string) error {
	j, err := r.lookup(id)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status.Terminal() || j.cancelRequested {
		return nil
	}
	j.cancelRequested = true
	j.updatedAt = r.now()
	close(j.cancelled)
	return nil
}

// CancelRequested reports whether a cancel has been requested for the job.
// Unknown ids report false.
func (r *Registry) CancelRequested(id string) bool {
	j, err := r.lookup(id)
	if err != nil {
		return false
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelRequested
}

// cancelSignal returns a channel closed when the job is cancelled.
func (r *Registry) cancelSignal(id string) (<-chan struct{}, error) {
	j, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	return j.cancelled, nil
}

// Active returns the ids of every non-terminal job.
func (r *Registry) Active() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, j := range r.jobs {
		j.mu.Lock()
		terminal := j.status.Terminal()
		j.mu.Unlock()
		if !terminal {
			ids = append(ids, id)
		}
	}
	return ids
}

// Reap removes jobs that have been terminal for longer than maxAge and
// returns how many were removed. A non-positive maxAge keeps everything.
func (r *Registry) Reap(maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}
	cutoff := r.now().Add(-maxAge)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, j := range r.jobs {
		j.mu.Lock()
		expired := j.status.Terminal() && j.finishedAt.Before(cutoff)
		j.mu.Unlock()
		if expired {
			delete(r.jobs, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// validTransition enforces the allowed job state machine edges.
func validTransition(from, to types.Status) bool {
	switch from {
	case types.StatusQueued:
		return to == types.StatusRunning || to == types.StatusCancelled
	case types.StatusRunning:
		return to == types.StatusCompleted || to == types.StatusFailed || to == types.StatusCancelled
	default:
		return false
	}
}
