package queue

import (
	"sync"
	"time"

	"github.com/codebuildervaibhav/whisper-transcriber/internal/types"
)

// Artifact is a spooled upload handed to the worker pool. The worker
// removes Path once the job reaches a terminal status.
type Artifact struct {
	Path       string
	Name       string
	SourceType string
}

// job is the registry-owned record of one transcription request.
// Every field below mu is guarded by it.
type job struct {
	id        string
	name      string
	language  string
	createdAt time.Time

	mu              sync.Mutex
	status          types.Status
	progress        float64
	result          *types.TranscriptionResult
	errMsg          string
	cancelRequested bool
	updatedAt       time.Time
	finishedAt      time.Time

	// version increases on every observable change; changed is closed and
	// replaced at the same time so observers can wait without polling.
	version uint64
	changed chan struct{}

	// cancelled is closed on the first cancel request.
	cancelled chan struct{}
}

func newJob(id, name, language string, now time.Time) *job {
	return &job{
		id:        id,
		name:      name,
		language:  language,
		createdAt: now,
		status:    types.StatusQueued,
		updatedAt: now,
		version:   1,
		changed:   make(chan struct{}),
		cancelled: make(chan struct{}),
	}
}

// snapshotLocked copies the record. Callers hold j.mu.
func (j *job) snapshotLocked() types.Snapshot {
	snap := types.Snapshot{
		ID:              j.id,
		Name:            j.name,
		Language:        j.language,
		Status:          j.status,
		Progress:        j.progress,
		Error:           j.errMsg,
		CancelRequested: j.cancelRequested,
		CreatedAt:       j.createdAt,
		UpdatedAt:       j.updatedAt,
	}
	if j.result != nil {
		res := *j.result
		res.Segments = append([]types.Segment(nil), j.result.Segments...)
		snap.Result = &res
	}
	if !j.finishedAt.IsZero() {
		finished := j.finishedAt
		snap.FinishedAt = &finished
	}
	return snap
}

func (j *job) snapshot() types.Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.snapshotLocked()
}

// watch returns the current snapshot, its version and the channel that is
// closed on the next change.
func (j *job) watch() (types.Snapshot, uint64, <-chan struct{}) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.snapshotLocked(), j.version, j.changed
}

// notifyLocked wakes every observer. Callers hold j.mu.
func (j *job) notifyLocked() {
	j.version++
	close(j.changed)
	j.changed = make(chan struct{})
}
