package queue

import (
	"context"
	"errors"
	"iter"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/whisper-transcriber/internal/transcription"
	"github.com/codebuildervaibhav/whisper-transcriber/internal/types"
)

// fakeEngine yields scripted segments. When gate is set, every segment waits
// for one receive from it before being produced.
type fakeEngine struct {
	info     transcription.Info
	segments []types.Segment
	failAt   int
	failErr  error
	startErr error
	panicAt  int
	gate     chan struct{}

	started  atomic.Int32
	released atomic.Int32
}

func newFakeEngine(duration float64, segments ...types.Segment) *fakeEngine {
	return &fakeEngine{
		info:     transcription.Info{Duration: duration, Language: "en", Device: "cpu"},
		segments: segments,
		failAt:   -1,
		panicAt:  -1,
	}
}

func (f *fakeEngine) Transcribe(ctx context.Context, path, language string) (iter.Seq2[types.Segment, error], transcription.Info, error) {
	f.started.Add(1)
	if f.startErr != nil {
		return nil, transcription.Info{}, f.startErr
	}
	return func(yield func(types.Segment, error) bool) {
		defer f.released.Add(1)
		for i, seg := range f.segments {
			if f.gate != nil {
				select {
				case <-f.gate:
				case <-ctx.Done():
					yield(types.Segment{}, ctx.Err())
					return
				}
			}
			if i == f.panicAt {
				panic("decoder exploded")
			}
			if i == f.failAt {
				yield(types.Segment{}, f.failErr)
				return
			}
			if !yield(seg, nil) {
				return
			}
		}
	}, f.info, nil
}

// recordingRemover deletes files and counts removals per path.
type recordingRemover struct {
	mu      sync.Mutex
	removed map[string]int
}

func newRecordingRemover() *recordingRemover {
	return &recordingRemover{removed: make(map[string]int)}
}

func (r *recordingRemover) Remove(path string) error {
	r.mu.Lock()
	r.removed[path]++
	r.mu.Unlock()
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (r *recordingRemover) count(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removed[path]
}

// archiveCall records one Archive invocation.
type archiveCall struct {
	jobID  string
	name   string
	result *types.TranscriptionResult
}

type fakeArchiver struct {
	mu    sync.Mutex
	calls []archiveCall
	err   error
}

func (a *fakeArchiver) Archive(ctx context.Context, jobID, requestName, sourceType string, result *types.TranscriptionResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, archiveCall{jobID: jobID, name: requestName, result: result})
	return a.err
}

func (a *fakeArchiver) len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

func newTestLogger() *logrus.Logger {
	log, _ := test.NewNullLogger()
	return log
}

func writeArtifact(t *testing.T, name string) Artifact {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("RIFF fake audio"), 0o644))
	return Artifact{Path: path, Name: name, SourceType: types.SourceUpload}
}

func tenSecondScript() []types.Segment {
	return []types.Segment{
		{Start: 0, End: 3, Text: " Hello"},
		{Start: 3, End: 6, Text: " from the"},
		{Start: 6, End: 10, Text: " other side."},
	}
}
