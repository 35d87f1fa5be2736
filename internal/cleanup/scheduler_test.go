package cleanup

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingReaper struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (r *countingReaper) Reap(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, maxAge)
	return 1
}

func (r *countingReaper) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func touch(t *testing.T, path string, modTime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("audio"), 0o644))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
}

func TestSweepRemovesOnlyOldFiles(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	old := filepath.Join(dir, "old.wav")
	fresh := filepath.Join(dir, "fresh.wav")
	touch(t, old, now.Add(-48*time.Hour))
	touch(t, fresh, now.Add(-time.Minute))

	log, _ := test.NewNullLogger()
	s := NewScheduler(Config{TempDir: dir, MaxFileAge: 24 * time.Hour}, nil, log)
	s.now = func() time.Time { return now }
	s.Sweep()

	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
}

func TestSweepReapsJobsWhenTTLSet(t *testing.T) {
	log, _ := test.NewNullLogger()
	reaper := &countingReaper{}

	NewScheduler(Config{}, reaper, log).Sweep()
	assert.Zero(t, reaper.count(), "zero TTL keeps jobs")

	NewScheduler(Config{JobTTL: time.Hour}, reaper, log).Sweep()
	require.Equal(t, 1, reaper.count())
	assert.Equal(t, time.Hour, reaper.calls[0])
}

func TestStartAndStop(t *testing.T) {
	log, _ := test.NewNullLogger()
	reaper := &countingReaper{}
	s := NewScheduler(Config{Interval: 10 * time.Millisecond, JobTTL: time.Minute}, reaper, log)

	s.Start()
	assert.Eventually(t, func() bool { return reaper.count() >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()

	n := reaper.count()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, reaper.count(), "no sweeps after Stop")
}
