package cleanup

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Reaper drops terminal jobs older than maxAge and reports how many it removed.
type Reaper interface {
	Reap(maxAge time.Duration) int
}

// Config controls what the scheduler sweeps.
type Config struct {
	TempDir  string
	Interval time.Duration
	// MaxFileAge is how old a temp file must be before it is deleted.
	MaxFileAge time.Duration
	// JobTTL is how long terminal jobs stay in the registry; zero keeps them.
	JobTTL time.Duration
}

// Scheduler handles cleanup of orphaned temporary files and expired jobs
type Scheduler struct {
	cfg    Config
	jobs   Reaper
	log    logrus.FieldLogger
	now    func() time.Time
	stopCh chan struct{}
	done   chan struct{}
	once   sync.Once
}

// NewScheduler creates a new cleanup scheduler. jobs may be nil.
func NewScheduler(cfg Config, jobs Reaper, log logrus.FieldLogger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Minute
	}
	return &Scheduler{
		cfg:    cfg,
		jobs:   jobs,
		log:    log,
		now:    time.Now,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start runs one sweep immediately and then one per interval until Stop.
func (s *Scheduler) Start() {
	s.log.Info("Running initial temp file cleanup...")
	s.Sweep()

	ticker := time.NewTicker(s.cfg.Interval)
	go func() {
		defer close(s.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.stopCh:
				return
			}
		}
	}()

	s.log.WithFields(logrus.Fields{
		"interval":     s.cfg.Interval,
		"max_file_age": s.cfg.MaxFileAge,
		"job_ttl":      s.cfg.JobTTL,
	}).Info("Cleanup scheduler started")
}

// Stop stops the cleanup scheduler. It is safe to call more than once, but
// only after Start.
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		close(s.stopCh)
		<-s.done
		s.log.Info("Cleanup scheduler stopped")
	})
}

// Sweep performs one cleanup pass.
func (s *Scheduler) Sweep() {
	s.cleanOldFiles()
	if s.jobs != nil && s.cfg.JobTTL > 0 {
		if n := s.jobs.Reap(s.cfg.JobTTL); n > 0 {
			s.log.WithField("count", n).Info("Expired jobs removed from registry")
		}
	}
}

// cleanOldFiles removes files older than MaxFileAge from the temp directory.
// Uploads normally delete themselves; this catches files left behind by a
// crash.
func (s *Scheduler) cleanOldFiles() {
	if s.cfg.TempDir == "" || s.cfg.MaxFileAge <= 0 {
		return
	}
	now := s.now()

	var deletedCount int
	var deletedSize int64

	err := filepath.Walk(s.cfg.TempDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip files we can't access
		}
		if info.IsDir() {
			return nil
		}

		age := now.Sub(info.ModTime())
		if age <= s.cfg.MaxFileAge {
			return nil
		}
		size := info.Size()
		if err := os.Remove(path); err != nil {
			s.log.WithError(err).WithField("path", path).Warn("Failed to delete old file")
			return nil
		}
		deletedCount++
		deletedSize += size
		s.log.WithFields(logrus.Fields{
			"file": filepath.Base(path),
			"age":  age.Round(time.Minute),
		}).Debug("Deleted old temp file")
		return nil
	})
	if err != nil {
		s.log.WithError(err).Warn("Error during cleanup")
	}

	if deletedCount > 0 {
		s.log.Infof("Cleanup complete: %d files deleted, %.2fMB freed",
			deletedCount, float64(deletedSize)/(1024*1024))
	}
}
