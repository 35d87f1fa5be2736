package queue

import (
	"fmt"
	"math"
	"os"
	"runtime/debug"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/whisper-transcriber/internal/types"
)

// run executes one job from admission to a terminal status. The artifact is
// removed exactly once, whichever way the job ends.
func (wp *WorkerPool) run(id string, artifact Artifact, language string) {
	defer wp.wg.Done()

	log := wp.log.WithField("job_id", id)
	defer wp.removeArtifact(log, artifact.Path)

	// Panic recovery
	defer func() {
		if r := recover(); r != nil {
			log.WithField("stack", string(debug.Stack())).Errorf("PANIC processing job: %v", r)
			wp.fail(log, id, fmt.Errorf("worker panic: %v", r))
		}
	}()

	if !wp.acquire(id) {
		wp.markCancelled(log, id)
		return
	}
	defer wp.release()

	wp.processJob(log, id, artifact, language)
}

// processJob drives the engine and mirrors its output into the registry.
func (wp *WorkerPool) processJob(log logrus.FieldLogger, id string, artifact Artifact, language string) {
	if wp.registry.CancelRequested(id) {
		wp.markCancelled(log, id)
		return
	}
	if err := wp.registry.Update(id, Change{Status: types.StatusRunning}); err != nil {
		log.WithError(err).Error("Failed to start job")
		return
	}
	log.Info("Processing job")

	var size int64
	if fi, err := os.Stat(artifact.Path); err == nil {
		size = fi.Size()
	}

	segments, info, err := wp.engine.Transcribe(wp.ctx, artifact.Path, language)
	if err != nil {
		wp.fail(log, id, err)
		return
	}

	var (
		transcript strings.Builder
		collected  []types.Segment
	)
	for seg, err := range segments {
		if err != nil {
			wp.fail(log, id, err)
			return
		}
		if wp.registry.CancelRequested(id) {
			wp.markCancelled(log, id)
			return
		}

		transcript.WriteString(seg.Text)
		collected = append(collected, seg)

		if info.Duration > 0 {
			progress := math.Min(maxRunningProgress, 100*seg.End/info.Duration)
			if err := wp.registry.Update(id, Change{Progress: progress}); err != nil {
				log.WithError(err).Warn("Failed to record progress")
			}
		}
	}

	text := strings.TrimSpace(transcript.String())
	detected := info.Language
	if detected == "" && language != types.LanguageAuto {
		detected = language
	}
	result := &types.TranscriptionResult{
		Transcript: text,
		Language:   detected,
		Device:     info.Device,
		SizeMB:     math.Round(float64(size)/(1024*1024)*100) / 100,
		Duration:   info.Duration,
		WordCount:  len(strings.Fields(text)),
		Segments:   collected,
	}

	if err := wp.registry.Update(id, Change{Status: types.StatusCompleted, Result: result}); err != nil {
		log.WithError(err).Error("Failed to complete job")
		return
	}
	log.WithFields(logrus.Fields{
		"segments": len(collected),
		"words":    result.WordCount,
		"language": result.Language,
	}).Info("Job completed successfully")

	if wp.archiver != nil {
		if err := wp.archiver.Archive(wp.ctx, id, artifact.Name, artifact.SourceType, result); err != nil {
			log.WithError(err).Warn("Failed to archive transcript")
		}
	}
}

func (wp *WorkerPool) fail(log logrus.FieldLogger, id string, cause error) {
	log.WithError(cause).Error("Transcription failed")
	if err := wp.registry.Update(id, Change{Status: types.StatusFailed, Error: cause.Error()}); err != nil {
		log.WithError(err).Error("Failed to record job failure")
	}
}

func (wp *WorkerPool) markCancelled(log logrus.FieldLogger, id string) {
	if err := wp.registry.Update(id, Change{Status: types.StatusCancelled}); err != nil {
		log.WithError(err).Error("Failed to record cancellation")
		return
	}
	log.Info("Job cancelled by user")
}

// removeArtifact deletes the spooled upload. Failures are logged only.
func (wp *WorkerPool) removeArtifact(log logrus.FieldLogger, path string) {
	if path == "" || wp.artifacts == nil {
		return
	}
	if err := wp.artifacts.Remove(path); err != nil {
		log.WithError(err).WithField("path", path).Warn("Failed to cleanup temp file")
	}
}
