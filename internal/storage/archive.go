package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/whisper-transcriber/internal/types"
)

const driveAttempts = 3

// DriveUploader is satisfied by DriveClient.
type DriveUploader interface {
	Upload(ctx context.Context, jobID, requestName string, result *types.TranscriptionResult) (string, error)
}

// Archive keeps completed transcripts: on local disk, optionally on Google
// Drive, and indexed in the metadata database.
type Archive struct {
	local *LocalStorage
	drive DriveUploader
	db    *MetadataDB
	log   logrus.FieldLogger

	backoff func(attempt int) time.Duration
}

// NewArchive wires the archive sinks. drive and db may be nil.
func NewArchive(local *LocalStorage, drive DriveUploader, db *MetadataDB, log logrus.FieldLogger) *Archive {
	return &Archive{
		local: local,
		drive: drive,
		db:    db,
		log:   log,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt*attempt) * time.Second
		},
	}
}

// Archive saves the result locally, uploads it to Drive (with retry) and
// records it in the database. Only a failed local save is fatal; Drive
// problems degrade to a local-only archive.
func (a *Archive) Archive(ctx context.Context, jobID, requestName, sourceType string, result *types.TranscriptionResult) error {
	log := a.log.WithField("job_id", jobID)

	localPath, err := a.local.SaveTranscript(jobID, requestName, result)
	if err != nil {
		return fmt.Errorf("local save failed: %w", err)
	}

	var driveURL string
	if a.drive != nil {
		driveURL, err = a.uploadWithRetry(ctx, log, jobID, requestName, result)
		if err != nil {
			log.WithError(err).Warn("Google Drive upload failed, continuing with local save only")
		}
	}

	if a.db != nil {
		rec := types.TranscriptRecord{
			JobID:       jobID,
			RequestName: requestName,
			SourceType:  sourceType,
			GDriveURL:   driveURL,
			LocalPath:   localPath,
			Language:    result.Language,
			CreatedAt:   time.Now(),
			Duration:    result.Duration,
			WordCount:   result.WordCount,
		}
		if err := a.db.SaveTranscript(ctx, rec); err != nil {
			return fmt.Errorf("database save failed: %w", err)
		}
	}

	log.WithFields(logrus.Fields{"local": localPath, "gdrive": driveURL}).Info("Transcript archived")
	return nil
}

func (a *Archive) uploadWithRetry(ctx context.Context, log logrus.FieldLogger, jobID, requestName string, result *types.TranscriptionResult) (string, error) {
	var errs []error
	for attempt := 1; attempt <= driveAttempts; attempt++ {
		url, err := a.drive.Upload(ctx, jobID, requestName, result)
		if err == nil {
			return url, nil
		}
		errs = append(errs, err)
		log.WithError(err).Warnf("Google Drive upload attempt %d/%d failed", attempt, driveAttempts)

		if attempt < driveAttempts {
			select {
			case <-time.After(a.backoff(attempt)):
			case <-ctx.Done():
				return "", errors.Join(append(errs, ctx.Err())...)
			}
		}
	}
	return "", errors.Join(errs...)
}
