package handlers

import (
	"context"
	"errors"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/whisper-transcriber/internal/storage"
	"github.com/codebuildervaibhav/whisper-transcriber/internal/types"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// TranscriptStore lists archived transcripts. *storage.MetadataDB implements it.
type TranscriptStore interface {
	GetTranscript(ctx context.Context, jobID string) (types.TranscriptRecord, error)
	ListTranscripts(ctx context.Context, limit int) ([]types.TranscriptRecord, error)
}

// TranscriptHandler serves the transcript archive.
type TranscriptHandler struct {
	store TranscriptStore
	log   logrus.FieldLogger
}

// NewTranscriptHandler creates a new transcript handler
func NewTranscriptHandler(store TranscriptStore, log logrus.FieldLogger) *TranscriptHandler {
	return &TranscriptHandler{store: store, log: log}
}

// List returns archived transcripts, newest first.
func (h *TranscriptHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultListLimit)
	if limit <= 0 || limit > maxListLimit {
		return errorJSON(c, fiber.StatusBadRequest, CodeInvalidRequest, "limit must be between 1 and 500")
	}

	transcripts, err := h.store.ListTranscripts(c.UserContext(), limit)
	if err != nil {
		h.log.WithError(err).Error("Failed to list transcripts")
		return errorJSON(c, fiber.StatusInternalServerError, CodeInternal, "Failed to list transcripts")
	}
	if transcripts == nil {
		transcripts = []types.TranscriptRecord{}
	}
	return c.JSON(transcripts)
}

// Text returns the plain text of an archived transcript.
func (h *TranscriptHandler) Text(c *fiber.Ctx) error {
	jobID := c.Params("id")

	transcript, err := h.store.GetTranscript(c.UserContext(), jobID)
	if errors.Is(err, storage.ErrTranscriptNotFound) {
		return errorJSON(c, fiber.StatusNotFound, CodeNotFound, "Transcript not found")
	}
	if err != nil {
		h.log.WithError(err).WithField("job_id", jobID).Error("Failed to load transcript")
		return errorJSON(c, fiber.StatusInternalServerError, CodeInternal, "Failed to load transcript")
	}
	if transcript.LocalPath == "" {
		return errorJSON(c, fiber.StatusNotFound, CodeNotFound, "Transcript file path not found")
	}

	content, err := os.ReadFile(transcript.LocalPath)
	if err != nil {
		h.log.WithError(err).WithField("path", transcript.LocalPath).Error("Failed to read transcript file")
		return errorJSON(c, fiber.StatusInternalServerError, CodeInternal, "Failed to read transcript file")
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Send(content)
}
