package handlers

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/whisper-transcriber/internal/queue"
	"github.com/codebuildervaibhav/whisper-transcriber/internal/storage"
	"github.com/codebuildervaibhav/whisper-transcriber/internal/types"
)

// UploadHandler handles file uploads
type UploadHandler struct {
	jobs  Jobs
	store *storage.TempStore
	log   logrus.FieldLogger
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(jobs Jobs, store *storage.TempStore, log logrus.FieldLogger) *UploadHandler {
	return &UploadHandler{
		jobs:  jobs,
		store: store,
		log:   log,
	}
}

// Handle validates the upload, spools it to the temp store and submits a job.
// Rejected uploads never create a job.
func (h *UploadHandler) Handle(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, CodeNoFile, "No file uploaded")
	}

	maxMB := h.store.MaxBytes() / (1024 * 1024)
	if file.Size > h.store.MaxBytes() {
		return errorJSON(c, fiber.StatusRequestEntityTooLarge, CodeFileTooLarge,
			fmt.Sprintf("File too large (max %dMB)", maxMB))
	}
	if !h.store.Accepts(file.Filename) {
		return errorJSON(c, fiber.StatusBadRequest, CodeInvalidFormat, "Unsupported audio format")
	}

	requestName := strings.TrimSpace(c.FormValue("name"))
	if requestName == "" {
		requestName = filepath.Base(file.Filename)
	}
	language := strings.ToLower(strings.TrimSpace(c.FormValue("language", types.LanguageAuto)))

	src, err := file.Open()
	if err != nil {
		h.log.WithError(err).Error("Failed to open uploaded file")
		return errorJSON(c, fiber.StatusInternalServerError, CodeSaveFailed, "Failed to save file")
	}
	defer src.Close()

	path, err := h.store.Save(src, file.Filename)
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		return errorJSON(c, fiber.StatusRequestEntityTooLarge, CodeFileTooLarge,
			fmt.Sprintf("File too large (max %dMB)", maxMB))
	case errors.Is(err, storage.ErrUnsupportedFormat):
		return errorJSON(c, fiber.StatusBadRequest, CodeInvalidFormat, "Unsupported audio format")
	case err != nil:
		h.log.WithError(err).Error("Failed to save uploaded file")
		return errorJSON(c, fiber.StatusInternalServerError, CodeSaveFailed, "Failed to save file")
	}

	jobID, err := h.jobs.Submit(queue.Artifact{
		Path:       path,
		Name:       requestName,
		SourceType: types.SourceUpload,
	}, language)
	if err != nil {
		if rmErr := h.store.Remove(path); rmErr != nil {
			h.log.WithError(rmErr).WithField("path", path).Warn("Failed to remove rejected upload")
		}
		if errors.Is(err, queue.ErrShuttingDown) {
			return errorJSON(c, fiber.StatusServiceUnavailable, CodeShuttingDown, "Server is shutting down")
		}
		h.log.WithError(err).Error("Failed to submit job")
		return errorJSON(c, fiber.StatusInternalServerError, CodeInternal, "Failed to submit job")
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id":  jobID,
		"task_id": jobID,
		"status":  types.StatusQueued,
		"message": "File uploaded successfully, processing started",
	})
}
