package handlers

import (
	"context"
	"errors"
	"iter"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/whisper-transcriber/internal/queue"
	"github.com/codebuildervaibhav/whisper-transcriber/internal/types"
)

// Jobs is the job scheduler as seen by the HTTP layer. *queue.WorkerPool
// implements it.
type Jobs interface {
	Submit(artifact queue.Artifact, language string) (string, error)
	Cancel(id string) error
	Get(id string) (types.Snapshot, error)
	Observe(ctx context.Context, id string) (iter.Seq[types.Snapshot], error)
	Len() int
}

// JobHandler serves job snapshots and cancellation.
type JobHandler struct {
	jobs Jobs
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobs Jobs) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// Get returns the current snapshot of a job.
func (h *JobHandler) Get(c *fiber.Ctx) error {
	snap, err := h.jobs.Get(c.Params("id"))
	if err != nil {
		return jobError(c, err)
	}
	return c.JSON(snap)
}

// Cancel requests cancellation. Cancelling a finished job succeeds and
// changes nothing.
func (h *JobHandler) Cancel(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.jobs.Cancel(id); err != nil {
		return jobError(c, err)
	}
	return c.JSON(fiber.Map{
		"job_id":  id,
		"message": "Cancellation requested",
	})
}

func jobError(c *fiber.Ctx, err error) error {
	if errors.Is(err, queue.ErrNotFound) {
		return errorJSON(c, fiber.StatusNotFound, CodeNotFound, "Job not found")
	}
	return errorJSON(c, fiber.StatusInternalServerError, CodeInternal, err.Error())
}
