package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

// ProgressHandler streams job snapshots to HTTP clients.
type ProgressHandler struct {
	jobs Jobs
	log  logrus.FieldLogger
}

// NewProgressHandler creates a new progress handler
func NewProgressHandler(jobs Jobs, log logrus.FieldLogger) *ProgressHandler {
	return &ProgressHandler{jobs: jobs, log: log}
}

// Events streams snapshots as server-sent events, one "data:" event per
// change, and ends after the terminal snapshot.
func (h *ProgressHandler) Events(c *fiber.Ctx) error {
	id := c.Params("id")

	ctx, cancel := context.WithCancel(context.Background())
	seq, err := h.jobs.Observe(ctx, id)
	if err != nil {
		cancel()
		return jobError(c, err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	log := h.log.WithField("job_id", id)
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		for snap := range seq {
			data, err := json.Marshal(snap)
			if err != nil {
				log.WithError(err).Error("Failed to encode snapshot")
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				log.WithError(err).Debug("Progress client went away")
				return
			}
		}
	}))
	return nil
}
