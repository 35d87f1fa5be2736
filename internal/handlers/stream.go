package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RequireJobUpgrade rejects non-websocket requests and unknown jobs before
// the connection is upgraded.
func (h *ProgressHandler) RequireJobUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return errorJSON(c, fiber.StatusUpgradeRequired, CodeUpgradeNeeded, "WebSocket upgrade required")
	}
	if _, err := h.jobs.Get(c.Params("id")); err != nil {
		return jobError(c, err)
	}
	return c.Next()
}

// Socket sends one JSON text frame per snapshot and closes the connection
// after the terminal one.
func (h *ProgressHandler) Socket(c *websocket.Conn) {
	defer c.Close()

	id := c.Params("id")
	log := h.log.WithField("job_id", id)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Reads only detect the peer going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	seq, err := h.jobs.Observe(ctx, id)
	if err != nil {
		_ = c.WriteJSON(fiber.Map{"error": "Job not found", "code": CodeNotFound})
		return
	}

	log.Debug("WebSocket progress observer connected")
	for snap := range seq {
		if err := c.WriteJSON(snap); err != nil {
			log.WithError(err).Debug("WebSocket write failed")
			return
		}
	}

	_ = c.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"))
}
