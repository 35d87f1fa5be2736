package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// Error codes returned in JSON error bodies.
const (
	CodeNoFile         = "ERR_NO_FILE"
	CodeFileTooLarge   = "ERR_FILE_TOO_LARGE"
	CodeInvalidFormat  = "ERR_INVALID_FORMAT"
	CodeSaveFailed     = "ERR_SAVE_FAILED"
	CodeNotFound       = "ERR_NOT_FOUND"
	CodeShuttingDown   = "ERR_SHUTTING_DOWN"
	CodeUpgradeNeeded  = "ERR_UPGRADE_REQUIRED"
	CodeInternal       = "ERR_INTERNAL"
	CodeInvalidRequest = "ERR_INVALID_REQUEST"
)

func errorJSON(c *fiber.Ctx, status int, code, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": msg,
		"code":  code,
	})
}
