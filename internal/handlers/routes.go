package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/whisper-transcriber/internal/storage"
)

// LogSource exposes recently written log lines.
type LogSource interface {
	GetLogs() []string
}

// Deps are the components the routes are served from. Transcripts and Logs
// may be nil, which leaves their routes unregistered.
type Deps struct {
	Jobs        Jobs
	Uploads     *storage.TempStore
	Transcripts TranscriptStore
	Logs        LogSource
	Log         logrus.FieldLogger
	Version     string
}

// Register mounts every route on app.
func Register(app *fiber.App, d Deps) {
	upload := NewUploadHandler(d.Jobs, d.Uploads, d.Log)
	jobs := NewJobHandler(d.Jobs)
	progress := NewProgressHandler(d.Jobs, d.Log)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"version": d.Version,
			"jobs":    d.Jobs.Len(),
		})
	})

	app.Post("/upload", upload.Handle)

	app.Post("/stop/:id", jobs.Cancel)
	app.Post("/jobs/:id/cancel", jobs.Cancel)
	app.Get("/jobs/:id", jobs.Get)

	app.Get("/progress/:id", progress.Events)
	app.Get("/ws/progress/:id", progress.RequireJobUpgrade, websocket.New(progress.Socket))

	if d.Transcripts != nil {
		transcripts := NewTranscriptHandler(d.Transcripts, d.Log)
		app.Get("/transcripts", transcripts.List)
		app.Get("/transcripts/:id/text", transcripts.Text)
	}

	if d.Logs != nil {
		app.Get("/logs", func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{
				"logs": d.Logs.GetLogs(),
			})
		})
	}
}
