package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/whisper-transcriber/internal/cleanup"
	"github.com/codebuildervaibhav/whisper-transcriber/internal/handlers"
	"github.com/codebuildervaibhav/whisper-transcriber/internal/logging"
	"github.com/codebuildervaibhav/whisper-transcriber/internal/queue"
	"github.com/codebuildervaibhav/whisper-transcriber/internal/storage"
	"github.com/codebuildervaibhav/whisper-transcriber/internal/transcription"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP transcription server (default)",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	logBuffer := logging.NewLogBuffer(logging.DefaultBufferLines)
	cfg, log, err := setup(logBuffer)
	if err != nil {
		return err
	}

	log.Info("Initializing components...")

	temp, err := storage.NewTempStore(cfg.Storage.TempDir, cfg.MaxUploadBytes(), cfg.Limits.AllowedExtensions, log)
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}

	engine, err := transcription.NewWhisperEngine(transcription.WhisperConfig{
		Command:     cfg.Whisper.Command,
		FFprobePath: cfg.Whisper.FFprobe,
		Model:       cfg.Whisper.Model,
		Device:      cfg.Whisper.Device,
		Threads:     cfg.Whisper.Threads,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to initialize Whisper: %w", err)
	}

	localStorage, err := storage.NewLocalStorage(cfg.Storage.OutputDir, cfg.Whisper.Model)
	if err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	db, err := storage.NewMetadataDB(cfg.Storage.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	// Left as a nil interface unless a client is ready.
	var drive storage.DriveUploader
	if cfg.GoogleDrive.Enabled {
		dc, err := storage.NewDriveClient(cmd.Context(),
			cfg.GoogleDrive.CredentialsFile,
			cfg.GoogleDrive.TokenFile,
			cfg.GoogleDrive.FolderName,
			cfg.Whisper.Model,
		)
		if err != nil {
			log.WithError(err).Warn("Google Drive not available, transcripts will only be saved locally")
		} else {
			drive = dc
			log.Info("Google Drive integration enabled")
		}
	}

	registry := queue.NewRegistry()
	pool := queue.NewWorkerPool(registry, engine, temp, log, queue.Options{
		Workers:  cfg.Workers.Count,
		Archiver: storage.NewArchive(localStorage, drive, db, log),
	})

	scheduler := cleanup.NewScheduler(cleanup.Config{
		TempDir:    cfg.Storage.TempDir,
		Interval:   cfg.CleanupInterval(),
		MaxFileAge: cfg.CleanupMaxAge(),
		JobTTL:     cfg.JobTTL(),
	}, registry, log)
	scheduler.Start()
	defer scheduler.Stop()

	app := fiber.New(fiber.Config{
		// multipart framing on top of the file itself
		BodyLimit:             int(cfg.MaxUploadBytes()) + 1024*1024,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{Output: log.Out}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	handlers.Register(app, handlers.Deps{
		Jobs:        pool,
		Uploads:     temp,
		Transcripts: db,
		Logs:        logBuffer,
		Log:         log,
		Version:     version,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- app.Listen(cfg.Addr())
	}()
	log.WithField("addr", cfg.Addr()).Info("Server starting")

	select {
	case err := <-listenErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()

	// Jobs first, so open progress streams see their terminal snapshot.
	var errs []error
	if err := pool.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("worker pool: %w", err))
	}
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}
	return errors.Join(errs...)
}
