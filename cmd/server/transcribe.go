package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/whisper-transcriber/internal/queue"
	"github.com/codebuildervaibhav/whisper-transcriber/internal/storage"
	"github.com/codebuildervaibhav/whisper-transcriber/internal/transcription"
	"github.com/codebuildervaibhav/whisper-transcriber/internal/types"
)

var (
	transcribeExtract  bool
	transcribeLanguage string
	transcribeOutput   string
	transcribeSave     bool
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <media>",
	Short: "Transcribe one local media file and print the transcript",
	Long: `Runs a single transcription job in-process. Progress is written to stderr and
the transcript to stdout (or --output). Ctrl-C cancels the job.`,
	Args: cobra.ExactArgs(1),
	RunE: runTranscribe,
}

func init() {
	transcribeCmd.Flags().BoolVar(&transcribeExtract, "extract", false, "extract a 16kHz mono WAV with ffmpeg first (for video files)")
	transcribeCmd.Flags().StringVarP(&transcribeLanguage, "language", "l", types.LanguageAuto, "language code, or auto to detect")
	transcribeCmd.Flags().StringVarP(&transcribeOutput, "output", "o", "", "write the transcript to this file instead of stdout")
	transcribeCmd.Flags().BoolVar(&transcribeSave, "save", false, "also archive the transcript under storage.output_dir")
	rootCmd.AddCommand(transcribeCmd)
}

// ownedArtifacts only deletes the file the command created itself, never
// the user's input.
type ownedArtifacts struct {
	owned string
}

func (a ownedArtifacts) Remove(path string) error {
	if a.owned == "" || path != a.owned {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(nil)
	if err != nil {
		return err
	}
	// stdout carries the transcript
	log.SetOutput(cmd.ErrOrStderr())

	input := args[0]
	if _, err := os.Stat(input); err != nil {
		return fmt.Errorf("cannot read input: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	artifact := queue.Artifact{
		Path:       input,
		Name:       filepath.Base(input),
		SourceType: types.SourceCLI,
	}
	var artifacts ownedArtifacts
	if transcribeExtract {
		tmp, err := os.CreateTemp("", "transcribe-*.wav")
		if err != nil {
			return fmt.Errorf("failed to create temp file: %w", err)
		}
		tmp.Close()
		if err := transcription.NormalizeAudio(ctx, cfg.Whisper.FFmpeg, input, tmp.Name()); err != nil {
			os.Remove(tmp.Name())
			return err
		}
		artifact.Path = tmp.Name()
		artifacts.owned = tmp.Name()
	} else if !transcription.ValidateAudioFormat(input, cfg.Limits.AllowedExtensions) {
		return fmt.Errorf("unsupported audio format %q (use --extract to convert with ffmpeg)", filepath.Ext(input))
	}

	engine, err := transcription.NewWhisperEngine(transcription.WhisperConfig{
		Command:     cfg.Whisper.Command,
		FFprobePath: cfg.Whisper.FFprobe,
		Model:       cfg.Whisper.Model,
		Device:      cfg.Whisper.Device,
		Threads:     cfg.Whisper.Threads,
	}, log)
	if err != nil {
		return err
	}

	opts := queue.Options{Workers: 1}
	if transcribeSave {
		local, err := storage.NewLocalStorage(cfg.Storage.OutputDir, cfg.Whisper.Model)
		if err != nil {
			return err
		}
		opts.Archiver = storage.NewArchive(local, nil, nil, log)
	}

	pool := queue.NewWorkerPool(queue.NewRegistry(), engine, artifacts, log, opts)
	defer pool.Shutdown(context.Background())

	id, err := pool.Submit(artifact, transcribeLanguage)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		_ = pool.Cancel(id)
	}()

	final, err := followJob(pool, id, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	switch final.Status {
	case types.StatusCompleted:
		return writeTranscript(cmd.OutOrStdout(), final.Result)
	case types.StatusCancelled:
		return errors.New("transcription cancelled")
	default:
		return fmt.Errorf("transcription failed: %s", final.Error)
	}
}

// followJob prints progress until the job is terminal and returns the final
// snapshot.
func followJob(pool *queue.WorkerPool, id string, w io.Writer) (types.Snapshot, error) {
	seq, err := pool.Observe(context.Background(), id)
	if err != nil {
		return types.Snapshot{}, err
	}
	var last types.Snapshot
	for snap := range seq {
		fmt.Fprintf(w, "\r[%5.1f%%] %-10s", snap.Progress, snap.Status)
		last = snap
	}
	fmt.Fprintln(w)
	return last, nil
}

func writeTranscript(stdout io.Writer, result *types.TranscriptionResult) error {
	if transcribeOutput == "" {
		_, err := fmt.Fprintln(stdout, result.Transcript)
		return err
	}
	if err := os.WriteFile(transcribeOutput, []byte(result.Transcript), 0o644); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	return nil
}
