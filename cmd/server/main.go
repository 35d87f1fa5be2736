package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/whisper-transcriber/internal/config"
	"github.com/codebuildervaibhav/whisper-transcriber/internal/logging"
)

const version = "1.0.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "whisper-transcriber",
	Short:         "Audio transcription server backed by Whisper",
	Long:          `Accepts audio uploads, transcribes them with the Whisper CLI in the background and streams job progress over SSE and WebSocket.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to the YAML config file")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup reads the config file and builds the logger from it. buf may be nil.
func setup(buf *logging.LogBuffer) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, buf)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
