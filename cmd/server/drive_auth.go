package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/whisper-transcriber/internal/storage"
)

var driveAuthCmd = &cobra.Command{
	Use:   "drive-auth",
	Short: "Authorize Google Drive access and store the OAuth token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := setup(nil)
		if err != nil {
			return err
		}
		if err := storage.AuthorizeDrive(cmd.Context(),
			cfg.GoogleDrive.CredentialsFile,
			cfg.GoogleDrive.TokenFile,
			cmd.InOrStdin(),
			cmd.OutOrStdout(),
		); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Token saved to %s\n", cfg.GoogleDrive.TokenFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(driveAuthCmd)
}

