package transcription

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultFormats lists the media extensions accepted when none are configured.
var DefaultFormats = []string{".wav", ".mp3", ".mp4", ".m4a", ".ogg", ".flac", ".webm"}

// NormalizeAudio extracts the audio track of inputPath into a 16kHz mono WAV
// at outputPath, dropping any video stream.
func NormalizeAudio(ctx context.Context, ffmpegPath, inputPath, outputPath string) error {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-y",
		"-i", inputPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		outputPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %w\nOutput: %s", err, string(output))
	}
	return nil
}

// ProbeDuration returns the media duration in seconds as reported by ffprobe.
func ProbeDuration(ctx context.Context, ffprobePath, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe returned unparsable duration %q: %w", strings.TrimSpace(string(output)), err)
	}
	return duration, nil
}

// ValidateAudioFormat checks the file extension against the allowed list.
func ValidateAudioFormat(filename string, allowed []string) bool {
	if len(allowed) == 0 {
		allowed = DefaultFormats
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return false
	}
	for _, format := range allowed {
		if ext == strings.ToLower(format) {
			return true
		}
	}
	return false
}
