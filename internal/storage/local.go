package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codebuildervaibhav/whisper-transcriber/internal/types"
)

// LocalStorage handles saving transcripts to the local filesystem
type LocalStorage struct {
	outputDir string
	model     string
	now       func() time.Time
}

// NewLocalStorage creates a new local storage handler
func NewLocalStorage(outputDir, model string) (*LocalStorage, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &LocalStorage{
		outputDir: outputDir,
		model:     model,
		now:       time.Now,
	}, nil
}

// SaveTranscript saves the transcript and metadata to local disk and returns
// the transcript path.
func (ls *LocalStorage) SaveTranscript(jobID, requestName string, result *types.TranscriptionResult) (string, error) {
	// Create dated directory structure: outputs/2025/01/23/
	now := ls.now()
	dateDir := filepath.Join(ls.outputDir,
		fmt.Sprintf("%d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%02d", now.Day()))

	if err := os.MkdirAll(dateDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create date directory: %w", err)
	}

	// Generate filename: 20250123_143022_podcast_episode.txt
	baseFilename := transcriptBaseName(now, requestName)
	txtPath := filepath.Join(dateDir, baseFilename+".txt")
	metaPath := filepath.Join(dateDir, baseFilename+"_meta.json")

	if err := os.WriteFile(txtPath, []byte(result.Transcript), 0o644); err != nil {
		return "", fmt.Errorf("failed to save transcript: %w", err)
	}

	metaJSON, err := json.MarshalIndent(transcriptMetadata(jobID, requestName, ls.model, now, result), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(metaPath, metaJSON, 0o644); err != nil {
		return "", fmt.Errorf("failed to save metadata: %w", err)
	}

	return txtPath, nil
}

// transcriptMetadata is the JSON document stored next to every transcript.
func transcriptMetadata(jobID, requestName, model string, at time.Time, result *types.TranscriptionResult) map[string]interface{} {
	return map[string]interface{}{
		"job_id":           jobID,
		"request_name":     requestName,
		"duration_seconds": result.Duration,
		"word_count":       result.WordCount,
		"model_used":       model,
		"device":           result.Device,
		"language":         result.Language,
		"size_mb":          result.SizeMB,
		"created_at":       at,
		"segments":         result.Segments,
	}
}

func transcriptBaseName(at time.Time, requestName string) string {
	return fmt.Sprintf("%s_%s", at.Format("20060102_150405"), sanitizeFilename(requestName))
}

// sanitizeFilename removes invalid characters from filename
func sanitizeFilename(name string) string {
	name = strings.TrimSuffix(name, filepath.Ext(name))
	result := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, name)
	result = strings.Trim(result, "._")
	if result == "" {
		result = "untitled"
	}
	if len(result) > 100 {
		result = result[:100] // Limit length
	}
	return result
}
