package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/whisper-transcriber/internal/transcription"
)

var (
	// ErrTooLarge is returned when an upload exceeds the configured limit.
	ErrTooLarge = errors.New("file too large")
	// ErrUnsupportedFormat is returned for media types outside the allowlist.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// TempStore spools uploads into a temp directory and owns their deletion.
type TempStore struct {
	dir      string
	maxBytes int64
	formats  []string
	log      logrus.FieldLogger
}

// NewTempStore creates the temp directory if it doesn't exist.
func NewTempStore(dir string, maxBytes int64, formats []string, log logrus.FieldLogger) (*TempStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	log.WithField("dir", dir).Info("Temp directory ready")
	return &TempStore{dir: dir, maxBytes: maxBytes, formats: formats, log: log}, nil
}

// Dir returns the spool directory.
func (s *TempStore) Dir() string {
	return s.dir
}

// MaxBytes returns the per-upload size limit.
func (s *TempStore) MaxBytes() int64 {
	return s.maxBytes
}

// Accepts reports whether filename has an allowed media extension.
func (s *TempStore) Accepts(filename string) bool {
	return transcription.ValidateAudioFormat(filename, s.formats)
}

// Save copies r into a uniquely named file carrying the extension of
// filename. Nothing is left on disk when the format is not allowed or the
// content exceeds the limit.
func (s *TempStore) Save(r io.Reader, filename string) (string, error) {
	if !s.Accepts(filename) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
	}

	ext := strings.ToLower(filepath.Ext(filename))
	path := filepath.Join(s.dir, uuid.New().String()+ext)

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	n, err := io.Copy(out, io.LimitReader(r, s.maxBytes+1))
	closeErr := out.Close()
	switch {
	case err != nil:
		s.discard(path)
		return "", fmt.Errorf("failed to write temp file: %w", err)
	case closeErr != nil:
		s.discard(path)
		return "", fmt.Errorf("failed to write temp file: %w", closeErr)
	case n > s.maxBytes:
		s.discard(path)
		return "", fmt.Errorf("%w (max %d bytes)", ErrTooLarge, s.maxBytes)
	}
	return path, nil
}

// Remove deletes a spooled file. Missing files are not an error.
func (s *TempStore) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove temp file: %w", err)
	}
	return nil
}

func (s *TempStore) discard(path string) {
	if err := s.Remove(path); err != nil {
		s.log.WithError(err).WithField("path", path).Warn("Failed to discard partial upload")
	}
}
