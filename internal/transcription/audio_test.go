package transcription

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAudioFormat(t *testing.T) {
	assert.True(t, ValidateAudioFormat("meeting.WAV", nil))
	assert.True(t, ValidateAudioFormat("clip.m4a", nil))
	assert.False(t, ValidateAudioFormat("notes.txt", nil))
	assert.False(t, ValidateAudioFormat("README", nil))

	assert.True(t, ValidateAudioFormat("a.opus", []string{".opus"}))
	assert.False(t, ValidateAudioFormat("a.wav", []string{".opus"}))
}

func TestProbeDuration(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()

	good := filepath.Join(dir, "good.sh")
	require.NoError(t, os.WriteFile(good, []byte("#!/bin/sh\necho 42.5\n"), 0o755))
	d, err := ProbeDuration(context.Background(), good, "in.wav")
	require.NoError(t, err)
	assert.Equal(t, 42.5, d)

	bad := filepath.Join(dir, "bad.sh")
	require.NoError(t, os.WriteFile(bad, []byte("#!/bin/sh\necho N/A\n"), 0o755))
	_, err = ProbeDuration(context.Background(), bad, "in.wav")
	assert.Error(t, err)
}
