package transcription

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/whisper-transcriber/internal/types"
)

func TestParseSegmentLine(t *testing.T) {
	seg, ok := parseSegmentLine("[00:01.000 --> 00:04.500]  Hello there.")
	require.True(t, ok)
	assert.Equal(t, 1.0, seg.Start)
	assert.Equal(t, 4.5, seg.End)
	assert.Equal(t, " Hello there.", seg.Text)

	seg, ok = parseSegmentLine("[01:02:03.250 --> 01:02:05.000] long file\r")
	require.True(t, ok)
	assert.Equal(t, 3723.25, seg.Start)
	assert.Equal(t, "long file", seg.Text)

	for _, line := range []string{
		"",
		"Detected language: English",
		"100%|██████████| 1000/1000",
		"[00:01.000] missing end",
	} {
		_, ok := parseSegmentLine(line)
		assert.False(t, ok, line)
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := map[string]float64{
		"00:00.000":    0,
		"00:10.500":    10.5,
		"02:03.000":    123,
		"01:00:00.000": 3600,
	}
	for in, want := range cases {
		got, err := parseTimestamp(in)
		require.NoError(t, err, in)
		assert.InDelta(t, want, got, 1e-9, in)
	}

	for _, bad := range []string{"10.5", "a:b", "1:2:3:4"} {
		_, err := parseTimestamp(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseDetectedLanguage(t *testing.T) {
	lang, ok := parseDetectedLanguage("Detected language: English")
	require.True(t, ok)
	assert.Equal(t, "english", lang)

	_, ok = parseDetectedLanguage("Detected language:   ")
	assert.False(t, ok)
	_, ok = parseDetectedLanguage("[00:00.000 --> 00:01.000] Detected language: no")
	assert.False(t, ok)
}

func TestWhisperArgs(t *testing.T) {
	log, _ := test.NewNullLogger()
	e, err := NewWhisperEngine(WhisperConfig{Command: []string{"python", "-m", "whisper"}, Threads: 4}, log)
	require.NoError(t, err)

	args := e.args("/tmp/a.wav", "de", "/tmp/out")
	assert.Equal(t, []string{"-m", "whisper", "/tmp/a.wav"}, args[:3])
	assert.Contains(t, strings.Join(args, " "), "--model small --device cpu")
	assert.Contains(t, strings.Join(args, " "), "--threads 4")
	assert.Contains(t, strings.Join(args, " "), "--fp16 False")
	assert.Contains(t, strings.Join(args, " "), "--language de")

	gpu, err := NewWhisperEngine(WhisperConfig{Command: []string{"whisper"}, Device: "cuda"}, log)
	require.NoError(t, err)
	args = gpu.args("/tmp/a.wav", "", "/tmp/out")
	assert.NotContains(t, args, "--fp16")
	assert.NotContains(t, args, "--language")
	assert.Equal(t, "cuda", gpu.Device())

	_, err = NewWhisperEngine(WhisperConfig{}, log)
	assert.Error(t, err)
}

// fakeTools writes shell scripts standing in for whisper and ffprobe.
func fakeTools(t *testing.T, whisperBody string) WhisperConfig {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	whisper := filepath.Join(dir, "whisper.sh")
	require.NoError(t, os.WriteFile(whisper, []byte(whisperBody), 0o755))
	ffprobe := filepath.Join(dir, "ffprobe.sh")
	require.NoError(t, os.WriteFile(ffprobe, []byte("#!/bin/sh\necho 10.000000\n"), 0o755))
	return WhisperConfig{Command: []string{"sh", whisper}, FFprobePath: ffprobe}
}

func collect(seq func(func(types.Segment, error) bool)) ([]types.Segment, error) {
	var segs []types.Segment
	for seg, err := range seq {
		if err != nil {
			return segs, err
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

func TestWhisperTranscribeStreamsSegments(t *testing.T) {
	cfg := fakeTools(t, `#!/bin/sh
echo "Detecting language using up to the first 30 seconds."
echo "Detected language: English"
echo "[00:00.000 --> 00:03.000]  Hello"
echo "[00:03.000 --> 00:10.000]  world."
`)
	log, _ := test.NewNullLogger()
	e, err := NewWhisperEngine(cfg, log)
	require.NoError(t, err)

	seq, info, err := e.Transcribe(context.Background(), "/tmp/input.wav", types.LanguageAuto)
	require.NoError(t, err)
	assert.Equal(t, "english", info.Language)
	assert.Equal(t, 10.0, info.Duration)
	assert.Equal(t, "cpu", info.Device)

	segs, err := collect(seq)
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.Equal(t, " Hello", segs[0].Text)
	assert.Equal(t, 10.0, segs[1].End)
}

func TestWhisperTranscribeFirstSegmentBeforeLanguage(t *testing.T) {
	cfg := fakeTools(t, `#!/bin/sh
echo "[00:00.000 --> 00:05.000]  Bonjour"
`)
	log, _ := test.NewNullLogger()
	e, err := NewWhisperEngine(cfg, log)
	require.NoError(t, err)

	seq, info, err := e.Transcribe(context.Background(), "/tmp/input.wav", "fr")
	require.NoError(t, err)
	assert.Equal(t, "fr", info.Language, "forced language is reported")

	segs, err := collect(seq)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, " Bonjour", segs[0].Text)
}

func TestWhisperTranscribeFailure(t *testing.T) {
	cfg := fakeTools(t, `#!/bin/sh
echo "[00:00.000 --> 00:02.000]  partial"
echo "CUDA out of memory" >&2
exit 3
`)
	log, _ := test.NewNullLogger()
	e, err := NewWhisperEngine(cfg, log)
	require.NoError(t, err)

	seq, _, err := e.Transcribe(context.Background(), "/tmp/input.wav", "")
	require.NoError(t, err)

	segs, err := collect(seq)
	assert.Len(t, segs, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CUDA out of memory")
}

func TestWhisperTranscribeStopsProcessOnBreak(t *testing.T) {
	cfg := fakeTools(t, `#!/bin/sh
echo "[00:00.000 --> 00:02.000]  first"
exec sleep 30
`)
	log, _ := test.NewNullLogger()
	e, err := NewWhisperEngine(cfg, log)
	require.NoError(t, err)

	seq, _, err := e.Transcribe(context.Background(), "/tmp/input.wav", "")
	require.NoError(t, err)

	count := 0
	for _, err := range seq {
		require.NoError(t, err)
		count++
		break
	}
	assert.Equal(t, 1, count)
}

func TestWhisperTranscribeMissingBinary(t *testing.T) {
	log, _ := test.NewNullLogger()
	e, err := NewWhisperEngine(WhisperConfig{
		Command:     []string{filepath.Join(t.TempDir(), "no-such-whisper")},
		FFprobePath: filepath.Join(t.TempDir(), "no-such-ffprobe"),
	}, log)
	require.NoError(t, err)

	_, _, err = e.Transcribe(context.Background(), "/tmp/input.wav", "")
	assert.Error(t, err)
}

func TestTailBufferKeepsLastBytes(t *testing.T) {
	b := &tailBuffer{limit: 5}
	_, _ = b.Write([]byte("hello "))
	_, _ = b.Write([]byte("world"))
	assert.Equal(t, "world", b.String())
}
