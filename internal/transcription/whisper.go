package transcription

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/whisper-transcriber/internal/types"
)

// WhisperConfig configures the Whisper CLI invocation.
type WhisperConfig struct {
	// Command is the argv prefix, e.g. ["python", "-m", "whisper"].
	Command     []string
	FFprobePath string
	Model       string
	Device      string
	Threads     int
}

// WhisperEngine wraps the Whisper command line tool. Segments are parsed from
// its verbose stdout as they are printed, so progress is available while the
// model is still decoding.
type WhisperEngine struct {
	cfg WhisperConfig
	log logrus.FieldLogger
}

// NewWhisperEngine creates an engine. Whisper availability is only verified
// on the first transcription.
func NewWhisperEngine(cfg WhisperConfig, log logrus.FieldLogger) (*WhisperEngine, error) {
	if len(cfg.Command) == 0 {
		return nil, errors.New("whisper command is empty")
	}
	if cfg.Model == "" {
		cfg.Model = "small"
	}
	if cfg.Device == "" {
		cfg.Device = "cpu"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}

	log.WithFields(logrus.Fields{
		"command": strings.Join(cfg.Command, " "),
		"model":   cfg.Model,
		"device":  cfg.Device,
	}).Info("Whisper engine configured")

	return &WhisperEngine{cfg: cfg, log: log}, nil
}

// Device reports the device the model runs on.
func (e *WhisperEngine) Device() string {
	return e.cfg.Device
}

// Transcribe starts Whisper on path. It returns once the language is known
// (detected or forced) or the first segment is printed.
func (e *WhisperEngine) Transcribe(ctx context.Context, path, language string) (iter.Seq2[types.Segment, error], Info, error) {
	info := Info{Device: e.cfg.Device}
	if language != "" && language != types.LanguageAuto {
		info.Language = language
	}

	duration, err := ProbeDuration(ctx, e.cfg.FFprobePath, path)
	if err != nil {
		e.log.WithError(err).WithField("path", path).Warn("Could not probe media duration, progress will not advance")
	} else {
		info.Duration = duration
	}

	outDir, err := os.MkdirTemp("", "whisper-output-*")
	if err != nil {
		return nil, Info{}, fmt.Errorf("failed to create whisper output dir: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.cfg.Command[0], e.args(path, info.Language, outDir)...)
	cmd.Env = append(os.Environ(), "PYTHONUNBUFFERED=1")
	stderr := &tailBuffer{limit: 4096}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		os.RemoveAll(outDir)
		return nil, Info{}, fmt.Errorf("failed to attach whisper stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		os.RemoveAll(outDir)
		return nil, Info{}, fmt.Errorf("failed to start whisper: %w", err)
	}

	e.log.WithField("path", path).Debug("Whisper started")

	var (
		once    sync.Once
		waitErr error
	)
	stop := func(kill bool) error {
		once.Do(func() {
			if kill {
				_ = cmd.Process.Kill()
			}
			err := cmd.Wait()
			if rmErr := os.RemoveAll(outDir); rmErr != nil {
				e.log.WithError(rmErr).Warn("Failed to remove whisper output dir")
			}
			if err != nil && !kill {
				waitErr = fmt.Errorf("whisper transcription failed: %w: %s", err, strings.TrimSpace(stderr.String()))
			}
		})
		return waitErr
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var pending *types.Segment
	for scanner.Scan() {
		line := scanner.Text()
		if lang, ok := parseDetectedLanguage(line); ok {
			info.Language = lang
			break
		}
		if seg, ok := parseSegmentLine(line); ok {
			pending = &seg
			break
		}
	}

	seq := func(yield func(types.Segment, error) bool) {
		finished := false
		defer func() {
			if !finished {
				stop(true)
			}
		}()

		if pending != nil {
			if !yield(*pending, nil) {
				return
			}
		}
		for scanner.Scan() {
			seg, ok := parseSegmentLine(scanner.Text())
			if !ok {
				continue
			}
			if !yield(seg, nil) {
				return
			}
		}

		scanErr := scanner.Err()
		finished = true
		if err := stop(scanErr != nil); err != nil {
			yield(types.Segment{}, err)
			return
		}
		if scanErr != nil {
			yield(types.Segment{}, fmt.Errorf("failed to read whisper output: %w", scanErr))
		}
	}

	return seq, info, nil
}

func (e *WhisperEngine) args(path, language, outDir string) []string {
	args := append([]string{}, e.cfg.Command[1:]...)
	args = append(args,
		path,
		"--model", e.cfg.Model,
		"--device", e.cfg.Device,
		"--output_dir", outDir,
		"--output_format", "txt",
		"--verbose", "True",
	)
	if e.cfg.Threads > 0 {
		args = append(args, "--threads", strconv.Itoa(e.cfg.Threads))
	}
	if e.cfg.Device == "cpu" {
		// fp16 is not supported on CPU
		args = append(args, "--fp16", "False")
	}
	if language != "" {
		args = append(args, "--language", language)
	}
	return args
}

var segmentLine = regexp.MustCompile(`^\[((?:\d+:)?\d+:\d+(?:\.\d+)?) --> ((?:\d+:)?\d+:\d+(?:\.\d+)?)\] ?(.*)$`)

// parseSegmentLine parses "[00:01.000 --> 00:04.500]  text".
func parseSegmentLine(line string) (types.Segment, bool) {
	m := segmentLine.FindStringSubmatch(strings.TrimRight(line, "\r"))
	if m == nil {
		return types.Segment{}, false
	}
	start, err := parseTimestamp(m[1])
	if err != nil {
		return types.Segment{}, false
	}
	end, err := parseTimestamp(m[2])
	if err != nil {
		return types.Segment{}, false
	}
	return types.Segment{Start: start, End: end, Text: m[3]}, true
}

// parseTimestamp converts [hh:]mm:ss.mmm to seconds.
func parseTimestamp(ts string) (float64, error) {
	parts := strings.Split(ts, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", ts)
	}
	var total float64
	for _, p := range parts[:len(parts)-1] {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp %q: %w", ts, err)
		}
		total = total*60 + float64(n)
	}
	sec, err := strconv.ParseFloat(parts[len(parts)-1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: %w", ts, err)
	}
	return total*60 + sec, nil
}

func parseDetectedLanguage(line string) (string, bool) {
	const prefix = "Detected language:"
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	lang := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(line, prefix)))
	return lang, lang != ""
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = append([]byte(nil), b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
