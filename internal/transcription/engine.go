package transcription

import (
	"context"
	"iter"

	"github.com/codebuildervaibhav/whisper-transcriber/internal/types"
)

// Info describes the media being decoded.
type Info struct {
	// Duration in seconds; zero when unknown.
	Duration float64
	Language string
	Device   string
}

// Engine produces transcript segments incrementally.
//
// The returned sequence is single-use and must be ranged over by the caller:
// leaving the loop early releases the engine, and an error element ends the
// sequence.
type Engine interface {
	Transcribe(ctx context.Context, path, language string) (iter.Seq2[types.Segment, error], Info, error)
}
