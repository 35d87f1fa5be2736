package queue

import (
	"context"
	"iter"

	"github.com/codebuildervaibhav/whisper-transcriber/internal/types"
)

// Observe returns a sequence of snapshots for the job. The first element is
// the current state; after that one element is produced per observed change,
// in the order the worker made them. Changes that land while the consumer is
// busy coalesce into the latest snapshot. The sequence ends after the first
// terminal snapshot, or early when ctx is done.
//
// Observers never block the worker: waiting is done on a channel the worker
// closes, never on a send.
func (r *Registry) Observe(ctx context.Context, id string) (iter.Seq[types.Snapshot], error) {
	j, err := r.lookup(id)
	if err != nil {
		return nil, err
	}

	return func(yield func(types.Snapshot) bool) {
		var seen uint64
		for {
			snap, version, changed := j.watch()
			if version != seen {
				seen = version
				if !yield(snap) || snap.Status.Terminal() {
					return
				}
			}

			select {
			case <-changed:
			case <-ctx.Done():
				return
			}
		}
	}, nil
}
