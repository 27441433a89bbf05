package publish

import (
	"context"

	"github.com/mistic0xb/moonshot-sub000/internal/codec"
)

// snapshotCurrent emits the immutable historical snapshot of a
// moonshot's live state. The snapshot carries the original creation
// timestamp so history keeps true chronology, and a back-reference to
// the live event it preserves.
func (e *Engine) snapshotCurrent(ctx context.Context, current *codec.Moonshot) error {
	snapshot := codec.SnapshotOf(current, NewID())

	event := codec.EncodeVersion(snapshot)
	return e.signAndPublish(ctx, event)
}
