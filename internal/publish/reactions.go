package publish

import (
	"context"
	"fmt"

	"github.com/mistic0xb/moonshot-sub000/internal/codec"
)

// ToggleReaction flips the caller's vote on a moonshot. The caller
// supplies its current local vote state and the engine unconditionally
// emits the opposite marker; there is no read-before-write. Rapid
// toggles can race relay propagation, in which case the latest
// reaction per author wins once the tally is requeried.
func (e *Engine) ToggleReaction(ctx context.Context, target codec.EntityRef, liveEventID string, currentlyLiked bool) (bool, error) {
	if target.IsZero() {
		return currentlyLiked, fmt.Errorf("reaction needs a target reference")
	}

	content := codec.ReactionLike
	if currentlyLiked {
		content = codec.ReactionUnlike
	}

	r := &codec.Reaction{
		Target:        target,
		TargetEventID: liveEventID,
		Content:       content,
	}

	event := codec.EncodeReaction(r)
	if err := e.signAndPublish(ctx, event); err != nil {
		return currentlyLiked, err
	}

	return !currentlyLiked, nil
}
