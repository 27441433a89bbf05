package publish

import (
	"context"
	"fmt"

	"github.com/mistic0xb/moonshot-sub000/internal/codec"
)

// CreateInterest publishes a builder's expression of interest in a
// moonshot. Interests are immutable; there is no update path. The proof
// link cap is enforced here, client-side only.
func (e *Engine) CreateInterest(ctx context.Context, draft *codec.Interest) (*codec.Interest, error) {
	if draft.Moonshot.IsZero() {
		return nil, fmt.Errorf("interest needs a moonshot reference")
	}
	if draft.Message == "" {
		return nil, fmt.Errorf("interest message is required")
	}
	if len(draft.Proofs) > codec.MaxProofLinks {
		return nil, fmt.Errorf("at most %d proof links allowed, got %d", codec.MaxProofLinks, len(draft.Proofs))
	}

	in := *draft
	in.ID = NewID()
	in.CreatedAt = 0

	event := codec.EncodeInterest(&in)
	if err := e.signAndPublish(ctx, event); err != nil {
		return nil, err
	}

	in.Pubkey = event.PubKey
	in.EventID = event.ID
	in.CreatedAt = int64(event.CreatedAt)

	return &in, nil
}
