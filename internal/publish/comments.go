package publish

import (
	"context"
	"fmt"

	"github.com/mistic0xb/moonshot-sub000/internal/codec"
)

// CreateComment publishes a comment (optionally a reply, optionally
// carrying a chip-in pledge) on a moonshot. Comments are immutable.
func (e *Engine) CreateComment(ctx context.Context, draft *codec.Comment) (*codec.Comment, error) {
	if draft.Moonshot.IsZero() {
		return nil, fmt.Errorf("comment needs a moonshot reference")
	}
	if draft.Content == "" {
		return nil, fmt.Errorf("comment content is required")
	}
	if draft.ChipIn < 0 {
		return nil, fmt.Errorf("chip-in must not be negative")
	}

	c := *draft
	c.ID = NewID()
	c.Replies = nil
	c.CreatedAt = 0

	event := codec.EncodeComment(&c)
	if err := e.signAndPublish(ctx, event); err != nil {
		return nil, err
	}

	c.Pubkey = event.PubKey
	c.EventID = event.ID
	c.CreatedAt = int64(event.CreatedAt)

	return &c, nil
}
