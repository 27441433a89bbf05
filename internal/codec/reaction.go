package codec

import (
	"fmt"

	"github.com/nbd-wtf/go-nostr"
)

// Reaction markers. Only an author's latest-by-timestamp reaction counts,
// which is what makes toggling work without a read-before-write.
const (
	ReactionLike   = "+"
	ReactionUnlike = "-"
)

// Reaction is an upvote (or its withdrawal) targeting a moonshot
type Reaction struct {
	Pubkey  string
	EventID string

	Target        EntityRef // logical moonshot
	TargetEventID string    // live event at reaction time, optional
	Content       string    // ReactionLike or ReactionUnlike
	CreatedAt     int64
}

// Positive reports whether the reaction counts as a like
func (r *Reaction) Positive() bool {
	return r.Content == ReactionLike
}

// EncodeReaction builds the unsigned kind-7 event for a reaction
func EncodeReaction(r *Reaction) *nostr.Event {
	createdAt := nostr.Timestamp(r.CreatedAt)
	if r.CreatedAt == 0 {
		createdAt = nostr.Now()
	}

	tags := nostr.Tags{
		{TagAddress, r.Target.String()},
		{TagPubkey, r.Target.Pubkey},
	}

	if r.TargetEventID != "" {
		tags = append(tags, nostr.Tag{TagEvent, r.TargetEventID})
	}

	return &nostr.Event{
		Kind:      KindReaction,
		CreatedAt: createdAt,
		Tags:      tags,
		Content:   r.Content,
	}
}

// DecodeReaction parses a reaction from its event. Missing target
// reference is a parse failure; empty content defaults to a like.
func DecodeReaction(event *nostr.Event) (*Reaction, error) {
	if event.Kind != KindReaction {
		return nil, fmt.Errorf("expected kind %d, got %d", KindReaction, event.Kind)
	}

	ref, err := moonshotAddress(event)
	if err != nil {
		return nil, fmt.Errorf("reaction event %s has no target: %w", event.ID, err)
	}

	content := event.Content
	if content == "" {
		content = ReactionLike
	}

	return &Reaction{
		Pubkey:        event.PubKey,
		EventID:       event.ID,
		Target:        ref,
		TargetEventID: firstTagValue(event, TagEvent),
		Content:       content,
		CreatedAt:     int64(event.CreatedAt),
	}, nil
}
