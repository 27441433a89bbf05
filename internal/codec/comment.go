package codec

import (
	"fmt"
	"strconv"

	"github.com/nbd-wtf/go-nostr"
)

// Comment is a threaded discussion entry on a moonshot, optionally carrying
// a chip-in pledge. Immutable once published. Replies is computed by the
// thread builder, never stored.
type Comment struct {
	ID      string
	Pubkey  string
	EventID string

	Moonshot  EntityRef
	Content   string
	ChipIn    int64  // sats, 0 when absent
	ParentID  string // parent comment identifier; "" for roots
	CreatedAt int64

	Replies []*Comment
}

// IsReply reports whether the comment references a parent
func (c *Comment) IsReply() bool {
	return c.ParentID != ""
}

// EncodeComment builds the unsigned event for a comment
func EncodeComment(c *Comment) *nostr.Event {
	createdAt := nostr.Timestamp(c.CreatedAt)
	if c.CreatedAt == 0 {
		createdAt = nostr.Now()
	}

	tags := nostr.Tags{
		{TagIdentifier, c.ID},
		{TagCategory, CategoryComment},
		{TagAddress, c.Moonshot.String()},
	}

	if c.ChipIn > 0 {
		tags = append(tags, nostr.Tag{TagChipIn, strconv.FormatInt(c.ChipIn, 10)})
	}

	if c.ParentID != "" {
		tags = append(tags, nostr.Tag{TagParent, c.ParentID})
	}

	return &nostr.Event{
		Kind:      KindEntity,
		CreatedAt: createdAt,
		Tags:      tags,
		Content:   c.Content,
	}
}

// DecodeComment parses a comment from its event. Missing identifier or
// moonshot reference is a parse failure; a non-numeric chip-in decodes
// as zero rather than failing.
func DecodeComment(event *nostr.Event) (*Comment, error) {
	if event.Kind != KindEntity {
		return nil, fmt.Errorf("expected kind %d, got %d", KindEntity, event.Kind)
	}
	if !HasCategory(event, CategoryComment) {
		return nil, fmt.Errorf("event %s is not a comment", event.ID)
	}

	id := firstTagValue(event, TagIdentifier)
	if id == "" {
		return nil, fmt.Errorf("comment event %s missing identifier", event.ID)
	}

	ref, err := moonshotAddress(event)
	if err != nil {
		return nil, fmt.Errorf("comment event %s missing moonshot reference: %w", event.ID, err)
	}

	return &Comment{
		ID:        id,
		Pubkey:    event.PubKey,
		EventID:   event.ID,
		Moonshot:  ref,
		Content:   event.Content,
		ChipIn:    decodeSats(firstTagValue(event, TagChipIn)),
		ParentID:  firstTagValue(event, TagParent),
		CreatedAt: int64(event.CreatedAt),
	}, nil
}
