package codec

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nbd-wtf/go-nostr"
)

// LocalIDPrefix marks optimistic message identifiers assigned before the
// signer confirms; they are replaced by the event id on success.
const LocalIDPrefix = "local-"

// ChatMessage is a direct encrypted message between a creator and an
// interested builder, optionally scoped to a moonshot/interest pair.
// Content holds plaintext on both sides of the codec; encryption happens
// in the chat service around it.
type ChatMessage struct {
	ID string // event id, or a temporary local id pre-confirmation

	Sender   string
	Receiver string
	Content  string // plaintext

	MoonshotID string // optional scope
	InterestID string // optional scope
	CreatedAt  int64
}

// Pending reports whether the message still carries an optimistic local id
func (m *ChatMessage) Pending() bool {
	return strings.HasPrefix(m.ID, LocalIDPrefix)
}

// ConversationKey derives the cache key for a participant pair: the sorted
// pair joined with ":", refined by the moonshot id when scoped. Both ends
// of a conversation derive the same key.
func ConversationKey(a, b, moonshotID string) string {
	pair := []string{a, b}
	sort.Strings(pair)

	key := pair[0] + ":" + pair[1]
	if moonshotID != "" {
		key += ":" + moonshotID
	}
	return key
}

// ConversationKey derives the cache key for this message's conversation
func (m *ChatMessage) ConversationKey() string {
	return ConversationKey(m.Sender, m.Receiver, m.MoonshotID)
}

// EncodeChatMessage builds the unsigned kind-4 event carrying the given
// ciphertext. The plaintext never touches the event.
func EncodeChatMessage(m *ChatMessage, ciphertext string) *nostr.Event {
	createdAt := nostr.Timestamp(m.CreatedAt)
	if m.CreatedAt == 0 {
		createdAt = nostr.Now()
	}

	tags := nostr.Tags{
		{TagPubkey, m.Receiver},
	}

	if m.MoonshotID != "" {
		tags = append(tags, nostr.Tag{TagMoonshot, m.MoonshotID})
	}
	if m.InterestID != "" {
		tags = append(tags, nostr.Tag{TagInterest, m.InterestID})
	}

	return &nostr.Event{
		Kind:      KindDirectMessage,
		CreatedAt: createdAt,
		Tags:      tags,
		Content:   ciphertext,
	}
}

// DecodeChatMessage parses the envelope of a kind-4 event. Content is left
// as ciphertext; the caller decrypts (and skips the message on failure).
func DecodeChatMessage(event *nostr.Event) (*ChatMessage, error) {
	if event.Kind != KindDirectMessage {
		return nil, fmt.Errorf("expected kind %d, got %d", KindDirectMessage, event.Kind)
	}

	receiver := firstTagValue(event, TagPubkey)
	if receiver == "" {
		return nil, fmt.Errorf("chat event %s missing receiver", event.ID)
	}

	return &ChatMessage{
		ID:         event.ID,
		Sender:     event.PubKey,
		Receiver:   receiver,
		Content:    event.Content,
		MoonshotID: firstTagValue(event, TagMoonshot),
		InterestID: firstTagValue(event, TagInterest),
		CreatedAt:  int64(event.CreatedAt),
	}, nil
}
