package codec

import (
	"fmt"

	"github.com/nbd-wtf/go-nostr"
)

// MaxProofLinks bounds the proof-of-work links accepted on an interest.
// Enforced client-side only; the protocol does not care.
const MaxProofLinks = 10

// ProofLink is a proof-of-work reference attached to an interest
type ProofLink struct {
	URL         string
	Description string
}

// Interest is a builder's expression of interest in a moonshot.
// Immutable once published.
type Interest struct {
	ID      string
	Pubkey  string // builder
	EventID string

	Moonshot  EntityRef // composite back-reference to the moonshot
	Message   string
	Github    string // optional handle
	Proofs    []ProofLink
	CreatedAt int64
}

// EncodeInterest builds the unsigned event for an interest
func EncodeInterest(in *Interest) *nostr.Event {
	createdAt := nostr.Timestamp(in.CreatedAt)
	if in.CreatedAt == 0 {
		createdAt = nostr.Now()
	}

	tags := nostr.Tags{
		{TagIdentifier, in.ID},
		{TagCategory, CategoryInterest},
		{TagAddress, in.Moonshot.String()},
		{TagPubkey, in.Moonshot.Pubkey},
	}

	if in.Github != "" {
		tags = append(tags, nostr.Tag{TagGithub, in.Github})
	}

	for _, proof := range in.Proofs {
		tags = append(tags, nostr.Tag{TagProof, proof.URL, proof.Description})
	}

	return &nostr.Event{
		Kind:      KindEntity,
		CreatedAt: createdAt,
		Tags:      tags,
		Content:   in.Message,
	}
}

// DecodeInterest parses an interest from its event. Missing identifier or
// moonshot reference is a parse failure.
func DecodeInterest(event *nostr.Event) (*Interest, error) {
	if event.Kind != KindEntity {
		return nil, fmt.Errorf("expected kind %d, got %d", KindEntity, event.Kind)
	}
	if !HasCategory(event, CategoryInterest) {
		return nil, fmt.Errorf("event %s is not an interest", event.ID)
	}

	id := firstTagValue(event, TagIdentifier)
	if id == "" {
		return nil, fmt.Errorf("interest event %s missing identifier", event.ID)
	}

	ref, err := moonshotAddress(event)
	if err != nil {
		return nil, fmt.Errorf("interest event %s missing moonshot reference: %w", event.ID, err)
	}

	in := &Interest{
		ID:        id,
		Pubkey:    event.PubKey,
		EventID:   event.ID,
		Moonshot:  ref,
		Message:   event.Content,
		Github:    firstTagValue(event, TagGithub),
		CreatedAt: int64(event.CreatedAt),
	}

	for _, tag := range allTags(event, TagProof) {
		if len(tag) < 2 || tag[1] == "" {
			continue
		}
		proof := ProofLink{URL: tag[1]}
		if len(tag) >= 3 {
			proof.Description = tag[2]
		}
		in.Proofs = append(in.Proofs, proof)
		if len(in.Proofs) == MaxProofLinks {
			break
		}
	}

	return in, nil
}
