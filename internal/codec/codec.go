// Package codec maps domain entities to and from generic Nostr events.
//
// Every category entity (moonshot, interest, comment, version snapshot,
// export record) is carried by a single parameterized-replaceable kind,
// discriminated by a category value in the "t" tag. The category tag is
// the only schema enforcement: events missing or misusing it are invisible
// to the corresponding queries.
package codec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nbd-wtf/go-nostr"
)

// Event kinds
const (
	// KindEntity carries every category entity (NIP-78 application data,
	// parameterized replaceable: newest created_at per (pubkey, d) wins).
	KindEntity = 30078

	// KindReaction is a NIP-25 reaction, content "+" or "-".
	KindReaction = 7

	// KindDirectMessage is a NIP-04 encrypted direct message.
	KindDirectMessage = 4
)

// Category discriminator values carried in the "t" tag
const (
	CategoryMoonshot = "moonshot"
	CategoryInterest = "moonshot-interest"
	CategoryComment  = "moonshot-comment"
	CategoryVersion  = "moonshot-version"
	CategoryExport   = "moonshot-angor-export"
)

// Tag names
const (
	TagIdentifier  = "d"
	TagCategory    = "t"
	TagAddress     = "a"
	TagEvent       = "e"
	TagPubkey      = "p"
	TagTitle       = "title"
	TagBudget      = "budget"
	TagTimeline    = "timeline"
	TagTopics      = "topics"
	TagStatus      = "status"
	TagExplorable  = "explorable"
	TagPublishedAt = "published_at"
	TagGithub      = "github"
	TagProof       = "proof"
	TagChipIn      = "chipin"
	TagParent      = "parent"
	TagMoonshot    = "moonshot"
	TagInterest    = "interest"
)

// BudgetTBD is the sentinel for a missing or unparseable budget.
const BudgetTBD = "TBD"

// EntityRef is a composite reference to the current version of a logical
// entity, regardless of which physical event is live: "kind:pubkey:id".
type EntityRef struct {
	Kind       int
	Pubkey     string
	Identifier string
}

// MoonshotRef builds the composite reference for a moonshot
func MoonshotRef(pubkey, id string) EntityRef {
	return EntityRef{Kind: KindEntity, Pubkey: pubkey, Identifier: id}
}

// String renders the reference in wire form
func (r EntityRef) String() string {
	return fmt.Sprintf("%d:%s:%s", r.Kind, r.Pubkey, r.Identifier)
}

// IsZero reports whether the reference is unset
func (r EntityRef) IsZero() bool {
	return r.Pubkey == "" && r.Identifier == ""
}

// ParseEntityRef parses a "kind:pubkey:id" composite reference
func ParseEntityRef(s string) (EntityRef, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return EntityRef{}, fmt.Errorf("malformed entity reference: %s", s)
	}

	kind, err := strconv.Atoi(parts[0])
	if err != nil {
		return EntityRef{}, fmt.Errorf("malformed entity reference kind: %s", s)
	}

	if parts[1] == "" || parts[2] == "" {
		return EntityRef{}, fmt.Errorf("entity reference missing pubkey or identifier: %s", s)
	}

	return EntityRef{Kind: kind, Pubkey: parts[1], Identifier: parts[2]}, nil
}

// firstTagValue returns the first value of the named tag, or ""
func firstTagValue(event *nostr.Event, name string) string {
	for _, tag := range event.Tags {
		if len(tag) >= 2 && tag[0] == name {
			return tag[1]
		}
	}
	return ""
}

// firstTag returns the first tag with the given name, or nil
func firstTag(event *nostr.Event, name string) nostr.Tag {
	for _, tag := range event.Tags {
		if len(tag) >= 1 && tag[0] == name {
			return tag
		}
	}
	return nil
}

// allTags returns every tag with the given name, in order
func allTags(event *nostr.Event, name string) []nostr.Tag {
	var tags []nostr.Tag
	for _, tag := range event.Tags {
		if len(tag) >= 1 && tag[0] == name {
			tags = append(tags, tag)
		}
	}
	return tags
}

// eventCategory returns the category discriminator of an event, or ""
func eventCategory(event *nostr.Event) string {
	return firstTagValue(event, TagCategory)
}

// HasCategory reports whether the event carries the given category token
func HasCategory(event *nostr.Event, category string) bool {
	for _, tag := range event.Tags {
		if len(tag) >= 2 && tag[0] == TagCategory && tag[1] == category {
			return true
		}
	}
	return false
}

// moonshotAddress extracts the composite moonshot reference from the "a"
// tag, skipping references to foreign kinds.
func moonshotAddress(event *nostr.Event) (EntityRef, error) {
	for _, tag := range event.Tags {
		if len(tag) < 2 || tag[0] != TagAddress {
			continue
		}
		ref, err := ParseEntityRef(tag[1])
		if err != nil {
			continue
		}
		if ref.Kind == KindEntity {
			return ref, nil
		}
	}
	return EntityRef{}, fmt.Errorf("event %s has no moonshot reference", event.ID)
}

// decodeSats parses a decimal sats tag value, defaulting to 0
func decodeSats(value string) int64 {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
