package codec

import (
	"fmt"
	"strconv"

	"github.com/nbd-wtf/go-nostr"
)

// Version is an immutable historical snapshot of a moonshot's state,
// emitted just before an update replaces it. PublishedAt preserves the
// true chronology of the snapshotted state, not the snapshot time.
type Version struct {
	ID      string // snapshot's own identifier, never reused
	Pubkey  string
	EventID string

	LiveEventID string    // physical event that carried this state when live
	Moonshot    EntityRef // logical moonshot this snapshot belongs to
	PublishedAt int64     // original creation timestamp of the state

	Title      string
	Content    string
	Budget     string
	Topics     []string
	Status     Status
	Explorable bool
}

// SnapshotOf captures a moonshot's current state as a version record.
// The snapshot's own identifier is assigned by the caller.
func SnapshotOf(m *Moonshot, snapshotID string) *Version {
	return &Version{
		ID:          snapshotID,
		Pubkey:      m.Pubkey,
		LiveEventID: m.EventID,
		Moonshot:    m.Ref(),
		PublishedAt: m.CreatedAt,
		Title:       m.Title,
		Content:     m.Content,
		Budget:      m.Budget,
		Topics:      append([]string(nil), m.Topics...),
		Status:      m.Status,
		Explorable:  m.Explorable,
	}
}

// EncodeVersion builds the unsigned event for a version snapshot
func EncodeVersion(v *Version) *nostr.Event {
	tags := nostr.Tags{
		{TagIdentifier, v.ID},
		{TagCategory, CategoryVersion},
		{TagEvent, v.LiveEventID},
		{TagAddress, v.Moonshot.String()},
		{TagPublishedAt, strconv.FormatInt(v.PublishedAt, 10)},
		{TagTitle, v.Title},
		{TagBudget, v.Budget},
		{TagStatus, string(v.Status)},
		{TagExplorable, strconv.FormatBool(v.Explorable)},
	}

	if len(v.Topics) > 0 {
		topics := append(nostr.Tag{TagTopics}, v.Topics...)
		tags = append(tags, topics)
	}

	return &nostr.Event{
		Kind:      KindEntity,
		CreatedAt: nostr.Now(),
		Tags:      tags,
		Content:   v.Content,
	}
}

// DecodeVersion parses a version snapshot from its event
func DecodeVersion(event *nostr.Event) (*Version, error) {
	if event.Kind != KindEntity {
		return nil, fmt.Errorf("expected kind %d, got %d", KindEntity, event.Kind)
	}
	if !HasCategory(event, CategoryVersion) {
		return nil, fmt.Errorf("event %s is not a version snapshot", event.ID)
	}

	id := firstTagValue(event, TagIdentifier)
	if id == "" {
		return nil, fmt.Errorf("version event %s missing identifier", event.ID)
	}

	ref, err := moonshotAddress(event)
	if err != nil {
		return nil, fmt.Errorf("version event %s missing moonshot reference: %w", event.ID, err)
	}

	title := firstTagValue(event, TagTitle)
	if title == "" {
		return nil, fmt.Errorf("version event %s missing title", event.ID)
	}

	publishedAt, err := strconv.ParseInt(firstTagValue(event, TagPublishedAt), 10, 64)
	if err != nil {
		// Fall back to the snapshot's own timestamp; better than dropping
		// the record from history.
		publishedAt = int64(event.CreatedAt)
	}

	v := &Version{
		ID:          id,
		Pubkey:      event.PubKey,
		EventID:     event.ID,
		LiveEventID: firstTagValue(event, TagEvent),
		Moonshot:    ref,
		PublishedAt: publishedAt,
		Title:       title,
		Content:     event.Content,
		Budget:      decodeBudget(firstTagValue(event, TagBudget)),
		Status:      decodeStatus(firstTagValue(event, TagStatus)),
		Explorable:  decodeExplorable(firstTagValue(event, TagExplorable)),
	}

	if topics := firstTag(event, TagTopics); len(topics) > 1 {
		v.Topics = append([]string(nil), topics[1:]...)
	}

	return v, nil
}
