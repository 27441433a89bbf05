package codec

import (
	"fmt"

	"github.com/nbd-wtf/go-nostr"
)

// ExportRecord marks that a moonshot was exported to the Angor funding
// system. Created once per export action; immutable.
type ExportRecord struct {
	ID      string
	Pubkey  string // exporter
	EventID string

	MoonshotEventID string    // live event at export time
	Moonshot        EntityRef // logical moonshot
	ProjectRef      string    // external Angor project reference, optional
	CreatedAt       int64
}

// EncodeExport builds the unsigned event for an export record
func EncodeExport(ex *ExportRecord) *nostr.Event {
	createdAt := nostr.Timestamp(ex.CreatedAt)
	if ex.CreatedAt == 0 {
		createdAt = nostr.Now()
	}

	return &nostr.Event{
		Kind:      KindEntity,
		CreatedAt: createdAt,
		Tags: nostr.Tags{
			{TagIdentifier, ex.ID},
			{TagCategory, CategoryExport},
			{TagEvent, ex.MoonshotEventID},
			{TagAddress, ex.Moonshot.String()},
		},
		Content: ex.ProjectRef,
	}
}

// DecodeExport parses an export record from its event
func DecodeExport(event *nostr.Event) (*ExportRecord, error) {
	if event.Kind != KindEntity {
		return nil, fmt.Errorf("expected kind %d, got %d", KindEntity, event.Kind)
	}
	if !HasCategory(event, CategoryExport) {
		return nil, fmt.Errorf("event %s is not an export record", event.ID)
	}

	id := firstTagValue(event, TagIdentifier)
	if id == "" {
		return nil, fmt.Errorf("export event %s missing identifier", event.ID)
	}

	ref, err := moonshotAddress(event)
	if err != nil {
		return nil, fmt.Errorf("export event %s missing moonshot reference: %w", event.ID, err)
	}

	return &ExportRecord{
		ID:              id,
		Pubkey:          event.PubKey,
		EventID:         event.ID,
		MoonshotEventID: firstTagValue(event, TagEvent),
		Moonshot:        ref,
		ProjectRef:      event.Content,
		CreatedAt:       int64(event.CreatedAt),
	}, nil
}
