package codec

import (
	"testing"

	"github.com/nbd-wtf/go-nostr"
)

func TestVersionSnapshotRoundTrip(t *testing.T) {
	live := &Moonshot{
		ID:         "ms-1",
		Pubkey:     testPubkey,
		EventID:    "live-event-id",
		Title:      "Original title",
		Content:    "Original content",
		Budget:     "100000",
		Topics:     []string{"bitcoin"},
		Status:     StatusOpen,
		Explorable: true,
		CreatedAt:  1700000500,
	}

	snapshot := SnapshotOf(live, "ver-1")
	event := signTestEvent(t, EncodeVersion(snapshot))

	decoded, err := DecodeVersion(event)
	if err != nil {
		t.Fatalf("DecodeVersion() error = %v", err)
	}

	if decoded.ID != "ver-1" {
		t.Errorf("Expected snapshot id ver-1, got %s", decoded.ID)
	}
	if decoded.LiveEventID != "live-event-id" {
		t.Errorf("Expected live event back-reference, got %s", decoded.LiveEventID)
	}
	if decoded.Moonshot != live.Ref() {
		t.Errorf("Expected moonshot ref %v, got %v", live.Ref(), decoded.Moonshot)
	}
	if decoded.PublishedAt != live.CreatedAt {
		t.Errorf("Expected original timestamp %d preserved, got %d", live.CreatedAt, decoded.PublishedAt)
	}
	if decoded.Title != live.Title || decoded.Content != live.Content || decoded.Budget != live.Budget {
		t.Errorf("Snapshot fields differ from live state: %+v", decoded)
	}
	if decoded.Status != live.Status {
		t.Errorf("Expected status %s, got %s", live.Status, decoded.Status)
	}
	if len(decoded.Topics) != 1 || decoded.Topics[0] != "bitcoin" {
		t.Errorf("Expected topics preserved, got %v", decoded.Topics)
	}
}

func TestSnapshotOf_CopiesTopics(t *testing.T) {
	live := &Moonshot{
		ID:        "ms-1",
		Pubkey:    testPubkey,
		Title:     "t",
		Topics:    []string{"a", "b"},
		CreatedAt: 1,
	}

	snapshot := SnapshotOf(live, "ver-1")
	live.Topics[0] = "mutated"

	if snapshot.Topics[0] != "a" {
		t.Error("Expected snapshot topics to be an independent copy")
	}
}

func TestDecodeVersion_FallbackTimestamp(t *testing.T) {
	event := &nostr.Event{
		Kind:      KindEntity,
		PubKey:    testPubkey,
		CreatedAt: 1700000600,
		Tags: nostr.Tags{
			{TagIdentifier, "ver-no-ts"},
			{TagCategory, CategoryVersion},
			{TagEvent, "live-id"},
			{TagAddress, MoonshotRef(testPubkey, "ms-1").String()},
			{TagTitle, "Old state"},
		},
	}

	v, err := DecodeVersion(event)
	if err != nil {
		t.Fatalf("DecodeVersion() error = %v", err)
	}
	if v.PublishedAt != 1700000600 {
		t.Errorf("Expected fallback to event timestamp, got %d", v.PublishedAt)
	}
}
