package codec

import (
	"testing"

	"github.com/nbd-wtf/go-nostr"
)

func TestReactionRoundTrip(t *testing.T) {
	original := &Reaction{
		Target:        MoonshotRef(testPubkey, "ms-1"),
		TargetEventID: "live-event-id",
		Content:       ReactionLike,
		CreatedAt:     1700000800,
	}

	event := signTestEvent(t, EncodeReaction(original))

	decoded, err := DecodeReaction(event)
	if err != nil {
		t.Fatalf("DecodeReaction() error = %v", err)
	}

	if !decoded.Positive() {
		t.Error("Expected positive reaction")
	}
	if decoded.Target != original.Target {
		t.Errorf("Expected target %v, got %v", original.Target, decoded.Target)
	}
	if decoded.TargetEventID != "live-event-id" {
		t.Errorf("Expected direct event reference, got %s", decoded.TargetEventID)
	}
}

func TestDecodeReaction_EmptyContentIsLike(t *testing.T) {
	event := &nostr.Event{
		Kind:      KindReaction,
		PubKey:    testPubkey,
		CreatedAt: 1700000000,
		Tags: nostr.Tags{
			{TagAddress, MoonshotRef(testPubkey, "ms-1").String()},
		},
	}

	r, err := DecodeReaction(event)
	if err != nil {
		t.Fatalf("DecodeReaction() error = %v", err)
	}
	if !r.Positive() {
		t.Error("Expected empty content to default to a like")
	}
}

func TestDecodeReaction_NoTarget(t *testing.T) {
	event := &nostr.Event{
		Kind:      KindReaction,
		PubKey:    testPubkey,
		CreatedAt: 1700000000,
		Content:   ReactionLike,
	}

	if _, err := DecodeReaction(event); err == nil {
		t.Error("Expected decode error for missing target")
	}
}

func TestDecodeExportRoundTrip(t *testing.T) {
	original := &ExportRecord{
		ID:              "exp-1",
		MoonshotEventID: "live-event-id",
		Moonshot:        MoonshotRef(testPubkey, "ms-1"),
		ProjectRef:      "angor1qexampleproject",
		CreatedAt:       1700000900,
	}

	event := signTestEvent(t, EncodeExport(original))

	decoded, err := DecodeExport(event)
	if err != nil {
		t.Fatalf("DecodeExport() error = %v", err)
	}

	if decoded.ID != original.ID {
		t.Errorf("Expected id %s, got %s", original.ID, decoded.ID)
	}
	if decoded.MoonshotEventID != original.MoonshotEventID {
		t.Errorf("Expected moonshot event id preserved, got %s", decoded.MoonshotEventID)
	}
	if decoded.ProjectRef != original.ProjectRef {
		t.Errorf("Expected project ref preserved, got %s", decoded.ProjectRef)
	}
}
