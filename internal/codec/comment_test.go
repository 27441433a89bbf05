package codec

import (
	"reflect"
	"testing"

	"github.com/nbd-wtf/go-nostr"
)

func TestCommentRoundTrip(t *testing.T) {
	original := &Comment{
		ID:        "cmt-1",
		Moonshot:  MoonshotRef(testPubkey, "ms-1"),
		Content:   "Great idea, chipping in.",
		ChipIn:    2500,
		ParentID:  "cmt-root",
		CreatedAt: 1700000400,
	}

	event := signTestEvent(t, EncodeComment(original))

	decoded, err := DecodeComment(event)
	if err != nil {
		t.Fatalf("DecodeComment() error = %v", err)
	}

	original.Pubkey = event.PubKey
	original.EventID = event.ID

	if !reflect.DeepEqual(original, decoded) {
		t.Errorf("Round trip mismatch:\n  original: %+v\n  decoded:  %+v", original, decoded)
	}
}

func TestCommentRoundTrip_Root(t *testing.T) {
	original := &Comment{
		ID:        "cmt-root",
		Moonshot:  MoonshotRef(testPubkey, "ms-1"),
		Content:   "First!",
		CreatedAt: 1700000401,
	}

	event := signTestEvent(t, EncodeComment(original))

	decoded, err := DecodeComment(event)
	if err != nil {
		t.Fatalf("DecodeComment() error = %v", err)
	}

	if decoded.IsReply() {
		t.Error("Expected root comment, got reply")
	}
	if decoded.ChipIn != 0 {
		t.Errorf("Expected chip-in 0, got %d", decoded.ChipIn)
	}
}

func TestDecodeComment_BadChipIn(t *testing.T) {
	event := &nostr.Event{
		Kind:      KindEntity,
		PubKey:    testPubkey,
		CreatedAt: 1700000000,
		Tags: nostr.Tags{
			{TagIdentifier, "cmt-bad"},
			{TagCategory, CategoryComment},
			{TagAddress, MoonshotRef(testPubkey, "ms-1").String()},
			{TagChipIn, "a million"},
		},
		Content: "chip-in garbage",
	}

	c, err := DecodeComment(event)
	if err != nil {
		t.Fatalf("DecodeComment() error = %v", err)
	}
	if c.ChipIn != 0 {
		t.Errorf("Expected chip-in 0 for non-numeric value, got %d", c.ChipIn)
	}
}

func TestDecodeComment_MissingMandatory(t *testing.T) {
	// No identifier
	event := &nostr.Event{
		Kind:      KindEntity,
		PubKey:    testPubkey,
		CreatedAt: 1700000000,
		Tags: nostr.Tags{
			{TagCategory, CategoryComment},
			{TagAddress, MoonshotRef(testPubkey, "ms-1").String()},
		},
	}
	if _, err := DecodeComment(event); err == nil {
		t.Error("Expected decode error for missing identifier")
	}

	// No moonshot reference
	event = &nostr.Event{
		Kind:      KindEntity,
		PubKey:    testPubkey,
		CreatedAt: 1700000000,
		Tags: nostr.Tags{
			{TagIdentifier, "cmt-1"},
			{TagCategory, CategoryComment},
		},
	}
	if _, err := DecodeComment(event); err == nil {
		t.Error("Expected decode error for missing moonshot reference")
	}
}
