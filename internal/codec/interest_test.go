package codec

import (
	"reflect"
	"testing"

	"github.com/nbd-wtf/go-nostr"
)

func TestInterestRoundTrip(t *testing.T) {
	original := &Interest{
		ID:       "int-1",
		Moonshot: MoonshotRef(testPubkey, "ms-1"),
		Message:  "I can build this over the summer.",
		Github:   "builderdev",
		Proofs: []ProofLink{
			{URL: "https://github.com/builderdev/relay", Description: "a nostr relay"},
			{URL: "https://github.com/builderdev/wallet", Description: "lightning wallet"},
		},
		CreatedAt: 1700000300,
	}

	event := signTestEvent(t, EncodeInterest(original))

	decoded, err := DecodeInterest(event)
	if err != nil {
		t.Fatalf("DecodeInterest() error = %v", err)
	}

	original.Pubkey = event.PubKey
	original.EventID = event.ID

	if !reflect.DeepEqual(original, decoded) {
		t.Errorf("Round trip mismatch:\n  original: %+v\n  decoded:  %+v", original, decoded)
	}
}

func TestDecodeInterest_MissingReference(t *testing.T) {
	event := &nostr.Event{
		Kind:      KindEntity,
		PubKey:    testPubkey,
		CreatedAt: 1700000000,
		Tags: nostr.Tags{
			{TagIdentifier, "int-1"},
			{TagCategory, CategoryInterest},
		},
		Content: "no back-reference",
	}

	if _, err := DecodeInterest(event); err == nil {
		t.Error("Expected decode error for missing moonshot reference")
	}
}

func TestDecodeInterest_ProofLinkCap(t *testing.T) {
	tags := nostr.Tags{
		{TagIdentifier, "int-cap"},
		{TagCategory, CategoryInterest},
		{TagAddress, MoonshotRef(testPubkey, "ms-1").String()},
	}
	for i := 0; i < 15; i++ {
		tags = append(tags, nostr.Tag{TagProof, "https://example.com/repo", "repo"})
	}

	event := &nostr.Event{
		Kind:      KindEntity,
		PubKey:    testPubkey,
		CreatedAt: 1700000000,
		Tags:      tags,
	}

	in, err := DecodeInterest(event)
	if err != nil {
		t.Fatalf("DecodeInterest() error = %v", err)
	}
	if len(in.Proofs) != MaxProofLinks {
		t.Errorf("Expected %d proof links, got %d", MaxProofLinks, len(in.Proofs))
	}
}

func TestDecodeInterest_ProofWithoutDescription(t *testing.T) {
	event := &nostr.Event{
		Kind:      KindEntity,
		PubKey:    testPubkey,
		CreatedAt: 1700000000,
		Tags: nostr.Tags{
			{TagIdentifier, "int-nodesc"},
			{TagCategory, CategoryInterest},
			{TagAddress, MoonshotRef(testPubkey, "ms-1").String()},
			{TagProof, "https://example.com/repo"},
		},
	}

	in, err := DecodeInterest(event)
	if err != nil {
		t.Fatalf("DecodeInterest() error = %v", err)
	}
	if len(in.Proofs) != 1 || in.Proofs[0].Description != "" {
		t.Errorf("Expected one proof with empty description, got %+v", in.Proofs)
	}
}
