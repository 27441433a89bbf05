package codec

import (
	"testing"

	"github.com/nbd-wtf/go-nostr"
)

const otherPubkey = "82341f882b6eabcd2ba7f1ef90aad961cf074af15b9ef44a09f9d2a8fbfbe6a2"

func TestConversationKey_Symmetric(t *testing.T) {
	k1 := ConversationKey(testPubkey, otherPubkey, "")
	k2 := ConversationKey(otherPubkey, testPubkey, "")
	if k1 != k2 {
		t.Errorf("Expected symmetric keys, got %q and %q", k1, k2)
	}
}

func TestConversationKey_MoonshotScope(t *testing.T) {
	unscoped := ConversationKey(testPubkey, otherPubkey, "")
	scoped := ConversationKey(testPubkey, otherPubkey, "ms-1")
	if unscoped == scoped {
		t.Error("Expected moonshot scope to refine the key")
	}
}

func TestChatMessageEnvelope(t *testing.T) {
	msg := &ChatMessage{
		Sender:     testPubkey,
		Receiver:   otherPubkey,
		Content:    "plaintext never hits the wire",
		MoonshotID: "ms-1",
		InterestID: "int-1",
		CreatedAt:  1700000700,
	}

	event := signTestEvent(t, EncodeChatMessage(msg, "ciphertext?iv=abc"))

	if event.Content != "ciphertext?iv=abc" {
		t.Errorf("Expected ciphertext in content, got %q", event.Content)
	}

	decoded, err := DecodeChatMessage(event)
	if err != nil {
		t.Fatalf("DecodeChatMessage() error = %v", err)
	}

	if decoded.Receiver != otherPubkey {
		t.Errorf("Expected receiver %s, got %s", otherPubkey, decoded.Receiver)
	}
	if decoded.Sender != event.PubKey {
		t.Errorf("Expected sender from event pubkey, got %s", decoded.Sender)
	}
	if decoded.MoonshotID != "ms-1" || decoded.InterestID != "int-1" {
		t.Errorf("Expected scoping tags preserved, got %+v", decoded)
	}
	if decoded.Content != "ciphertext?iv=abc" {
		t.Error("Expected decode to leave ciphertext untouched")
	}
	if decoded.ID != event.ID {
		t.Errorf("Expected message id %s, got %s", event.ID, decoded.ID)
	}
}

func TestDecodeChatMessage_MissingReceiver(t *testing.T) {
	event := &nostr.Event{
		Kind:      KindDirectMessage,
		PubKey:    testPubkey,
		CreatedAt: 1700000000,
		Content:   "ciphertext",
	}

	if _, err := DecodeChatMessage(event); err == nil {
		t.Error("Expected decode error for missing receiver")
	}
}

func TestChatMessage_Pending(t *testing.T) {
	msg := &ChatMessage{ID: LocalIDPrefix + "abc123"}
	if !msg.Pending() {
		t.Error("Expected local id to report pending")
	}

	msg.ID = "confirmed-event-id"
	if msg.Pending() {
		t.Error("Expected confirmed id to report not pending")
	}
}
