package chat

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/mistic0xb/moonshot-sub000/internal/codec"
	"github.com/mistic0xb/moonshot-sub000/internal/config"
	nostrclient "github.com/mistic0xb/moonshot-sub000/internal/nostr"
	"github.com/mistic0xb/moonshot-sub000/internal/storage"
)

// fakeRelay serves canned events for backfill, records publishes and
// exposes a hand-fed subscription channel.
type fakeRelay struct {
	stored     []*nostr.Event
	published  []*nostr.Event
	publishErr error
	live       chan *nostr.Event
}

func (r *fakeRelay) FetchEvents(ctx context.Context, relays []string, filter nostr.Filter) ([]*nostr.Event, error) {
	var out []*nostr.Event
	for _, event := range r.stored {
		if filter.Matches(event) {
			out = append(out, event)
		}
	}
	return out, nil
}

func (r *fakeRelay) PublishEvent(ctx context.Context, relays []string, event *nostr.Event) error {
	if r.publishErr != nil {
		return r.publishErr
	}
	clone := *event
	r.published = append(r.published, &clone)
	return nil
}

func (r *fakeRelay) SubscribeEvents(ctx context.Context, relays []string, filters nostr.Filters) <-chan *nostr.Event {
	out := make(chan *nostr.Event)
	go func() {
		defer close(out)
		for {
			select {
			case event, ok := <-r.live:
				if !ok {
					return
				}
				out <- event
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

type party struct {
	sk     string
	pk     string
	signer *nostrclient.KeystoreSigner
}

func newParty(t *testing.T) party {
	t.Helper()
	sk := nostr.GeneratePrivateKey()
	pk, err := nostr.GetPublicKey(sk)
	if err != nil {
		t.Fatalf("derive pubkey: %v", err)
	}
	return party{sk: sk, pk: pk, signer: nostrclient.NewKeystoreSigner(&nostrclient.MemoryKeystore{Key: sk})}
}

func newTestService(t *testing.T, p party, relay *fakeRelay) *Service {
	t.Helper()

	cfg := config.Default()
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "cache.db")

	store, err := storage.New(context.Background(), &cfg.Storage)
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return New(relay, p.signer, store, cfg)
}

// encryptedDM builds a signed, encrypted kind-4 event from one party to
// another, the way a real counterparty client would.
func encryptedDM(t *testing.T, from party, toPubkey, plaintext, moonshotID string, createdAt int64) *nostr.Event {
	t.Helper()

	ciphertext, err := from.signer.Encrypt(context.Background(), toPubkey, plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	event := codec.EncodeChatMessage(&codec.ChatMessage{
		Receiver:   toPubkey,
		MoonshotID: moonshotID,
		CreatedAt:  createdAt,
	}, ciphertext)

	if err := event.Sign(from.sk); err != nil {
		t.Fatalf("sign: %v", err)
	}
	return event
}

func TestSendEncryptsSignsAndConfirms(t *testing.T) {
	alice, bob := newParty(t), newParty(t)
	relay := &fakeRelay{}
	svc := newTestService(t, alice, relay)

	sent, err := svc.Send(context.Background(), &codec.ChatMessage{
		Receiver: bob.pk,
		Content:  "when can you start?",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if sent.Pending() {
		t.Error("confirmed message should not carry a local id")
	}
	if sent.Content != "when can you start?" {
		t.Errorf("returned content = %q, want the plaintext", sent.Content)
	}

	if len(relay.published) != 1 {
		t.Fatalf("published %d events, want 1", len(relay.published))
	}
	event := relay.published[0]
	if event.Kind != codec.KindDirectMessage {
		t.Errorf("kind = %d, want %d", event.Kind, codec.KindDirectMessage)
	}
	if event.Content == "when can you start?" {
		t.Error("plaintext leaked into the published event")
	}
	if strings.Contains(event.Content, "when can you start?") {
		t.Error("plaintext leaked into the ciphertext")
	}

	// The receiver's client must be able to read it.
	plaintext, err := bob.signer.Decrypt(context.Background(), alice.pk, event.Content)
	if err != nil {
		t.Fatalf("receiver decrypt: %v", err)
	}
	if plaintext != "when can you start?" {
		t.Errorf("receiver read %q", plaintext)
	}
}

func TestSendRollsBackCacheOnPublishFailure(t *testing.T) {
	alice, bob := newParty(t), newParty(t)
	relay := &fakeRelay{publishErr: errors.New("all relays down")}
	svc := newTestService(t, alice, relay)

	sent, err := svc.Send(context.Background(), &codec.ChatMessage{
		Receiver: bob.pk,
		Content:  "hello?",
	})
	if err == nil {
		t.Fatal("expected the publish failure to surface")
	}
	if sent == nil || !sent.Pending() {
		t.Error("failed send should return the pending message")
	}

	history, err := svc.History(context.Background(), bob.pk, "")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("rolled-back message still in history: %d messages", len(history))
	}
}

func TestSendRequiresSigner(t *testing.T) {
	alice := newParty(t)
	svc := newTestService(t, alice, &fakeRelay{})
	svc.signer = nil

	_, err := svc.Send(context.Background(), &codec.ChatMessage{Receiver: "x", Content: "y"})
	if !errors.Is(err, nostrclient.ErrNoSigner) {
		t.Fatalf("error = %v, want ErrNoSigner", err)
	}
}

func TestHistoryMergesBackfillAndDecryptsBothDirections(t *testing.T) {
	alice, bob := newParty(t), newParty(t)

	relay := &fakeRelay{
		stored: []*nostr.Event{
			encryptedDM(t, bob, alice.pk, "I can start monday", "", 200),
			encryptedDM(t, alice, bob.pk, "saw your interest", "", 100),
		},
	}
	svc := newTestService(t, alice, relay)

	history, err := svc.History(context.Background(), bob.pk, "")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d messages, want 2", len(history))
	}
	if history[0].Content != "saw your interest" || history[1].Content != "I can start monday" {
		t.Errorf("history out of order or undecrypted: %q, %q", history[0].Content, history[1].Content)
	}
	if history[0].Sender != alice.pk || history[1].Sender != bob.pk {
		t.Error("sender attribution wrong")
	}
}

func TestHistorySkipsUndecryptableMessages(t *testing.T) {
	alice, bob, carol := newParty(t), newParty(t), newParty(t)

	// A message encrypted for carol, mistakenly tagged at alice. Alice's
	// client cannot read it and must not surface garbage.
	foreign := encryptedDM(t, bob, carol.pk, "secret for carol", "", 150)
	foreign.Tags = nostr.Tags{{"p", alice.pk}}
	if err := foreign.Sign(bob.sk); err != nil {
		t.Fatalf("re-sign: %v", err)
	}

	relay := &fakeRelay{
		stored: []*nostr.Event{
			foreign,
			encryptedDM(t, bob, alice.pk, "readable", "", 100),
		},
	}
	svc := newTestService(t, alice, relay)

	history, err := svc.History(context.Background(), bob.pk, "")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("got %d messages, want only the readable one", len(history))
	}
	if history[0].Content != "readable" {
		t.Errorf("content = %q", history[0].Content)
	}
}

func TestHistoryFiltersByMoonshotScope(t *testing.T) {
	alice, bob := newParty(t), newParty(t)

	relay := &fakeRelay{
		stored: []*nostr.Event{
			encryptedDM(t, bob, alice.pk, "about m1", "m1", 100),
			encryptedDM(t, bob, alice.pk, "about m2", "m2", 200),
		},
	}
	svc := newTestService(t, alice, relay)

	history, err := svc.History(context.Background(), bob.pk, "m1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 || history[0].Content != "about m1" {
		t.Fatalf("scoped history wrong: %+v", history)
	}
}

func TestSubscribeDeliversOnlyNewMessages(t *testing.T) {
	alice, bob := newParty(t), newParty(t)

	cached := encryptedDM(t, bob, alice.pk, "already seen", "", 100)
	fresh := encryptedDM(t, bob, alice.pk, "just arrived", "", 200)

	relay := &fakeRelay{
		stored: []*nostr.Event{cached},
		live:   make(chan *nostr.Event, 2),
	}
	svc := newTestService(t, alice, relay)

	// Prime the cache via history, then replay both events live.
	if _, err := svc.History(context.Background(), bob.pk, ""); err != nil {
		t.Fatalf("History: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed, err := svc.Subscribe(ctx, bob.pk, "")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	relay.live <- cached
	relay.live <- fresh

	select {
	case m := <-feed:
		if m.Content != "just arrived" {
			t.Errorf("delivered %q, want the fresh message", m.Content)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered")
	}

	cancel()
	for range feed {
	}
}

func TestSubscribeReplacesPreviousFeed(t *testing.T) {
	alice, bob := newParty(t), newParty(t)

	relay := &fakeRelay{live: make(chan *nostr.Event)}
	svc := newTestService(t, alice, relay)

	ctx := context.Background()
	first, err := svc.Subscribe(ctx, bob.pk, "")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	second, err := svc.Subscribe(ctx, bob.pk, "")
	if err != nil {
		t.Fatalf("Subscribe again: %v", err)
	}

	select {
	case _, open := <-first:
		if open {
			t.Error("first feed delivered instead of closing")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first feed not closed by replacement")
	}

	select {
	case _, open := <-second:
		if open {
			t.Error("second feed should stay open")
		}
		t.Error("second feed closed unexpectedly")
	default:
	}
}
