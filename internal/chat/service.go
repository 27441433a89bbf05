// Package chat implements encrypted direct messaging between creators
// and interested builders. Messages are NIP-04 encrypted kind-4 events;
// history is served from the local cache, backfilled from relays, and
// extended live by subscription.
package chat

import (
	"context"
	"fmt"

	"github.com/nbd-wtf/go-nostr"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/xid"

	"github.com/mistic0xb/moonshot-sub000/internal/codec"
	"github.com/mistic0xb/moonshot-sub000/internal/config"
	nostrclient "github.com/mistic0xb/moonshot-sub000/internal/nostr"
	"github.com/mistic0xb/moonshot-sub000/internal/ops"
	"github.com/mistic0xb/moonshot-sub000/internal/storage"
)

// Relay is the slice of the relay client the chat service needs
type Relay interface {
	FetchEvents(ctx context.Context, relays []string, filter nostr.Filter) ([]*nostr.Event, error)
	PublishEvent(ctx context.Context, relays []string, event *nostr.Event) error
	SubscribeEvents(ctx context.Context, relays []string, filters nostr.Filters) <-chan *nostr.Event
}

// Service sends, receives and caches direct messages
type Service struct {
	relay  Relay
	signer nostrclient.Signer
	store  *storage.Store
	relays []string
	log    *ops.Logger

	// One live subscription per conversation; starting a new one
	// replaces (cancels) the previous.
	active *xsync.MapOf[string, subscription]
}

// subscription identifies a live conversation feed so a replaced feed
// can be cancelled and deregistered without racing its replacement.
type subscription struct {
	id     string
	cancel context.CancelFunc
}

// New creates a chat service from configuration
func New(relay Relay, signer nostrclient.Signer, store *storage.Store, cfg *config.Config) *Service {
	return &Service{
		relay:  relay,
		signer: signer,
		store:  store,
		relays: cfg.Relays.Seeds,
		log:    ops.Default().WithComponent("chat"),
		active: xsync.NewMapOf[string, subscription](),
	}
}

// Send encrypts and publishes a message. The message is cached before
// the publish resolves so history reflects it immediately; a failed
// publish rolls the cache entry back. The returned message carries the
// confirmed event id on success and the optimistic local id on failure.
func (s *Service) Send(ctx context.Context, draft *codec.ChatMessage) (*codec.ChatMessage, error) {
	if s.signer == nil {
		return nil, nostrclient.ErrNoSigner
	}
	if draft.Receiver == "" {
		return nil, fmt.Errorf("message needs a receiver")
	}
	if draft.Content == "" {
		return nil, fmt.Errorf("message content is required")
	}

	self, err := s.signer.PublicKey(ctx)
	if err != nil {
		return nil, err
	}

	m := *draft
	m.ID = codec.LocalIDPrefix + xid.New().String()
	m.Sender = self
	m.CreatedAt = 0

	ciphertext, err := s.signer.Encrypt(ctx, m.Receiver, m.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt message: %w", err)
	}

	event := codec.EncodeChatMessage(&m, ciphertext)
	if err := s.signer.Sign(ctx, event); err != nil {
		return nil, err
	}

	conv := storage.Conversation{
		Key:           m.ConversationKey(),
		PeerPubkey:    m.Receiver,
		MoonshotID:    m.MoonshotID,
		LastMessageAt: int64(event.CreatedAt),
	}
	if err := s.store.SaveMessage(ctx, event, conv); err != nil {
		s.log.Warn("failed to cache outgoing message", "error", err)
	}

	if err := s.relay.PublishEvent(ctx, s.relays, event); err != nil {
		if delErr := s.store.DeleteMessage(ctx, event); delErr != nil {
			s.log.Warn("failed to roll back cached message", "error", delErr)
		}
		return &m, fmt.Errorf("failed to send message: %w", err)
	}

	m.ID = event.ID
	m.CreatedAt = int64(event.CreatedAt)
	return &m, nil
}

// History returns the full decrypted conversation with a peer, oldest
// first. Relay backfill merges into the cache first; messages that fail
// to decrypt are skipped, not surfaced.
func (s *Service) History(ctx context.Context, peerPubkey, moonshotID string) ([]*codec.ChatMessage, error) {
	if s.signer == nil {
		return nil, nostrclient.ErrNoSigner
	}

	self, err := s.signer.PublicKey(ctx)
	if err != nil {
		return nil, err
	}

	s.backfill(ctx, self, peerPubkey, moonshotID)

	events, err := s.store.Messages(ctx, self, peerPubkey)
	if err != nil {
		return nil, err
	}

	var messages []*codec.ChatMessage
	for _, event := range events {
		m, ok := s.decryptEvent(ctx, self, event)
		if !ok {
			continue
		}
		if moonshotID != "" && m.MoonshotID != moonshotID {
			continue
		}
		messages = append(messages, m)
	}
	return messages, nil
}

// Subscribe opens a live feed of decrypted incoming messages from a
// peer. Cached events are deduplicated, so only genuinely new messages
// arrive. Subscribing again for the same conversation replaces the
// previous subscription; cancelling ctx closes the feed.
func (s *Service) Subscribe(ctx context.Context, peerPubkey, moonshotID string) (<-chan *codec.ChatMessage, error) {
	if s.signer == nil {
		return nil, nostrclient.ErrNoSigner
	}

	self, err := s.signer.PublicKey(ctx)
	if err != nil {
		return nil, err
	}

	key := codec.ConversationKey(self, peerPubkey, moonshotID)
	subCtx, cancel := context.WithCancel(ctx)
	sub := subscription{id: xid.New().String(), cancel: cancel}
	if prev, loaded := s.active.LoadAndStore(key, sub); loaded {
		prev.cancel()
	}

	filters := nostr.Filters{
		{Kinds: []int{codec.KindDirectMessage}, Authors: []string{peerPubkey}, Tags: nostr.TagMap{"p": []string{self}}},
		{Kinds: []int{codec.KindDirectMessage}, Authors: []string{self}, Tags: nostr.TagMap{"p": []string{peerPubkey}}},
	}

	incoming := s.relay.SubscribeEvents(subCtx, s.relays, filters)
	out := make(chan *codec.ChatMessage, 16)

	go func() {
		defer close(out)
		defer s.active.Compute(key, func(cur subscription, loaded bool) (subscription, bool) {
			// Deregister only if we are still the active subscription.
			if loaded && cur.id == sub.id {
				return subscription{}, true
			}
			return cur, !loaded
		})

		for event := range incoming {
			seen, err := s.store.HasEvent(subCtx, event.ID)
			if err == nil && seen {
				continue
			}

			m, ok := s.decryptEvent(subCtx, self, event)
			if !ok {
				continue
			}
			if moonshotID != "" && m.MoonshotID != moonshotID {
				continue
			}

			conv := storage.Conversation{
				Key:           key,
				PeerPubkey:    peerPubkey,
				MoonshotID:    moonshotID,
				LastMessageAt: int64(event.CreatedAt),
			}
			if err := s.store.SaveMessage(subCtx, event, conv); err != nil {
				s.log.Warn("failed to cache incoming message", "error", err)
			}

			select {
			case out <- m:
			case <-subCtx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Conversations lists cached conversations, most recent first
func (s *Service) Conversations(ctx context.Context) ([]storage.Conversation, error) {
	return s.store.Conversations(ctx)
}

// backfill pulls the conversation's stored events from relays into the
// cache. Failures degrade to cache-only history.
func (s *Service) backfill(ctx context.Context, self, peer, moonshotID string) {
	filter := nostr.Filter{
		Kinds:   []int{codec.KindDirectMessage},
		Authors: []string{self, peer},
		Tags:    nostr.TagMap{"p": []string{self, peer}},
	}

	events, err := s.relay.FetchEvents(ctx, s.relays, filter)
	if err != nil {
		s.log.Warn("chat backfill failed, serving cache only", "error", err)
		return
	}

	key := codec.ConversationKey(self, peer, moonshotID)
	for _, event := range events {
		conv := storage.Conversation{
			Key:           key,
			PeerPubkey:    peer,
			MoonshotID:    moonshotID,
			LastMessageAt: int64(event.CreatedAt),
		}
		if err := s.store.SaveMessage(ctx, event, conv); err != nil {
			s.log.Debug("skipping backfilled event", "event_id", event.ID, "error", err)
		}
	}
}

// decryptEvent parses and decrypts a cached or live kind-4 event.
// Returns false for anything malformed or undecryptable.
func (s *Service) decryptEvent(ctx context.Context, self string, event *nostr.Event) (*codec.ChatMessage, bool) {
	m, err := codec.DecodeChatMessage(event)
	if err != nil {
		s.log.LogSkippedEvent(event.ID, "chat", err)
		return nil, false
	}

	peer := m.Sender
	if m.Sender == self {
		peer = m.Receiver
	}

	plaintext, err := s.signer.Decrypt(ctx, peer, m.Content)
	if err != nil {
		s.log.LogSkippedEvent(event.ID, "chat", err)
		return nil, false
	}

	m.Content = plaintext
	return m, true
}
