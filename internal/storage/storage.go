// Package storage is the local chat cache. Encrypted direct messages
// are kept as raw events in an embedded eventstore so conversation
// history survives restarts and renders before any relay answers; a
// side table indexes conversations for listing.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fiatjaf/eventstore/sqlite3"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/nbd-wtf/go-nostr"

	"github.com/mistic0xb/moonshot-sub000/internal/codec"
	"github.com/mistic0xb/moonshot-sub000/internal/config"
	"github.com/mistic0xb/moonshot-sub000/internal/ops"
)

// Conversation is one entry in the conversation index
type Conversation struct {
	Key           string // codec.ConversationKey of the participants
	PeerPubkey    string
	MoonshotID    string // optional context, "" for plain DMs
	LastMessageAt int64
}

// Store caches direct-message events locally
type Store struct {
	backend *sqlite3.SQLite3Backend
	config  *config.Storage
	log     *ops.Logger
}

// New opens (creating if needed) the local cache at the configured path
func New(ctx context.Context, cfg *config.Storage) (*Store, error) {
	if cfg.Driver != "sqlite" {
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}

	path, err := resolvePath(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	backend := &sqlite3.SQLite3Backend{DatabaseURL: path}
	if err := backend.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize sqlite backend: %w", err)
	}

	s := &Store{
		backend: backend,
		config:  cfg,
		log:     ops.Default().WithComponent("storage"),
	}

	if err := s.runMigrations(ctx); err != nil {
		backend.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// resolvePath expands a leading ~ in the configured database path
func resolvePath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		return homedir.Expand(path)
	}
	return path, nil
}

// runMigrations creates the conversation index alongside the event tables
func (s *Store) runMigrations(ctx context.Context) error {
	_, err := s.backend.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS conversations (
			key             TEXT PRIMARY KEY,
			peer_pubkey     TEXT NOT NULL,
			moonshot_id     TEXT NOT NULL DEFAULT '',
			last_message_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_conversations_recency
			ON conversations (last_message_at DESC);
	`)
	return err
}

// SaveMessage caches a direct-message event and bumps the conversation
// index. Saving an already cached event is a no-op.
func (s *Store) SaveMessage(ctx context.Context, event *nostr.Event, conv Conversation) error {
	if event.Kind != codec.KindDirectMessage {
		return fmt.Errorf("expected kind %d, got %d", codec.KindDirectMessage, event.Kind)
	}

	exists, err := s.HasEvent(ctx, event.ID)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.backend.SaveEvent(ctx, event); err != nil {
			return fmt.Errorf("failed to cache message: %w", err)
		}
	}

	_, err = s.backend.DB.ExecContext(ctx, `
		INSERT INTO conversations (key, peer_pubkey, moonshot_id, last_message_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			last_message_at = MAX(last_message_at, excluded.last_message_at)
	`, conv.Key, conv.PeerPubkey, conv.MoonshotID, int64(event.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to index conversation: %w", err)
	}

	s.log.LogCacheOperation("save", event.ID, exists)
	return nil
}

// HasEvent reports whether an event is already cached
func (s *Store) HasEvent(ctx context.Context, eventID string) (bool, error) {
	events, err := s.queryEvents(ctx, nostr.Filter{IDs: []string{eventID}, Limit: 1})
	if err != nil {
		return false, err
	}
	return len(events) > 0, nil
}

// Messages returns the cached messages exchanged between two pubkeys,
// oldest first.
func (s *Store) Messages(ctx context.Context, selfPubkey, peerPubkey string) ([]*nostr.Event, error) {
	events, err := s.queryEvents(ctx, nostr.Filter{
		Kinds:   []int{codec.KindDirectMessage},
		Authors: []string{selfPubkey, peerPubkey},
		Tags:    nostr.TagMap{"p": []string{selfPubkey, peerPubkey}},
	})
	if err != nil {
		return nil, err
	}

	// Authors/#p membership alone admits self-to-self noise when the
	// pubkeys collide with a third conversation; keep only true pairs.
	var out []*nostr.Event
	for _, event := range events {
		peer := firstPTag(event)
		pair := (event.PubKey == selfPubkey && peer == peerPubkey) ||
			(event.PubKey == peerPubkey && peer == selfPubkey)
		if pair {
			out = append(out, event)
		}
	}

	sortByCreatedAt(out)
	return out, nil
}

// Conversations lists known conversations, most recent first
func (s *Store) Conversations(ctx context.Context) ([]Conversation, error) {
	rows, err := s.backend.DB.QueryContext(ctx, `
		SELECT key, peer_pubkey, moonshot_id, last_message_at
		FROM conversations
		ORDER BY last_message_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.Key, &c.PeerPubkey, &c.MoonshotID, &c.LastMessageAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// DeleteMessage removes a cached event, used to roll back optimistic
// sends that never made it to a relay.
func (s *Store) DeleteMessage(ctx context.Context, event *nostr.Event) error {
	return s.backend.DeleteEvent(ctx, event)
}

// queryEvents drains the backend's channel into a slice
func (s *Store) queryEvents(ctx context.Context, filter nostr.Filter) ([]*nostr.Event, error) {
	ch, err := s.backend.QueryEvents(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}

	var events []*nostr.Event
	for event := range ch {
		events = append(events, event)
	}
	return events, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	s.backend.Close()
	return nil
}

func firstPTag(event *nostr.Event) string {
	for _, tag := range event.Tags {
		if len(tag) >= 2 && tag[0] == "p" {
			return tag[1]
		}
	}
	return ""
}

func sortByCreatedAt(events []*nostr.Event) {
	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt < events[j].CreatedAt
	})
}
