// Package query resolves entity filters into materialized, deduplicated
// collections. Every query fans out to the full relay set and completes on
// the first of: all relays signal end-of-stored-events, or the configured
// timeout elapses. A timeout returns whatever accumulated; it is never
// surfaced as a failure.
package query

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/mistic0xb/moonshot-sub000/internal/codec"
	"github.com/mistic0xb/moonshot-sub000/internal/config"
	"github.com/mistic0xb/moonshot-sub000/internal/ops"
)

// ErrNotFound indicates a single-entity fetch matched nothing
var ErrNotFound = errors.New("entity not found")

// Fetcher is the slice of the relay client the engine needs
type Fetcher interface {
	FetchEvents(ctx context.Context, relays []string, filter nostr.Filter) ([]*nostr.Event, error)
	FetchOne(ctx context.Context, relays []string, filter nostr.Filter) (*nostr.Event, error)
}

// Engine materializes entity queries against the relay set
type Engine struct {
	fetcher Fetcher
	relays  []string
	light   time.Duration
	heavy   time.Duration
	log     *ops.Logger
}

// New creates a query engine from configuration
func New(fetcher Fetcher, cfg *config.Config) *Engine {
	return &Engine{
		fetcher: fetcher,
		relays:  cfg.Relays.Seeds,
		light:   time.Duration(cfg.Queries.LightTimeoutSeconds) * time.Second,
		heavy:   time.Duration(cfg.Queries.HeavyTimeoutSeconds) * time.Second,
		log:     ops.Default().WithComponent("query"),
	}
}

// NewWithTimeouts creates a query engine with explicit bounds
func NewWithTimeouts(fetcher Fetcher, relays []string, light, heavy time.Duration) *Engine {
	return &Engine{
		fetcher: fetcher,
		relays:  relays,
		light:   light,
		heavy:   heavy,
		log:     ops.Default().WithComponent("query"),
	}
}

// collect runs one bounded query pass: fan out, deduplicate by event id,
// apply the post-filter relays cannot express. The context deadline is the
// completion backstop; cancelling it also closes the subscriptions.
func (e *Engine) collect(ctx context.Context, filter nostr.Filter, timeout time.Duration, keep func(*nostr.Event) bool) []*nostr.Event {
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	raw, err := e.fetcher.FetchEvents(queryCtx, e.relays, filter)
	if err != nil {
		// Degraded transport still resolves with what we have
		e.log.Warn("query fetch degraded", "error", err)
	}

	events := dedupe(raw, keep)
	e.log.LogQuery(categoryOf(filter), len(events), time.Since(start), queryCtx.Err() != nil)

	return events
}

// dedupe drops events already seen by id and events the post-filter
// rejects, preserving arrival order.
func dedupe(events []*nostr.Event, keep func(*nostr.Event) bool) []*nostr.Event {
	seen := make(map[string]struct{}, len(events))
	out := make([]*nostr.Event, 0, len(events))

	for _, event := range events {
		if event == nil || event.ID == "" {
			continue
		}
		if _, dup := seen[event.ID]; dup {
			continue
		}
		seen[event.ID] = struct{}{}

		if keep != nil && !keep(event) {
			continue
		}
		out = append(out, event)
	}

	return out
}

// reduceReplaceable keeps only the live event per (pubkey, identifier):
// the one with the newest created_at, larger event id breaking ties. This
// is the replaceable-event contract applied client-side, so delivery order
// never matters.
func reduceReplaceable(events []*nostr.Event) []*nostr.Event {
	live := make(map[string]*nostr.Event, len(events))
	firstSeen := make(map[string]int, len(events))

	for i, event := range events {
		key := event.PubKey + "\x00" + identifierOf(event)
		if _, ok := firstSeen[key]; !ok {
			firstSeen[key] = i
		}
		if current, ok := live[key]; !ok || supersedes(event, current) {
			live[key] = event
		}
	}

	// Stable output: first-seen order of each logical entity
	keys := make([]string, 0, len(live))
	for key := range live {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return firstSeen[keys[i]] < firstSeen[keys[j]]
	})

	out := make([]*nostr.Event, 0, len(keys))
	for _, key := range keys {
		out = append(out, live[key])
	}

	return out
}

// supersedes reports whether a replaces b under last-write-wins
func supersedes(a, b *nostr.Event) bool {
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt > b.CreatedAt
	}
	return a.ID > b.ID
}

// identifierOf returns the "d" tag of an event, or ""
func identifierOf(event *nostr.Event) string {
	for _, tag := range event.Tags {
		if len(tag) >= 2 && tag[0] == codec.TagIdentifier {
			return tag[1]
		}
	}
	return ""
}

// categoryOf extracts the category constraint of a filter for logging
func categoryOf(filter nostr.Filter) string {
	if values, ok := filter.Tags[codec.TagCategory]; ok && len(values) > 0 {
		return values[0]
	}
	if len(filter.Kinds) > 0 {
		switch filter.Kinds[0] {
		case codec.KindReaction:
			return "reaction"
		case codec.KindDirectMessage:
			return "chat"
		}
	}
	return "generic"
}
