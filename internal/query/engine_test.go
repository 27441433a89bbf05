package query

import (
	"context"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/mistic0xb/moonshot-sub000/internal/codec"
)

const (
	creatorPubkey = "3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d"
	builderPubkey = "82341f882b6eabcd2ba7f1ef90aad961cf074af15b9ef44a09f9d2a8fbfbe6a2"
)

// fakeFetcher serves canned events through real filter matching. With
// blockAfter >= 0 it returns that many events and then stalls until the
// query deadline, simulating an unresponsive relay.
type fakeFetcher struct {
	events     []*nostr.Event
	blockAfter int
}

func newFakeFetcher(events ...*nostr.Event) *fakeFetcher {
	return &fakeFetcher{events: events, blockAfter: -1}
}

func (f *fakeFetcher) FetchEvents(ctx context.Context, relays []string, filter nostr.Filter) ([]*nostr.Event, error) {
	var out []*nostr.Event
	matched := 0
	for _, event := range f.events {
		if !filter.Matches(event) {
			continue
		}
		if f.blockAfter >= 0 && matched >= f.blockAfter {
			<-ctx.Done()
			return out, nil
		}
		out = append(out, event)
		matched++
	}
	return out, nil
}

func (f *fakeFetcher) FetchOne(ctx context.Context, relays []string, filter nostr.Filter) (*nostr.Event, error) {
	events, _ := f.FetchEvents(ctx, relays, filter)
	if len(events) == 0 {
		return nil, ErrNotFound
	}
	return events[0], nil
}

func testEngine(f Fetcher) *Engine {
	return NewWithTimeouts(f, []string{"wss://relay.test"}, 100*time.Millisecond, 200*time.Millisecond)
}

func moonshotEvent(id, pubkey, eventID string, createdAt int64, explorable bool, title string) *nostr.Event {
	m := &codec.Moonshot{
		ID:         id,
		Title:      title,
		Budget:     "1000",
		Status:     codec.StatusOpen,
		Explorable: explorable,
		CreatedAt:  createdAt,
	}
	event := codec.EncodeMoonshot(m)
	event.PubKey = pubkey
	event.ID = eventID
	return event
}

func TestFetchMoonshots_DedupIdempotence(t *testing.T) {
	event := moonshotEvent("ms-1", creatorPubkey, "ev-1", 100, true, "One")

	// Same event id delivered twice, as from two relays
	engine := testEngine(newFakeFetcher(event, event))

	moonshots, err := engine.FetchMoonshots(context.Background())
	if err != nil {
		t.Fatalf("FetchMoonshots() error = %v", err)
	}
	if len(moonshots) != 1 {
		t.Errorf("Expected exactly one moonshot after dedup, got %d", len(moonshots))
	}
}

func TestFetchMoonshot_ReplaceablePrecedence(t *testing.T) {
	older := moonshotEvent("ms-1", creatorPubkey, "ev-old", 100, true, "Old title")
	newer := moonshotEvent("ms-1", creatorPubkey, "ev-new", 200, true, "New title")

	// Both delivery orders must resolve to the newer event
	for name, fetcher := range map[string]*fakeFetcher{
		"old first": newFakeFetcher(older, newer),
		"new first": newFakeFetcher(newer, older),
	} {
		t.Run(name, func(t *testing.T) {
			engine := testEngine(fetcher)

			m, err := engine.FetchMoonshot(context.Background(), creatorPubkey, "ms-1")
			if err != nil {
				t.Fatalf("FetchMoonshot() error = %v", err)
			}
			if m.Title != "New title" {
				t.Errorf("Expected newest event to win, got title %q", m.Title)
			}
			if m.EventID != "ev-new" {
				t.Errorf("Expected live event ev-new, got %s", m.EventID)
			}
		})
	}
}

func TestFetchMoonshot_EqualTimestampTieBreak(t *testing.T) {
	a := moonshotEvent("ms-1", creatorPubkey, "aaa", 100, true, "Session A")
	b := moonshotEvent("ms-1", creatorPubkey, "zzz", 100, true, "Session B")

	engine := testEngine(newFakeFetcher(a, b))

	m, err := engine.FetchMoonshot(context.Background(), creatorPubkey, "ms-1")
	if err != nil {
		t.Fatalf("FetchMoonshot() error = %v", err)
	}
	if m.EventID != "zzz" {
		t.Errorf("Expected lexically larger event id to win the tie, got %s", m.EventID)
	}
}

func TestFetchMoonshots_SoftDeleteVisibility(t *testing.T) {
	visible := moonshotEvent("ms-1", creatorPubkey, "ev-1", 100, true, "Visible")
	retired := moonshotEvent("ms-2", creatorPubkey, "ev-2", 200, false, "Retired")

	engine := testEngine(newFakeFetcher(visible, retired))
	ctx := context.Background()

	listing, err := engine.FetchMoonshots(ctx)
	if err != nil {
		t.Fatalf("FetchMoonshots() error = %v", err)
	}
	if len(listing) != 1 || listing[0].ID != "ms-1" {
		t.Errorf("Expected explore listing to exclude retired moonshot, got %+v", listing)
	}

	// Direct fetch still returns the retired moonshot
	m, err := engine.FetchMoonshot(ctx, creatorPubkey, "ms-2")
	if err != nil {
		t.Fatalf("FetchMoonshot() error = %v", err)
	}
	if m.Explorable {
		t.Error("Expected retired moonshot to decode as not explorable")
	}
}

func TestFetchMoonshots_SkipsMalformed(t *testing.T) {
	good := moonshotEvent("ms-1", creatorPubkey, "ev-1", 100, true, "Good")

	// Missing title: decoder must skip it without failing the batch
	bad := &nostr.Event{
		ID:        "ev-bad",
		Kind:      codec.KindEntity,
		PubKey:    creatorPubkey,
		CreatedAt: 150,
		Tags: nostr.Tags{
			{codec.TagIdentifier, "ms-broken"},
			{codec.TagCategory, codec.CategoryMoonshot},
		},
	}

	engine := testEngine(newFakeFetcher(good, bad))

	moonshots, err := engine.FetchMoonshots(context.Background())
	if err != nil {
		t.Fatalf("FetchMoonshots() error = %v", err)
	}
	if len(moonshots) != 1 || moonshots[0].ID != "ms-1" {
		t.Errorf("Expected malformed event skipped, got %+v", moonshots)
	}
}

func TestFetchMoonshot_NotFound(t *testing.T) {
	engine := testEngine(newFakeFetcher())

	_, err := engine.FetchMoonshot(context.Background(), creatorPubkey, "ms-missing")
	if err != ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTimeoutDegradation(t *testing.T) {
	// One event arrives, then the relay never responds again. The query
	// must still resolve within its bound, returning the partial result.
	event := moonshotEvent("ms-1", creatorPubkey, "ev-1", 100, true, "Partial")
	fetcher := newFakeFetcher(event, moonshotEvent("ms-2", creatorPubkey, "ev-2", 200, true, "Never arrives"))
	fetcher.blockAfter = 1

	engine := testEngine(fetcher)

	start := time.Now()
	moonshots, err := engine.FetchMoonshots(context.Background())
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Expected timeout to degrade, not fail: %v", err)
	}
	if len(moonshots) != 1 || moonshots[0].ID != "ms-1" {
		t.Errorf("Expected partial results from responsive relay, got %+v", moonshots)
	}
	if elapsed > 2*time.Second {
		t.Errorf("Expected resolution within the timeout bound, took %v", elapsed)
	}
}

func TestDedupe(t *testing.T) {
	a := &nostr.Event{ID: "a"}
	b := &nostr.Event{ID: "b"}

	out := dedupe([]*nostr.Event{a, b, a, nil, b}, nil)
	if len(out) != 2 {
		t.Errorf("Expected 2 unique events, got %d", len(out))
	}
}

func TestReduceReplaceable_DistinctIdentifiers(t *testing.T) {
	a1 := moonshotEvent("ms-1", creatorPubkey, "ev-1", 100, true, "A")
	b1 := moonshotEvent("ms-2", creatorPubkey, "ev-2", 50, true, "B")
	a2 := moonshotEvent("ms-1", creatorPubkey, "ev-3", 200, true, "A v2")

	out := reduceReplaceable([]*nostr.Event{a1, b1, a2})
	if len(out) != 2 {
		t.Fatalf("Expected 2 live events, got %d", len(out))
	}
	if out[0].ID != "ev-3" {
		t.Errorf("Expected ms-1 slot to hold ev-3, got %s", out[0].ID)
	}
	if out[1].ID != "ev-2" {
		t.Errorf("Expected ms-2 slot to hold ev-2, got %s", out[1].ID)
	}
}
