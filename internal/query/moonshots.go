package query

import (
	"context"
	"sort"

	"github.com/nbd-wtf/go-nostr"

	"github.com/mistic0xb/moonshot-sub000/internal/codec"
)

// FetchMoonshots returns the explore listing: every live, explorable
// moonshot, newest-first. Retired moonshots (explorable=false) are
// excluded here but still reachable through FetchMoonshot.
func (e *Engine) FetchMoonshots(ctx context.Context) ([]*codec.Moonshot, error) {
	moonshots, err := e.fetchMoonshotList(ctx, nostr.Filter{
		Kinds: []int{codec.KindEntity},
		Tags:  nostr.TagMap{codec.TagCategory: []string{codec.CategoryMoonshot}},
	})
	if err != nil {
		return nil, err
	}

	explorable := moonshots[:0]
	for _, m := range moonshots {
		if m.Explorable {
			explorable = append(explorable, m)
		}
	}

	return explorable, nil
}

// FetchAllMoonshots returns every live moonshot including retired ones
func (e *Engine) FetchAllMoonshots(ctx context.Context) ([]*codec.Moonshot, error) {
	return e.fetchMoonshotList(ctx, nostr.Filter{
		Kinds: []int{codec.KindEntity},
		Tags:  nostr.TagMap{codec.TagCategory: []string{codec.CategoryMoonshot}},
	})
}

// FetchMoonshotsByAuthor returns a creator's live moonshots, retired
// included, for owner views.
func (e *Engine) FetchMoonshotsByAuthor(ctx context.Context, pubkey string) ([]*codec.Moonshot, error) {
	return e.fetchMoonshotList(ctx, nostr.Filter{
		Kinds:   []int{codec.KindEntity},
		Authors: []string{pubkey},
		Tags:    nostr.TagMap{codec.TagCategory: []string{codec.CategoryMoonshot}},
	})
}

func (e *Engine) fetchMoonshotList(ctx context.Context, filter nostr.Filter) ([]*codec.Moonshot, error) {
	events := e.collect(ctx, filter, e.heavy, nil)

	moonshots := decodeMoonshots(e, reduceReplaceable(events))
	sort.Slice(moonshots, func(i, j int) bool {
		if moonshots[i].CreatedAt != moonshots[j].CreatedAt {
			return moonshots[i].CreatedAt > moonshots[j].CreatedAt
		}
		return moonshots[i].ID > moonshots[j].ID
	})

	return moonshots, nil
}

// FetchMoonshot resolves a creator+identifier pair to the current live
// state. Returns the moonshot even when retired; soft delete only hides
// it from the explore listing. Returns ErrNotFound when no relay knows it.
func (e *Engine) FetchMoonshot(ctx context.Context, pubkey, id string) (*codec.Moonshot, error) {
	events := e.collect(ctx, nostr.Filter{
		Kinds:   []int{codec.KindEntity},
		Authors: []string{pubkey},
		Tags: nostr.TagMap{
			codec.TagCategory:   []string{codec.CategoryMoonshot},
			codec.TagIdentifier: []string{id},
		},
	}, e.light, nil)

	moonshots := decodeMoonshots(e, reduceReplaceable(events))
	for _, m := range moonshots {
		if m.ID == id && m.Pubkey == pubkey {
			return m, nil
		}
	}

	return nil, ErrNotFound
}

// decodeMoonshots decodes a batch, skipping malformed events
func decodeMoonshots(e *Engine, events []*nostr.Event) []*codec.Moonshot {
	moonshots := make([]*codec.Moonshot, 0, len(events))
	for _, event := range events {
		m, err := codec.DecodeMoonshot(event)
		if err != nil {
			e.log.LogSkippedEvent(event.ID, codec.CategoryMoonshot, err)
			continue
		}
		moonshots = append(moonshots, m)
	}
	return moonshots
}
