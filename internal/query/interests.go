package query

import (
	"context"
	"sort"

	"github.com/nbd-wtf/go-nostr"

	"github.com/mistic0xb/moonshot-sub000/internal/codec"
)

// FetchInterests returns every interest expressed in a moonshot,
// newest-first. The relay-side #a filter is re-checked during processing
// because relays only index the tag value, not which tag carried it.
func (e *Engine) FetchInterests(ctx context.Context, moonshot codec.EntityRef) ([]*codec.Interest, error) {
	events := e.collect(ctx, nostr.Filter{
		Kinds: []int{codec.KindEntity},
		Tags: nostr.TagMap{
			codec.TagCategory: []string{codec.CategoryInterest},
			codec.TagAddress:  []string{moonshot.String()},
		},
	}, e.light, nil)

	interests := make([]*codec.Interest, 0, len(events))
	for _, event := range reduceReplaceable(events) {
		in, err := codec.DecodeInterest(event)
		if err != nil {
			e.log.LogSkippedEvent(event.ID, codec.CategoryInterest, err)
			continue
		}
		if in.Moonshot != moonshot {
			continue
		}
		interests = append(interests, in)
	}

	sort.Slice(interests, func(i, j int) bool {
		return interests[i].CreatedAt > interests[j].CreatedAt
	})

	return interests, nil
}

// FetchInterestsByBuilder returns every interest a builder has expressed,
// across all moonshots, newest-first.
func (e *Engine) FetchInterestsByBuilder(ctx context.Context, pubkey string) ([]*codec.Interest, error) {
	events := e.collect(ctx, nostr.Filter{
		Kinds:   []int{codec.KindEntity},
		Authors: []string{pubkey},
		Tags:    nostr.TagMap{codec.TagCategory: []string{codec.CategoryInterest}},
	}, e.light, nil)

	interests := make([]*codec.Interest, 0, len(events))
	for _, event := range reduceReplaceable(events) {
		in, err := codec.DecodeInterest(event)
		if err != nil {
			e.log.LogSkippedEvent(event.ID, codec.CategoryInterest, err)
			continue
		}
		interests = append(interests, in)
	}

	sort.Slice(interests, func(i, j int) bool {
		return interests[i].CreatedAt > interests[j].CreatedAt
	})

	return interests, nil
}
