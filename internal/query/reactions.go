package query

import (
	"context"

	"github.com/nbd-wtf/go-nostr"
	"golang.org/x/sync/errgroup"

	"github.com/mistic0xb/moonshot-sub000/internal/aggregates"
	"github.com/mistic0xb/moonshot-sub000/internal/codec"
)

// FetchReactionTally aggregates the like count for a moonshot, keeping
// only each author's latest reaction so toggles resolve correctly.
func (e *Engine) FetchReactionTally(ctx context.Context, moonshot codec.EntityRef) (*aggregates.ReactionTally, error) {
	reactions := e.fetchReactions(ctx, nostr.Filter{
		Kinds: []int{codec.KindReaction},
		Tags:  nostr.TagMap{codec.TagAddress: []string{moonshot.String()}},
	}, moonshot)

	return aggregates.Tally(reactions), nil
}

// FetchUserReaction reports whether the given user currently likes the
// moonshot. Same aggregation restricted to one author; the result is only
// as fresh as the relays' view, so a local toggle can drift until requery.
func (e *Engine) FetchUserReaction(ctx context.Context, moonshot codec.EntityRef, pubkey string) (bool, error) {
	reactions := e.fetchReactions(ctx, nostr.Filter{
		Kinds:   []int{codec.KindReaction},
		Authors: []string{pubkey},
		Tags:    nostr.TagMap{codec.TagAddress: []string{moonshot.String()}},
	}, moonshot)

	return aggregates.UserVote(reactions, pubkey), nil
}

func (e *Engine) fetchReactions(ctx context.Context, filter nostr.Filter, moonshot codec.EntityRef) []*codec.Reaction {
	events := e.collect(ctx, filter, e.light, nil)

	reactions := make([]*codec.Reaction, 0, len(events))
	for _, event := range events {
		r, err := codec.DecodeReaction(event)
		if err != nil {
			e.log.LogSkippedEvent(event.ID, "reaction", err)
			continue
		}
		if r.Target != moonshot {
			continue
		}
		reactions = append(reactions, r)
	}

	return reactions
}

// EnrichedMoonshot bundles a moonshot with its interaction aggregates
type EnrichedMoonshot struct {
	Moonshot     *codec.Moonshot
	Likes        int
	CommentCount int
	ChipInTotal  int64
}

// enrichConcurrency bounds the parallel aggregate fetches per listing
const enrichConcurrency = 4

// EnrichMoonshots decorates a listing with reaction and comment
// aggregates, fetched concurrently. Individual failures degrade to zero
// counts; the listing itself never fails on enrichment.
func (e *Engine) EnrichMoonshots(ctx context.Context, moonshots []*codec.Moonshot) ([]*EnrichedMoonshot, error) {
	enriched := make([]*EnrichedMoonshot, len(moonshots))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)

	for i, m := range moonshots {
		g.Go(func() error {
			item := &EnrichedMoonshot{Moonshot: m}

			if tally, err := e.FetchReactionTally(gctx, m.Ref()); err == nil {
				item.Likes = tally.Count
			}
			if roots, err := e.FetchComments(gctx, m.Ref()); err == nil {
				item.CommentCount = aggregates.CountComments(roots)
				item.ChipInTotal = aggregates.TotalChipIn(roots)
			}

			enriched[i] = item
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return enriched, nil
}
