package query

import (
	"context"

	"github.com/nbd-wtf/go-nostr"

	"github.com/mistic0xb/moonshot-sub000/internal/aggregates"
	"github.com/mistic0xb/moonshot-sub000/internal/codec"
)

// FetchComments returns a moonshot's discussion as a nested thread:
// roots newest-first, reply lists oldest-first. Replies whose parents
// were not returned become roots rather than being dropped.
func (e *Engine) FetchComments(ctx context.Context, moonshot codec.EntityRef) ([]*codec.Comment, error) {
	comments, err := e.fetchFlatComments(ctx, moonshot)
	if err != nil {
		return nil, err
	}
	return aggregates.BuildThread(comments), nil
}

// fetchFlatComments returns the undecorated comment list for a moonshot
func (e *Engine) fetchFlatComments(ctx context.Context, moonshot codec.EntityRef) ([]*codec.Comment, error) {
	events := e.collect(ctx, nostr.Filter{
		Kinds: []int{codec.KindEntity},
		Tags: nostr.TagMap{
			codec.TagCategory: []string{codec.CategoryComment},
			codec.TagAddress:  []string{moonshot.String()},
		},
	}, e.light, nil)

	comments := make([]*codec.Comment, 0, len(events))
	for _, event := range reduceReplaceable(events) {
		c, err := codec.DecodeComment(event)
		if err != nil {
			e.log.LogSkippedEvent(event.ID, codec.CategoryComment, err)
			continue
		}
		if c.Moonshot != moonshot {
			continue
		}
		comments = append(comments, c)
	}

	return comments, nil
}
