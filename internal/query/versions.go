package query

import (
	"context"
	"fmt"
	"sort"

	"github.com/nbd-wtf/go-nostr"

	"github.com/mistic0xb/moonshot-sub000/internal/codec"
)

// FetchVersions returns the edit history of a moonshot: every historical
// snapshot back-referencing it, newest-first by the original creation
// timestamp each snapshot preserves (not by snapshot time).
func (e *Engine) FetchVersions(ctx context.Context, moonshot codec.EntityRef) ([]*codec.Version, error) {
	events := e.collect(ctx, nostr.Filter{
		Kinds: []int{codec.KindEntity},
		Tags: nostr.TagMap{
			codec.TagCategory: []string{codec.CategoryVersion},
			codec.TagAddress:  []string{moonshot.String()},
		},
	}, e.light, nil)

	versions := make([]*codec.Version, 0, len(events))
	for _, event := range reduceReplaceable(events) {
		v, err := codec.DecodeVersion(event)
		if err != nil {
			e.log.LogSkippedEvent(event.ID, codec.CategoryVersion, err)
			continue
		}
		if v.Moonshot != moonshot {
			continue
		}
		versions = append(versions, v)
	}

	sort.Slice(versions, func(i, j int) bool {
		if versions[i].PublishedAt != versions[j].PublishedAt {
			return versions[i].PublishedAt > versions[j].PublishedAt
		}
		return versions[i].ID > versions[j].ID
	})

	return versions, nil
}

// FetchExports returns every export record for a moonshot, newest-first
func (e *Engine) FetchExports(ctx context.Context, moonshot codec.EntityRef) ([]*codec.ExportRecord, error) {
	events := e.collect(ctx, nostr.Filter{
		Kinds: []int{codec.KindEntity},
		Tags: nostr.TagMap{
			codec.TagCategory: []string{codec.CategoryExport},
			codec.TagAddress:  []string{moonshot.String()},
		},
	}, e.light, nil)

	exports := make([]*codec.ExportRecord, 0, len(events))
	for _, event := range reduceReplaceable(events) {
		ex, err := codec.DecodeExport(event)
		if err != nil {
			e.log.LogSkippedEvent(event.ID, codec.CategoryExport, err)
			continue
		}
		if ex.Moonshot != moonshot {
			continue
		}
		exports = append(exports, ex)
	}

	sort.Slice(exports, func(i, j int) bool {
		return exports[i].CreatedAt > exports[j].CreatedAt
	})

	return exports, nil
}

// WasExported reports whether any export record exists for a moonshot
func (e *Engine) WasExported(ctx context.Context, moonshot codec.EntityRef) (bool, error) {
	exports, err := e.FetchExports(ctx, moonshot)
	if err != nil {
		return false, err
	}
	return len(exports) > 0, nil
}

// FetchExportOrigin resolves the live event an export record captured,
// giving the moonshot state as it stood at export time. An id matches at
// most one event, so this is a single fetch that closes on the first
// answer instead of waiting for every relay. Relays may have pruned the
// superseded event; absence is ErrNotFound, not an error.
func (e *Engine) FetchExportOrigin(ctx context.Context, rec *codec.ExportRecord) (*codec.Moonshot, error) {
	if rec.MoonshotEventID == "" {
		return nil, ErrNotFound
	}

	queryCtx, cancel := context.WithTimeout(ctx, e.light)
	defer cancel()

	event, err := e.fetcher.FetchOne(queryCtx, e.relays, nostr.Filter{
		IDs:   []string{rec.MoonshotEventID},
		Limit: 1,
	})
	if err != nil || event == nil {
		return nil, ErrNotFound
	}

	m, err := codec.DecodeMoonshot(event)
	if err != nil {
		return nil, fmt.Errorf("export origin %s is not a moonshot: %w", rec.MoonshotEventID, err)
	}
	return m, nil
}
