// Package aggregates reconstructs relationships that relays do not index:
// reaction tallies and comment threads, rebuilt client-side from flat,
// possibly duplicated, arbitrarily ordered event batches.
package aggregates

import (
	"github.com/mistic0xb/moonshot-sub000/internal/codec"
)

// ReactionTally is the aggregated vote state for one target
type ReactionTally struct {
	// Count is the number of authors whose latest reaction is a like
	Count int

	// ByAuthor maps each author to their latest-by-timestamp reaction
	ByAuthor map[string]*codec.Reaction
}

// Tally aggregates reactions, keeping only the most recent reaction per
// author so a later "-" withdraws an earlier "+". Later events with the
// same timestamp win on larger event id, the same tie-break used for
// replaceable events.
func Tally(reactions []*codec.Reaction) *ReactionTally {
	latest := make(map[string]*codec.Reaction)

	for _, r := range reactions {
		current, ok := latest[r.Pubkey]
		if !ok || newerReaction(r, current) {
			latest[r.Pubkey] = r
		}
	}

	count := 0
	for _, r := range latest {
		if r.Positive() {
			count++
		}
	}

	return &ReactionTally{
		Count:    count,
		ByAuthor: latest,
	}
}

// UserLiked reports whether the given author's current vote is a like
func (t *ReactionTally) UserLiked(pubkey string) bool {
	r, ok := t.ByAuthor[pubkey]
	return ok && r.Positive()
}

// UserVote returns the author's current vote state from a reaction batch.
// Same mechanism as Tally restricted to a single author.
func UserVote(reactions []*codec.Reaction, pubkey string) bool {
	var latest *codec.Reaction
	for _, r := range reactions {
		if r.Pubkey != pubkey {
			continue
		}
		if latest == nil || newerReaction(r, latest) {
			latest = r
		}
	}
	return latest != nil && latest.Positive()
}

func newerReaction(a, b *codec.Reaction) bool {
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt > b.CreatedAt
	}
	return a.EventID > b.EventID
}
