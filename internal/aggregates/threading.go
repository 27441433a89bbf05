package aggregates

import (
	"sort"

	"github.com/mistic0xb/moonshot-sub000/internal/codec"
)

// BuildThread converts a flat comment list into a nested reply structure.
//
// A reply whose parent is not in the batch (not yet fetched, or dropped as
// malformed) is promoted to a root rather than lost. Parent cycles, which
// relays cannot prevent, are broken the same way: one member of each cycle
// is promoted so the whole cycle stays visible. Roots sort newest-first to
// surface fresh discussion; each Replies list sorts oldest-first so
// threads read chronologically.
func BuildThread(comments []*codec.Comment) []*codec.Comment {
	byID := make(map[string]*codec.Comment, len(comments))
	for _, c := range comments {
		c.Replies = nil
		byID[c.ID] = c
	}

	var roots []*codec.Comment
	for _, c := range comments {
		if c.IsReply() {
			if parent, ok := byID[c.ParentID]; ok && parent != c {
				parent.Replies = append(parent.Replies, c)
				continue
			}
		}
		roots = append(roots, c)
	}

	// Cycle members reference each other, so none of them became a root
	// and the whole cycle is unreachable. Promote the first unreached
	// comment of each cycle; the rest hang off it as ordinary replies.
	reached := make(map[string]bool, len(comments))
	for _, root := range roots {
		markReached(root, reached)
	}
	for _, c := range comments {
		if reached[c.ID] {
			continue
		}
		if parent, ok := byID[c.ParentID]; ok {
			parent.Replies = removeReply(parent.Replies, c)
		}
		roots = append(roots, c)
		markReached(c, reached)
	}

	sort.Slice(roots, func(i, j int) bool {
		return newerComment(roots[i], roots[j])
	})
	for _, root := range roots {
		sortReplies(root)
	}

	return roots
}

func markReached(c *codec.Comment, reached map[string]bool) {
	if reached[c.ID] {
		return
	}
	reached[c.ID] = true
	for _, reply := range c.Replies {
		markReached(reply, reached)
	}
}

func removeReply(replies []*codec.Comment, c *codec.Comment) []*codec.Comment {
	out := replies[:0]
	for _, r := range replies {
		if r != c {
			out = append(out, r)
		}
	}
	return out
}

// sortReplies orders a node's replies oldest-first, recursively
func sortReplies(c *codec.Comment) {
	sort.Slice(c.Replies, func(i, j int) bool {
		return newerComment(c.Replies[j], c.Replies[i])
	})
	for _, reply := range c.Replies {
		sortReplies(reply)
	}
}

// CountComments returns the total number of nodes in a thread
func CountComments(roots []*codec.Comment) int {
	count := 0
	for _, root := range roots {
		count += 1 + CountComments(root.Replies)
	}
	return count
}

// TotalChipIn sums the chip-in pledges across a thread
func TotalChipIn(roots []*codec.Comment) int64 {
	var total int64
	for _, root := range roots {
		total += root.ChipIn + TotalChipIn(root.Replies)
	}
	return total
}

func newerComment(a, b *codec.Comment) bool {
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt > b.CreatedAt
	}
	return a.ID > b.ID
}
