// Package ranking orders posts and comments by a derived engagement score.
// Scores are recomputed from current counters on every query and never stored.
package ranking

import (
	"sort"
	"time"
)

// Entry is the ranking view of one item.
type Entry struct {
	ID        uint
	Score     int64
	CreatedAt time.Time
}

// PostScore sums the counters that rank a post.
func PostScore(reactions, comments, bookmarks int64) int64 {
	return reactions + comments + bookmarks
}

// CommentScore sums the counters that rank a comment. Comments cannot be
// bookmarked, so views take that slot.
func CommentScore(reactions, replies, views int64) int64 {
	return reactions + replies + views
}

// Less orders entries by score descending, then newest first. The id breaks
// remaining ties so the order is total.
func Less(a, b Entry) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// SortByEngagement sorts items in place using the entry projection.
func SortByEngagement[T any](items []T, entry func(T) Entry) {
	sort.SliceStable(items, func(i, j int) bool {
		return Less(entry(items[i]), entry(items[j]))
	})
}

// TopN returns the n highest ranked items without modifying the input.
func TopN[T any](items []T, n int, entry func(T) Entry) []T {
	ranked := make([]T, len(items))
	copy(ranked, items)
	SortByEngagement(ranked, entry)
	if n >= 0 && n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}
