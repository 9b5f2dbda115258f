// Package paging normalizes limit/offset pagination shared by listings and feeds.
package paging

import "gorm.io/gorm"

// Page is a normalized limit/offset window.
type Page struct {
	Limit  int
	Offset int
}

// Bounds carries the default and maximum page sizes for a listing.
type Bounds struct {
	Default int
	Max     int
}

// DefaultBounds mirrors the API defaults.
var DefaultBounds = Bounds{Default: 20, Max: 100}

// New clamps raw request values into a usable Page.
func New(limit, offset int, bounds Bounds) Page {
	if bounds.Default <= 0 {
		bounds = DefaultBounds
	}
	if bounds.Max < bounds.Default {
		bounds.Max = bounds.Default
	}
	if limit <= 0 {
		limit = bounds.Default
	}
	if limit > bounds.Max {
		limit = bounds.Max
	}
	if offset < 0 {
		offset = 0
	}
	return Page{Limit: limit, Offset: offset}
}

// Scope applies the page to a gorm query.
func (p Page) Scope(db *gorm.DB) *gorm.DB {
	if p.Limit <= 0 {
		return db.Offset(p.Offset)
	}
	return db.Limit(p.Limit).Offset(p.Offset)
}

// Slice returns the window of an already materialized, ordered sequence.
func Slice[T any](items []T, page Page) []T {
	if page.Offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if page.Limit > 0 && page.Offset+page.Limit < end {
		end = page.Offset + page.Limit
	}
	return items[page.Offset:end]
}
