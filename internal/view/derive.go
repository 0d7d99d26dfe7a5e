// Package view derives the filtered, searched and sorted sequence of photos
// shown to the user. Derivation is pure: it never mutates its input.
package view

import (
	"sort"
	"strings"

	"github.com/vbonduro/gallery/internal/domain"
)

// Criteria are the inputs of a derivation.
type Criteria struct {
	Category string
	Sort     domain.SortMode
	Search   string
}

// Normalize fills unset fields with the "all" filter and newest-first order.
func (c Criteria) Normalize() Criteria {
	if strings.TrimSpace(c.Category) == "" {
		c.Category = domain.CategoryAll
	}
	if c.Sort == "" {
		c.Sort = domain.SortNewest
	}
	return c
}

// Derive returns a fresh slice holding the photos that pass the category and
// search filters, ordered by the sort mode. Ties keep their input order.
func Derive(photos []*domain.Photo, c Criteria) []*domain.Photo {
	c = c.Normalize()
	query := strings.ToLower(strings.TrimSpace(c.Search))

	out := make([]*domain.Photo, 0, len(photos))
	for _, p := range photos {
		if p == nil {
			continue
		}
		if c.Category != domain.CategoryAll && p.Category != c.Category {
			continue
		}
		if query != "" && !matches(p, query) {
			continue
		}
		out = append(out, p)
	}

	switch c.Sort {
	case domain.SortNewest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].TS > out[j].TS })
	case domain.SortOldest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].TS < out[j].TS })
	default:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Likes > out[j].Likes })
	}
	return out
}

// matches reports whether any searchable field contains the lower-cased query.
func matches(p *domain.Photo, query string) bool {
	for _, field := range [...]string{p.Title, p.Author, p.Category, p.Location} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

// IndexOf returns the position of id in photos, or -1.
func IndexOf(photos []*domain.Photo, id string) int {
	for i, p := range photos {
		if p != nil && p.ID == id {
			return i
		}
	}
	return -1
}
