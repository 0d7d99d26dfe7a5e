package domain

import "strings"

// Category filter sentinel matching every record.
const CategoryAll = "all"

const (
	CategoryUncategorized = "uncategorized"
	CategoryNature        = "nature"
	CategoryUrban         = "urban"
	CategoryPortrait      = "portrait"
	CategoryTravel        = "travel"
	CategoryFood          = "food"
	CategoryArt           = "art"
	CategoryEvent         = "event"
)

// Categories lists the fixed set a photo may be filed under.
var Categories = []string{
	CategoryUncategorized,
	CategoryNature,
	CategoryUrban,
	CategoryPortrait,
	CategoryTravel,
	CategoryFood,
	CategoryArt,
	CategoryEvent,
}

const (
	DefaultTitle  = "Untitled"
	DefaultAuthor = "Anonymous"
)

type SortMode string

const (
	SortNewest    SortMode = "newest"
	SortOldest    SortMode = "oldest"
	SortMostLiked SortMode = "most-liked"
)

type ViewMode string

const (
	ViewGrid ViewMode = "grid"
	ViewList ViewMode = "list"
)

// Photo is the durable unit persisted by both storage tiers. The JSON shape is
// shared by the fallback blob and the HTTP API.
type Photo struct {
	ID       string `json:"id"`
	Src      string `json:"src"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	Category string `json:"category"`
	Location string `json:"location"`
	TS       int64  `json:"ts"`
	Likes    int    `json:"likes"`
	Liked    bool   `json:"liked"`
}

// Clone returns a copy that callers may modify freely.
func (p *Photo) Clone() *Photo {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// NewPhoto carries the user-supplied fields of a submit.
type NewPhoto struct {
	Src      string
	Title    string
	Author   string
	Category string
	Location string
}

func IsCategory(s string) bool {
	for _, c := range Categories {
		if c == s {
			return true
		}
	}
	return false
}

// NormalizeCategory maps unknown or empty input to the uncategorized default.
func NormalizeCategory(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if IsCategory(s) {
		return s
	}
	return CategoryUncategorized
}

func ParseSortMode(s string) (SortMode, error) {
	switch m := SortMode(strings.TrimSpace(s)); m {
	case SortNewest, SortOldest, SortMostLiked:
		return m, nil
	default:
		return "", &InvalidValueError{Kind: ErrInvalidSort, Value: s}
	}
}

func ParseViewMode(s string) (ViewMode, error) {
	switch m := ViewMode(strings.TrimSpace(s)); m {
	case ViewGrid, ViewList:
		return m, nil
	default:
		return "", &InvalidValueError{Kind: ErrInvalidView, Value: s}
	}
}

// ParseFilter accepts the "all" sentinel or one of Categories.
func ParseFilter(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == CategoryAll || IsCategory(s) {
		return s, nil
	}
	return "", &InvalidValueError{Kind: ErrInvalidFilter, Value: s}
}
