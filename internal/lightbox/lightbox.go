// Package lightbox tracks the photo shown in the full-screen viewer as an
// index into the last derived view it was given.
package lightbox

import (
	"github.com/vbonduro/gallery/internal/domain"
	"github.com/vbonduro/gallery/internal/view"
)

// Navigator is not safe for concurrent use; the owning service serializes
// access.
type Navigator struct {
	view  []*domain.Photo
	index int
	open  bool
}

func New() *Navigator {
	return &Navigator{}
}

// Open positions the viewer on id within v. It reports false and leaves the
// state untouched when id is not part of v.
func (n *Navigator) Open(v []*domain.Photo, id string) bool {
	idx := view.IndexOf(v, id)
	if idx < 0 {
		return false
	}
	n.view = v
	n.index = idx
	n.open = true
	return true
}

// Navigate steps one photo in the sign of dir, wrapping at both ends.
func (n *Navigator) Navigate(dir int) (*domain.Photo, bool) {
	if !n.open || len(n.view) == 0 {
		return nil, false
	}
	step := 1
	if dir < 0 {
		step = -1
	}
	size := len(n.view)
	n.index = ((n.index+step)%size + size) % size
	return n.view[n.index], true
}

// Rebase swaps in a freshly derived view. The current photo keeps focus if
// it is still visible; otherwise the index is clamped into the new view. An
// empty view closes the viewer.
func (n *Navigator) Rebase(v []*domain.Photo) {
	if !n.open {
		return
	}
	if len(v) == 0 {
		n.Close()
		return
	}
	if n.index < len(n.view) {
		if idx := view.IndexOf(v, n.view[n.index].ID); idx >= 0 {
			n.view = v
			n.index = idx
			return
		}
	}
	n.view = v
	n.index = min(max(n.index, 0), len(v)-1)
}

// Current returns the photo on screen and its index.
func (n *Navigator) Current() (*domain.Photo, int, bool) {
	if !n.open || n.index < 0 || n.index >= len(n.view) {
		return nil, -1, false
	}
	return n.view[n.index], n.index, true
}

func (n *Navigator) Close() {
	n.view = nil
	n.index = 0
	n.open = false
}

func (n *Navigator) IsOpen() bool { return n.open }

// Len is the size of the view the index refers to.
func (n *Navigator) Len() int { return len(n.view) }
