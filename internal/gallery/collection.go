// Package gallery holds the authoritative in-memory photo collection. Add and
// ToggleLike are the only mutation points; every other caller sees copies.
package gallery

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vbonduro/gallery/internal/domain"
	"github.com/vbonduro/gallery/internal/persistence"
)

type Collection struct {
	mu      sync.Mutex
	photos  []*domain.Photo
	backend persistence.Backend
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

type Option func(*Collection)

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Collection) { c.now = now }
}

// WithIDGenerator overrides photo id generation.
func WithIDGenerator(newID func() string) Option {
	return func(c *Collection) { c.newID = newID }
}

func NewCollection(backend persistence.Backend, logger *slog.Logger, opts ...Option) *Collection {
	c := &Collection{
		photos:  []*domain.Photo{},
		backend: backend,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load replaces the in-memory collection with the backend contents, newest
// first.
func (c *Collection) Load(ctx context.Context) int {
	rows := c.backend.LoadAll(ctx)
	photos := make([]*domain.Photo, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, p := range rows {
		if p == nil || p.ID == "" || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		if p.Likes < 0 {
			p.Likes = 0
		}
		photos = append(photos, p.Clone())
	}
	sort.SliceStable(photos, func(i, j int) bool { return photos[i].TS > photos[j].TS })

	c.mu.Lock()
	c.photos = photos
	c.mu.Unlock()

	c.logger.Info("photos loaded", "count", len(photos), "tier", c.backend.Tier())
	return len(photos)
}

// Add creates a photo from in, inserts it at the front and persists it.
// A failed write is logged; the photo stays in memory for the session.
func (c *Collection) Add(ctx context.Context, in domain.NewPhoto) *domain.Photo {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := &domain.Photo{
		ID:       c.uniqueID(),
		Src:      in.Src,
		Title:    orDefault(in.Title, domain.DefaultTitle),
		Author:   orDefault(in.Author, domain.DefaultAuthor),
		Category: domain.NormalizeCategory(in.Category),
		Location: strings.TrimSpace(in.Location),
		TS:       c.now().UnixMilli(),
		Likes:    0,
		Liked:    false,
	}
	c.photos = append([]*domain.Photo{p}, c.photos...)
	c.persist(ctx, p)

	c.logger.Info("photo added", "id", p.ID, "category", p.Category)
	return p.Clone()
}

// ToggleLike flips the liked flag of the photo with id and moves likes by one
// in the same direction, never below zero. An unknown id is a no-op and
// reports false.
func (c *Collection) ToggleLike(ctx context.Context, id string) (*domain.Photo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.find(id)
	if p == nil {
		c.logger.Debug("like toggle for unknown photo ignored", "id", id)
		return nil, false
	}
	p.Liked = !p.Liked
	if p.Liked {
		p.Likes++
	} else {
		p.Likes = max(0, p.Likes-1)
	}
	c.persist(ctx, p)

	return p.Clone(), true
}

// Get returns a copy of the photo with id.
func (c *Collection) Get(id string) (*domain.Photo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.find(id)
	if p == nil {
		return nil, false
	}
	return p.Clone(), true
}

// Snapshot returns copies of every photo in in-memory order.
func (c *Collection) Snapshot() []*domain.Photo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.photos)
}

// Stats summarizes the collection for the gallery header.
type Stats struct {
	Photos   int `json:"photos"`
	Creators int `json:"creators"`
	Likes    int `json:"likes"`
}

func (c *Collection) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	authors := make(map[string]struct{}, len(c.photos))
	s := Stats{Photos: len(c.photos)}
	for _, p := range c.photos {
		authors[p.Author] = struct{}{}
		s.Likes += p.Likes
	}
	s.Creators = len(authors)
	return s
}

// persist must be called with mu held so writes reach the backend in
// mutation order and the fallback sees the collection that produced them.
// The in-memory mutation has already happened, so the write ignores
// cancellation of ctx.
func (c *Collection) persist(ctx context.Context, p *domain.Photo) {
	if err := c.backend.Put(context.WithoutCancel(ctx), p.Clone(), c.snapshotLocked()); err != nil {
		c.logger.Error("photo not persisted, kept for this session only", "id", p.ID, "error", err)
	}
}

func (c *Collection) snapshotLocked() []*domain.Photo {
	out := make([]*domain.Photo, len(c.photos))
	for i, p := range c.photos {
		out[i] = p.Clone()
	}
	return out
}

func (c *Collection) find(id string) *domain.Photo {
	for _, p := range c.photos {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (c *Collection) uniqueID() string {
	for {
		id := c.newID()
		if id != "" && c.find(id) == nil {
			return id
		}
	}
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}
