package gallery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/gallery/internal/domain"
	"github.com/vbonduro/gallery/internal/kvstore"
	"github.com/vbonduro/gallery/internal/persistence"
)

// recordingBackend captures every Put for inspection.
type recordingBackend struct {
	mu     sync.Mutex
	loaded []*domain.Photo
	puts   []*domain.Photo
	colls  [][]*domain.Photo
	ctxErr []error
	putErr error
}

func (b *recordingBackend) LoadAll(context.Context) []*domain.Photo { return b.loaded }

func (b *recordingBackend) Put(ctx context.Context, p *domain.Photo, collection []*domain.Photo) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ctxErr = append(b.ctxErr, ctx.Err())
	b.puts = append(b.puts, p)
	b.colls = append(b.colls, collection)
	return b.putErr
}

func (b *recordingBackend) Tier() string { return "test" }

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestAddAppliesDefaults(t *testing.T) {
	backend := &recordingBackend{}
	c := NewCollection(backend, slog.Default(), WithClock(fixedClock(1700000000000)))

	p := c.Add(context.Background(), domain.NewPhoto{Src: "data:image/png;base64,AA==", Title: "  ", Category: "bogus"})

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, domain.DefaultTitle, p.Title)
	assert.Equal(t, domain.DefaultAuthor, p.Author)
	assert.Equal(t, domain.CategoryUncategorized, p.Category)
	assert.Equal(t, "", p.Location)
	assert.Equal(t, int64(1700000000000), p.TS)
	assert.Zero(t, p.Likes)
	assert.False(t, p.Liked)
}

func TestAddKeepsProvidedFields(t *testing.T) {
	c := NewCollection(&recordingBackend{}, slog.Default())

	p := c.Add(context.Background(), domain.NewPhoto{
		Src: "data:x", Title: " Sunset ", Author: "Ari", Category: "nature", Location: " Bali ",
	})

	assert.Equal(t, "Sunset", p.Title)
	assert.Equal(t, "Ari", p.Author)
	assert.Equal(t, domain.CategoryNature, p.Category)
	assert.Equal(t, "Bali", p.Location)
}

func TestAddInsertsAtFrontAndPersistsWithCollection(t *testing.T) {
	backend := &recordingBackend{}
	c := NewCollection(backend, slog.Default())
	ctx := context.Background()

	first := c.Add(ctx, domain.NewPhoto{Title: "one"})
	second := c.Add(ctx, domain.NewPhoto{Title: "two"})

	snap := c.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, second.ID, snap[0].ID)
	assert.Equal(t, first.ID, snap[1].ID)

	require.Len(t, backend.puts, 2)
	assert.Equal(t, second.ID, backend.puts[1].ID)
	require.Len(t, backend.colls[1], 2, "fallback snapshot includes the new photo")
	assert.Equal(t, second.ID, backend.colls[1][0].ID)
}

func TestAddProducesUniqueIDs(t *testing.T) {
	c := NewCollection(&recordingBackend{}, slog.Default())
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		p := c.Add(ctx, domain.NewPhoto{})
		assert.False(t, seen[p.ID], "duplicate id %s", p.ID)
		seen[p.ID] = true
	}
}

func TestAddRegeneratesCollidingID(t *testing.T) {
	ids := []string{"dup", "dup", "", "fresh"}
	next := 0
	gen := func() string {
		id := ids[next]
		next++
		return id
	}
	c := NewCollection(&recordingBackend{}, slog.Default(), WithIDGenerator(gen))
	ctx := context.Background()

	first := c.Add(ctx, domain.NewPhoto{})
	second := c.Add(ctx, domain.NewPhoto{})

	assert.Equal(t, "dup", first.ID)
	assert.Equal(t, "fresh", second.ID)
}

func TestAddSurvivesWriteFailure(t *testing.T) {
	backend := &recordingBackend{putErr: fmt.Errorf("%w: disk full", domain.ErrWrite)}
	c := NewCollection(backend, slog.Default())

	p := c.Add(context.Background(), domain.NewPhoto{Title: "kept"})

	got, ok := c.Get(p.ID)
	require.True(t, ok)
	assert.Equal(t, "kept", got.Title)
}

func TestToggleLikeRoundTrip(t *testing.T) {
	c := NewCollection(&recordingBackend{}, slog.Default())
	ctx := context.Background()
	p := c.Add(ctx, domain.NewPhoto{})

	liked, ok := c.ToggleLike(ctx, p.ID)
	require.True(t, ok)
	assert.True(t, liked.Liked)
	assert.Equal(t, 1, liked.Likes)

	unliked, ok := c.ToggleLike(ctx, p.ID)
	require.True(t, ok)
	assert.False(t, unliked.Liked)
	assert.Equal(t, 0, unliked.Likes)
}

func TestToggleLikeFloorsAtZero(t *testing.T) {
	backend := &recordingBackend{loaded: []*domain.Photo{{ID: "p", Likes: 0, Liked: true}}}
	c := NewCollection(backend, slog.Default())
	ctx := context.Background()
	c.Load(ctx)

	got, ok := c.ToggleLike(ctx, "p")
	require.True(t, ok)
	assert.False(t, got.Liked)
	assert.Equal(t, 0, got.Likes)
}

func TestToggleLikeUnknownIDIsNoop(t *testing.T) {
	backend := &recordingBackend{}
	c := NewCollection(backend, slog.Default())

	got, ok := c.ToggleLike(context.Background(), "nope")
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.Empty(t, backend.puts)
}

func TestToggleLikePersistsMutatedRecord(t *testing.T) {
	backend := &recordingBackend{}
	c := NewCollection(backend, slog.Default())
	ctx := context.Background()
	p := c.Add(ctx, domain.NewPhoto{})

	_, ok := c.ToggleLike(ctx, p.ID)
	require.True(t, ok)

	require.Len(t, backend.puts, 2)
	assert.True(t, backend.puts[1].Liked)
	assert.Equal(t, 1, backend.puts[1].Likes)
	assert.True(t, backend.colls[1][0].Liked)
}

func TestSnapshotIsDetached(t *testing.T) {
	c := NewCollection(&recordingBackend{}, slog.Default())
	ctx := context.Background()
	p := c.Add(ctx, domain.NewPhoto{})

	snap := c.Snapshot()
	snap[0].Likes = 99
	snap[0].Title = "mutated"

	got, ok := c.Get(p.ID)
	require.True(t, ok)
	assert.Zero(t, got.Likes)
	assert.Equal(t, domain.DefaultTitle, got.Title)
}

func TestLoadSortsNewestFirstAndDropsDuplicates(t *testing.T) {
	backend := &recordingBackend{loaded: []*domain.Photo{
		{ID: "old", TS: 1},
		{ID: "new", TS: 3},
		nil,
		{ID: "mid", TS: 2, Likes: -4},
		{ID: "new", TS: 3},
		{ID: "", TS: 9},
	}}
	c := NewCollection(backend, slog.Default())

	n := c.Load(context.Background())
	assert.Equal(t, 3, n)

	snap := c.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{snap[0].ID, snap[1].ID, snap[2].ID})
	assert.Equal(t, 0, snap[1].Likes)
}

func TestStats(t *testing.T) {
	backend := &recordingBackend{loaded: []*domain.Photo{
		{ID: "a", Author: "Ari", Likes: 3},
		{ID: "b", Author: "Ari", Likes: 1},
		{ID: "c", Author: "Bo", Likes: 5},
	}}
	c := NewCollection(backend, slog.Default())
	c.Load(context.Background())

	assert.Equal(t, Stats{Photos: 3, Creators: 2, Likes: 9}, c.Stats())
}

func TestCollectionWithFallbackBackendSurvivesReload(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemory()
	backend := persistence.NewFallbackBackend(persistence.NewBlobStore(kv), slog.Default(), nil)

	c := NewCollection(backend, slog.Default())
	p := c.Add(ctx, domain.NewPhoto{Title: "persisted"})
	_, ok := c.ToggleLike(ctx, p.ID)
	require.True(t, ok)

	reloaded := NewCollection(backend, slog.Default())
	require.Equal(t, 1, reloaded.Load(ctx))
	got, ok := reloaded.Get(p.ID)
	require.True(t, ok)
	assert.Equal(t, "persisted", got.Title)
	assert.True(t, got.Liked)
	assert.Equal(t, 1, got.Likes)
}

func TestConcurrentMutationsStayConsistent(t *testing.T) {
	c := NewCollection(&recordingBackend{}, slog.Default())
	ctx := context.Background()
	p := c.Add(ctx, domain.NewPhoto{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.ToggleLike(ctx, p.ID)
		}()
		go func() {
			defer wg.Done()
			c.Add(ctx, domain.NewPhoto{})
		}()
	}
	wg.Wait()

	got, ok := c.Get(p.ID)
	require.True(t, ok)
	// 50 toggles: an even count returns to the starting state.
	assert.False(t, got.Liked)
	assert.Zero(t, got.Likes)
	assert.Equal(t, 51, c.Len())
}

var _ persistence.Backend = (*recordingBackend)(nil)

func TestPersistIgnoresCallerCancellation(t *testing.T) {
	backend := &recordingBackend{}
	c := NewCollection(backend, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := c.Add(ctx, domain.NewPhoto{Src: "data:image/png;base64,AA=="})
	_, ok := c.ToggleLike(ctx, p.ID)
	require.True(t, ok)

	require.Len(t, backend.ctxErr, 2)
	assert.NoError(t, backend.ctxErr[0])
	assert.NoError(t, backend.ctxErr[1])
}
