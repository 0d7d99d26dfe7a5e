package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/vbonduro/gallery/internal/domain"
	"github.com/vbonduro/gallery/internal/gallery"
	"github.com/vbonduro/gallery/internal/imagecodec"
	"github.com/vbonduro/gallery/internal/lightbox"
	"github.com/vbonduro/gallery/internal/metrics"
	"github.com/vbonduro/gallery/internal/realtime"
	"github.com/vbonduro/gallery/internal/view"
)

// Notifier is the subset of realtime.Hub that GalleryService requires.
type Notifier interface {
	Broadcast(event realtime.Event)
}

// ViewState is the ephemeral, unpersisted presentation state.
type ViewState struct {
	Filter string          `json:"filter"`
	Sort   domain.SortMode `json:"sort"`
	View   domain.ViewMode `json:"view"`
	Search string          `json:"search"`
}

func defaultViewState() ViewState {
	return ViewState{
		Filter: domain.CategoryAll,
		Sort:   domain.SortNewest,
		View:   domain.ViewGrid,
	}
}

func (v ViewState) criteria() view.Criteria {
	return view.Criteria{Category: v.Filter, Sort: v.Sort, Search: v.Search}
}

// LightboxState describes the viewer for renderers.
type LightboxState struct {
	Open  bool          `json:"open"`
	Index int           `json:"index"`
	Total int           `json:"total"`
	Photo *domain.Photo `json:"photo,omitempty"`
}

// SubmitForm holds the text fields of an upload form.
type SubmitForm struct {
	Title    string
	Author   string
	Category string
	Location string
}

// Upload is the image part of a submit.
type Upload struct {
	MimeType string
	Size     int64
	Body     io.Reader
}

// GalleryService owns the photo collection, the view state and the lightbox
// position. Renderers call it and redraw from DerivedView.
type GalleryService struct {
	collection *gallery.Collection
	notifier   Notifier
	metrics    *metrics.Metrics
	logger     *slog.Logger

	mu       sync.Mutex
	state    ViewState
	lightbox *lightbox.Navigator
	tier     string
}

func NewGalleryService(collection *gallery.Collection, n Notifier, m *metrics.Metrics, logger *slog.Logger) *GalleryService {
	return &GalleryService{
		collection: collection,
		notifier:   n,
		metrics:    m,
		logger:     logger,
		state:      defaultViewState(),
		lightbox:   lightbox.New(),
	}
}

// DerivedView returns the photos the user currently sees, in display order.
func (s *GalleryService) DerivedView() []*domain.Photo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deriveLocked()
}

// Query derives a view for explicit criteria without touching the view state.
func (s *GalleryService) Query(c view.Criteria) []*domain.Photo {
	return view.Derive(s.collection.Snapshot(), c)
}

func (s *GalleryService) Get(id string) (*domain.Photo, error) {
	p, ok := s.collection.Get(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

// Submit validates and encodes the upload, then adds it to the collection.
// Validation and read failures leave the collection untouched. Once started,
// a submit is not cancelled by ctx.
func (s *GalleryService) Submit(ctx context.Context, form SubmitForm, up Upload) (*domain.Photo, error) {
	ctx = context.WithoutCancel(ctx)
	if err := imagecodec.Validate(up.MimeType, up.Size); err != nil {
		s.metrics.Upload("rejected")
		s.logger.Info("upload rejected", "mime_type", up.MimeType, "bytes", up.Size, "error", err)
		return nil, err
	}
	if up.Body == nil {
		s.metrics.Upload("read_error")
		return nil, fmt.Errorf("%w: no image data", domain.ErrRead)
	}

	src, err := imagecodec.Encode(ctx, up.Body, up.MimeType)
	if err != nil {
		s.metrics.Upload("read_error")
		s.logger.Error("upload read failed", "mime_type", up.MimeType, "error", err)
		return nil, err
	}

	p := s.collection.Add(ctx, domain.NewPhoto{
		Src:      src,
		Title:    form.Title,
		Author:   form.Author,
		Category: form.Category,
		Location: form.Location,
	})
	s.metrics.Upload("created")

	s.mu.Lock()
	s.rebaseLocked()
	s.mu.Unlock()

	s.notify(realtime.Event{Type: realtime.EventPhotoCreated, PhotoID: p.ID})
	return p, nil
}

// ToggleLike flips the like of id. Unknown ids report false and change
// nothing. Like Submit, it ignores cancellation of ctx.
func (s *GalleryService) ToggleLike(ctx context.Context, id string) (*domain.Photo, bool) {
	ctx = context.WithoutCancel(ctx)
	p, ok := s.collection.ToggleLike(ctx, id)
	if !ok {
		return nil, false
	}
	s.metrics.LikeToggled()

	s.mu.Lock()
	s.rebaseLocked()
	s.mu.Unlock()

	s.notify(realtime.Event{
		Type:    realtime.EventPhotoLiked,
		PhotoID: p.ID,
		Data:    map[string]any{"likes": p.Likes, "liked": p.Liked},
	})
	return p, true
}

func (s *GalleryService) SetFilter(filter string) error {
	f, err := domain.ParseFilter(filter)
	if err != nil {
		return err
	}
	return s.updateState(func(st *ViewState) { st.Filter = f })
}

func (s *GalleryService) SetSort(mode string) error {
	m, err := domain.ParseSortMode(mode)
	if err != nil {
		return err
	}
	return s.updateState(func(st *ViewState) { st.Sort = m })
}

func (s *GalleryService) SetView(mode string) error {
	m, err := domain.ParseViewMode(mode)
	if err != nil {
		return err
	}
	return s.updateState(func(st *ViewState) { st.View = m })
}

func (s *GalleryService) SetSearch(query string) error {
	return s.updateState(func(st *ViewState) { st.Search = query })
}

// StateUpdate carries an optional change for each view-state field.
type StateUpdate struct {
	Filter *string `json:"filter,omitempty"`
	Sort   *string `json:"sort,omitempty"`
	View   *string `json:"view,omitempty"`
	Search *string `json:"search,omitempty"`
}

// ApplyState validates every field of u before applying any of them.
func (s *GalleryService) ApplyState(u StateUpdate) (ViewState, error) {
	var (
		next ViewState
		errs []error
	)
	s.mu.Lock()
	next = s.state
	s.mu.Unlock()

	if u.Filter != nil {
		f, err := domain.ParseFilter(*u.Filter)
		errs = append(errs, err)
		next.Filter = f
	}
	if u.Sort != nil {
		m, err := domain.ParseSortMode(*u.Sort)
		errs = append(errs, err)
		next.Sort = m
	}
	if u.View != nil {
		m, err := domain.ParseViewMode(*u.View)
		errs = append(errs, err)
		next.View = m
	}
	if u.Search != nil {
		next.Search = *u.Search
	}
	if err := errors.Join(errs...); err != nil {
		return s.State(), err
	}

	err := s.updateState(func(st *ViewState) {
		if u.Filter != nil {
			st.Filter = next.Filter
		}
		if u.Sort != nil {
			st.Sort = next.Sort
		}
		if u.View != nil {
			st.View = next.View
		}
		if u.Search != nil {
			st.Search = next.Search
		}
	})
	return s.State(), err
}

func (s *GalleryService) State() ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OpenLightboxAt opens the viewer on id within the current derived view.
func (s *GalleryService) OpenLightboxAt(id string) (LightboxState, bool) {
	s.mu.Lock()
	ok := s.lightbox.Open(s.deriveLocked(), id)
	st := s.lightboxStateLocked()
	s.mu.Unlock()

	if ok {
		s.notifyLightbox(st)
	}
	return st, ok
}

// NavigateLightbox moves the viewer one step in the sign of dir with
// wraparound. It reports false when the viewer is closed or the view empty.
func (s *GalleryService) NavigateLightbox(dir int) (LightboxState, bool) {
	s.mu.Lock()
	_, ok := s.lightbox.Navigate(dir)
	st := s.lightboxStateLocked()
	s.mu.Unlock()

	if ok {
		s.notifyLightbox(st)
	}
	return st, ok
}

func (s *GalleryService) CloseLightbox() {
	s.mu.Lock()
	s.lightbox.Close()
	st := s.lightboxStateLocked()
	s.mu.Unlock()

	s.notifyLightbox(st)
}

func (s *GalleryService) Lightbox() LightboxState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lightboxStateLocked()
}

func (s *GalleryService) Stats() gallery.Stats {
	return s.collection.Stats()
}

// Tier names the storage tier serving the collection.
func (s *GalleryService) Tier() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tier
}

func (s *GalleryService) updateState(apply func(*ViewState)) error {
	s.mu.Lock()
	apply(&s.state)
	st := s.state
	s.rebaseLocked()
	s.mu.Unlock()

	s.notify(realtime.Event{
		Type: realtime.EventViewChanged,
		Data: map[string]any{
			"filter": st.Filter,
			"sort":   st.Sort,
			"view":   st.View,
			"search": st.Search,
		},
	})
	return nil
}

// rebaseLocked re-validates the lightbox index against a fresh derivation.
// It must run after every change to the collection or the view state.
func (s *GalleryService) rebaseLocked() {
	if s.lightbox.IsOpen() {
		s.lightbox.Rebase(s.deriveLocked())
	}
}

func (s *GalleryService) deriveLocked() []*domain.Photo {
	return view.Derive(s.collection.Snapshot(), s.state.criteria())
}

func (s *GalleryService) lightboxStateLocked() LightboxState {
	p, idx, ok := s.lightbox.Current()
	if !ok {
		return LightboxState{Index: -1}
	}
	return LightboxState{Open: true, Index: idx, Total: s.lightbox.Len(), Photo: p}
}

func (s *GalleryService) notifyLightbox(st LightboxState) {
	ev := realtime.Event{
		Type: realtime.EventLightboxChanged,
		Data: map[string]any{"open": st.Open, "index": st.Index, "total": st.Total},
	}
	if st.Photo != nil {
		ev.PhotoID = st.Photo.ID
	}
	s.notify(ev)
}

func (s *GalleryService) notify(ev realtime.Event) {
	if s.notifier == nil {
		return
	}
	s.notifier.Broadcast(ev)
}
