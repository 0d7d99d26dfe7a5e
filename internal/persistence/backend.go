// Package persistence is the two-tier storage behind the photo collection: a
// per-record primary store and a whole-collection fallback blob. Which
// implementation serves the process is decided once, by Open.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vbonduro/gallery/internal/domain"
	"github.com/vbonduro/gallery/internal/metrics"
)

const (
	TierPrimary  = "primary"
	TierFallback = "fallback"
)

// PrimaryStore is the subset of store.PhotoStore the backend requires.
type PrimaryStore interface {
	List(ctx context.Context) ([]*domain.Photo, error)
	Put(ctx context.Context, p *domain.Photo) error
}

// FallbackStore persists the whole collection at once.
type FallbackStore interface {
	Load(ctx context.Context) ([]*domain.Photo, error)
	Save(ctx context.Context, photos []*domain.Photo) error
}

// Backend never fails hard. LoadAll degrades to whatever tier can be read,
// and Put reports only writes lost on every tier, wrapped in domain.ErrWrite.
type Backend interface {
	LoadAll(ctx context.Context) []*domain.Photo
	// Put persists p. collection must be the up-to-date in-memory collection
	// including p; it is what the fallback tier writes.
	Put(ctx context.Context, p *domain.Photo, collection []*domain.Photo) error
	// Tier names the preferred tier of this backend.
	Tier() string
}

// Opener connects to the primary store.
type Opener func(ctx context.Context) (PrimaryStore, error)

// Open performs the capability check. When the primary store cannot be
// opened the process continues on the fallback tier alone.
func Open(ctx context.Context, open Opener, fallback FallbackStore, logger *slog.Logger, m *metrics.Metrics) Backend {
	if open == nil {
		logger.Warn("primary store not configured, using fallback tier only", "error", domain.ErrBackendUnavailable)
		m.StorageOp(TierPrimary, "open", metrics.ResultError)
		return NewFallbackBackend(fallback, logger, m)
	}
	primary, err := open(ctx)
	if err != nil || primary == nil {
		logger.Warn("primary store unavailable, using fallback tier only",
			"error", fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err))
		m.StorageOp(TierPrimary, "open", metrics.ResultError)
		return NewFallbackBackend(fallback, logger, m)
	}
	m.StorageOp(TierPrimary, "open", metrics.ResultOK)
	return NewTieredBackend(primary, fallback, logger, m)
}

// TieredBackend prefers the primary store and falls back to the blob.
type TieredBackend struct {
	primary  PrimaryStore
	fallback FallbackStore
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewTieredBackend(primary PrimaryStore, fallback FallbackStore, logger *slog.Logger, m *metrics.Metrics) *TieredBackend {
	return &TieredBackend{primary: primary, fallback: fallback, logger: logger, metrics: m}
}

func (b *TieredBackend) Tier() string { return TierPrimary }

// LoadAll reads the primary store. An empty primary with a non-empty blob is
// a first run after the blob tier was in use: the blob is returned and copied
// into the primary store on a best-effort basis.
func (b *TieredBackend) LoadAll(ctx context.Context) []*domain.Photo {
	rows, err := b.primary.List(ctx)
	if err != nil {
		b.metrics.StorageOp(TierPrimary, "load", metrics.ResultError)
		b.logger.Warn("primary load failed, reading fallback blob", "error", err)
		return loadFallback(ctx, b.fallback, b.logger, b.metrics)
	}
	b.metrics.StorageOp(TierPrimary, "load", metrics.ResultOK)
	if len(rows) > 0 {
		return rows
	}

	legacy := loadFallback(ctx, b.fallback, b.logger, b.metrics)
	if len(legacy) == 0 {
		return rows
	}

	b.logger.Info("migrating fallback blob into primary store", "photos", len(legacy))
	migrated := 0
	for _, p := range legacy {
		if err := b.primary.Put(ctx, p); err != nil {
			b.metrics.StorageOp(TierPrimary, "migrate", metrics.ResultError)
			b.logger.Warn("failed to migrate photo", "id", p.ID, "error", err)
			continue
		}
		b.metrics.StorageOp(TierPrimary, "migrate", metrics.ResultOK)
		migrated++
	}
	b.logger.Info("fallback migration complete", "photos", len(legacy), "migrated", migrated)
	return legacy
}

func (b *TieredBackend) Put(ctx context.Context, p *domain.Photo, collection []*domain.Photo) error {
	perr := b.primary.Put(ctx, p)
	if perr == nil {
		b.metrics.StorageOp(TierPrimary, "put", metrics.ResultOK)
		return nil
	}
	b.metrics.StorageOp(TierPrimary, "put", metrics.ResultError)
	b.logger.Warn("primary put failed, writing fallback blob", "id", p.ID, "error", perr)

	if ferr := saveFallback(ctx, b.fallback, collection, b.metrics); ferr != nil {
		return fmt.Errorf("%w: %w", domain.ErrWrite, errors.Join(perr, ferr))
	}
	return nil
}

// FallbackBackend serves processes without a primary store.
type FallbackBackend struct {
	fallback FallbackStore
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewFallbackBackend(fallback FallbackStore, logger *slog.Logger, m *metrics.Metrics) *FallbackBackend {
	return &FallbackBackend{fallback: fallback, logger: logger, metrics: m}
}

func (b *FallbackBackend) Tier() string { return TierFallback }

func (b *FallbackBackend) LoadAll(ctx context.Context) []*domain.Photo {
	return loadFallback(ctx, b.fallback, b.logger, b.metrics)
}

func (b *FallbackBackend) Put(ctx context.Context, p *domain.Photo, collection []*domain.Photo) error {
	if err := saveFallback(ctx, b.fallback, collection, b.metrics); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrWrite, err)
	}
	return nil
}

func loadFallback(ctx context.Context, fallback FallbackStore, logger *slog.Logger, m *metrics.Metrics) []*domain.Photo {
	photos, err := fallback.Load(ctx)
	if err != nil {
		m.StorageOp(TierFallback, "load", metrics.ResultError)
		logger.Warn("fallback blob unreadable, starting empty", "error", err)
		return []*domain.Photo{}
	}
	m.StorageOp(TierFallback, "load", metrics.ResultOK)
	return photos
}

func saveFallback(ctx context.Context, fallback FallbackStore, collection []*domain.Photo, m *metrics.Metrics) error {
	if err := fallback.Save(ctx, collection); err != nil {
		m.StorageOp(TierFallback, "put", metrics.ResultError)
		return err
	}
	m.StorageOp(TierFallback, "put", metrics.ResultOK)
	return nil
}
