package service

import (
	"context"
	"log/slog"

	"github.com/vbonduro/gallery/internal/db"
	"github.com/vbonduro/gallery/internal/gallery"
	"github.com/vbonduro/gallery/internal/kvstore"
	"github.com/vbonduro/gallery/internal/kvstore/local"
	"github.com/vbonduro/gallery/internal/metrics"
	"github.com/vbonduro/gallery/internal/persistence"
	"github.com/vbonduro/gallery/internal/store"
)

// BootstrapConfig locates the two storage tiers. An empty DBPath disables
// the primary tier; an unusable DataDir leaves the fallback tier in memory.
type BootstrapConfig struct {
	DBPath  string
	DataDir string
}

// Bootstrap opens storage, loads the collection (migrating the fallback blob
// into an empty primary store) and returns the ready service. Storage
// failures degrade to the next tier and never abort startup. The returned
// cleanup closes the primary store.
func Bootstrap(ctx context.Context, cfg BootstrapConfig, n Notifier, m *metrics.Metrics, logger *slog.Logger) (*GalleryService, func()) {
	kv := openFallbackKV(cfg.DataDir, logger)

	primary := &primaryHandle{path: cfg.DBPath}
	var opener persistence.Opener
	if cfg.DBPath != "" {
		opener = primary.open
	}
	backend := persistence.Open(ctx, opener, persistence.NewBlobStore(kv), logger, m)

	collection := gallery.NewCollection(backend, logger)
	collection.Load(ctx)

	svc := NewGalleryService(collection, n, m, logger)
	svc.tier = backend.Tier()

	logger.Info("gallery ready", "tier", svc.tier, "photos", collection.Len(), "primary_rows", primary.rows(ctx, logger))
	return svc, func() {
		if err := primary.close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}
}

func openFallbackKV(dir string, logger *slog.Logger) kvstore.Store {
	if dir == "" {
		logger.Warn("no data directory configured, fallback tier kept in memory for this session")
		return kvstore.NewMemory()
	}
	kv, err := local.NewLocalStore(dir)
	if err != nil {
		logger.Warn("data directory unusable, fallback tier kept in memory for this session", "dir", dir, "error", err)
		return kvstore.NewMemory()
	}
	return kv
}

// primaryHandle remembers the opened store so Bootstrap's cleanup can close it.
type primaryHandle struct {
	path  string
	store *store.PhotoStore
}

func (h *primaryHandle) open(ctx context.Context) (persistence.PrimaryStore, error) {
	d, err := db.Open(h.path)
	if err != nil {
		return nil, err
	}
	h.store = store.NewPhotoStore(d)
	return h.store, nil
}

// rows counts the primary store, or returns -1 when it is not open.
func (h *primaryHandle) rows(ctx context.Context, logger *slog.Logger) int {
	if h.store == nil {
		return -1
	}
	n, err := h.store.Count(ctx)
	if err != nil {
		logger.Warn("failed to count primary rows", "error", err)
		return -1
	}
	return n
}

func (h *primaryHandle) close() error {
	if h.store == nil {
		return nil
	}
	return h.store.Close()
}
