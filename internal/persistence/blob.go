package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vbonduro/gallery/internal/domain"
	"github.com/vbonduro/gallery/internal/kvstore"
)

// BlobKey is the fixed key the whole collection is serialized under.
const BlobKey = "bfl_photos"

// BlobStore keeps the entire collection as one JSON array in a kvstore.Store.
type BlobStore struct {
	kv  kvstore.Store
	key string
}

func NewBlobStore(kv kvstore.Store) *BlobStore {
	return &BlobStore{kv: kv, key: BlobKey}
}

// Load returns the stored collection, or an empty one when nothing has been
// saved yet.
func (b *BlobStore) Load(ctx context.Context) ([]*domain.Photo, error) {
	data, err := b.kv.Get(ctx, b.key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return []*domain.Photo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read fallback blob: %w", err)
	}
	if len(data) == 0 {
		return []*domain.Photo{}, nil
	}

	var photos []*domain.Photo
	if err := json.Unmarshal(data, &photos); err != nil {
		return nil, fmt.Errorf("failed to decode fallback blob: %w", err)
	}
	out := make([]*domain.Photo, 0, len(photos))
	for _, p := range photos {
		if p != nil {
			out = append(out, p)
		}
	}
	return out, nil
}

// Save overwrites the stored collection with photos.
func (b *BlobStore) Save(ctx context.Context, photos []*domain.Photo) error {
	if photos == nil {
		photos = []*domain.Photo{}
	}
	data, err := json.Marshal(photos)
	if err != nil {
		return fmt.Errorf("failed to encode fallback blob: %w", err)
	}
	if err := b.kv.Set(ctx, b.key, data); err != nil {
		return fmt.Errorf("failed to write fallback blob: %w", err)
	}
	return nil
}
