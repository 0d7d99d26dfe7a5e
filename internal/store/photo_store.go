package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vbonduro/gallery/internal/domain"
)

const photoColumns = `id, src, title, author, category, location, ts, likes, liked`

// PhotoStore is the primary storage tier: one row per photo keyed by id.
type PhotoStore struct {
	db *sql.DB
}

func NewPhotoStore(db *sql.DB) *PhotoStore {
	return &PhotoStore{db: db}
}

// Put inserts the photo or overwrites the row that already has its id.
func (s *PhotoStore) Put(ctx context.Context, p *domain.Photo) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO photos (`+photoColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			src = excluded.src,
			title = excluded.title,
			author = excluded.author,
			category = excluded.category,
			location = excluded.location,
			ts = excluded.ts,
			likes = excluded.likes,
			liked = excluded.liked
	`, p.ID, p.Src, p.Title, p.Author, p.Category, p.Location, p.TS, p.Likes, p.Liked)
	if err != nil {
		return fmt.Errorf("failed to put photo %s: %w", p.ID, err)
	}
	return nil
}

// List returns every stored photo, newest first.
func (s *PhotoStore) List(ctx context.Context) ([]*domain.Photo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+photoColumns+` FROM photos ORDER BY ts DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer func() { _ = rows.Close() }()

	photos := make([]*domain.Photo, 0)
	for rows.Next() {
		p := &domain.Photo{}
		if err := rows.Scan(&p.ID, &p.Src, &p.Title, &p.Author, &p.Category, &p.Location, &p.TS, &p.Likes, &p.Liked); err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate photos: %w", err)
	}

	return photos, nil
}

// Count reports the number of stored rows.
func (s *PhotoStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM photos`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count photos: %w", err)
	}
	return n, nil
}

// Close releases the underlying database.
func (s *PhotoStore) Close() error {
	return s.db.Close()
}
