package videos

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidswitch/backend/internal/models"
)

// ErrNotFound is returned when a video id is not in the catalog.
var ErrNotFound = errors.New("video not found")

// Repository reads the immutable video catalog.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a videos repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns a catalog entry.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Video, error) {
	const q = `SELECT id, title, url, COALESCE(thumbnail, ''), duration_sec FROM videos WHERE id = $1`
	var v models.Video
	err := r.pool.QueryRow(ctx, q, id).Scan(&v.ID, &v.Title, &v.URL, &v.Thumbnail, &v.DurationSec)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

// List returns the full catalog.
func (r *Repository) List(ctx context.Context) ([]models.Video, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, title, url, COALESCE(thumbnail, ''), duration_sec FROM videos ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Video
	for rows.Next() {
		var v models.Video
		if err := rows.Scan(&v.ID, &v.Title, &v.URL, &v.Thumbnail, &v.DurationSec); err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, rows.Err()
}
