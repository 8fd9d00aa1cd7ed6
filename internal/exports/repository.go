package exports

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidswitch/backend/internal/models"
)

// ErrNotFound is returned when an export job does not exist.
var ErrNotFound = errors.New("export job not found")

// Repository handles export job persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an exports repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a queued export job.
func (r *Repository) Create(ctx context.Context, exportType string, requestedBy uuid.UUID) (*models.ExportJob, error) {
	const q = `INSERT INTO export_jobs (export_type, requested_by) VALUES ($1, $2)
		RETURNING id, export_type, status, COALESCE(s3_key, ''), COALESCE(error, ''), requested_by, created_at, completed_at`
	var j models.ExportJob
	err := r.pool.QueryRow(ctx, q, exportType, requestedBy).
		Scan(&j.ID, &j.ExportType, &j.Status, &j.S3Key, &j.Error, &j.RequestedBy, &j.CreatedAt, &j.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// GetByID returns an export job.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.ExportJob, error) {
	const q = `SELECT id, export_type, status, COALESCE(s3_key, ''), COALESCE(error, ''), requested_by, created_at, completed_at
		FROM export_jobs WHERE id = $1`
	var j models.ExportJob
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&j.ID, &j.ExportType, &j.Status, &j.S3Key, &j.Error, &j.RequestedBy, &j.CreatedAt, &j.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &j, nil
}

// List returns all export jobs, newest first.
func (r *Repository) List(ctx context.Context) ([]models.ExportJob, error) {
	const q = `SELECT id, export_type, status, COALESCE(s3_key, ''), COALESCE(error, ''), requested_by, created_at, completed_at
		FROM export_jobs ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ExportJob
	for rows.Next() {
		var j models.ExportJob
		if err := rows.Scan(&j.ID, &j.ExportType, &j.Status, &j.S3Key, &j.Error, &j.RequestedBy, &j.CreatedAt, &j.CompletedAt); err != nil {
			return nil, err
		}
		list = append(list, j)
	}
	return list, rows.Err()
}

// MarkProcessing sets the job to processing.
func (r *Repository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE export_jobs SET status = $1 WHERE id = $2`, models.ExportStatusProcessing, id)
	return err
}

// MarkCompleted records the S3 key and terminal success state.
func (r *Repository) MarkCompleted(ctx context.Context, id uuid.UUID, s3Key string) error {
	const q = `UPDATE export_jobs SET status = $1, s3_key = $2, completed_at = NOW() WHERE id = $3`
	_, err := r.pool.Exec(ctx, q, models.ExportStatusCompleted, s3Key, id)
	return err
}

// MarkFailed records the terminal failure state.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	const q = `UPDATE export_jobs SET status = $1, error = $2, completed_at = NOW() WHERE id = $3`
	_, err := r.pool.Exec(ctx, q, models.ExportStatusFailed, reason, id)
	return err
}
