package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidswitch/backend/internal/models"
)

// ErrDuplicate is returned when the email is already registered.
var ErrDuplicate = errors.New("email already registered")

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Repository handles researcher persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns a researcher by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Researcher, error) {
	const q = `SELECT id, email, password_hash, full_name, created_at FROM researchers WHERE id = $1`
	var res models.Researcher
	err := r.pool.QueryRow(ctx, q, id).Scan(&res.ID, &res.Email, &res.Password, &res.FullName, &res.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// GetByEmail returns a researcher by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.Researcher, error) {
	const q = `SELECT id, email, password_hash, full_name, created_at FROM researchers WHERE email = $1`
	var res models.Researcher
	err := r.pool.QueryRow(ctx, q, email).Scan(&res.ID, &res.Email, &res.Password, &res.FullName, &res.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Create inserts a new researcher.
func (r *Repository) Create(ctx context.Context, email, passwordHash, fullName string) (*models.Researcher, error) {
	const q = `INSERT INTO researchers (email, password_hash, full_name) VALUES ($1, $2, $3)
		RETURNING id, email, password_hash, full_name, created_at`
	var res models.Researcher
	err := r.pool.QueryRow(ctx, q, email, passwordHash, fullName).
		Scan(&res.ID, &res.Email, &res.Password, &res.FullName, &res.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return &res, nil
}
