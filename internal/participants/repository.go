package participants

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidswitch/backend/internal/models"
)

// ErrNotFound is returned when no participant matches the lookup.
var ErrNotFound = errors.New("participant not found")

// ErrDuplicate is returned when the participant id is already taken.
var ErrDuplicate = errors.New("participant id already exists")

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Repository handles participant persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a participants repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new participant.
func (r *Repository) Create(ctx context.Context, participantID string, condition models.Condition) (*models.Participant, error) {
	const q = `INSERT INTO participants (participant_id, condition) VALUES ($1, $2)
		RETURNING id, participant_id, condition, created_at`
	var p models.Participant
	err := r.pool.QueryRow(ctx, q, participantID, condition).
		Scan(&p.ID, &p.ParticipantID, &p.Condition, &p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return &p, nil
}

// GetByID returns a participant by database id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	const q = `SELECT id, participant_id, condition, created_at FROM participants WHERE id = $1`
	var p models.Participant
	err := r.pool.QueryRow(ctx, q, id).Scan(&p.ID, &p.ParticipantID, &p.Condition, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetByParticipantID returns a participant by the researcher-assigned label (e.g. "P001").
func (r *Repository) GetByParticipantID(ctx context.Context, participantID string) (*models.Participant, error) {
	const q = `SELECT id, participant_id, condition, created_at FROM participants WHERE participant_id = $1`
	var p models.Participant
	err := r.pool.QueryRow(ctx, q, participantID).Scan(&p.ID, &p.ParticipantID, &p.Condition, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// List returns all participants with their session counts, newest first.
func (r *Repository) List(ctx context.Context) ([]models.ParticipantSummary, error) {
	const q = `SELECT p.id, p.participant_id, p.condition, p.created_at, COUNT(s.id)
		FROM participants p
		LEFT JOIN sessions s ON s.participant_id = p.id
		GROUP BY p.id
		ORDER BY p.created_at DESC`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ParticipantSummary
	for rows.Next() {
		var p models.ParticipantSummary
		if err := rows.Scan(&p.ID, &p.ParticipantID, &p.Condition, &p.CreatedAt, &p.SessionCount); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}
