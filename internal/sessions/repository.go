package sessions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidswitch/backend/internal/models"
)

var (
	// ErrNotFound is returned when the session does not exist or is owned by
	// a different participant. The two cases are deliberately
	// indistinguishable to callers.
	ErrNotFound = errors.New("session not found")
	// ErrAlreadyCompleted is returned when completing a session a second time.
	ErrAlreadyCompleted = errors.New("session already completed")
)

// Repository handles session persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a sessions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create opens a session for one participant and one video, snapshotting the
// participant's condition at open time.
func (r *Repository) Create(ctx context.Context, participantID uuid.UUID, videoID string, condition models.Condition) (*models.Session, error) {
	const q = `INSERT INTO sessions (participant_id, video_id, condition) VALUES ($1, $2, $3)
		RETURNING id, participant_id, video_id, condition, started_at, completed_at`
	var s models.Session
	err := r.pool.QueryRow(ctx, q, participantID, videoID, condition).
		Scan(&s.ID, &s.ParticipantID, &s.VideoID, &s.Condition, &s.StartedAt, &s.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetOwned returns a session only if it belongs to participantID.
func (r *Repository) GetOwned(ctx context.Context, id, participantID uuid.UUID) (*models.Session, error) {
	const q = `SELECT id, participant_id, video_id, condition, started_at, completed_at
		FROM sessions WHERE id = $1 AND participant_id = $2`
	var s models.Session
	err := r.pool.QueryRow(ctx, q, id, participantID).
		Scan(&s.ID, &s.ParticipantID, &s.VideoID, &s.Condition, &s.StartedAt, &s.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Complete marks a session completed exactly once. The conditional UPDATE
// serializes concurrent attempts at the storage layer: the loser of a race
// matches zero rows and gets ErrAlreadyCompleted, leaving the original
// completion timestamp untouched.
func (r *Repository) Complete(ctx context.Context, id, participantID uuid.UUID) (*models.Session, error) {
	const q = `UPDATE sessions SET completed_at = NOW()
		WHERE id = $1 AND participant_id = $2 AND completed_at IS NULL
		RETURNING id, participant_id, video_id, condition, started_at, completed_at`
	var s models.Session
	err := r.pool.QueryRow(ctx, q, id, participantID).
		Scan(&s.ID, &s.ParticipantID, &s.VideoID, &s.Condition, &s.StartedAt, &s.CompletedAt)
	if err == nil {
		return &s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	// Distinguish "already completed" from "not yours / not there".
	if _, getErr := r.GetOwned(ctx, id, participantID); getErr != nil {
		return nil, getErr
	}
	return nil, ErrAlreadyCompleted
}

// ListByParticipant returns one participant's sessions with event counts, newest first.
func (r *Repository) ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]models.SessionSummary, error) {
	const q = `SELECT s.id, s.participant_id, s.video_id, s.condition, s.started_at, s.completed_at, p.participant_id, COUNT(e.id)
		FROM sessions s
		JOIN participants p ON p.id = s.participant_id
		LEFT JOIN events e ON e.session_id = s.id
		WHERE s.participant_id = $1
		GROUP BY s.id, p.participant_id
		ORDER BY s.started_at DESC`
	return r.querySummaries(ctx, q, participantID)
}

// ListAll returns every session with event counts, newest first (researcher view).
func (r *Repository) ListAll(ctx context.Context) ([]models.SessionSummary, error) {
	const q = `SELECT s.id, s.participant_id, s.video_id, s.condition, s.started_at, s.completed_at, p.participant_id, COUNT(e.id)
		FROM sessions s
		JOIN participants p ON p.id = s.participant_id
		LEFT JOIN events e ON e.session_id = s.id
		GROUP BY s.id, p.participant_id
		ORDER BY s.started_at DESC`
	return r.querySummaries(ctx, q)
}

func (r *Repository) querySummaries(ctx context.Context, q string, args ...interface{}) ([]models.SessionSummary, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.SessionSummary
	for rows.Next() {
		var s models.SessionSummary
		if err := rows.Scan(&s.ID, &s.ParticipantID, &s.VideoID, &s.Condition, &s.StartedAt, &s.CompletedAt, &s.ParticipantLabel, &s.EventCount); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}
