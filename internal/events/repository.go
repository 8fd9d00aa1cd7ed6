package events

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidswitch/backend/internal/models"
)

// NewEvent is one event to persist. OccurredAt is the client-side creation
// timestamp; zero means the server fills in receipt time.
type NewEvent struct {
	SessionID        uuid.UUID
	EventType        models.EventType
	Duration         *float64
	FromVideoID      *string
	ToVideoID        *string
	PlaybackPosition *float64
	OccurredAt       time.Time
}

// Filter narrows the researcher event listing.
type Filter struct {
	ParticipantDBID *uuid.UUID
	EventType       models.EventType
	From            *time.Time
	To              *time.Time
}

// Repository handles event persistence. Events are append-only.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an events repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CountOwnedSessions returns how many of the given session ids belong to
// participantID. Used to reject a whole batch when any session fails the
// ownership check.
func (r *Repository) CountOwnedSessions(ctx context.Context, sessionIDs []uuid.UUID, participantID uuid.UUID) (int, error) {
	const q = `SELECT COUNT(*) FROM sessions WHERE id = ANY($1) AND participant_id = $2`
	var n int
	err := r.pool.QueryRow(ctx, q, sessionIDs, participantID).Scan(&n)
	return n, err
}

// InsertBatch persists all events inside one transaction: either the whole
// batch lands or none of it does.
func (r *Repository) InsertBatch(ctx context.Context, batch []NewEvent) ([]models.Event, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const q = `INSERT INTO events (session_id, event_type, duration, from_video_id, to_video_id, playback_position, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, session_id, event_type, duration, from_video_id, to_video_id, playback_position, occurred_at`
	created := make([]models.Event, 0, len(batch))
	for _, ev := range batch {
		occurredAt := ev.OccurredAt
		if occurredAt.IsZero() {
			occurredAt = time.Now()
		}
		var e models.Event
		err := tx.QueryRow(ctx, q, ev.SessionID, ev.EventType, ev.Duration, ev.FromVideoID, ev.ToVideoID, ev.PlaybackPosition, occurredAt).
			Scan(&e.ID, &e.SessionID, &e.EventType, &e.Duration, &e.FromVideoID, &e.ToVideoID, &e.PlaybackPosition, &e.OccurredAt)
		if err != nil {
			return nil, err
		}
		created = append(created, e)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

// ListBySession returns a session's events in temporal order.
func (r *Repository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Event, error) {
	const q = `SELECT id, session_id, event_type, duration, from_video_id, to_video_id, playback_position, occurred_at
		FROM events WHERE session_id = $1 ORDER BY occurred_at ASC`
	rows, err := r.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Event
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.SessionID, &e.EventType, &e.Duration, &e.FromVideoID, &e.ToVideoID, &e.PlaybackPosition, &e.OccurredAt); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// ListAll returns events joined with session and participant data, newest
// first, optionally filtered (researcher view).
func (r *Repository) ListAll(ctx context.Context, f Filter) ([]models.EventRow, error) {
	q := `SELECT e.id, e.session_id, e.event_type, e.duration, e.from_video_id, e.to_video_id, e.playback_position, e.occurred_at,
		p.participant_id, p.condition, s.video_id, s.started_at, s.completed_at
		FROM events e
		JOIN sessions s ON s.id = e.session_id
		JOIN participants p ON p.id = s.participant_id
		WHERE 1=1`
	var args []interface{}
	if f.ParticipantDBID != nil {
		args = append(args, *f.ParticipantDBID)
		q += ` AND s.participant_id = $` + strconv.Itoa(len(args))
	}
	if f.EventType != "" {
		args = append(args, f.EventType)
		q += ` AND e.event_type = $` + strconv.Itoa(len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		q += ` AND e.occurred_at >= $` + strconv.Itoa(len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		q += ` AND e.occurred_at <= $` + strconv.Itoa(len(args))
	}
	q += ` ORDER BY e.occurred_at DESC`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEventRows(rows)
}

// ListAllAsc returns every event row in temporal order (for the events export).
func (r *Repository) ListAllAsc(ctx context.Context) ([]models.EventRow, error) {
	const q = `SELECT e.id, e.session_id, e.event_type, e.duration, e.from_video_id, e.to_video_id, e.playback_position, e.occurred_at,
		p.participant_id, p.condition, s.video_id, s.started_at, s.completed_at
		FROM events e
		JOIN sessions s ON s.id = e.session_id
		JOIN participants p ON p.id = s.participant_id
		ORDER BY e.occurred_at ASC`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEventRows(rows)
}

func scanEventRows(rows pgx.Rows) ([]models.EventRow, error) {
	var list []models.EventRow
	for rows.Next() {
		var e models.EventRow
		if err := rows.Scan(&e.ID, &e.SessionID, &e.EventType, &e.Duration, &e.FromVideoID, &e.ToVideoID, &e.PlaybackPosition, &e.OccurredAt,
			&e.ParticipantLabel, &e.Condition, &e.VideoID, &e.SessionStartedAt, &e.SessionCompleted); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}
