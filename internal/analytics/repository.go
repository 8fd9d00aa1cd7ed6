package analytics

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidswitch/backend/internal/models"
)

// Overview holds study-wide counts.
type Overview struct {
	TotalParticipants int                     `json:"total_participants"`
	TotalSessions     int                     `json:"total_sessions"`
	TotalEvents       int                     `json:"total_events"`
	ByCondition       map[models.Condition]int `json:"by_condition"`
}

// PauseStats aggregates pause events that carry a duration.
type PauseStats struct {
	TotalCount      int     `json:"total_count"`
	TotalDuration   float64 `json:"total_duration"`
	AverageDuration float64 `json:"average_duration"`
}

// SessionStats holds completion figures.
type SessionStats struct {
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	CompletionRate float64 `json:"completion_rate"`
}

// Stats is the full study-wide statistics payload. Everything here is a pure
// read-time reduction over the event/session log; duplicate deliveries from
// the at-least-once telemetry pipeline inflate counts by a bounded, accepted
// amount.
type Stats struct {
	Overview      Overview                 `json:"overview"`
	EventsByType  map[models.EventType]int `json:"events_by_type"`
	TotalSwitches int                      `json:"total_switches"`
	Pauses        PauseStats               `json:"pauses"`
	Sessions      SessionStats             `json:"sessions"`
}

// ParticipantStats is the per-participant slice of Stats.
type ParticipantStats struct {
	Participant models.Participant `json:"participant"`
	Sessions    SessionStats       `json:"sessions"`
	TotalEvents int                `json:"total_events"`
	Pauses      PauseStats         `json:"pauses"`
	Switches    int                `json:"switches"`
}

// Repository computes aggregates over the persisted log.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an analytics repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Stats computes the study-wide statistics on demand.
func (r *Repository) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		Overview:     Overview{ByCondition: make(map[models.Condition]int)},
		EventsByType: make(map[models.EventType]int),
	}

	const countsQ = `SELECT
		(SELECT COUNT(*) FROM participants),
		(SELECT COUNT(*) FROM sessions),
		(SELECT COUNT(*) FROM events),
		(SELECT COUNT(*) FROM sessions WHERE completed_at IS NOT NULL)`
	if err := r.pool.QueryRow(ctx, countsQ).Scan(
		&stats.Overview.TotalParticipants,
		&stats.Overview.TotalSessions,
		&stats.Overview.TotalEvents,
		&stats.Sessions.Completed,
	); err != nil {
		return nil, err
	}
	stats.Sessions.Total = stats.Overview.TotalSessions
	if stats.Sessions.Total > 0 {
		stats.Sessions.CompletionRate = float64(stats.Sessions.Completed) / float64(stats.Sessions.Total) * 100
	}

	condRows, err := r.pool.Query(ctx, `SELECT condition, COUNT(*) FROM participants GROUP BY condition`)
	if err != nil {
		return nil, err
	}
	defer condRows.Close()
	for condRows.Next() {
		var c models.Condition
		var n int
		if err := condRows.Scan(&c, &n); err != nil {
			return nil, err
		}
		stats.Overview.ByCondition[c] = n
	}
	if err := condRows.Err(); err != nil {
		return nil, err
	}

	typeRows, err := r.pool.Query(ctx, `SELECT event_type, COUNT(*) FROM events GROUP BY event_type`)
	if err != nil {
		return nil, err
	}
	defer typeRows.Close()
	for typeRows.Next() {
		var t models.EventType
		var n int
		if err := typeRows.Scan(&t, &n); err != nil {
			return nil, err
		}
		stats.EventsByType[t] = n
	}
	if err := typeRows.Err(); err != nil {
		return nil, err
	}
	stats.TotalSwitches = stats.EventsByType[models.EventSwitch]

	pauses, err := r.pauseStats(ctx, nil)
	if err != nil {
		return nil, err
	}
	stats.Pauses = *pauses

	return stats, nil
}

// ParticipantStats computes one participant's statistics.
func (r *Repository) ParticipantStats(ctx context.Context, p *models.Participant) (*ParticipantStats, error) {
	out := &ParticipantStats{Participant: *p}

	const q = `SELECT
		(SELECT COUNT(*) FROM sessions WHERE participant_id = $1),
		(SELECT COUNT(*) FROM sessions WHERE participant_id = $1 AND completed_at IS NOT NULL),
		(SELECT COUNT(*) FROM events e JOIN sessions s ON s.id = e.session_id WHERE s.participant_id = $1),
		(SELECT COUNT(*) FROM events e JOIN sessions s ON s.id = e.session_id WHERE s.participant_id = $1 AND e.event_type = 'switch')`
	if err := r.pool.QueryRow(ctx, q, p.ID).Scan(
		&out.Sessions.Total,
		&out.Sessions.Completed,
		&out.TotalEvents,
		&out.Switches,
	); err != nil {
		return nil, err
	}
	if out.Sessions.Total > 0 {
		out.Sessions.CompletionRate = float64(out.Sessions.Completed) / float64(out.Sessions.Total) * 100
	}

	pauses, err := r.pauseStats(ctx, &p.ID)
	if err != nil {
		return nil, err
	}
	out.Pauses = *pauses

	return out, nil
}

func (r *Repository) pauseStats(ctx context.Context, participantID *uuid.UUID) (*PauseStats, error) {
	q := `SELECT COUNT(*), COALESCE(SUM(e.duration), 0)
		FROM events e JOIN sessions s ON s.id = e.session_id
		WHERE e.event_type = 'pause' AND e.duration IS NOT NULL`
	var args []interface{}
	if participantID != nil {
		q += ` AND s.participant_id = $1`
		args = append(args, *participantID)
	}
	var ps PauseStats
	if err := r.pool.QueryRow(ctx, q, args...).Scan(&ps.TotalCount, &ps.TotalDuration); err != nil {
		return nil, err
	}
	if ps.TotalCount > 0 {
		ps.AverageDuration = ps.TotalDuration / float64(ps.TotalCount)
	}
	return &ps, nil
}
