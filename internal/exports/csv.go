package exports

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/vidswitch/backend/internal/events"
	"github.com/vidswitch/backend/internal/models"
	"github.com/vidswitch/backend/internal/participants"
	"github.com/vidswitch/backend/internal/sessions"
)

// Generator renders the tabular datasets as CSV. Shared between the
// synchronous export endpoint and the background export worker.
type Generator struct {
	eventRepo   *events.Repository
	sessionRepo *sessions.Repository
	partRepo    *participants.Repository
}

// NewGenerator creates a CSV generator.
func NewGenerator(eventRepo *events.Repository, sessionRepo *sessions.Repository, partRepo *participants.Repository) *Generator {
	return &Generator{eventRepo: eventRepo, sessionRepo: sessionRepo, partRepo: partRepo}
}

// CSV renders one dataset. exportType must be a valid models.ExportType*.
func (g *Generator) CSV(ctx context.Context, exportType string) ([]byte, error) {
	switch exportType {
	case models.ExportTypeEvents:
		rows, err := g.eventRepo.ListAllAsc(ctx)
		if err != nil {
			return nil, err
		}
		return renderEvents(rows)
	case models.ExportTypeSessions:
		rows, err := g.sessionRepo.ListAll(ctx)
		if err != nil {
			return nil, err
		}
		return renderSessions(rows)
	case models.ExportTypeParticipants:
		rows, err := g.partRepo.List(ctx)
		if err != nil {
			return nil, err
		}
		return renderParticipants(rows)
	default:
		return nil, fmt.Errorf("unknown export type: %s", exportType)
	}
}

func renderEvents(rows []models.EventRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{
		"event_id", "participant_id", "condition", "session_id", "video_id", "event_type",
		"timestamp", "duration_seconds", "from_video_id", "to_video_id", "playback_position",
		"session_started_at", "session_completed_at",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, r := range rows {
		record := []string{
			r.ID.String(),
			r.ParticipantLabel,
			string(r.Condition),
			r.SessionID.String(),
			r.VideoID,
			string(r.EventType),
			r.OccurredAt.Format(time.RFC3339),
			floatField(r.Duration),
			strField(r.FromVideoID),
			strField(r.ToVideoID),
			floatField(r.PlaybackPosition),
			r.SessionStartedAt.Format(time.RFC3339),
			timeField(r.SessionCompleted),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func renderSessions(rows []models.SessionSummary) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{
		"session_id", "participant_id", "condition", "video_id",
		"started_at", "completed_at", "event_count",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, r := range rows {
		record := []string{
			r.ID.String(),
			r.ParticipantLabel,
			string(r.Condition),
			r.VideoID,
			r.StartedAt.Format(time.RFC3339),
			timeField(r.CompletedAt),
			strconv.Itoa(r.EventCount),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func renderParticipants(rows []models.ParticipantSummary) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{"participant_id", "condition", "created_at", "session_count"}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, r := range rows {
		record := []string{
			r.ParticipantID,
			string(r.Condition),
			r.CreatedAt.Format(time.RFC3339),
			strconv.Itoa(r.SessionCount),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func strField(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func floatField(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func timeField(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
