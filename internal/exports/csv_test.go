package exports

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidswitch/backend/internal/models"
)

func parseCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return records
}

func TestRenderEvents(t *testing.T) {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	occurred := started.Add(12 * time.Second)
	from, to := "a", "b"
	pos := 12.0

	rows := []models.EventRow{
		{
			Event: models.Event{
				ID:               uuid.New(),
				SessionID:        uuid.New(),
				EventType:        models.EventSwitch,
				FromVideoID:      &from,
				ToVideoID:        &to,
				PlaybackPosition: &pos,
				OccurredAt:       occurred,
			},
			ParticipantLabel: "P001",
			Condition:        models.ConditionSwitching,
			VideoID:          "a",
			SessionStartedAt: started,
		},
	}

	data, err := renderEvents(rows)
	require.NoError(t, err)

	records := parseCSV(t, data)
	require.Len(t, records, 2)
	assert.Equal(t, []string{
		"event_id", "participant_id", "condition", "session_id", "video_id", "event_type",
		"timestamp", "duration_seconds", "from_video_id", "to_video_id", "playback_position",
		"session_started_at", "session_completed_at",
	}, records[0])

	row := records[1]
	assert.Equal(t, "P001", row[1])
	assert.Equal(t, "switching", row[2])
	assert.Equal(t, "switch", row[5])
	assert.Equal(t, occurred.Format(time.RFC3339), row[6])
	assert.Empty(t, row[7], "duration only applies to pause events")
	assert.Equal(t, "a", row[8])
	assert.Equal(t, "b", row[9])
	assert.Equal(t, "12", row[10])
	assert.Empty(t, row[12], "session not completed")
}

func TestRenderSessions(t *testing.T) {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	completed := started.Add(3 * time.Minute)

	rows := []models.SessionSummary{
		{
			Session: models.Session{
				ID:          uuid.New(),
				VideoID:     "b",
				Condition:   models.ConditionNonSwitching,
				StartedAt:   started,
				CompletedAt: &completed,
			},
			ParticipantLabel: "P002",
			EventCount:       7,
		},
		{
			Session: models.Session{
				ID:        uuid.New(),
				VideoID:   "a",
				Condition: models.ConditionNonSwitching,
				StartedAt: started,
			},
			ParticipantLabel: "P002",
		},
	}

	data, err := renderSessions(rows)
	require.NoError(t, err)

	records := parseCSV(t, data)
	require.Len(t, records, 3)
	assert.Equal(t, completed.Format(time.RFC3339), records[1][5])
	assert.Equal(t, "7", records[1][6])
	assert.Empty(t, records[2][5], "open session has no completed_at")
	assert.Equal(t, "0", records[2][6])
}

func TestRenderParticipants(t *testing.T) {
	rows := []models.ParticipantSummary{
		{
			Participant: models.Participant{
				ParticipantID: "P001",
				Condition:     models.ConditionSwitching,
				CreatedAt:     time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
			},
			SessionCount: 3,
		},
	}

	data, err := renderParticipants(rows)
	require.NoError(t, err)

	records := parseCSV(t, data)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"participant_id", "condition", "created_at", "session_count"}, records[0])
	assert.Equal(t, []string{"P001", "switching", "2026-02-01T09:00:00Z", "3"}, records[1])
}

func TestRenderEmptyStillHasHeader(t *testing.T) {
	data, err := renderEvents(nil)
	require.NoError(t, err)
	records := parseCSV(t, data)
	require.Len(t, records, 1)
}
