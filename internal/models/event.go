package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType is the kind of a playback interaction event. The set is open:
// RegisterEventType admits more kinds without touching ingestion code.
type EventType string

const (
	EventPlay     EventType = "play"
	EventPause    EventType = "pause"
	EventSwitch   EventType = "switch"
	EventComplete EventType = "complete"
)

var knownEventTypes = map[EventType]bool{
	EventPlay:     true,
	EventPause:    true,
	EventSwitch:   true,
	EventComplete: true,
}

// RegisterEventType admits an additional event kind.
func RegisterEventType(t EventType) {
	knownEventTypes[t] = true
}

// ValidEventType reports whether t is a registered event kind.
func ValidEventType(t EventType) bool {
	return knownEventTypes[t]
}

// Event is one timestamped interaction within a session. Rows are
// append-only: never mutated or deleted. Duration is only meaningful for
// pause events, From/ToVideoID only for switch events.
type Event struct {
	ID               uuid.UUID `json:"id"`
	SessionID        uuid.UUID `json:"session_id"`
	EventType        EventType `json:"event_type"`
	Duration         *float64  `json:"duration,omitempty"`
	FromVideoID      *string   `json:"from_video_id,omitempty"`
	ToVideoID        *string   `json:"to_video_id,omitempty"`
	PlaybackPosition *float64  `json:"playback_position,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// EventRow is an event joined with its session and participant, for the
// researcher event listing and the events export.
type EventRow struct {
	Event
	ParticipantLabel string     `json:"participant_label"`
	Condition        Condition  `json:"condition"`
	VideoID          string     `json:"video_id"`
	SessionStartedAt time.Time  `json:"session_started_at"`
	SessionCompleted *time.Time `json:"session_completed_at,omitempty"`
}
