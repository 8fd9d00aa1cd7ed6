package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is one bounded viewing attempt of one video by one participant.
// The condition is snapshotted at open time. CompletedAt is a one-way
// transition: once set it is never cleared or changed.
type Session struct {
	ID            uuid.UUID  `json:"id"`
	ParticipantID uuid.UUID  `json:"participant_id"`
	VideoID       string     `json:"video_id"`
	Condition     Condition  `json:"condition"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// Completed reports whether the session has reached its terminal state.
func (s *Session) Completed() bool {
	return s.CompletedAt != nil
}

// SessionSummary is a session with its event count, for researcher listings
// and the sessions export.
type SessionSummary struct {
	Session
	ParticipantLabel string `json:"participant_label"`
	EventCount       int    `json:"event_count"`
}
