package models

import (
	"time"

	"github.com/google/uuid"
)

// Condition is the experimental arm assigned to a participant. It governs
// which playback policy the client enforces. The set is open: new arms are
// admitted via RegisterCondition without touching existing code.
type Condition string

const (
	ConditionSwitching    Condition = "switching"
	ConditionNonSwitching Condition = "non_switching"
)

var knownConditions = map[Condition]bool{
	ConditionSwitching:    true,
	ConditionNonSwitching: true,
}

// RegisterCondition admits an additional experimental condition.
func RegisterCondition(c Condition) {
	knownConditions[c] = true
}

// ValidCondition reports whether c is a registered condition.
func ValidCondition(c Condition) bool {
	return knownConditions[c]
}

// Participant is a study participant. The participant_id is assigned by the
// researcher (e.g. "P001") and the condition is fixed at creation; historical
// sessions snapshot it so later administrative changes cannot rewrite them.
type Participant struct {
	ID            uuid.UUID `json:"id"`
	ParticipantID string    `json:"participant_id"`
	Condition     Condition `json:"condition"`
	CreatedAt     time.Time `json:"created_at"`
}

// ParticipantSummary is a participant with their session count, for the
// researcher listing and the participants export.
type ParticipantSummary struct {
	Participant
	SessionCount int `json:"session_count"`
}
