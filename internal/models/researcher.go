package models

import (
	"time"

	"github.com/google/uuid"
)

// Role distinguishes the two kinds of authenticated callers.
const (
	RoleParticipant = "participant"
	RoleResearcher  = "researcher"
)

// Researcher is a study administrator: creates participants, reads
// aggregates, requests exports.
type Researcher struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	FullName  string    `json:"full_name"`
	CreatedAt time.Time `json:"created_at"`
}

// ResearcherPublic is Researcher without sensitive fields for API responses.
type ResearcherPublic struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	CreatedAt time.Time `json:"created_at"`
}

// ToPublic converts Researcher to ResearcherPublic.
func (r *Researcher) ToPublic() ResearcherPublic {
	return ResearcherPublic{
		ID:        r.ID,
		Email:     r.Email,
		FullName:  r.FullName,
		CreatedAt: r.CreatedAt,
	}
}
