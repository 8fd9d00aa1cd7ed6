package models

import (
	"time"

	"github.com/google/uuid"
)

// ExportStatus represents export job lifecycle.
const (
	ExportStatusQueued     = "queued"
	ExportStatusProcessing = "processing"
	ExportStatusCompleted  = "completed"
	ExportStatusFailed     = "failed"
)

// Export types match the tabular datasets a researcher can pull.
const (
	ExportTypeEvents       = "events"
	ExportTypeSessions     = "sessions"
	ExportTypeParticipants = "participants"
)

// ValidExportType reports whether t names an exportable dataset.
func ValidExportType(t string) bool {
	return t == ExportTypeEvents || t == ExportTypeSessions || t == ExportTypeParticipants
}

// ExportJob is an asynchronous CSV export (rendered by the worker, stored in S3).
type ExportJob struct {
	ID          uuid.UUID  `json:"id"`
	ExportType  string     `json:"export_type"`
	Status      string     `json:"status"`
	S3Key       string     `json:"s3_key,omitempty"`
	Error       string     `json:"error,omitempty"`
	RequestedBy uuid.UUID  `json:"requested_by"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
