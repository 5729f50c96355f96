package models

import (
	"time"

	"github.com/google/uuid"
)

type PhotoStatus string

const (
	PhotoStatusUploaded   PhotoStatus = "uploaded"
	PhotoStatusProcessing PhotoStatus = "processing"
	PhotoStatusReady      PhotoStatus = "ready"
	PhotoStatusFailed     PhotoStatus = "failed"
	PhotoStatusHidden     PhotoStatus = "hidden"
	PhotoStatusDeleting   PhotoStatus = "deleting"
	PhotoStatusDeleted    PhotoStatus = "deleted"
)

type Photo struct {
	ID              uuid.UUID   `json:"id" db:"id"`
	EventID         *uuid.UUID  `json:"event_id,omitempty" db:"event_id"`
	UploaderID      string      `json:"uploader_id" db:"uploader_id"`
	OriginalName    string      `json:"original_name,omitempty" db:"original_name"`
	ObjectKey       string      `json:"object_key" db:"object_key"`
	DisplayKey      string      `json:"display_key,omitempty" db:"display_key"`
	MimeType        string      `json:"mime_type" db:"mime_type"`
	Width           int         `json:"width,omitempty" db:"width"`
	Height          int         `json:"height,omitempty" db:"height"`
	TakenAt         *time.Time  `json:"taken_at,omitempty" db:"taken_at"`
	Status          PhotoStatus `json:"status" db:"status"`
	RetryCount      int         `json:"retry_count" db:"retry_count"`
	ProcessingError string      `json:"processing_error,omitempty" db:"processing_error"`
	FacesCount      int         `json:"faces_count" db:"faces_count"`
	ProcessedAt     *time.Time  `json:"processed_at,omitempty" db:"processed_at"`
	DeleteAfter     time.Time   `json:"delete_after" db:"delete_after"`
	Version         int         `json:"-" db:"version"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
}
