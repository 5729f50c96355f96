package dto

import "github.com/google/uuid"

type PhotoResponse struct {
	ID              uuid.UUID  `json:"id"`
	EventID         *uuid.UUID `json:"event_id,omitempty"`
	UploaderID      string     `json:"uploader_id"`
	Status          string     `json:"status"`
	MimeType        string     `json:"mime_type"`
	Width           int        `json:"width,omitempty"`
	Height          int        `json:"height,omitempty"`
	FacesCount      int        `json:"faces_count"`
	RetryCount      int        `json:"retry_count"`
	ProcessingError string     `json:"processing_error,omitempty"`
	ProcessedAt     string     `json:"processed_at,omitempty"`
	DeleteAfter     string     `json:"delete_after"`
	CreatedAt       string     `json:"created_at"`
}

type PhotoFeedQuery struct {
	EventID string `form:"event_id"`
	Status  string `form:"status"`
	Cursor  string `form:"cursor"`
	Limit   int    `form:"limit"`
}

type PhotoFeedResponse struct {
	Photos     []PhotoResponse `json:"photos"`
	NextCursor string          `json:"next_cursor,omitempty"`
}
