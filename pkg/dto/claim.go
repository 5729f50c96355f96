package dto

import "github.com/google/uuid"

type ClaimResponse struct {
	ID         uuid.UUID `json:"id"`
	PhotoID    uuid.UUID `json:"photo_id"`
	ClaimantID string    `json:"claimant_id"`
	Status     string    `json:"status"`
	MatchScore float32   `json:"match_score"`
	ReviewedBy string    `json:"reviewed_by,omitempty"`
	CreatedAt  string    `json:"created_at"`
	UpdatedAt  string    `json:"updated_at"`
}

// ClaimWithPhotoResponse is a claim with enough photo context for the
// "photos of me" listing.
type ClaimWithPhotoResponse struct {
	ClaimResponse
	PhotoEventID *uuid.UUID `json:"photo_event_id,omitempty"`
	PhotoStatus  string     `json:"photo_status"`
	PhotoURL     string     `json:"photo_url,omitempty"`
}

type ClaimListResponse struct {
	Claims []ClaimWithPhotoResponse `json:"claims"`
	Total  int                      `json:"total"`
}

// WSEvent is a WebSocket message carrying a claim lifecycle event.
type WSEvent struct {
	Type       string    `json:"type"` // claim_created, claim_approved, claim_rejected
	ClaimID    uuid.UUID `json:"claim_id"`
	PhotoID    uuid.UUID `json:"photo_id"`
	ClaimantID string    `json:"claimant_id"`
	Status     string    `json:"status"`
	MatchScore float32   `json:"match_score,omitempty"`
	Timestamp  string    `json:"timestamp"`
}
