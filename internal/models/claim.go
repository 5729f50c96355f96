package models

import (
	"time"

	"github.com/google/uuid"
)

type ClaimStatus string

const (
	ClaimStatusPending  ClaimStatus = "pending"
	ClaimStatusApproved ClaimStatus = "approved"
	ClaimStatusRejected ClaimStatus = "rejected"
)

type Claim struct {
	ID         uuid.UUID   `json:"id" db:"id"`
	PhotoID    uuid.UUID   `json:"photo_id" db:"photo_id"`
	ClaimantID string      `json:"claimant_id" db:"claimant_id"`
	Status     ClaimStatus `json:"status" db:"status"`
	MatchScore float32     `json:"match_score" db:"match_score"`
	ReviewedBy string      `json:"reviewed_by,omitempty" db:"reviewed_by"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at" db:"updated_at"`
}

// ClaimWithPhoto is a claim joined with the photo it references,
// for user-facing claim listings.
type ClaimWithPhoto struct {
	Claim
	PhotoEventID    *uuid.UUID  `json:"photo_event_id,omitempty"`
	PhotoObjectKey  string      `json:"photo_object_key"`
	PhotoDisplayKey string      `json:"photo_display_key,omitempty"`
	PhotoStatus     PhotoStatus `json:"photo_status"`
}

// PhotoTask is the message published to NATS for worker processing.
type PhotoTask struct {
	PhotoID    uuid.UUID `json:"photo_id"`
	ObjectKey  string    `json:"object_key"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// ClaimEvent is published after claim arbitration so the API can
// broadcast decisions to connected dashboards.
type ClaimEvent struct {
	Type       string      `json:"type"` // claim_created, claim_approved, claim_rejected
	ClaimID    uuid.UUID   `json:"claim_id"`
	PhotoID    uuid.UUID   `json:"photo_id"`
	ClaimantID string      `json:"claimant_id"`
	Status     ClaimStatus `json:"status"`
	MatchScore float32     `json:"match_score,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}
