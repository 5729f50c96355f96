package models

import (
	"time"

	"github.com/google/uuid"
)

// EmbeddingDim is the fixed face embedding length produced by the extractor.
const EmbeddingDim = 1024

// PhotoEmbedding is one detected face in a photo. FaceIndex is the position
// of the face within a single extraction result, so re-running extraction
// upserts rather than duplicates.
type PhotoEmbedding struct {
	ID        uuid.UUID `json:"id" db:"id"`
	PhotoID   uuid.UUID `json:"photo_id" db:"photo_id"`
	FaceIndex int       `json:"face_index" db:"face_index"`
	Embedding []float32 `json:"-" db:"embedding"`
	BBox      [4]int    `json:"bbox" db:"bbox"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UserEmbedding is an enrolled face vector for a user. Only active
// embeddings participate in matching.
type UserEmbedding struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Embedding []float32 `json:"-" db:"embedding"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// MatchCandidate is one proposed (user, photo) match from the match engine,
// before claim arbitration.
type MatchCandidate struct {
	UserID  string    `json:"user_id"`
	PhotoID uuid.UUID `json:"photo_id"`
	Score   float32   `json:"score"`
}

// UserNeighbor is one nearest-neighbor result from the vector index:
// an active user embedding and its L2 distance to the query face.
type UserNeighbor struct {
	EmbeddingID uuid.UUID
	UserID      string
	Distance    float64
	EnrolledAt  time.Time
}
