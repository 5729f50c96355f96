package dto

import "github.com/google/uuid"

// EnrollEmbeddingRequest enrolls a face vector for the authenticated user.
// Either a precomputed embedding or a selfie image (multipart "image" field)
// must be supplied; with both, the embedding wins.
type EnrollEmbeddingRequest struct {
	Embedding []float32 `json:"embedding,omitempty"`
}

type UserEmbeddingResponse struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	IsActive  bool      `json:"is_active"`
	CreatedAt string    `json:"created_at"`
}

type UserEmbeddingListResponse struct {
	Embeddings []UserEmbeddingResponse `json:"embeddings"`
	Total      int                     `json:"total"`
}
