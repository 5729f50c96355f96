// Package extract defines the contract with the face-embedding service.
// The service is an external collaborator: it receives raw image bytes and
// returns fixed-length face vectors plus bounding metadata.
package extract

import (
	"context"
	"errors"
)

var (
	// ErrCorruptImage means the input cannot be decoded. Permanent: the
	// photo is failed immediately, without retries.
	ErrCorruptImage = errors.New("corrupt or unsupported image")
	// ErrUnavailable means the extractor service could not be reached or
	// errored internally. Retryable with backoff.
	ErrUnavailable = errors.New("extractor unavailable")
)

// Face is one detected face: a 1024-d embedding and its bounding box
// (x1, y1, x2, y2) in pixel coordinates.
type Face struct {
	Embedding  []float32 `json:"embedding"`
	BBox       [4]int    `json:"bbox"`
	Confidence float32   `json:"confidence"`
}

// Extractor produces face embeddings from image bytes. Zero faces is a
// normal outcome, not an error.
type Extractor interface {
	Extract(ctx context.Context, image []byte) ([]Face, error)
}
