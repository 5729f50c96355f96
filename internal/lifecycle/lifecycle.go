// Package lifecycle defines the photo state machine: which status
// transitions are legal and when a photo may be picked up for processing.
// The storage layer enforces these rules atomically with conditional
// updates; this package is the single source of truth for the graph.
package lifecycle

import (
	"errors"

	"github.com/your-org/photoclaim/internal/models"
)

var (
	// ErrInvalidTransition is returned for a transition the graph forbids.
	ErrInvalidTransition = errors.New("invalid photo status transition")
	// ErrRetryExhausted is returned when a failed photo has no retries left.
	ErrRetryExhausted = errors.New("photo retry limit exhausted")
	// ErrStaleTransition is returned when a conditional update lost the race:
	// the photo was concurrently moved to another status. Callers must
	// re-read and decide, never overwrite.
	ErrStaleTransition = errors.New("stale photo status transition")
)

// transitions maps each status to the set of statuses it may move to.
var transitions = map[models.PhotoStatus][]models.PhotoStatus{
	models.PhotoStatusUploaded:   {models.PhotoStatusProcessing, models.PhotoStatusDeleting},
	models.PhotoStatusProcessing: {models.PhotoStatusReady, models.PhotoStatusFailed, models.PhotoStatusDeleting},
	models.PhotoStatusReady:      {models.PhotoStatusHidden, models.PhotoStatusDeleting},
	models.PhotoStatusFailed:     {models.PhotoStatusProcessing, models.PhotoStatusDeleting},
	models.PhotoStatusHidden:     {models.PhotoStatusReady, models.PhotoStatusDeleting},
	models.PhotoStatusDeleting:   {models.PhotoStatusDeleted},
	models.PhotoStatusDeleted:    {},
}

// CanTransition reports whether from → to is a legal edge.
func CanTransition(from, to models.PhotoStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func IsTerminal(status models.PhotoStatus) bool {
	return status == models.PhotoStatusDeleted
}

// IsDeletion reports whether the photo is in or past the deletion flow.
// In-flight processing must short-circuit when it sees one of these.
func IsDeletion(status models.PhotoStatus) bool {
	return status == models.PhotoStatusDeleting || status == models.PhotoStatusDeleted
}

// CheckEnqueue validates that a photo may move to processing.
// A failed photo consumes one retry per re-enqueue; once retryCount
// reaches maxRetries the photo is permanently failed.
func CheckEnqueue(status models.PhotoStatus, retryCount, maxRetries int) error {
	switch status {
	case models.PhotoStatusUploaded:
		return nil
	case models.PhotoStatusFailed:
		if retryCount >= maxRetries {
			return ErrRetryExhausted
		}
		return nil
	default:
		return ErrInvalidTransition
	}
}
