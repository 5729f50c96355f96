package lifecycle

import (
	"errors"
	"testing"

	"github.com/your-org/photoclaim/internal/models"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    models.PhotoStatus
		to      models.PhotoStatus
		allowed bool
	}{
		{"uploaded to processing", models.PhotoStatusUploaded, models.PhotoStatusProcessing, true},
		{"processing to ready", models.PhotoStatusProcessing, models.PhotoStatusReady, true},
		{"processing to failed", models.PhotoStatusProcessing, models.PhotoStatusFailed, true},
		{"failed retry", models.PhotoStatusFailed, models.PhotoStatusProcessing, true},
		{"uploaded to deleting", models.PhotoStatusUploaded, models.PhotoStatusDeleting, true},
		{"ready to deleting", models.PhotoStatusReady, models.PhotoStatusDeleting, true},
		{"deleting to deleted", models.PhotoStatusDeleting, models.PhotoStatusDeleted, true},
		{"ready to hidden", models.PhotoStatusReady, models.PhotoStatusHidden, true},
		{"hidden back to ready", models.PhotoStatusHidden, models.PhotoStatusReady, true},

		{"ready back to uploaded", models.PhotoStatusReady, models.PhotoStatusUploaded, false},
		{"uploaded skips processing", models.PhotoStatusUploaded, models.PhotoStatusReady, false},
		{"ready to processing", models.PhotoStatusReady, models.PhotoStatusProcessing, false},
		{"deleted is terminal", models.PhotoStatusDeleted, models.PhotoStatusUploaded, false},
		{"deleted to deleting", models.PhotoStatusDeleted, models.PhotoStatusDeleting, false},
		{"deleting back to ready", models.PhotoStatusDeleting, models.PhotoStatusReady, false},
		{"failed to ready", models.PhotoStatusFailed, models.PhotoStatusReady, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanTransition(tc.from, tc.to); got != tc.allowed {
				t.Errorf("CanTransition(%s, %s) = %v; want %v", tc.from, tc.to, got, tc.allowed)
			}
		})
	}
}

func TestCheckEnqueue(t *testing.T) {
	tests := []struct {
		name       string
		status     models.PhotoStatus
		retryCount int
		maxRetries int
		wantErr    error
	}{
		{"fresh upload", models.PhotoStatusUploaded, 0, 3, nil},
		{"failed with retries left", models.PhotoStatusFailed, 2, 3, nil},
		{"failed at limit", models.PhotoStatusFailed, 3, 3, ErrRetryExhausted},
		{"failed past limit", models.PhotoStatusFailed, 4, 3, ErrRetryExhausted},
		{"already processing", models.PhotoStatusProcessing, 0, 3, ErrInvalidTransition},
		{"already ready", models.PhotoStatusReady, 0, 3, ErrInvalidTransition},
		{"deleting", models.PhotoStatusDeleting, 0, 3, ErrInvalidTransition},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckEnqueue(tc.status, tc.retryCount, tc.maxRetries)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("CheckEnqueue(%s, %d, %d) = %v; want %v",
					tc.status, tc.retryCount, tc.maxRetries, err, tc.wantErr)
			}
		})
	}
}

func TestIsDeletion(t *testing.T) {
	if !IsDeletion(models.PhotoStatusDeleting) || !IsDeletion(models.PhotoStatusDeleted) {
		t.Error("deleting and deleted must short-circuit processing")
	}
	if IsDeletion(models.PhotoStatusReady) || IsDeletion(models.PhotoStatusFailed) {
		t.Error("ready/failed are not deletion states")
	}
}
