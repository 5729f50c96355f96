// Package sweeper purges photos past their retention deadline: database row
// to deleting, embeddings and stored objects removed, row to deleted. Each
// step is idempotent so an interrupted sweep completes on the next pass.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/photoclaim/internal/config"
	"github.com/your-org/photoclaim/internal/models"
	"github.com/your-org/photoclaim/internal/observability"
)

const sweepBatchSize = 200

// Store is the persistence surface the sweeper needs.
type Store interface {
	ListExpiredPhotos(ctx context.Context, now time.Time, skipApproved bool, limit int) ([]models.Photo, error)
	MarkPhotoDeleting(ctx context.Context, id uuid.UUID) error
	MarkPhotoDeleted(ctx context.Context, id uuid.UUID) error
	DeletePhotoEmbeddings(ctx context.Context, photoID uuid.UUID) error
}

// ObjectDeleter removes stored photo objects. Missing objects are not errors.
type ObjectDeleter interface {
	DeleteObjects(ctx context.Context, keys []string) error
}

type Sweeper struct {
	store   Store
	objects ObjectDeleter
	cfg     config.RetentionConfig
	logger  *slog.Logger
}

func NewSweeper(store Store, objects ObjectDeleter, cfg config.RetentionConfig, logger *slog.Logger) *Sweeper {
	return &Sweeper{store: store, objects: objects, cfg: cfg, logger: logger}
}

// Run blocks until ctx is cancelled, sweeping on the configured interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	s.logger.Info("retention sweeper started",
		"interval", s.cfg.SweepInterval,
		"sweep_approved_claims", s.cfg.SweepApprovedClaims)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("retention sweeper stopped")
			return
		case <-ticker.C:
			if n, err := s.Sweep(ctx); err != nil {
				s.logger.Error("sweep failed", "error", err)
			} else if n > 0 {
				s.logger.Info("swept expired photos", "count", n)
			}
		}
	}
}

// Sweep purges one batch of expired photos and returns how many were fully
// deleted. Photos with approved claims are held back unless the operator
// opted in. Per-photo failures are logged and skipped; the photo stays in
// deleting and finishes on a later pass.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	skipApproved := !s.cfg.SweepApprovedClaims
	photos, err := s.store.ListExpiredPhotos(ctx, time.Now().UTC(), skipApproved, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, photo := range photos {
		if err := s.sweepOne(ctx, photo); err != nil {
			s.logger.Error("failed to sweep photo", "photo_id", photo.ID, "error", err)
			continue
		}
		swept++
	}
	if swept > 0 {
		observability.PhotosSwept.Add(float64(swept))
	}
	return swept, nil
}

func (s *Sweeper) sweepOne(ctx context.Context, photo models.Photo) error {
	// Re-entrant: photos already in deleting were interrupted mid-sweep and
	// just need the remaining steps.
	if photo.Status != models.PhotoStatusDeleting {
		if err := s.store.MarkPhotoDeleting(ctx, photo.ID); err != nil {
			return err
		}
	}

	if err := s.store.DeletePhotoEmbeddings(ctx, photo.ID); err != nil {
		return err
	}

	keys := []string{photo.ObjectKey}
	if photo.DisplayKey != "" {
		keys = append(keys, photo.DisplayKey)
	}
	if err := s.objects.DeleteObjects(ctx, keys); err != nil {
		return err
	}

	return s.store.MarkPhotoDeleted(ctx, photo.ID)
}
