package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/your-org/photoclaim/internal/config"
	"github.com/your-org/photoclaim/internal/lifecycle"
	"github.com/your-org/photoclaim/internal/models"
	"github.com/your-org/photoclaim/internal/observability"
)

const scanBatchSize = 100

// ScanStore lists photos that need (re-)enqueueing and rescues orphans.
type ScanStore interface {
	ListQueueable(ctx context.Context, maxRetries, limit int) ([]models.Photo, error)
	ResetStaleProcessing(ctx context.Context, cutoff time.Time) (int, error)
}

// TaskPublisher enqueues photo tasks onto the work queue.
type TaskPublisher interface {
	PublishPhotoTask(ctx context.Context, task models.PhotoTask, retryCount int) error
	QueueDepth(ctx context.Context) (uint64, error)
}

// Scanner periodically sweeps the photos table for work the queue may have
// missed: fresh uploads whose publish failed, failed photos due for a retry,
// and photos orphaned mid-processing by a dead worker. Publishing is
// deduplicated by (photo, retry) message ID, so overlap with the normal
// enqueue path is harmless.
type Scanner struct {
	store     ScanStore
	publisher TaskPublisher
	cfg       config.ProcessingConfig
	logger    *slog.Logger
}

func NewScanner(store ScanStore, publisher TaskPublisher, cfg config.ProcessingConfig, logger *slog.Logger) *Scanner {
	return &Scanner{store: store, publisher: publisher, cfg: cfg, logger: logger}
}

// Run blocks until ctx is cancelled.
func (s *Scanner) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.ScanInterval)
	defer ticker.Stop()

	s.logger.Info("scanner started", "interval", s.cfg.ScanInterval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scanner stopped")
			return
		case <-ticker.C:
			s.scan(ctx)
		}
	}
}

func (s *Scanner) scan(ctx context.Context) {
	reset, err := s.store.ResetStaleProcessing(ctx, time.Now().Add(-s.cfg.StaleResetAge))
	if err != nil {
		s.logger.Error("failed to reset stale processing photos", "error", err)
	} else if reset > 0 {
		observability.StaleResets.Add(float64(reset))
		s.logger.Warn("reset orphaned processing photos", "count", reset)
	}

	photos, err := s.store.ListQueueable(ctx, s.cfg.MaxRetries, scanBatchSize)
	if err != nil {
		s.logger.Error("failed to list queueable photos", "error", err)
		return
	}
	now := time.Now()
	enqueued := 0
	for _, photo := range photos {
		if err := lifecycle.CheckEnqueue(photo.Status, photo.RetryCount, s.cfg.MaxRetries); err != nil {
			continue
		}
		// Failed photos wait out the same exponential backoff the queue
		// applies on redelivery; otherwise each sweep would retry them
		// immediately.
		if photo.Status == models.PhotoStatusFailed &&
			now.Sub(photo.UpdatedAt) < s.cfg.BackoffDelay(photo.RetryCount) {
			continue
		}
		task := models.PhotoTask{
			PhotoID:    photo.ID,
			ObjectKey:  photo.ObjectKey,
			EnqueuedAt: time.Now().UTC(),
		}
		if err := s.publisher.PublishPhotoTask(ctx, task, photo.RetryCount); err != nil {
			s.logger.Error("failed to enqueue photo", "photo_id", photo.ID, "error", err)
			continue
		}
		enqueued++
	}
	if enqueued > 0 {
		s.logger.Info("enqueued photos", "count", enqueued)
	}

	if depth, err := s.publisher.QueueDepth(ctx); err == nil {
		observability.QueueDepth.Set(float64(depth))
	}
}
