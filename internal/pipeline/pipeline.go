// Package pipeline drives a photo from upload to ready: fetch the bytes,
// extract face embeddings, persist them, match against enrolled users and
// raise claims. Every unit is safe to re-run.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/photoclaim/internal/config"
	"github.com/your-org/photoclaim/internal/extract"
	"github.com/your-org/photoclaim/internal/lifecycle"
	"github.com/your-org/photoclaim/internal/models"
	"github.com/your-org/photoclaim/internal/observability"
	"github.com/your-org/photoclaim/internal/storage"
)

// PhotoStore is the persistence surface the processor needs.
type PhotoStore interface {
	ClaimForProcessing(ctx context.Context, id uuid.UUID, maxRetries int) (*models.Photo, error)
	GetPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error)
	MarkPhotoReady(ctx context.Context, id uuid.UUID, facesCount int) error
	MarkPhotoFailed(ctx context.Context, id uuid.UUID, reason string) error
	UpsertPhotoEmbedding(ctx context.Context, photoID uuid.UUID, faceIndex int, embedding []float32, bbox [4]int) (*models.PhotoEmbedding, error)
	TrimPhotoEmbeddings(ctx context.Context, photoID uuid.UUID, keep int) error
	ListPhotoEmbeddings(ctx context.Context, photoID uuid.UUID) ([]models.PhotoEmbedding, error)
}

// ObjectGetter fetches raw photo bytes from blob storage.
type ObjectGetter interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// Matcher turns face embeddings into per-user match candidates.
type Matcher interface {
	MatchPhoto(ctx context.Context, photoID uuid.UUID, faces [][]float32) ([]models.MatchCandidate, error)
}

// Proposer records match candidates as claims.
type Proposer interface {
	Propose(ctx context.Context, candidate models.MatchCandidate) (*models.Claim, bool, error)
}

// EventPublisher broadcasts claim events to interested consumers.
type EventPublisher interface {
	PublishClaimEvent(ctx context.Context, event models.ClaimEvent) error
}

type Processor struct {
	store     PhotoStore
	objects   ObjectGetter
	extractor extract.Extractor
	matcher   Matcher
	proposer  Proposer
	events    EventPublisher
	cfg       config.ProcessingConfig
	logger    *slog.Logger
}

func NewProcessor(store PhotoStore, objects ObjectGetter, extractor extract.Extractor,
	matcher Matcher, proposer Proposer, events EventPublisher,
	cfg config.ProcessingConfig, logger *slog.Logger) *Processor {
	return &Processor{
		store:     store,
		objects:   objects,
		extractor: extractor,
		matcher:   matcher,
		proposer:  proposer,
		events:    events,
		cfg:       cfg,
		logger:    logger,
	}
}

// Handler adapts ProcessTask to the queue consumer. A nil return acks the
// message; an error naks it for redelivery with backoff.
func (p *Processor) Handler() func(ctx context.Context, msg jetstream.Msg) error {
	return func(ctx context.Context, msg jetstream.Msg) error {
		var task models.PhotoTask
		if err := json.Unmarshal(msg.Data(), &task); err != nil {
			p.logger.Error("malformed photo task, dropping", "error", err)
			return nil
		}
		return p.ProcessTask(ctx, task)
	}
}

// ProcessTask runs one processing unit for a photo. Exactly one concurrent
// worker wins the photo; everyone else sees a stale transition and backs off.
// Permanent failures (corrupt image, missing object, retries exhausted) are
// absorbed so the message is not redelivered.
func (p *Processor) ProcessTask(ctx context.Context, task models.PhotoTask) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.UnitTimeout)
	defer cancel()

	log := p.logger.With("photo_id", task.PhotoID)

	photo, err := p.store.ClaimForProcessing(ctx, task.PhotoID, p.cfg.MaxRetries)
	switch {
	case err == nil:
		// we own the photo
	case errors.Is(err, lifecycle.ErrRetryExhausted):
		log.Warn("photo out of retries, dropping task")
		observability.PhotosProcessed.WithLabelValues("skipped").Inc()
		return nil
	case errors.Is(err, storage.ErrNotFound):
		log.Warn("photo gone, dropping task")
		observability.PhotosProcessed.WithLabelValues("skipped").Inc()
		return nil
	case errors.Is(err, lifecycle.ErrStaleTransition):
		return p.handleStale(ctx, photo, log)
	default:
		return fmt.Errorf("claim photo %s: %w", task.PhotoID, err)
	}

	if photo.RetryCount > 0 {
		observability.PhotoRetries.Inc()
		log = log.With("retry", photo.RetryCount)
	}

	faces, err := p.extractFaces(ctx, photo)
	if err != nil {
		return p.fail(ctx, photo.ID, err, log)
	}

	start := time.Now()
	vectors := make([][]float32, len(faces))
	for i, face := range faces {
		if _, err := p.store.UpsertPhotoEmbedding(ctx, photo.ID, i, face.Embedding, face.BBox); err != nil {
			return p.fail(ctx, photo.ID, fmt.Errorf("persist face %d: %w", i, err), log)
		}
		vectors[i] = face.Embedding
	}
	// Drop leftovers from a previous run that found more faces.
	if err := p.store.TrimPhotoEmbeddings(ctx, photo.ID, len(faces)); err != nil {
		return p.fail(ctx, photo.ID, fmt.Errorf("trim stale faces: %w", err), log)
	}
	observability.PipelineStageDuration.WithLabelValues("persist").Observe(time.Since(start).Seconds())

	if err := p.store.MarkPhotoReady(ctx, photo.ID, len(faces)); err != nil {
		return fmt.Errorf("mark photo %s ready: %w", photo.ID, err)
	}
	observability.FacesDetected.Add(float64(len(faces)))
	observability.PhotosProcessed.WithLabelValues("ready").Inc()
	log.Info("photo processed", "faces", len(faces))

	// The photo is ready regardless of matching. A matching error naks the
	// message; redelivery lands in the ready re-run path below.
	return p.matchAndClaim(ctx, photo.ID, vectors, log)
}

// handleStale deals with a task whose photo already moved past uploaded or
// failed. A ready photo gets its matching re-run from stored embeddings, which
// finishes interrupted units without touching the object or the extractor.
// Anything else is a stale duplicate and gets dropped.
func (p *Processor) handleStale(ctx context.Context, photo *models.Photo, log *slog.Logger) error {
	if photo == nil || photo.Status != models.PhotoStatusReady {
		log.Info("photo no longer processable, dropping task", "status", photoStatus(photo))
		observability.PhotosProcessed.WithLabelValues("skipped").Inc()
		return nil
	}

	stored, err := p.store.ListPhotoEmbeddings(ctx, photo.ID)
	if err != nil {
		return fmt.Errorf("load embeddings for %s: %w", photo.ID, err)
	}
	vectors := make([][]float32, len(stored))
	for i, e := range stored {
		vectors[i] = e.Embedding
	}
	log.Info("re-running match for ready photo", "faces", len(vectors))
	return p.matchAndClaim(ctx, photo.ID, vectors, log)
}

func (p *Processor) extractFaces(ctx context.Context, photo *models.Photo) ([]extract.Face, error) {
	start := time.Now()
	image, err := p.objects.GetObject(ctx, photo.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("fetch object %s: %w", photo.ObjectKey, err)
	}

	faces, err := p.extractor.Extract(ctx, image)
	if err != nil {
		return nil, err
	}
	observability.PipelineStageDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())
	return faces, nil
}

// fail records the failure and decides whether the message should come back.
// Corrupt images never recover, so their tasks are acked; transient errors
// propagate for redelivery.
func (p *Processor) fail(ctx context.Context, photoID uuid.UUID, cause error, log *slog.Logger) error {
	if err := p.store.MarkPhotoFailed(ctx, photoID, cause.Error()); err != nil {
		log.Error("failed to record processing failure", "error", err)
	}
	observability.PhotosProcessed.WithLabelValues("failed").Inc()

	if errors.Is(cause, extract.ErrCorruptImage) {
		log.Warn("corrupt image, not retrying", "error", cause)
		return nil
	}
	log.Warn("processing failed, will retry", "error", cause)
	return cause
}

func (p *Processor) matchAndClaim(ctx context.Context, photoID uuid.UUID, vectors [][]float32, log *slog.Logger) error {
	if len(vectors) == 0 {
		return nil
	}

	start := time.Now()
	candidates, err := p.matcher.MatchPhoto(ctx, photoID, vectors)
	if err != nil {
		return fmt.Errorf("match photo %s: %w", photoID, err)
	}
	observability.PipelineStageDuration.WithLabelValues("match").Observe(time.Since(start).Seconds())

	for _, cand := range candidates {
		claim, created, err := p.proposer.Propose(ctx, cand)
		if err != nil {
			return fmt.Errorf("propose claim for %s: %w", cand.UserID, err)
		}
		if !created {
			continue
		}
		event := models.ClaimEvent{
			Type:       "claim_created",
			ClaimID:    claim.ID,
			PhotoID:    claim.PhotoID,
			ClaimantID: claim.ClaimantID,
			Status:     claim.Status,
			MatchScore: claim.MatchScore,
			Timestamp:  time.Now().UTC(),
		}
		if err := p.events.PublishClaimEvent(ctx, event); err != nil {
			// Claims are persisted; a lost notification is not worth a re-run.
			log.Warn("failed to publish claim event", "claim_id", claim.ID, "error", err)
		}
		log.Info("claim created", "claimant_id", claim.ClaimantID, "status", claim.Status, "score", claim.MatchScore)
	}
	return nil
}

func photoStatus(p *models.Photo) string {
	if p == nil {
		return "unknown"
	}
	return string(p.Status)
}
