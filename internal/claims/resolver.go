// Package claims arbitrates match candidates into claims and owns the
// claim status transitions.
package claims

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/your-org/photoclaim/internal/auth"
	"github.com/your-org/photoclaim/internal/config"
	"github.com/your-org/photoclaim/internal/models"
	"github.com/your-org/photoclaim/internal/observability"
)

var (
	ErrNotFound  = errors.New("claim not found")
	ErrForbidden = errors.New("not allowed to act on this claim")
	// ErrAlreadyResolved is the consistency error for transitioning a claim
	// that already carries the opposite decision.
	ErrAlreadyResolved = errors.New("claim already resolved")
)

// Store is the persistence surface the resolver needs.
type Store interface {
	UpsertClaim(ctx context.Context, photoID uuid.UUID, claimantID string, score float32, initial models.ClaimStatus) (*models.Claim, bool, error)
	GetClaim(ctx context.Context, id uuid.UUID) (*models.Claim, error)
	SetClaimStatus(ctx context.Context, id uuid.UUID, to models.ClaimStatus, reviewerID string) (*models.Claim, error)
	ListClaimsByUser(ctx context.Context, userID string) ([]models.ClaimWithPhoto, error)
	ListClaimsByPhoto(ctx context.Context, photoID uuid.UUID) ([]models.Claim, error)
}

type Resolver struct {
	store Store
	cfg   config.MatchingConfig
}

func NewResolver(store Store, cfg config.MatchingConfig) *Resolver {
	return &Resolver{store: store, cfg: cfg}
}

// Propose upserts a claim for a match candidate. High-confidence matches are
// approved directly; the rest await review. Re-proposing an existing active
// claim only ever raises its score, never lowers it or changes its status.
// Returns the claim and whether it was newly created.
func (r *Resolver) Propose(ctx context.Context, candidate models.MatchCandidate) (*models.Claim, bool, error) {
	initial := models.ClaimStatusPending
	if float64(candidate.Score) >= r.cfg.AutoApproveThreshold {
		initial = models.ClaimStatusApproved
	}

	claim, created, err := r.store.UpsertClaim(ctx, candidate.PhotoID, candidate.UserID, candidate.Score, initial)
	if err != nil {
		return nil, false, fmt.Errorf("propose claim: %w", err)
	}
	if created {
		observability.ClaimsCreated.WithLabelValues(string(claim.Status)).Inc()
	}
	return claim, created, nil
}

// Approve transitions a pending claim to approved. Idempotent: approving an
// approved claim is a no-op. Approving someone's claim requires the admin
// role; claimants may approve their own.
func (r *Resolver) Approve(ctx context.Context, claimID uuid.UUID, actor auth.Identity) (*models.Claim, error) {
	return r.decide(ctx, claimID, models.ClaimStatusApproved, actor)
}

// Reject transitions a pending claim to rejected. Rejecting never deletes
// the photo or its embeddings; it only releases the (photo, claimant) slot.
func (r *Resolver) Reject(ctx context.Context, claimID uuid.UUID, actor auth.Identity) (*models.Claim, error) {
	return r.decide(ctx, claimID, models.ClaimStatusRejected, actor)
}

func (r *Resolver) decide(ctx context.Context, claimID uuid.UUID, to models.ClaimStatus, actor auth.Identity) (*models.Claim, error) {
	claim, err := r.store.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if claim == nil {
		return nil, ErrNotFound
	}
	if !actor.IsAdmin() && actor.UserID != claim.ClaimantID {
		return nil, ErrForbidden
	}
	if claim.Status == to {
		return claim, nil
	}
	if claim.Status != models.ClaimStatusPending {
		return nil, fmt.Errorf("claim %s is %s: %w", claimID, claim.Status, ErrAlreadyResolved)
	}

	updated, err := r.store.SetClaimStatus(ctx, claimID, to, actor.UserID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		// Lost a race with another reviewer; re-read and settle.
		claim, err = r.store.GetClaim(ctx, claimID)
		if err != nil {
			return nil, err
		}
		if claim != nil && claim.Status == to {
			return claim, nil
		}
		return nil, fmt.Errorf("claim %s: %w", claimID, ErrAlreadyResolved)
	}

	observability.ClaimDecisions.WithLabelValues(string(to)).Inc()
	return updated, nil
}

// ListForUser returns the caller's claims with photo references.
func (r *Resolver) ListForUser(ctx context.Context, userID string) ([]models.ClaimWithPhoto, error) {
	return r.store.ListClaimsByUser(ctx, userID)
}

// ListForPhoto returns all claims on a photo, best match first.
func (r *Resolver) ListForPhoto(ctx context.Context, photoID uuid.UUID) ([]models.Claim, error) {
	return r.store.ListClaimsByPhoto(ctx, photoID)
}
