package claims

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/your-org/photoclaim/internal/auth"
	"github.com/your-org/photoclaim/internal/config"
	"github.com/your-org/photoclaim/internal/models"
)

// memStore mirrors the database upsert semantics: one active claim per
// (photo, claimant), score only ever raised, status untouched on conflict.
type memStore struct {
	claims map[uuid.UUID]*models.Claim
}

func newMemStore() *memStore {
	return &memStore{claims: make(map[uuid.UUID]*models.Claim)}
}

func (m *memStore) UpsertClaim(ctx context.Context, photoID uuid.UUID, claimantID string, score float32, initial models.ClaimStatus) (*models.Claim, bool, error) {
	for _, c := range m.claims {
		if c.PhotoID == photoID && c.ClaimantID == claimantID && c.Status != models.ClaimStatusRejected {
			if score > c.MatchScore {
				c.MatchScore = score
			}
			cp := *c
			return &cp, false, nil
		}
	}
	c := &models.Claim{
		ID:         uuid.New(),
		PhotoID:    photoID,
		ClaimantID: claimantID,
		Status:     initial,
		MatchScore: score,
	}
	m.claims[c.ID] = c
	cp := *c
	return &cp, true, nil
}

func (m *memStore) GetClaim(ctx context.Context, id uuid.UUID) (*models.Claim, error) {
	c, ok := m.claims[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) SetClaimStatus(ctx context.Context, id uuid.UUID, to models.ClaimStatus, reviewerID string) (*models.Claim, error) {
	c, ok := m.claims[id]
	if !ok || c.Status != models.ClaimStatusPending {
		return nil, nil
	}
	c.Status = to
	c.ReviewedBy = reviewerID
	cp := *c
	return &cp, nil
}

func (m *memStore) ListClaimsByUser(ctx context.Context, userID string) ([]models.ClaimWithPhoto, error) {
	var out []models.ClaimWithPhoto
	for _, c := range m.claims {
		if c.ClaimantID == userID {
			out = append(out, models.ClaimWithPhoto{Claim: *c})
		}
	}
	return out, nil
}

func (m *memStore) ListClaimsByPhoto(ctx context.Context, photoID uuid.UUID) ([]models.Claim, error) {
	var out []models.Claim
	for _, c := range m.claims {
		if c.PhotoID == photoID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func testResolver() (*Resolver, *memStore) {
	store := newMemStore()
	cfg := config.MatchingConfig{MatchThreshold: 0.5, AutoApproveThreshold: 0.8, TopK: 5}
	return NewResolver(store, cfg), store
}

func candidate(user string, photo uuid.UUID, score float32) models.MatchCandidate {
	return models.MatchCandidate{UserID: user, PhotoID: photo, Score: score}
}

func TestProposeKeepsHighestScore(t *testing.T) {
	r, store := testResolver()
	ctx := context.Background()
	photo := uuid.New()

	if _, created, err := r.Propose(ctx, candidate("user-a", photo, 0.7)); err != nil || !created {
		t.Fatalf("first propose: created=%v err=%v; want created", created, err)
	}
	claim, created, err := r.Propose(ctx, candidate("user-a", photo, 0.9))
	if err != nil {
		t.Fatalf("second propose: %v", err)
	}
	if created {
		t.Error("second propose created a duplicate claim")
	}
	if claim.MatchScore != 0.9 {
		t.Errorf("score = %v; want 0.9", claim.MatchScore)
	}
	if len(store.claims) != 1 {
		t.Errorf("claim rows = %d; want 1", len(store.claims))
	}
}

func TestProposeNeverLowersScore(t *testing.T) {
	r, _ := testResolver()
	ctx := context.Background()
	photo := uuid.New()

	_, _, _ = r.Propose(ctx, candidate("user-a", photo, 0.9))
	claim, _, err := r.Propose(ctx, candidate("user-a", photo, 0.7))
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if claim.MatchScore != 0.9 {
		t.Errorf("score = %v; want 0.9 (lower re-propose must not win)", claim.MatchScore)
	}
}

func TestProposeAutoApprove(t *testing.T) {
	r, _ := testResolver()
	ctx := context.Background()

	high, _, err := r.Propose(ctx, candidate("user-a", uuid.New(), 0.85))
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if high.Status != models.ClaimStatusApproved {
		t.Errorf("status = %s; want approved above auto-approve threshold", high.Status)
	}

	low, _, err := r.Propose(ctx, candidate("user-b", uuid.New(), 0.6))
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if low.Status != models.ClaimStatusPending {
		t.Errorf("status = %s; want pending below auto-approve threshold", low.Status)
	}
}

func TestApproveIdempotent(t *testing.T) {
	r, _ := testResolver()
	ctx := context.Background()
	admin := auth.Identity{UserID: "admin-1", Role: auth.RoleAdmin}

	claim, _, _ := r.Propose(ctx, candidate("user-a", uuid.New(), 0.6))

	first, err := r.Approve(ctx, claim.ID, admin)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if first.Status != models.ClaimStatusApproved {
		t.Fatalf("status = %s; want approved", first.Status)
	}

	second, err := r.Approve(ctx, claim.ID, admin)
	if err != nil {
		t.Fatalf("re-approve must be a no-op, got %v", err)
	}
	if second.Status != models.ClaimStatusApproved {
		t.Errorf("status after re-approve = %s", second.Status)
	}
}

func TestApproveRejectedClaimFails(t *testing.T) {
	r, _ := testResolver()
	ctx := context.Background()
	admin := auth.Identity{UserID: "admin-1", Role: auth.RoleAdmin}

	claim, _, _ := r.Propose(ctx, candidate("user-a", uuid.New(), 0.6))
	if _, err := r.Reject(ctx, claim.ID, admin); err != nil {
		t.Fatalf("reject: %v", err)
	}

	_, err := r.Approve(ctx, claim.ID, admin)
	if !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("error = %v; want ErrAlreadyResolved", err)
	}
}

func TestDecideAuthorization(t *testing.T) {
	r, _ := testResolver()
	ctx := context.Background()

	claim, _, _ := r.Propose(ctx, candidate("user-a", uuid.New(), 0.6))

	stranger := auth.Identity{UserID: "user-b", Role: auth.RoleMember}
	if _, err := r.Approve(ctx, claim.ID, stranger); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger approve error = %v; want ErrForbidden", err)
	}

	owner := auth.Identity{UserID: "user-a", Role: auth.RoleMember}
	if _, err := r.Reject(ctx, claim.ID, owner); err != nil {
		t.Errorf("claimant reject error = %v; want nil", err)
	}
}

func TestRejectDoesNotTouchOtherClaims(t *testing.T) {
	r, store := testResolver()
	ctx := context.Background()
	photo := uuid.New()
	admin := auth.Identity{UserID: "admin-1", Role: auth.RoleAdmin}

	// Group photo: claims from two users.
	a, _, _ := r.Propose(ctx, candidate("user-a", photo, 0.6))
	b, _, _ := r.Propose(ctx, candidate("user-b", photo, 0.7))

	if _, err := r.Reject(ctx, a.ID, admin); err != nil {
		t.Fatalf("reject: %v", err)
	}

	other, _ := store.GetClaim(ctx, b.ID)
	if other == nil || other.Status != models.ClaimStatusPending {
		t.Errorf("other user's claim affected: %+v", other)
	}
}

func TestDecideMissingClaim(t *testing.T) {
	r, _ := testResolver()
	admin := auth.Identity{UserID: "admin-1", Role: auth.RoleAdmin}

	_, err := r.Approve(context.Background(), uuid.New(), admin)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v; want ErrNotFound", err)
	}
}
