package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/your-org/photoclaim/internal/models"
)

const claimCols = `id, photo_id, claimant_id, status, match_score, reviewed_by, created_at, updated_at`

func scanClaim(row pgx.Row) (*models.Claim, error) {
	c := &models.Claim{}
	err := row.Scan(&c.ID, &c.PhotoID, &c.ClaimantID, &c.Status, &c.MatchScore,
		&c.ReviewedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// UpsertClaim inserts a claim or, when an active (non-rejected) claim for the
// same (photo, claimant) exists, raises its score to the max of old and new.
// The existing status is never changed by an upsert. Returns the claim and
// whether a new row was inserted.
func (s *PostgresStore) UpsertClaim(ctx context.Context, photoID uuid.UUID, claimantID string, score float32, initial models.ClaimStatus) (*models.Claim, bool, error) {
	c := &models.Claim{}
	var inserted bool
	// xmax = 0 distinguishes a fresh insert from a conflict update.
	err := s.pool.QueryRow(ctx,
		`INSERT INTO claims (id, photo_id, claimant_id, status, match_score)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (photo_id, claimant_id) WHERE status <> 'rejected' DO UPDATE SET
			match_score = GREATEST(claims.match_score, EXCLUDED.match_score),
			updated_at = now()
		 RETURNING `+claimCols+`, (xmax = 0)`,
		uuid.New(), photoID, claimantID, initial, score,
	).Scan(&c.ID, &c.PhotoID, &c.ClaimantID, &c.Status, &c.MatchScore,
		&c.ReviewedBy, &c.CreatedAt, &c.UpdatedAt, &inserted)
	if err != nil {
		return nil, false, fmt.Errorf("upsert claim: %w", err)
	}
	return c, inserted, nil
}

func (s *PostgresStore) GetClaim(ctx context.Context, id uuid.UUID) (*models.Claim, error) {
	c, err := scanClaim(s.pool.QueryRow(ctx,
		`SELECT `+claimCols+` FROM claims WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get claim: %w", err)
	}
	return c, nil
}

// SetClaimStatus transitions a pending claim. Zero rows means the claim is
// not pending anymore; callers decide whether that is an idempotent no-op.
func (s *PostgresStore) SetClaimStatus(ctx context.Context, id uuid.UUID, to models.ClaimStatus, reviewerID string) (*models.Claim, error) {
	c, err := scanClaim(s.pool.QueryRow(ctx,
		`UPDATE claims SET status = $2, reviewed_by = $3, updated_at = now()
		 WHERE id = $1 AND status = 'pending'
		 RETURNING `+claimCols, id, to, reviewerID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("set claim status: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListClaimsByUser(ctx context.Context, userID string) ([]models.ClaimWithPhoto, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT c.id, c.photo_id, c.claimant_id, c.status, c.match_score, c.reviewed_by,
			c.created_at, c.updated_at,
			p.event_id, p.object_key, p.display_key, p.status
		 FROM claims c
		 JOIN photos p ON p.id = c.photo_id
		 WHERE c.claimant_id = $1 AND p.status NOT IN ('deleting', 'deleted')
		 ORDER BY c.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list claims by user: %w", err)
	}
	defer rows.Close()

	var claims []models.ClaimWithPhoto
	for rows.Next() {
		var cw models.ClaimWithPhoto
		if err := rows.Scan(&cw.ID, &cw.PhotoID, &cw.ClaimantID, &cw.Status, &cw.MatchScore,
			&cw.ReviewedBy, &cw.CreatedAt, &cw.UpdatedAt,
			&cw.PhotoEventID, &cw.PhotoObjectKey, &cw.PhotoDisplayKey, &cw.PhotoStatus); err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		claims = append(claims, cw)
	}
	return claims, rows.Err()
}

func (s *PostgresStore) ListClaimsByPhoto(ctx context.Context, photoID uuid.UUID) ([]models.Claim, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+claimCols+` FROM claims WHERE photo_id = $1 ORDER BY match_score DESC`, photoID)
	if err != nil {
		return nil, fmt.Errorf("list claims by photo: %w", err)
	}
	defer rows.Close()

	var claims []models.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		claims = append(claims, *c)
	}
	return claims, rows.Err()
}
