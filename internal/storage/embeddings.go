package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/photoclaim/internal/models"
)

// --- Photo embeddings ---

// UpsertPhotoEmbedding persists one detected face. Keyed on
// (photo_id, face_index) so re-running extraction for the same photo
// overwrites instead of duplicating.
func (s *PostgresStore) UpsertPhotoEmbedding(ctx context.Context, photoID uuid.UUID, faceIndex int, embedding []float32, bbox [4]int) (*models.PhotoEmbedding, error) {
	pe := &models.PhotoEmbedding{
		ID:        uuid.New(),
		PhotoID:   photoID,
		FaceIndex: faceIndex,
		Embedding: embedding,
		BBox:      bbox,
	}
	vec := pgvector.NewVector(embedding)
	err := s.pool.QueryRow(ctx,
		`INSERT INTO photo_embeddings (id, photo_id, face_index, embedding, bbox)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (photo_id, face_index) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			bbox = EXCLUDED.bbox,
			updated_at = now()
		 RETURNING id, created_at, updated_at`,
		pe.ID, pe.PhotoID, pe.FaceIndex, vec, bbox[:],
	).Scan(&pe.ID, &pe.CreatedAt, &pe.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert photo embedding: %w", err)
	}
	return pe, nil
}

// TrimPhotoEmbeddings drops faces beyond keep, for re-extractions that found
// fewer faces than a previous run.
func (s *PostgresStore) TrimPhotoEmbeddings(ctx context.Context, photoID uuid.UUID, keep int) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM photo_embeddings WHERE photo_id = $1 AND face_index >= $2`,
		photoID, keep)
	if err != nil {
		return fmt.Errorf("trim photo embeddings: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeletePhotoEmbeddings(ctx context.Context, photoID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM photo_embeddings WHERE photo_id = $1`, photoID)
	if err != nil {
		return fmt.Errorf("delete photo embeddings: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPhotoEmbeddings(ctx context.Context, photoID uuid.UUID) ([]models.PhotoEmbedding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, photo_id, face_index, embedding, bbox, created_at, updated_at
		 FROM photo_embeddings WHERE photo_id = $1 ORDER BY face_index`, photoID)
	if err != nil {
		return nil, fmt.Errorf("list photo embeddings: %w", err)
	}
	defer rows.Close()

	var embeddings []models.PhotoEmbedding
	for rows.Next() {
		var pe models.PhotoEmbedding
		var vec pgvector.Vector
		var bbox []int32
		if err := rows.Scan(&pe.ID, &pe.PhotoID, &pe.FaceIndex, &vec, &bbox,
			&pe.CreatedAt, &pe.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan photo embedding: %w", err)
		}
		pe.Embedding = vec.Slice()
		for i := 0; i < len(bbox) && i < 4; i++ {
			pe.BBox[i] = int(bbox[i])
		}
		embeddings = append(embeddings, pe)
	}
	return embeddings, rows.Err()
}

// --- User embeddings ---

func (s *PostgresStore) AddUserEmbedding(ctx context.Context, userID string, embedding []float32) (*models.UserEmbedding, error) {
	ue := &models.UserEmbedding{
		ID:        uuid.New(),
		UserID:    userID,
		Embedding: embedding,
		IsActive:  true,
	}
	vec := pgvector.NewVector(embedding)
	err := s.pool.QueryRow(ctx,
		`INSERT INTO user_embeddings (id, user_id, embedding, is_active)
		 VALUES ($1, $2, $3, $4) RETURNING created_at, updated_at`,
		ue.ID, ue.UserID, vec, ue.IsActive,
	).Scan(&ue.CreatedAt, &ue.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("add user embedding: %w", err)
	}
	return ue, nil
}

// SetUserEmbeddingActive flips matching participation for one embedding.
// Scoped to the owning user so one user cannot toggle another's enrollment.
func (s *PostgresStore) SetUserEmbeddingActive(ctx context.Context, userID string, id uuid.UUID, active bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE user_embeddings SET is_active = $3, updated_at = now()
		 WHERE id = $1 AND user_id = $2`, id, userID, active)
	if err != nil {
		return fmt.Errorf("set user embedding active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user embedding %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListUserEmbeddings(ctx context.Context, userID string) ([]models.UserEmbedding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, is_active, created_at, updated_at
		 FROM user_embeddings WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user embeddings: %w", err)
	}
	defer rows.Close()

	var embeddings []models.UserEmbedding
	for rows.Next() {
		var ue models.UserEmbedding
		if err := rows.Scan(&ue.ID, &ue.UserID, &ue.IsActive, &ue.CreatedAt, &ue.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user embedding: %w", err)
		}
		embeddings = append(embeddings, ue)
	}
	return embeddings, rows.Err()
}

// ListActiveUserEmbeddings loads every active embedding with its vector, for
// building the in-memory index.
func (s *PostgresStore) ListActiveUserEmbeddings(ctx context.Context) ([]models.UserEmbedding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, embedding, is_active, created_at, updated_at
		 FROM user_embeddings WHERE is_active`)
	if err != nil {
		return nil, fmt.Errorf("list active user embeddings: %w", err)
	}
	defer rows.Close()

	var embeddings []models.UserEmbedding
	for rows.Next() {
		var ue models.UserEmbedding
		var vec pgvector.Vector
		if err := rows.Scan(&ue.ID, &ue.UserID, &vec, &ue.IsActive, &ue.CreatedAt, &ue.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user embedding: %w", err)
		}
		ue.Embedding = vec.Slice()
		embeddings = append(embeddings, ue)
	}
	return embeddings, rows.Err()
}

func (s *PostgresStore) DeleteUserEmbeddings(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM user_embeddings WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user embeddings: %w", err)
	}
	return nil
}

// SearchUserEmbeddings finds the k nearest active user embeddings to the
// query face under L2 distance.
func (s *PostgresStore) SearchUserEmbeddings(ctx context.Context, embedding []float32, k int) ([]models.UserNeighbor, error) {
	if k <= 0 {
		k = 5
	}
	vec := pgvector.NewVector(embedding)

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, embedding <-> $1 AS distance, updated_at
		 FROM user_embeddings
		 WHERE is_active
		 ORDER BY embedding <-> $1
		 LIMIT $2`, vec, k)
	if err != nil {
		return nil, fmt.Errorf("search user embeddings: %w", err)
	}
	defer rows.Close()

	var neighbors []models.UserNeighbor
	for rows.Next() {
		var n models.UserNeighbor
		if err := rows.Scan(&n.EmbeddingID, &n.UserID, &n.Distance, &n.EnrolledAt); err != nil {
			return nil, fmt.Errorf("scan neighbor: %w", err)
		}
		neighbors = append(neighbors, n)
	}
	return neighbors, rows.Err()
}
