package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/photoclaim/internal/config"
	"github.com/your-org/photoclaim/internal/lifecycle"
	"github.com/your-org/photoclaim/internal/models"
)

// ErrNotFound is returned by operations that require an existing row.
var ErrNotFound = errors.New("not found")

// ErrInvalidCursor is returned by ListPhotos when the pagination cursor
// does not name an existing photo.
var ErrInvalidCursor = errors.New("invalid cursor")

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Photos ---

const photoCols = `id, event_id, uploader_id, original_name, object_key, display_key,
	mime_type, width, height, taken_at, status, retry_count, processing_error,
	faces_count, processed_at, delete_after, version, created_at, updated_at`

func scanPhoto(row pgx.Row) (*models.Photo, error) {
	p := &models.Photo{}
	err := row.Scan(&p.ID, &p.EventID, &p.UploaderID, &p.OriginalName, &p.ObjectKey,
		&p.DisplayKey, &p.MimeType, &p.Width, &p.Height, &p.TakenAt, &p.Status,
		&p.RetryCount, &p.ProcessingError, &p.FacesCount, &p.ProcessedAt,
		&p.DeleteAfter, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) CreatePhoto(ctx context.Context, p *models.Photo) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.Status = models.PhotoStatusUploaded
	err := s.pool.QueryRow(ctx,
		`INSERT INTO photos (id, event_id, uploader_id, original_name, object_key, display_key,
			mime_type, width, height, taken_at, status, delete_after)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING version, created_at, updated_at`,
		p.ID, p.EventID, p.UploaderID, p.OriginalName, p.ObjectKey, p.DisplayKey,
		p.MimeType, p.Width, p.Height, p.TakenAt, p.Status, p.DeleteAfter,
	).Scan(&p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create photo: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error) {
	p, err := scanPhoto(s.pool.QueryRow(ctx,
		`SELECT `+photoCols+` FROM photos WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get photo: %w", err)
	}
	return p, nil
}

// PhotoFilter narrows ListPhotos. Cursor is keyset pagination: return photos
// created strictly before the cursor photo.
type PhotoFilter struct {
	EventID *uuid.UUID
	Status  *models.PhotoStatus
	Cursor  *uuid.UUID
	Limit   int
}

func (s *PostgresStore) ListPhotos(ctx context.Context, f PhotoFilter) ([]models.Photo, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}

	// Without an explicit status filter the feed hides moderation and
	// deletion states.
	where := "WHERE status NOT IN ('deleting', 'deleted', 'hidden')"
	args := []interface{}{}
	argIdx := 1

	if f.Status != nil {
		where = fmt.Sprintf("WHERE status = $%d", argIdx)
		args = append(args, *f.Status)
		argIdx++
	}
	if f.EventID != nil {
		where += fmt.Sprintf(" AND event_id = $%d", argIdx)
		args = append(args, *f.EventID)
		argIdx++
	}
	if f.Cursor != nil {
		// Resolve the cursor first: a correlated subquery over a missing
		// row compares against NULL and silently empties the page.
		var cursorAt time.Time
		var cursorID uuid.UUID
		err := s.pool.QueryRow(ctx,
			`SELECT created_at, id FROM photos WHERE id = $1`, *f.Cursor,
		).Scan(&cursorAt, &cursorID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrInvalidCursor
			}
			return nil, fmt.Errorf("resolve cursor: %w", err)
		}
		where += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, cursorAt, cursorID)
		argIdx += 2
	}

	query := fmt.Sprintf(`SELECT %s FROM photos %s ORDER BY created_at DESC, id DESC LIMIT $%d`,
		photoCols, where, argIdx)
	args = append(args, f.Limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, *p)
	}
	return photos, rows.Err()
}

// ListQueueable returns photos eligible for (re-)enqueueing: uploaded, or
// failed with retries remaining, oldest first.
func (s *PostgresStore) ListQueueable(ctx context.Context, maxRetries, limit int) ([]models.Photo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+photoCols+` FROM photos
		 WHERE status = 'uploaded' OR (status = 'failed' AND retry_count < $1)
		 ORDER BY created_at ASC
		 LIMIT $2`, maxRetries, limit)
	if err != nil {
		return nil, fmt.Errorf("list queueable photos: %w", err)
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, *p)
	}
	return photos, rows.Err()
}

// ClaimForProcessing atomically moves a photo to processing. Exactly one
// caller wins; losers get ErrStaleTransition (someone else owns the photo or
// it moved on) or ErrRetryExhausted (permanently failed). A retry from
// failed consumes one retry.
func (s *PostgresStore) ClaimForProcessing(ctx context.Context, id uuid.UUID, maxRetries int) (*models.Photo, error) {
	p, err := scanPhoto(s.pool.QueryRow(ctx,
		`UPDATE photos SET
			status = 'processing',
			retry_count = CASE WHEN status = 'failed' THEN retry_count + 1 ELSE retry_count END,
			processing_error = '',
			version = version + 1,
			updated_at = now()
		 WHERE id = $1
		   AND (status = 'uploaded' OR (status = 'failed' AND retry_count < $2))
		 RETURNING `+photoCols, id, maxRetries))
	if err == nil {
		return p, nil
	}
	if err != pgx.ErrNoRows {
		return nil, fmt.Errorf("claim photo for processing: %w", err)
	}

	current, err := s.GetPhoto(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("photo %s: %w", id, ErrNotFound)
	}
	if current.Status == models.PhotoStatusFailed && current.RetryCount >= maxRetries {
		return current, lifecycle.ErrRetryExhausted
	}
	return current, lifecycle.ErrStaleTransition
}

// conditionalUpdate runs an UPDATE expected to touch one row; zero rows means
// the photo changed status concurrently.
func (s *PostgresStore) conditionalUpdate(ctx context.Context, id uuid.UUID, query string, args ...interface{}) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update photo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		current, err := s.GetPhoto(ctx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("photo %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("photo %s in status %s: %w", id, current.Status, lifecycle.ErrStaleTransition)
	}
	return nil
}

// MarkPhotoReady completes a processing cycle: sets facesCount and processedAt.
func (s *PostgresStore) MarkPhotoReady(ctx context.Context, id uuid.UUID, facesCount int) error {
	return s.conditionalUpdate(ctx, id,
		`UPDATE photos SET status = 'ready', faces_count = $2, processed_at = now(),
			processing_error = '', version = version + 1, updated_at = now()
		 WHERE id = $1 AND status = 'processing'`, id, facesCount)
}

// MarkPhotoFailed records the failure reason; the photo stays eligible for
// retry until retry_count reaches the limit.
func (s *PostgresStore) MarkPhotoFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return s.conditionalUpdate(ctx, id,
		`UPDATE photos SET status = 'failed', processing_error = $2,
			version = version + 1, updated_at = now()
		 WHERE id = $1 AND status = 'processing'`, id, reason)
}

// MarkPhotoDeleting starts the deletion flow from any non-terminal state.
func (s *PostgresStore) MarkPhotoDeleting(ctx context.Context, id uuid.UUID) error {
	return s.conditionalUpdate(ctx, id,
		`UPDATE photos SET status = 'deleting', version = version + 1, updated_at = now()
		 WHERE id = $1 AND status NOT IN ('deleting', 'deleted')`, id)
}

func (s *PostgresStore) MarkPhotoDeleted(ctx context.Context, id uuid.UUID) error {
	return s.conditionalUpdate(ctx, id,
		`UPDATE photos SET status = 'deleted', version = version + 1, updated_at = now()
		 WHERE id = $1 AND status = 'deleting'`, id)
}

// SetPhotoHidden toggles a ready photo out of (or back into) the public feed.
func (s *PostgresStore) SetPhotoHidden(ctx context.Context, id uuid.UUID, hidden bool) error {
	if hidden {
		return s.conditionalUpdate(ctx, id,
			`UPDATE photos SET status = 'hidden', version = version + 1, updated_at = now()
			 WHERE id = $1 AND status = 'ready'`, id)
	}
	return s.conditionalUpdate(ctx, id,
		`UPDATE photos SET status = 'ready', version = version + 1, updated_at = now()
		 WHERE id = $1 AND status = 'hidden'`, id)
}

// ResetStaleProcessing moves photos stuck in processing since before cutoff
// back to failed so the scanner can re-enqueue them. Returns how many were reset.
func (s *PostgresStore) ResetStaleProcessing(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE photos SET status = 'failed', processing_error = 'processing timed out',
			version = version + 1, updated_at = now()
		 WHERE status = 'processing' AND updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("reset stale processing: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListExpiredPhotos returns photos past their retention deadline, including
// those stuck in deleting from an interrupted sweep. When skipApproved is set,
// photos carrying an approved claim are held back.
func (s *PostgresStore) ListExpiredPhotos(ctx context.Context, now time.Time, skipApproved bool, limit int) ([]models.Photo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+photoCols+` FROM photos p
		 WHERE p.delete_after <= $1
		   AND p.status <> 'deleted'
		   AND (NOT $2 OR NOT EXISTS (
			SELECT 1 FROM claims c WHERE c.photo_id = p.id AND c.status = 'approved'))
		 ORDER BY p.delete_after ASC
		 LIMIT $3`, now, skipApproved, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired photos: %w", err)
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, *p)
	}
	return photos, rows.Err()
}
