package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/photoclaim/internal/auth"
	"github.com/your-org/photoclaim/internal/models"
	"github.com/your-org/photoclaim/internal/queue"
	"github.com/your-org/photoclaim/internal/storage"
	"github.com/your-org/photoclaim/pkg/dto"
)

// maxUploadSize caps photo uploads at 50MB.
const maxUploadSize = 50 << 20

// PhotoStore is the slice of the database the photo handlers touch.
type PhotoStore interface {
	CreatePhoto(ctx context.Context, photo *models.Photo) error
	GetPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error)
	ListPhotos(ctx context.Context, f storage.PhotoFilter) ([]models.Photo, error)
	SetPhotoHidden(ctx context.Context, id uuid.UUID, hidden bool) error
}

type PhotoHandler struct {
	db       PhotoStore
	objects  *storage.ObjectStore
	producer *queue.Producer
	// retention is added to the upload time to set the deletion deadline.
	retention time.Duration
}

func NewPhotoHandler(db PhotoStore, objects *storage.ObjectStore, producer *queue.Producer, retention time.Duration) *PhotoHandler {
	return &PhotoHandler{db: db, objects: objects, producer: producer, retention: retention}
}

// Upload accepts a multipart photo, stores the bytes, creates the uploaded
// row and enqueues processing. A failed enqueue is not an upload failure; the
// scanner picks the photo up on its next pass.
func (h *PhotoHandler) Upload(c *gin.Context) {
	identity, _ := auth.IdentityFrom(c)

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return
	}
	defer file.Close()

	if header.Size > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds 50MB limit"})
		return
	}

	imageData, err := io.ReadAll(io.LimitReader(file, maxUploadSize+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read image failed"})
		return
	}
	if len(imageData) > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds 50MB limit"})
		return
	}

	var eventID *uuid.UUID
	if v := c.PostForm("event_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event_id"})
			return
		}
		eventID = &id
	}

	var takenAt *time.Time
	if v := c.PostForm("taken_at"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid taken_at, want RFC3339"})
			return
		}
		takenAt = &t
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	photoID := uuid.New()
	objectKey := "photos/raw/" + photoID.String() + filepath.Ext(header.Filename)

	if err := h.objects.PutObject(c.Request.Context(), objectKey, imageData, mimeType); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store image failed"})
		return
	}

	photo := &models.Photo{
		ID:           photoID,
		EventID:      eventID,
		UploaderID:   identity.UserID,
		OriginalName: header.Filename,
		ObjectKey:    objectKey,
		MimeType:     mimeType,
		TakenAt:      takenAt,
		DeleteAfter:  time.Now().UTC().Add(h.retention),
	}
	if err := h.db.CreatePhoto(c.Request.Context(), photo); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	task := models.PhotoTask{PhotoID: photo.ID, ObjectKey: photo.ObjectKey, EnqueuedAt: time.Now().UTC()}
	if err := h.producer.PublishPhotoTask(c.Request.Context(), task, 0); err != nil {
		// Photo row exists; the scanner re-enqueues it.
		c.Header("X-Enqueue-Deferred", "true")
	}

	c.JSON(http.StatusCreated, photoResponse(photo))
}

func (h *PhotoHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid photo id"})
		return
	}

	photo, err := h.db.GetPhoto(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	identity, _ := auth.IdentityFrom(c)
	if photo == nil || !visibleTo(photo, identity) {
		c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
		return
	}

	c.JSON(http.StatusOK, photoResponse(photo))
}

func (h *PhotoHandler) Feed(c *gin.Context) {
	var q dto.PhotoFeedQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	filter := storage.PhotoFilter{Limit: limit}
	if q.EventID != "" {
		id, err := uuid.Parse(q.EventID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event_id"})
			return
		}
		filter.EventID = &id
	}
	if q.Status != "" {
		status := models.PhotoStatus(q.Status)
		switch status {
		case models.PhotoStatusUploaded, models.PhotoStatusProcessing,
			models.PhotoStatusReady, models.PhotoStatusFailed:
			filter.Status = &status
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
			return
		}
	}
	if q.Cursor != "" {
		id, err := uuid.Parse(q.Cursor)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cursor"})
			return
		}
		filter.Cursor = &id
	}

	photos, err := h.db.ListPhotos(c.Request.Context(), filter)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidCursor) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown cursor"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := dto.PhotoFeedResponse{Photos: make([]dto.PhotoResponse, 0, len(photos))}
	for i := range photos {
		resp.Photos = append(resp.Photos, photoResponse(&photos[i]))
	}
	if len(photos) == limit {
		resp.NextCursor = photos[len(photos)-1].ID.String()
	}

	c.JSON(http.StatusOK, resp)
}

// Hide removes a ready photo from the public feed; Unhide restores it.
// Uploader or admin only.
func (h *PhotoHandler) Hide(c *gin.Context) {
	h.setHidden(c, true)
}

func (h *PhotoHandler) Unhide(c *gin.Context) {
	h.setHidden(c, false)
}

func (h *PhotoHandler) setHidden(c *gin.Context, hidden bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid photo id"})
		return
	}

	photo, err := h.db.GetPhoto(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if photo == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
		return
	}

	identity, _ := auth.IdentityFrom(c)
	if !identity.IsAdmin() && photo.UploaderID != identity.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your photo"})
		return
	}

	if err := h.db.SetPhotoHidden(c.Request.Context(), id, hidden); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	photo, err = h.db.GetPhoto(c.Request.Context(), id)
	if err != nil || photo == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reload photo failed"})
		return
	}
	c.JSON(http.StatusOK, photoResponse(photo))
}

// visibleTo hides moderation and deletion states from everyone except the
// uploader and admins.
func visibleTo(photo *models.Photo, identity auth.Identity) bool {
	switch photo.Status {
	case models.PhotoStatusDeleted:
		return false
	case models.PhotoStatusHidden, models.PhotoStatusDeleting:
		return identity.IsAdmin() || photo.UploaderID == identity.UserID
	default:
		return true
	}
}

func photoResponse(p *models.Photo) dto.PhotoResponse {
	resp := dto.PhotoResponse{
		ID:              p.ID,
		EventID:         p.EventID,
		UploaderID:      p.UploaderID,
		Status:          string(p.Status),
		MimeType:        p.MimeType,
		Width:           p.Width,
		Height:          p.Height,
		FacesCount:      p.FacesCount,
		RetryCount:      p.RetryCount,
		ProcessingError: p.ProcessingError,
		DeleteAfter:     p.DeleteAfter.Format(time.RFC3339),
		CreatedAt:       p.CreatedAt.Format(time.RFC3339),
	}
	if p.ProcessedAt != nil {
		resp.ProcessedAt = p.ProcessedAt.Format(time.RFC3339)
	}
	return resp
}
