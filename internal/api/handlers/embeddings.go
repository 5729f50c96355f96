package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/photoclaim/internal/auth"
	"github.com/your-org/photoclaim/internal/extract"
	"github.com/your-org/photoclaim/internal/models"
	"github.com/your-org/photoclaim/internal/storage"
	"github.com/your-org/photoclaim/pkg/dto"
)

type EmbeddingHandler struct {
	db        *storage.PostgresStore
	extractor extract.Extractor
}

func NewEmbeddingHandler(db *storage.PostgresStore, extractor extract.Extractor) *EmbeddingHandler {
	return &EmbeddingHandler{db: db, extractor: extractor}
}

// Enroll registers a face embedding for the caller. Accepts either a
// precomputed vector as JSON or a selfie as a multipart "image" field, which
// must contain exactly one face.
func (h *EmbeddingHandler) Enroll(c *gin.Context) {
	identity, _ := auth.IdentityFrom(c)

	embedding, ok := h.resolveEmbedding(c)
	if !ok {
		return
	}

	ue, err := h.db.AddUserEmbedding(c.Request.Context(), identity.UserID, embedding)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, embeddingResponse(ue))
}

func (h *EmbeddingHandler) resolveEmbedding(c *gin.Context) ([]float32, bool) {
	if strings.HasPrefix(c.ContentType(), "application/json") {
		var req dto.EnrollEmbeddingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return nil, false
		}
		if len(req.Embedding) != models.EmbeddingDim {
			c.JSON(http.StatusBadRequest, gin.H{"error": "embedding must have 1024 dimensions"})
			return nil, false
		}
		return req.Embedding, true
	}

	file, _, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "embedding or image required"})
		return nil, false
	}
	defer file.Close()

	imageData, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read image failed"})
		return nil, false
	}

	faces, err := h.extractor.Extract(c.Request.Context(), imageData)
	switch {
	case errors.Is(err, extract.ErrCorruptImage):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "corrupt or unsupported image"})
		return nil, false
	case err != nil:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "face extraction unavailable"})
		return nil, false
	}
	if len(faces) != 1 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "selfie must contain exactly one face"})
		return nil, false
	}
	return faces[0].Embedding, true
}

func (h *EmbeddingHandler) List(c *gin.Context) {
	identity, _ := auth.IdentityFrom(c)

	list, err := h.db.ListUserEmbeddings(c.Request.Context(), identity.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := dto.UserEmbeddingListResponse{Embeddings: make([]dto.UserEmbeddingResponse, 0, len(list))}
	for i := range list {
		resp.Embeddings = append(resp.Embeddings, embeddingResponse(&list[i]))
	}
	resp.Total = len(resp.Embeddings)
	c.JSON(http.StatusOK, resp)
}

func (h *EmbeddingHandler) Activate(c *gin.Context) {
	h.setActive(c, true)
}

func (h *EmbeddingHandler) Deactivate(c *gin.Context) {
	h.setActive(c, false)
}

func (h *EmbeddingHandler) setActive(c *gin.Context, active bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid embedding id"})
		return
	}

	identity, _ := auth.IdentityFrom(c)
	if err := h.db.SetUserEmbeddingActive(c.Request.Context(), identity.UserID, id, active); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "embedding not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "is_active": active})
}

func embeddingResponse(ue *models.UserEmbedding) dto.UserEmbeddingResponse {
	return dto.UserEmbeddingResponse{
		ID:        ue.ID,
		UserID:    ue.UserID,
		IsActive:  ue.IsActive,
		CreatedAt: ue.CreatedAt.Format(time.RFC3339),
	}
}
