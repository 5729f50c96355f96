package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/photoclaim/internal/api/ws"
	"github.com/your-org/photoclaim/internal/auth"
	"github.com/your-org/photoclaim/internal/claims"
	"github.com/your-org/photoclaim/internal/models"
	"github.com/your-org/photoclaim/internal/queue"
	"github.com/your-org/photoclaim/internal/storage"
	"github.com/your-org/photoclaim/pkg/dto"
)

type ClaimHandler struct {
	db       *storage.PostgresStore
	resolver *claims.Resolver
	producer *queue.Producer
	hub      *ws.Hub
}

func NewClaimHandler(db *storage.PostgresStore, resolver *claims.Resolver, producer *queue.Producer, hub *ws.Hub) *ClaimHandler {
	return &ClaimHandler{db: db, resolver: resolver, producer: producer, hub: hub}
}

// ListMine returns the caller's claims, newest first, with photo context.
func (h *ClaimHandler) ListMine(c *gin.Context) {
	identity, _ := auth.IdentityFrom(c)

	list, err := h.resolver.ListForUser(c.Request.Context(), identity.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := dto.ClaimListResponse{Claims: make([]dto.ClaimWithPhotoResponse, 0, len(list))}
	for _, cw := range list {
		resp.Claims = append(resp.Claims, dto.ClaimWithPhotoResponse{
			ClaimResponse: claimResponse(&cw.Claim),
			PhotoEventID:  cw.PhotoEventID,
			PhotoStatus:   string(cw.PhotoStatus),
		})
	}
	resp.Total = len(resp.Claims)
	c.JSON(http.StatusOK, resp)
}

// ListForPhoto returns all claims on a photo. Admin or uploader only.
func (h *ClaimHandler) ListForPhoto(c *gin.Context) {
	photoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid photo id"})
		return
	}

	photo, err := h.db.GetPhoto(c.Request.Context(), photoID)
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

	list, err := h.resolver.ListForPhoto(c.Request.Context(), photoID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.ClaimResponse, 0, len(list))
	for i := range list {
		resp = append(resp, claimResponse(&list[i]))
	}
	c.JSON(http.StatusOK, gin.H{"claims": resp, "total": len(resp)})
}

func (h *ClaimHandler) Approve(c *gin.Context) {
	h.decide(c, models.ClaimStatusApproved)
}

func (h *ClaimHandler) Reject(c *gin.Context) {
	h.decide(c, models.ClaimStatusRejected)
}

func (h *ClaimHandler) decide(c *gin.Context, to models.ClaimStatus) {
	claimID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid claim id"})
		return
	}

	identity, _ := auth.IdentityFrom(c)

	var claim *models.Claim
	if to == models.ClaimStatusApproved {
		claim, err = h.resolver.Approve(c.Request.Context(), claimID, identity)
	} else {
		claim, err = h.resolver.Reject(c.Request.Context(), claimID, identity)
	}
	switch {
	case err == nil:
	case errors.Is(err, claims.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "claim not found"})
		return
	case errors.Is(err, claims.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed to act on this claim"})
		return
	case errors.Is(err, claims.ErrAlreadyResolved):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	event := models.ClaimEvent{
		Type:       "claim_" + string(claim.Status),
		ClaimID:    claim.ID,
		PhotoID:    claim.PhotoID,
		ClaimantID: claim.ClaimantID,
		Status:     claim.Status,
		MatchScore: claim.MatchScore,
		Timestamp:  time.Now().UTC(),
	}
	// Best effort on both channels; the decision itself is committed.
	_ = h.producer.PublishClaimEvent(c.Request.Context(), event)
	h.hub.BroadcastEvent(&dto.WSEvent{
		Type:       event.Type,
		ClaimID:    event.ClaimID,
		PhotoID:    event.PhotoID,
		ClaimantID: event.ClaimantID,
		Status:     string(event.Status),
		MatchScore: event.MatchScore,
		Timestamp:  event.Timestamp.Format(time.RFC3339),
	})

	c.JSON(http.StatusOK, claimResponse(claim))
}

func claimResponse(cl *models.Claim) dto.ClaimResponse {
	return dto.ClaimResponse{
		ID:         cl.ID,
		PhotoID:    cl.PhotoID,
		ClaimantID: cl.ClaimantID,
		Status:     string(cl.Status),
		MatchScore: cl.MatchScore,
		ReviewedBy: cl.ReviewedBy,
		CreatedAt:  cl.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  cl.UpdatedAt.Format(time.RFC3339),
	}
}
