package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/skillswap-api/internal/dto"
	"github.com/noah-isme/skillswap-api/internal/models"
	"github.com/noah-isme/skillswap-api/pkg/response"
)

type feedbackService interface {
	Submit(ctx context.Context, callerID string, req dto.SubmitFeedbackRequest) (*dto.FeedbackView, error)
	Update(ctx context.Context, id, callerID string, req dto.UpdateFeedbackRequest) (*dto.FeedbackView, error)
	Delete(ctx context.Context, id, callerID string) error
	ListReceived(ctx context.Context, userID string, query dto.PageQuery) ([]dto.FeedbackView, *models.Pagination, error)
	ListGiven(ctx context.Context, callerID string, query dto.PageQuery) ([]dto.FeedbackView, *models.Pagination, error)
	ListForUser(ctx context.Context, userID string, query dto.PageQuery) ([]dto.FeedbackView, *models.Pagination, error)
	ListForSwap(ctx context.Context, swapID, callerID string) ([]dto.FeedbackView, error)
}

// FeedbackHandler exposes post-swap ratings.
type FeedbackHandler struct {
	service feedbackService
}

// NewFeedbackHandler constructs a FeedbackHandler.
func NewFeedbackHandler(svc feedbackService) *FeedbackHandler {
	return &FeedbackHandler{service: svc}
}

// Submit godoc
// @Summary Rate the other party of a completed swap
// @Tags Feedback
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.SubmitFeedbackRequest true "Feedback"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /feedback [post]
func (h *FeedbackHandler) Submit(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.SubmitFeedbackRequest
	if !bindJSON(c, &req, "invalid feedback payload") {
		return
	}

	view, err := h.service.Submit(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// Update godoc
// @Summary Edit own feedback inside the edit window
// @Tags Feedback
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Feedback ID"
// @Param payload body dto.UpdateFeedbackRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /feedback/{id} [put]
func (h *FeedbackHandler) Update(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", "feedback not found")
	if !ok {
		return
	}
	var req dto.UpdateFeedbackRequest
	if !bindJSON(c, &req, "invalid feedback payload") {
		return
	}

	view, err := h.service.Update(c.Request.Context(), id, claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

// Delete godoc
// @Summary Delete own feedback inside the edit window
// @Tags Feedback
// @Security BearerAuth
// @Param id path string true "Feedback ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /feedback/{id} [delete]
func (h *FeedbackHandler) Delete(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", "feedback not found")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id, claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListReceived godoc
// @Summary Feedback I received
// @Tags Feedback
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /feedback/my-received [get]
func (h *FeedbackHandler) ListReceived(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	h.page(c, func(ctx context.Context, q dto.PageQuery) ([]dto.FeedbackView, *models.Pagination, error) {
		return h.service.ListReceived(ctx, claims.UserID, q)
	})
}

// ListGiven godoc
// @Summary Feedback I gave
// @Tags Feedback
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /feedback/my-given [get]
func (h *FeedbackHandler) ListGiven(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	h.page(c, func(ctx context.Context, q dto.PageQuery) ([]dto.FeedbackView, *models.Pagination, error) {
		return h.service.ListGiven(ctx, claims.UserID, q)
	})
}

// ListForUser godoc
// @Summary Public feedback for a user
// @Tags Feedback
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /feedback/user/{userId} [get]
func (h *FeedbackHandler) ListForUser(c *gin.Context) {
	userID, ok := idParam(c, "userId", "user not found")
	if !ok {
		return
	}
	h.page(c, func(ctx context.Context, q dto.PageQuery) ([]dto.FeedbackView, *models.Pagination, error) {
		return h.service.ListForUser(ctx, userID, q)
	})
}

// ListForSwap godoc
// @Summary Feedback left on a swap (participants only)
// @Tags Feedback
// @Produce json
// @Security BearerAuth
// @Param swapId path string true "Swap ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /feedback/swap/{swapId} [get]
func (h *FeedbackHandler) ListForSwap(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	swapID, ok := idParam(c, "swapId", "swap request not found")
	if !ok {
		return
	}
	items, err := h.service.ListForSwap(c.Request.Context(), swapID, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

func (h *FeedbackHandler) page(c *gin.Context, list func(context.Context, dto.PageQuery) ([]dto.FeedbackView, *models.Pagination, error)) {
	var query dto.PageQuery
	if !bindQuery(c, &query) {
		return
	}
	items, pagination, err := list(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}
