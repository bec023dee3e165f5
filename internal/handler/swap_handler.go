package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/skillswap-api/internal/dto"
	"github.com/noah-isme/skillswap-api/internal/models"
	"github.com/noah-isme/skillswap-api/pkg/response"
)

type swapService interface {
	Create(ctx context.Context, requesterID string, req dto.CreateSwapRequest) (*dto.SwapView, error)
	Transition(ctx context.Context, swapID, callerID string, action models.SwapAction, reason string) (*dto.SwapView, error)
	Get(ctx context.Context, swapID, callerID string) (*dto.SwapView, error)
	ListMine(ctx context.Context, callerID string, query dto.SwapListQuery) ([]dto.SwapView, *models.Pagination, error)
}

// SwapHandler exposes the swap request lifecycle.
type SwapHandler struct {
	service swapService
}

// NewSwapHandler constructs a SwapHandler.
func NewSwapHandler(svc swapService) *SwapHandler {
	return &SwapHandler{service: svc}
}

// Create godoc
// @Summary Propose a skill swap
// @Tags Swaps
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateSwapRequest true "Swap proposal"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /swaps [post]
func (h *SwapHandler) Create(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.CreateSwapRequest
	if !bindJSON(c, &req, "invalid swap payload") {
		return
	}

	view, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// ListMine godoc
// @Summary List my swaps
// @Description Swaps where the caller is requester or recipient, newest first
// @Tags Swaps
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending|accepted|rejected|cancelled|completed|all"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /swaps/mine [get]
func (h *SwapHandler) ListMine(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var query dto.SwapListQuery
	if !bindQuery(c, &query) {
		return
	}

	items, pagination, err := h.service.ListMine(c.Request.Context(), claims.UserID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get swap
// @Tags Swaps
// @Produce json
// @Security BearerAuth
// @Param id path string true "Swap ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /swaps/{id} [get]
func (h *SwapHandler) Get(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", "swap request not found")
	if !ok {
		return
	}
	view, err := h.service.Get(c.Request.Context(), id, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

// Accept godoc
// @Summary Accept a pending swap (recipient only)
// @Tags Swaps
// @Produce json
// @Security BearerAuth
// @Param id path string true "Swap ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /swaps/{id}/accept [put]
func (h *SwapHandler) Accept(c *gin.Context) {
	h.transition(c, models.SwapActionAccept)
}

// Reject godoc
// @Summary Reject a pending swap (recipient only)
// @Tags Swaps
// @Produce json
// @Security BearerAuth
// @Param id path string true "Swap ID"
// @Success 200 {object} response.Envelope
// @Router /swaps/{id}/reject [put]
func (h *SwapHandler) Reject(c *gin.Context) {
	h.transition(c, models.SwapActionReject)
}

// Cancel godoc
// @Summary Cancel a pending or accepted swap
// @Tags Swaps
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Swap ID"
// @Param payload body dto.TransitionSwapRequest false "Cancellation reason"
// @Success 200 {object} response.Envelope
// @Router /swaps/{id}/cancel [put]
func (h *SwapHandler) Cancel(c *gin.Context) {
	h.transition(c, models.SwapActionCancel)
}

// Complete godoc
// @Summary Mark an accepted swap as completed
// @Tags Swaps
// @Produce json
// @Security BearerAuth
// @Param id path string true "Swap ID"
// @Success 200 {object} response.Envelope
// @Router /swaps/{id}/complete [put]
func (h *SwapHandler) Complete(c *gin.Context) {
	h.transition(c, models.SwapActionComplete)
}

func (h *SwapHandler) transition(c *gin.Context, action models.SwapAction) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", "swap request not found")
	if !ok {
		return
	}
	var req dto.TransitionSwapRequest
	if action == models.SwapActionCancel && !bindOptionalJSON(c, &req, "invalid cancel payload") {
		return
	}

	view, err := h.service.Transition(c.Request.Context(), id, claims.UserID, action, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}
