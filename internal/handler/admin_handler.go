package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/skillswap-api/internal/dto"
	"github.com/noah-isme/skillswap-api/internal/models"
	"github.com/noah-isme/skillswap-api/pkg/response"
)

type adminService interface {
	ListUsers(ctx context.Context, query dto.AdminUserQuery) ([]dto.AdminUserView, *models.Pagination, error)
	Ban(ctx context.Context, adminID, userID string, meta dto.AuditMeta) (*dto.AdminUserView, error)
	Unban(ctx context.Context, adminID, userID string, meta dto.AuditMeta) (*dto.AdminUserView, error)
	SetRole(ctx context.Context, adminID, userID string, req dto.SetRoleRequest, meta dto.AuditMeta) (*dto.AdminUserView, error)
	UpdateSkills(ctx context.Context, adminID, userID string, req dto.AdminUpdateSkillsRequest, meta dto.AuditMeta) (*dto.AdminUserView, error)
	ListSwaps(ctx context.Context, query dto.SwapListQuery) ([]dto.SwapView, *models.Pagination, error)
	DeleteSwap(ctx context.Context, adminID, swapID string, meta dto.AuditMeta) error
	DeleteFeedback(ctx context.Context, adminID, feedbackID string, meta dto.AuditMeta) error
}

type feedbackLister interface {
	ListAll(ctx context.Context, query dto.PageQuery) ([]dto.FeedbackView, *models.Pagination, error)
}

// AdminHandler exposes moderation endpoints. Routes are mounted behind RBAC(ADMIN).
type AdminHandler struct {
	service  adminService
	feedback feedbackLister
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(svc adminService, feedback feedbackLister) *AdminHandler {
	return &AdminHandler{service: svc, feedback: feedback}
}

// ListUsers godoc
// @Summary List accounts
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param search query string false "Name or email substring"
// @Param role query string false "USER|ADMIN"
// @Param banned query bool false "Ban filter"
// @Success 200 {object} response.Envelope
// @Router /admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	var query dto.AdminUserQuery
	if !bindQuery(c, &query) {
		return
	}
	users, pagination, err := h.service.ListUsers(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, pagination)
}

// Ban godoc
// @Summary Ban an account
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /admin/users/{id}/ban [put]
func (h *AdminHandler) Ban(c *gin.Context) {
	h.userAction(c, h.service.Ban)
}

// Unban godoc
// @Summary Lift a ban
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /admin/users/{id}/unban [put]
func (h *AdminHandler) Unban(c *gin.Context) {
	h.userAction(c, h.service.Unban)
}

// SetRole godoc
// @Summary Grant or revoke the ADMIN role
// @Description Audited. Admins cannot demote themselves.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param payload body dto.SetRoleRequest true "Role"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/users/{id}/role [put]
func (h *AdminHandler) SetRole(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", "user not found")
	if !ok {
		return
	}
	var req dto.SetRoleRequest
	if !bindJSON(c, &req, "invalid role payload") {
		return
	}
	user, err := h.service.SetRole(c.Request.Context(), claims.UserID, id, req, auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, user)
}

// UpdateSkills godoc
// @Summary Moderate a user's skills or bio
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param payload body dto.AdminUpdateSkillsRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Router /admin/users/{id}/skills [put]
func (h *AdminHandler) UpdateSkills(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", "user not found")
	if !ok {
		return
	}
	var req dto.AdminUpdateSkillsRequest
	if !bindJSON(c, &req, "invalid skills payload") {
		return
	}
	user, err := h.service.UpdateSkills(c.Request.Context(), claims.UserID, id, req, auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, user)
}

// ListSwaps godoc
// @Summary List all swaps
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "Status filter"
// @Success 200 {object} response.Envelope
// @Router /admin/swaps [get]
func (h *AdminHandler) ListSwaps(c *gin.Context) {
	var query dto.SwapListQuery
	if !bindQuery(c, &query) {
		return
	}
	swaps, pagination, err := h.service.ListSwaps(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, swaps, pagination)
}

// DeleteSwap godoc
// @Summary Delete a swap and its feedback
// @Tags Admin
// @Security BearerAuth
// @Param id path string true "Swap ID"
// @Success 204
// @Router /admin/swaps/{id} [delete]
func (h *AdminHandler) DeleteSwap(c *gin.Context) {
	h.deleteAction(c, "swap request not found", h.service.DeleteSwap)
}

// ListFeedback godoc
// @Summary List all feedback
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/feedback [get]
func (h *AdminHandler) ListFeedback(c *gin.Context) {
	var query dto.PageQuery
	if !bindQuery(c, &query) {
		return
	}
	items, pagination, err := h.feedback.ListAll(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// DeleteFeedback godoc
// @Summary Delete feedback and recompute the ratee's rating
// @Tags Admin
// @Security BearerAuth
// @Param id path string true "Feedback ID"
// @Success 204
// @Router /admin/feedback/{id} [delete]
func (h *AdminHandler) DeleteFeedback(c *gin.Context) {
	h.deleteAction(c, "feedback not found", h.service.DeleteFeedback)
}

func (h *AdminHandler) userAction(c *gin.Context, action func(ctx context.Context, adminID, userID string, meta dto.AuditMeta) (*dto.AdminUserView, error)) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", "user not found")
	if !ok {
		return
	}
	user, err := action(c.Request.Context(), claims.UserID, id, auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, user)
}

func (h *AdminHandler) deleteAction(c *gin.Context, notFound string, action func(ctx context.Context, adminID, id string, meta dto.AuditMeta) error) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", notFound)
	if !ok {
		return
	}
	if err := action(c.Request.Context(), claims.UserID, id, auditMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
