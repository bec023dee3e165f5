package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/skillswap-api/internal/dto"
	"github.com/noah-isme/skillswap-api/internal/models"
	"github.com/noah-isme/skillswap-api/pkg/response"
)

type userService interface {
	Get(ctx context.Context, id, callerID string) (*dto.ProfileView, error)
	Update(ctx context.Context, id, callerID string, req dto.UpdateProfileRequest) (*dto.ProfileView, error)
	Delete(ctx context.Context, id, callerID string, meta dto.AuditMeta) error
	Search(ctx context.Context, callerID string, query dto.UserSearchQuery) ([]dto.ProfileView, *models.Pagination, error)
	SkillSuggestions(ctx context.Context, query string) ([]string, error)
}

// UserHandler manages profile endpoints.
type UserHandler struct {
	service userService
}

// NewUserHandler constructs a new user handler.
func NewUserHandler(svc userService) *UserHandler {
	return &UserHandler{service: svc}
}

// Search godoc
// @Summary Search public profiles
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param skill query string false "Skill offered or wanted"
// @Param availability query string false "Availability slot"
// @Param location query string false "Location substring"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /users/search [get]
func (h *UserHandler) Search(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var query dto.UserSearchQuery
	if !bindQuery(c, &query) {
		return
	}

	users, pagination, err := h.service.Search(c.Request.Context(), claims.UserID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, pagination)
}

// SkillSuggestions godoc
// @Summary Autocomplete skill names
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param query query string true "Prefix, at least two characters"
// @Success 200 {object} response.Envelope
// @Router /users/suggestions/skills [get]
func (h *UserHandler) SkillSuggestions(c *gin.Context) {
	skills, err := h.service.SkillSuggestions(c.Request.Context(), c.Query("query"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, skills)
}

// Get godoc
// @Summary Get profile
// @Description Own profile, or another user's public profile
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", "user not found")
	if !ok {
		return
	}
	profile, err := h.service.Get(c.Request.Context(), id, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, profile)
}

// Update godoc
// @Summary Update own profile
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param payload body dto.UpdateProfileRequest true "Profile changes"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users/{id} [put]
func (h *UserHandler) Update(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", "user not found")
	if !ok {
		return
	}
	var req dto.UpdateProfileRequest
	if !bindJSON(c, &req, "invalid profile payload") {
		return
	}

	profile, err := h.service.Update(c.Request.Context(), id, claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, profile)
}

// Delete godoc
// @Summary Delete own account
// @Tags Users
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", "user not found")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id, claims.UserID, auditMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
