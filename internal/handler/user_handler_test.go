package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/skillswap-api/internal/dto"
	"github.com/noah-isme/skillswap-api/internal/models"
	appErrors "github.com/noah-isme/skillswap-api/pkg/errors"
)

type userServiceMock struct {
	id       string
	callerID string
	search   dto.UserSearchQuery
	suggest  string
	update   dto.UpdateProfileRequest
	err      error
}

func (m *userServiceMock) Get(ctx context.Context, id, callerID string) (*dto.ProfileView, error) {
	m.id, m.callerID = id, callerID
	if m.err != nil {
		return nil, m.err
	}
	return &dto.ProfileView{ID: id, Name: "Ana"}, nil
}

func (m *userServiceMock) Update(ctx context.Context, id, callerID string, req dto.UpdateProfileRequest) (*dto.ProfileView, error) {
	m.id, m.callerID, m.update = id, callerID, req
	return &dto.ProfileView{ID: id}, m.err
}

func (m *userServiceMock) Delete(ctx context.Context, id, callerID string, meta dto.AuditMeta) error {
	m.id, m.callerID = id, callerID
	return m.err
}

func (m *userServiceMock) Search(ctx context.Context, callerID string, query dto.UserSearchQuery) ([]dto.ProfileView, *models.Pagination, error) {
	m.callerID, m.search = callerID, query
	return []dto.ProfileView{}, &models.Pagination{Page: 1}, m.err
}

func (m *userServiceMock) SkillSuggestions(ctx context.Context, query string) ([]string, error) {
	m.suggest = query
	return []string{"Go", "Golf"}, m.err
}

func TestUserHandlerGetPrivateProfile(t *testing.T) {
	h := NewUserHandler(&userServiceMock{err: appErrors.Clone(appErrors.ErrForbidden, "this profile is private")})
	c, w := newGinContext(http.MethodGet, "/users/u2", nil)
	c.Params = gin.Params{{Key: "id", Value: testUser2}}
	asUser(c, testUser1, models.RoleUser)
	h.Get(c)
	requireErrorCode(t, w, http.StatusForbidden, appErrors.ErrForbidden.Code)
}

func TestUserHandlerSearchAndSuggestions(t *testing.T) {
	svc := &userServiceMock{}
	h := NewUserHandler(svc)

	c, w := newGinContext(http.MethodGet, "/users/search?skill=go&location=berlin", nil)
	asUser(c, testUser1, models.RoleUser)
	h.Search(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "go", svc.search.Skill)
	assert.Equal(t, "berlin", svc.search.Location)
	assert.Equal(t, testUser1, svc.callerID)

	c, w = newGinContext(http.MethodGet, "/users/suggestions/skills?query=go", nil)
	asUser(c, testUser1, models.RoleUser)
	h.SkillSuggestions(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "go", svc.suggest)
	assert.JSONEq(t, `["Go","Golf"]`, string(decode(t, w).Data))
}

func TestUserHandlerUpdateAndDelete(t *testing.T) {
	svc := &userServiceMock{}
	h := NewUserHandler(svc)

	c, w := newGinContext(http.MethodPut, "/users/u1", []byte(`{"bio":"hi","isPublic":false}`))
	c.Params = gin.Params{{Key: "id", Value: testUser1}}
	asUser(c, testUser1, models.RoleUser)
	h.Update(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.update.IsPublic)
	assert.False(t, *svc.update.IsPublic)

	c, w = newGinContext(http.MethodDelete, "/users/u1", nil)
	c.Params = gin.Params{{Key: "id", Value: testUser1}}
	asUser(c, testUser1, models.RoleUser)
	h.Delete(c)
	assert.Equal(t, http.StatusNoContent, flushedCode(c, w))
}
