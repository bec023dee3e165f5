package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/skillswap-api/internal/dto"
	"github.com/noah-isme/skillswap-api/internal/models"
	appErrors "github.com/noah-isme/skillswap-api/pkg/errors"
)

type authServiceMock struct {
	register dto.RegisterRequest
	login    dto.LoginRequest
	refresh  dto.RefreshTokenRequest
	userID   string
	change   dto.ChangePasswordRequest
	tokens   *dto.TokenResponse
	err      error
}

func (m *authServiceMock) Register(ctx context.Context, req dto.RegisterRequest) (*dto.TokenResponse, error) {
	m.register = req
	return m.tokens, m.err
}

func (m *authServiceMock) Login(ctx context.Context, req dto.LoginRequest) (*dto.TokenResponse, error) {
	m.login = req
	return m.tokens, m.err
}

func (m *authServiceMock) Refresh(ctx context.Context, req dto.RefreshTokenRequest) (*dto.TokenResponse, error) {
	m.refresh = req
	return m.tokens, m.err
}

func (m *authServiceMock) Logout(ctx context.Context, userID string, req dto.RefreshTokenRequest) error {
	m.userID, m.refresh = userID, req
	return m.err
}

func (m *authServiceMock) Me(ctx context.Context, userID string) (*dto.AuthUser, error) {
	m.userID = userID
	return &dto.AuthUser{ID: userID, Role: models.RoleUser}, m.err
}

func (m *authServiceMock) ChangePassword(ctx context.Context, userID string, req dto.ChangePasswordRequest) error {
	m.userID, m.change = userID, req
	return m.err
}

func TestAuthHandlerRegisterAndLogin(t *testing.T) {
	svc := &authServiceMock{tokens: &dto.TokenResponse{AccessToken: "a", RefreshToken: "r"}}
	h := NewAuthHandler(svc)

	c, w := newGinContext(http.MethodPost, "/auth/register", mustJSON(t, dto.RegisterRequest{Name: "Ana", Email: "ana@example.com", Password: "secret1"}))
	h.Register(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "ana@example.com", svc.register.Email)
	assert.Equal(t, "handler-test", svc.register.UserAgent)

	c, w = newGinContext(http.MethodPost, "/auth/login", mustJSON(t, dto.LoginRequest{Email: "ana@example.com", Password: "secret1"}))
	h.Login(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "handler-test", svc.login.UserAgent)
	assert.Contains(t, w.Body.String(), `"accessToken":"a"`)
}

func TestAuthHandlerLoginFailures(t *testing.T) {
	h := NewAuthHandler(&authServiceMock{err: appErrors.ErrBannedAccount})
	c, w := newGinContext(http.MethodPost, "/auth/login", []byte(`{"email":"x@example.com","password":"p"}`))
	h.Login(c)
	requireErrorCode(t, w, http.StatusForbidden, appErrors.ErrBannedAccount.Code)

	c, w = newGinContext(http.MethodPost, "/auth/login", []byte(`[]`))
	h.Login(c)
	requireErrorCode(t, w, http.StatusBadRequest, appErrors.ErrValidation.Code)
}

func TestAuthHandlerSessionEndpoints(t *testing.T) {
	svc := &authServiceMock{tokens: &dto.TokenResponse{AccessToken: "a2"}}
	h := NewAuthHandler(svc)

	c, w := newGinContext(http.MethodPost, "/auth/refresh", []byte(`{"refreshToken":"r1"}`))
	h.Refresh(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "r1", svc.refresh.RefreshToken)

	c, w = newGinContext(http.MethodPost, "/auth/logout", []byte(`{"refreshToken":"r2"}`))
	asUser(c, testUser1, models.RoleUser)
	h.Logout(c)
	assert.Equal(t, http.StatusNoContent, flushedCode(c, w))
	assert.Equal(t, testUser1, svc.userID)
	assert.Equal(t, "r2", svc.refresh.RefreshToken)

	c, w = newGinContext(http.MethodGet, "/auth/me", nil)
	asUser(c, "u3", models.RoleUser)
	h.Me(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"u3"`)

	c, w = newGinContext(http.MethodPost, "/auth/change-password", []byte(`{"oldPassword":"a","newPassword":"bbbbbb"}`))
	asUser(c, "u4", models.RoleUser)
	h.ChangePassword(c)
	assert.Equal(t, http.StatusNoContent, flushedCode(c, w))
	assert.Equal(t, "bbbbbb", svc.change.NewPassword)
}

func TestAuthHandlerRequiresCaller(t *testing.T) {
	h := NewAuthHandler(&authServiceMock{})
	c, w := newGinContext(http.MethodGet, "/auth/me", nil)
	h.Me(c)
	requireErrorCode(t, w, http.StatusUnauthorized, appErrors.ErrUnauthorized.Code)
}
