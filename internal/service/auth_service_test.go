package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/skillswap-api/internal/dto"
	"github.com/noah-isme/skillswap-api/internal/models"
	"github.com/noah-isme/skillswap-api/internal/repository"
	appErrors "github.com/noah-isme/skillswap-api/pkg/errors"
)

type mockAuthRepo struct {
	users            map[string]*models.User
	refreshTokens    map[string]*models.RefreshToken
	createRefreshErr error
	auditLogs        []*models.AuditLog
	lastLoginUpdated bool
	revokedAllFor    []string
}

func newMockAuthRepo(users ...*models.User) *mockAuthRepo {
	m := &mockAuthRepo{users: make(map[string]*models.User), refreshTokens: make(map[string]*models.RefreshToken)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	for _, u := range m.users {
		if u.Email == user.Email {
			return fmt.Errorf("create user: %w: users_email_lower_key", repository.ErrUniqueViolation)
		}
	}
	if user.ID == "" {
		user.ID = fmt.Sprintf("u%d", len(m.users)+1)
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if u, ok := m.users[id]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedAllFor = append(m.revokedAllFor, userID)
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.createRefreshErr != nil {
		return m.createRefreshErr
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.refreshTokens {
		if token.ID == id && !token.Revoked {
			token.Revoked = true
			token.RevokedAt = &revokedAt
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func (m *mockAuthRepo) actions() []string {
	out := make([]string, 0, len(m.auditLogs))
	for _, l := range m.auditLogs {
		out = append(out, l.Action)
	}
	return out
}

func newTestAuthService(repo *mockAuthRepo) *AuthService {
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "skillswap-test",
	})
	svc.now = fixedClock
	return svc
}

func hashedUser(id, email, password string) *models.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return &models.User{ID: id, Name: "Member " + id, Email: email, PasswordHash: string(hash), Role: models.RoleUser, IsPublic: true}
}

func TestAuthServiceRegister(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo)

	res, err := svc.Register(context.Background(), dto.RegisterRequest{
		Name:          " Alice ",
		Email:         "Alice@Example.com",
		Password:      "password",
		SkillsOffered: []string{" Guitar ", "Guitar", ""},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	require.NotNil(t, res.User)
	assert.Equal(t, models.RoleUser, res.User.Role)
	assert.Equal(t, "alice@example.com", res.User.Email)

	stored := repo.users[res.User.ID]
	assert.Equal(t, "Alice", stored.Name)
	assert.True(t, stored.IsPublic)
	assert.Equal(t, []string{"Guitar"}, []string(stored.SkillsOffered))
	assert.NotEqual(t, "password", stored.PasswordHash)
	assert.Equal(t, []string{models.AuditActionRegister}, repo.actions())

	_, err = svc.Register(context.Background(), dto.RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "password"})
	assertAppError(t, err, appErrors.ErrConflict)

	_, err = svc.Register(context.Background(), dto.RegisterRequest{Name: "A", Email: "not-an-email", Password: "123"})
	assertAppError(t, err, appErrors.ErrValidation)
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	repo := newMockAuthRepo(hashedUser("u1", "user@example.com", "password"))
	svc := newTestAuthService(repo)

	res, err := svc.Login(context.Background(), dto.LoginRequest{Email: "user@example.com", Password: "password", IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.True(t, repo.lastLoginUpdated)
	assert.Equal(t, []string{models.AuditActionLogin}, repo.actions())
	assert.Equal(t, "10.0.0.1", repo.refreshTokens[res.RefreshToken].IPAddress)
}

func TestAuthServiceLoginFailures(t *testing.T) {
	banned := hashedUser("u2", "banned@example.com", "password")
	banned.Banned = true
	repo := newMockAuthRepo(hashedUser("u1", "user@example.com", "password"), banned)
	svc := newTestAuthService(repo)
	ctx := context.Background()

	_, err := svc.Login(ctx, dto.LoginRequest{Email: "user@example.com", Password: "wrong"})
	assertAppError(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(ctx, dto.LoginRequest{Email: "nobody@example.com", Password: "password"})
	assertAppError(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(ctx, dto.LoginRequest{Email: "banned@example.com", Password: "password"})
	assertAppError(t, err, appErrors.ErrBannedAccount)

	_, err = svc.Login(ctx, dto.LoginRequest{Email: "", Password: ""})
	assertAppError(t, err, appErrors.ErrValidation)

	assert.Empty(t, repo.refreshTokens)
}

func TestAuthServiceLoginNeverElevatesRole(t *testing.T) {
	repo := newMockAuthRepo(hashedUser("u1", "p@p.com", "p"))
	svc := newTestAuthService(repo)

	res, err := svc.Login(context.Background(), dto.LoginRequest{Email: "p@p.com", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, res.User.Role)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, claims.Role)
	assert.Equal(t, models.RoleUser, repo.users["u1"].Role)
}

func TestAuthServiceRefreshRotatesOnce(t *testing.T) {
	user := hashedUser("u1", "user@example.com", "password")
	repo := newMockAuthRepo(user)
	repo.refreshTokens["token"] = &models.RefreshToken{ID: "rt1", UserID: user.ID, Token: "token", ExpiresAt: fixedNow.Add(time.Hour)}
	svc := newTestAuthService(repo)

	res, err := svc.Refresh(context.Background(), dto.RefreshTokenRequest{RefreshToken: "token"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, "token", res.RefreshToken)
	assert.True(t, repo.refreshTokens["token"].Revoked)

	_, err = svc.Refresh(context.Background(), dto.RefreshTokenRequest{RefreshToken: "token"})
	assertAppError(t, err, appErrors.ErrUnauthorized)
}

func TestAuthServiceRefreshRejectsExpiredAndBanned(t *testing.T) {
	user := hashedUser("u1", "user@example.com", "password")
	repo := newMockAuthRepo(user)
	repo.refreshTokens["old"] = &models.RefreshToken{ID: "rt1", UserID: user.ID, Token: "old", ExpiresAt: fixedNow.Add(-time.Minute)}
	repo.refreshTokens["live"] = &models.RefreshToken{ID: "rt2", UserID: user.ID, Token: "live", ExpiresAt: fixedNow.Add(time.Hour)}
	svc := newTestAuthService(repo)

	_, err := svc.Refresh(context.Background(), dto.RefreshTokenRequest{RefreshToken: "old"})
	assertAppError(t, err, appErrors.ErrUnauthorized)

	user.Banned = true
	_, err = svc.Refresh(context.Background(), dto.RefreshTokenRequest{RefreshToken: "live"})
	assertAppError(t, err, appErrors.ErrBannedAccount)
}

func TestAuthServiceLogout(t *testing.T) {
	user := hashedUser("u1", "user@example.com", "password")
	repo := newMockAuthRepo(user)
	repo.refreshTokens["token"] = &models.RefreshToken{ID: "rt1", UserID: user.ID, Token: "token", ExpiresAt: fixedNow.Add(time.Hour)}
	svc := newTestAuthService(repo)

	err := svc.Logout(context.Background(), "someone-else", dto.RefreshTokenRequest{RefreshToken: "token"})
	assertAppError(t, err, appErrors.ErrForbidden)

	require.NoError(t, svc.Logout(context.Background(), "u1", dto.RefreshTokenRequest{RefreshToken: "token"}))
	assert.True(t, repo.refreshTokens["token"].Revoked)
	assert.Contains(t, repo.actions(), models.AuditActionLogout)
}

func TestAuthServiceMe(t *testing.T) {
	user := hashedUser("u1", "user@example.com", "password")
	repo := newMockAuthRepo(user)
	svc := newTestAuthService(repo)

	me, err := svc.Me(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", me.Email)

	_, err = svc.Me(context.Background(), "missing")
	assertAppError(t, err, appErrors.ErrUnauthorized)
}

func TestAuthServiceChangePassword(t *testing.T) {
	user := hashedUser("u1", "user@example.com", "oldpassword")
	oldHash := user.PasswordHash
	repo := newMockAuthRepo(user)
	svc := newTestAuthService(repo)

	err := svc.ChangePassword(context.Background(), "u1", dto.ChangePasswordRequest{OldPassword: "wrong", NewPassword: "newpassword"})
	assertAppError(t, err, appErrors.ErrForbidden)

	err = svc.ChangePassword(context.Background(), "u1", dto.ChangePasswordRequest{OldPassword: "oldpassword", NewPassword: "newpassword"})
	require.NoError(t, err)
	assert.NotEqual(t, oldHash, user.PasswordHash)
	assert.Equal(t, []string{"u1"}, repo.revokedAllFor)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("newpassword")))
}

func TestValidateToken(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo())
	user := &models.User{ID: "u1", Email: "user@example.com", Name: "User", Role: models.RoleAdmin}
	token, err := svc.generateAccessToken(user, fixedNow)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	svc.now = func() time.Time { return fixedNow.Add(2 * time.Hour) }
	_, err = svc.ValidateToken(token)
	assertAppError(t, err, appErrors.ErrUnauthorized)
}

func TestValidateTokenRejectsForeignSignature(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo())
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(fixedNow.Add(time.Hour))}}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(forged)
	assertAppError(t, err, appErrors.ErrUnauthorized)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ValidateToken(unsigned)
	assertAppError(t, err, appErrors.ErrUnauthorized)
}
