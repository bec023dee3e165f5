package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/skillswap-api/internal/dto"
	"github.com/noah-isme/skillswap-api/internal/models"
	appErrors "github.com/noah-isme/skillswap-api/pkg/errors"
)

type adminUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	SetBanned(ctx context.Context, id string, banned bool) error
	SetRole(ctx context.Context, id string, role models.UserRole) error
	UpdateSkills(ctx context.Context, user *models.User) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type adminSwapRepository interface {
	GetByID(ctx context.Context, id string) (*models.SwapRequest, error)
	ListAll(ctx context.Context, filter models.SwapFilter) ([]models.SwapRequest, int, error)
	Delete(ctx context.Context, id string) error
}

type adminFeedbackRepository interface {
	GetByID(ctx context.Context, id string) (*models.Feedback, error)
	DeleteWithAggregate(ctx context.Context, fb *models.Feedback) (*models.RatingAggregate, error)
}

// AdminService carries the moderation operations. Every mutation is written to the audit trail.
type AdminService struct {
	users     adminUserRepository
	swaps     adminSwapRepository
	feedback  adminFeedbackRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

func NewAdminService(users adminUserRepository, swaps adminSwapRepository, feedback adminFeedbackRepository, cacheSvc *CacheService, validate *validator.Validate, logger *zap.Logger) *AdminService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminService{users: users, swaps: swaps, feedback: feedback, cache: cacheSvc, validator: validate, logger: logger}
}

func (s *AdminService) ListUsers(ctx context.Context, query dto.AdminUserQuery) ([]dto.AdminUserView, *models.Pagination, error) {
	filter := models.UserFilter{Search: query.Search, Banned: query.Banned, Page: query.Page, PageSize: query.PageSize}
	if raw := strings.ToUpper(strings.TrimSpace(query.Role)); raw != "" {
		role := models.UserRole(raw)
		if !role.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown role filter")
		}
		filter.Role = &role
	}

	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list users")
	}
	views := make([]dto.AdminUserView, 0, len(users))
	for i := range users {
		views = append(views, adminUserView(&users[i]))
	}
	page, size, _ := models.NormalizePage(query.Page, query.PageSize)
	return views, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Ban blocks a member from signing in and ends their sessions. Administrators cannot be banned.
func (s *AdminService) Ban(ctx context.Context, adminID, userID string, meta dto.AuditMeta) (*dto.AdminUserView, error) {
	if adminID == userID {
		return nil, appErrors.Clone(appErrors.ErrSelfReference, "you cannot ban yourself")
	}
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role == models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "administrators cannot be banned")
	}
	return s.setBanned(ctx, adminID, user, true, meta)
}

func (s *AdminService) Unban(ctx context.Context, adminID, userID string, meta dto.AuditMeta) (*dto.AdminUserView, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.setBanned(ctx, adminID, user, false, meta)
}

func (s *AdminService) setBanned(ctx context.Context, adminID string, user *models.User, banned bool, meta dto.AuditMeta) (*dto.AdminUserView, error) {
	if err := s.users.SetBanned(ctx, user.ID, banned); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, internalError(err, "failed to update ban status")
	}
	action := models.AuditActionUserUnban
	if banned {
		action = models.AuditActionUserBan
	}
	s.audit(ctx, adminID, action, "user", user.ID, map[string]bool{"banned": user.Banned}, map[string]bool{"banned": banned}, meta)
	s.cache.Invalidate(ctx, profileCacheKey(user.ID))

	user.Banned = banned
	view := adminUserView(user)
	return &view, nil
}

// SetRole is the only way to grant or revoke ADMIN. Administrators cannot demote themselves,
// and the target's refresh sessions are ended so the new role takes effect on next sign-in.
func (s *AdminService) SetRole(ctx context.Context, adminID, userID string, req dto.SetRoleRequest, meta dto.AuditMeta) (*dto.AdminUserView, error) {
	req.Role = models.UserRole(strings.ToUpper(strings.TrimSpace(string(req.Role))))
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid role payload")
	}
	if adminID == userID && req.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "administrators cannot demote themselves")
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role == req.Role {
		view := adminUserView(user)
		return &view, nil
	}
	if user.Banned && req.Role == models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrConflict, "banned users cannot be promoted")
	}

	if err := s.users.SetRole(ctx, user.ID, req.Role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, internalError(err, "failed to update role")
	}
	if err := s.users.RevokeUserRefreshTokens(ctx, user.ID); err != nil {
		s.logger.Warn("failed to revoke sessions after role change", zap.String("user_id", user.ID), zap.Error(err))
	}
	s.audit(ctx, adminID, models.AuditActionRoleChange, "user", user.ID,
		map[string]models.UserRole{"role": user.Role}, map[string]models.UserRole{"role": req.Role}, meta)
	s.logger.Info("role changed",
		zap.String("admin_id", adminID),
		zap.String("user_id", user.ID),
		zap.String("from", string(user.Role)),
		zap.String("to", string(req.Role)),
	)

	user.Role = req.Role
	view := adminUserView(user)
	return &view, nil
}

// UpdateSkills lets moderators clean up a member's skill lists and bio.
func (s *AdminService) UpdateSkills(ctx context.Context, adminID, userID string, req dto.AdminUpdateSkillsRequest, meta dto.AuditMeta) (*dto.AdminUserView, error) {
	trimSkillList(req.SkillsOffered, req.SkillsWanted)
	trimOptional(req.Bio)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid skills payload")
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	before := map[string]interface{}{"skillsOffered": nonNil(user.SkillsOffered), "skillsWanted": nonNil(user.SkillsWanted), "bio": user.Bio}
	if req.SkillsOffered != nil {
		user.SkillsOffered = *req.SkillsOffered
	}
	if req.SkillsWanted != nil {
		user.SkillsWanted = *req.SkillsWanted
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
	}

	if err := s.users.UpdateSkills(ctx, user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, internalError(err, "failed to update skills")
	}
	after := map[string]interface{}{"skillsOffered": nonNil(user.SkillsOffered), "skillsWanted": nonNil(user.SkillsWanted), "bio": user.Bio}
	s.audit(ctx, adminID, models.AuditActionSkillsUpdate, "user", user.ID, before, after, meta)
	s.cache.Invalidate(ctx, profileCacheKey(user.ID))

	view := adminUserView(user)
	return &view, nil
}

// ListSwaps pages every swap on the platform, newest first.
func (s *AdminService) ListSwaps(ctx context.Context, query dto.SwapListQuery) ([]dto.SwapView, *models.Pagination, error) {
	status, err := parseSwapStatus(query.Status)
	if err != nil {
		return nil, nil, err
	}
	swaps, total, err := s.swaps.ListAll(ctx, models.SwapFilter{Status: status, Page: query.Page, PageSize: query.PageSize})
	if err != nil {
		return nil, nil, internalError(err, "failed to list swap requests")
	}

	ids := make([]string, 0, len(swaps)*2)
	for _, sw := range swaps {
		ids = append(ids, sw.RequesterID, sw.RecipientID)
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, nil, internalError(err, "failed to resolve swap participants")
	}
	views := make([]dto.SwapView, 0, len(swaps))
	for i := range swaps {
		views = append(views, swapView(&swaps[i], users, ""))
	}
	page, size, _ := models.NormalizePage(query.Page, query.PageSize)
	return views, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// DeleteSwap removes a swap with its feedback; both participants' ratings are recomputed.
func (s *AdminService) DeleteSwap(ctx context.Context, adminID, swapID string, meta dto.AuditMeta) error {
	swap, err := s.swaps.GetByID(ctx, swapID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "swap request not found")
		}
		return internalError(err, "failed to load swap request")
	}
	if err := s.swaps.Delete(ctx, swap.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "swap request not found")
		}
		return internalError(err, "failed to delete swap request")
	}
	s.audit(ctx, adminID, models.AuditActionSwapDelete, "swap_request", swap.ID, swap, nil, meta)
	s.cache.Invalidate(ctx, profileCacheKey(swap.RequesterID), profileCacheKey(swap.RecipientID))
	return nil
}

// DeleteFeedback removes a rating regardless of author or age and recomputes the ratee aggregate.
func (s *AdminService) DeleteFeedback(ctx context.Context, adminID, feedbackID string, meta dto.AuditMeta) error {
	fb, err := s.feedback.GetByID(ctx, feedbackID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "feedback not found")
		}
		return internalError(err, "failed to load feedback")
	}
	if _, err := s.feedback.DeleteWithAggregate(ctx, fb); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "feedback not found")
		}
		return internalError(err, "failed to delete feedback")
	}
	s.audit(ctx, adminID, models.AuditActionFeedbackDelete, "feedback", fb.ID, fb, nil, meta)
	s.cache.Invalidate(ctx, profileCacheKey(fb.ToUserID))
	return nil
}

func (s *AdminService) loadUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, internalError(err, "failed to load user")
	}
	return user, nil
}

func (s *AdminService) audit(ctx context.Context, adminID, action, resource, resourceID string, oldValues, newValues interface{}, meta dto.AuditMeta) {
	entry := &models.AuditLog{
		UserID:     &adminID,
		Action:     action,
		Resource:   resource,
		ResourceID: &resourceID,
		OldValues:  marshalAudit(oldValues),
		NewValues:  marshalAudit(newValues),
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}
	if err := s.users.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.String("resource_id", resourceID), zap.Error(err))
	}
}

func marshalAudit(v interface{}) []byte {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}

func adminUserView(u *models.User) dto.AdminUserView {
	return dto.AdminUserView{
		ProfileView: profileView(u, true),
		Banned:      u.Banned,
		LastLogin:   u.LastLogin,
		UpdatedAt:   u.UpdatedAt,
	}
}
