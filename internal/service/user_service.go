package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/skillswap-api/internal/dto"
	"github.com/noah-isme/skillswap-api/internal/models"
	"github.com/noah-isme/skillswap-api/pkg/cache"
	appErrors "github.com/noah-isme/skillswap-api/pkg/errors"
)

const (
	minSuggestionQuery = 2
	maxSuggestions     = 10
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, search models.UserSearch) ([]models.User, int, error)
	SkillSuggestions(ctx context.Context, query string, limit int) ([]string, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

func profileCacheKey(id string) string {
	return cache.Key("profile", id)
}

// UserService serves member profiles and the public directory.
type UserService struct {
	repo      userRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, cacheSvc *CacheService, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, cache: cacheSvc, validator: validate, logger: logger}
}

// Get returns id's profile. Owners always see their own, with private fields;
// everybody else only sees public, unbanned profiles.
func (s *UserService) Get(ctx context.Context, id, callerID string) (*dto.ProfileView, error) {
	owner := id != "" && id == callerID
	if !owner {
		var cached dto.ProfileView
		if s.cache.Get(ctx, profileCacheKey(id), &cached) {
			return &cached, nil
		}
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if owner {
		view := profileView(user, true)
		return &view, nil
	}
	if user.Banned {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	if !user.IsPublic {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "this profile is private")
	}

	view := profileView(user, false)
	s.cache.Set(ctx, profileCacheKey(id), view, 0)
	return &view, nil
}

// Update edits the caller's own profile. Nil fields are left as they are.
func (s *UserService) Update(ctx context.Context, id, callerID string, req dto.UpdateProfileRequest) (*dto.ProfileView, error) {
	if id != callerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only update your own profile")
	}
	trimOptional(req.Name, req.Location, req.Bio, req.ProfilePhotoURL)
	trimSkillList(req.SkillsOffered, req.SkillsWanted, req.Availability)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid profile payload")
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Location != nil {
		user.Location = *req.Location
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
	}
	if req.ProfilePhotoURL != nil {
		user.ProfilePhotoURL = *req.ProfilePhotoURL
	}
	if req.SkillsOffered != nil {
		user.SkillsOffered = *req.SkillsOffered
	}
	if req.SkillsWanted != nil {
		user.SkillsWanted = *req.SkillsWanted
	}
	if req.Availability != nil {
		user.Availability = *req.Availability
	}
	if req.IsPublic != nil {
		user.IsPublic = *req.IsPublic
	}

	if err := s.repo.UpdateProfile(ctx, user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, internalError(err, "failed to update profile")
	}
	s.cache.Invalidate(ctx, profileCacheKey(id))
	s.cache.InvalidatePattern(ctx, cache.Key("suggestions", "*"))

	view := profileView(user, true)
	return &view, nil
}

// Delete removes the caller's own account together with their swaps, feedback and sessions.
func (s *UserService) Delete(ctx context.Context, id, callerID string, meta dto.AuditMeta) error {
	if id != callerID {
		return appErrors.Clone(appErrors.ErrForbidden, "you can only delete your own account")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return internalError(err, "failed to delete account")
	}

	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		Action:     models.AuditActionUserDelete,
		Resource:   "user",
		ResourceID: &id,
		NewValues:  []byte(`{"status":"deleted"}`),
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record account deletion audit log", zap.Error(err))
	}
	s.cache.Invalidate(ctx, profileCacheKey(id))
	s.cache.InvalidatePattern(ctx, cache.Key("suggestions", "*"))
	return nil
}

// Search lists public, unbanned members other than the caller.
func (s *UserService) Search(ctx context.Context, callerID string, query dto.UserSearchQuery) ([]dto.ProfileView, *models.Pagination, error) {
	users, total, err := s.repo.Search(ctx, models.UserSearch{
		Skill:        query.Skill,
		Availability: query.Availability,
		Location:     query.Location,
		ExcludeID:    callerID,
		Page:         query.Page,
		PageSize:     query.PageSize,
	})
	if err != nil {
		return nil, nil, internalError(err, "failed to search users")
	}

	views := make([]dto.ProfileView, 0, len(users))
	for i := range users {
		views = append(views, profileView(&users[i], false))
	}
	page, size, _ := models.NormalizePage(query.Page, query.PageSize)
	return views, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// SkillSuggestions autocompletes skill names. Queries shorter than two characters yield nothing.
func (s *UserService) SkillSuggestions(ctx context.Context, query string) ([]string, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if len([]rune(query)) < minSuggestionQuery {
		return []string{}, nil
	}

	key := cache.Key("suggestions", query, strconv.Itoa(maxSuggestions))
	var cached []string
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	skills, err := s.repo.SkillSuggestions(ctx, query, maxSuggestions)
	if err != nil {
		return nil, internalError(err, "failed to load skill suggestions")
	}
	s.cache.Set(ctx, key, skills, 0)
	return skills, nil
}

func (s *UserService) load(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, internalError(err, "failed to load user")
	}
	return user, nil
}

func trimOptional(fields ...*string) {
	for _, f := range fields {
		if f != nil {
			*f = strings.TrimSpace(*f)
		}
	}
}

func trimSkillList(lists ...*[]string) {
	for _, l := range lists {
		if l != nil {
			*l = trimSkills(*l)
		}
	}
}
