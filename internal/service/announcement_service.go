package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/skillswap-api/internal/dto"
	"github.com/noah-isme/skillswap-api/internal/models"
	"github.com/noah-isme/skillswap-api/pkg/cache"
)

type announcementRepository interface {
	List(ctx context.Context, page, size int) ([]models.Announcement, int, error)
	Create(ctx context.Context, a *models.Announcement) error
}

type announcementPage struct {
	Items      []models.Announcement `json:"items"`
	Pagination models.Pagination     `json:"pagination"`
}

// AnnouncementService publishes platform-wide announcements. Listings are read through the cache.
type AnnouncementService struct {
	repo      announcementRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAnnouncementService constructs the service.
func NewAnnouncementService(repo announcementRepository, cacheSvc *CacheService, validate *validator.Validate, logger *zap.Logger) *AnnouncementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnnouncementService{repo: repo, cache: cacheSvc, validator: validate, logger: logger}
}

func (s *AnnouncementService) List(ctx context.Context, query dto.PageQuery) ([]models.Announcement, *models.Pagination, error) {
	page, size, _ := models.NormalizePage(query.Page, query.PageSize)
	key := cache.Key("announcements", strconv.Itoa(page), strconv.Itoa(size))

	var cached announcementPage
	if s.cache.Get(ctx, key, &cached) {
		return cached.Items, &cached.Pagination, nil
	}

	items, total, err := s.repo.List(ctx, page, size)
	if err != nil {
		return nil, nil, internalError(err, "failed to list announcements")
	}
	result := announcementPage{Items: items, Pagination: models.Pagination{Page: page, PageSize: size, TotalCount: total}}
	s.cache.Set(ctx, key, result, 0)
	return result.Items, &result.Pagination, nil
}

func (s *AnnouncementService) Create(ctx context.Context, authorID string, req dto.CreateAnnouncementRequest) (*models.Announcement, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid announcement payload")
	}

	a := &models.Announcement{Title: req.Title, Content: req.Content}
	if authorID != "" {
		a.CreatedBy = &authorID
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, internalError(err, "failed to create announcement")
	}
	s.cache.InvalidatePattern(ctx, cache.Key("announcements", "*"))
	s.logger.Info("announcement published", zap.String("announcement_id", a.ID), zap.String("author_id", authorID))
	return a, nil
}
