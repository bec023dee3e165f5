package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/skillswap-api/internal/dto"
	"github.com/noah-isme/skillswap-api/internal/models"
	"github.com/noah-isme/skillswap-api/internal/repository"
	appErrors "github.com/noah-isme/skillswap-api/pkg/errors"
)

const defaultEditWindow = 24 * time.Hour

type feedbackRepository interface {
	CreateWithAggregate(ctx context.Context, fb *models.Feedback) (*models.RatingAggregate, error)
	UpdateWithAggregate(ctx context.Context, fb *models.Feedback) (*models.RatingAggregate, error)
	DeleteWithAggregate(ctx context.Context, fb *models.Feedback) (*models.RatingAggregate, error)
	GetByID(ctx context.Context, id string) (*models.Feedback, error)
	ExistsForRater(ctx context.Context, swapID, fromUserID string) (bool, error)
	List(ctx context.Context, filter models.FeedbackFilter) ([]models.Feedback, int, error)
	ListForSwap(ctx context.Context, swapID string) ([]models.Feedback, error)
}

type swapReader interface {
	GetByID(ctx context.Context, id string) (*models.SwapRequest, error)
}

// FeedbackService gates ratings on completed swaps and keeps the ratee aggregate in step.
type FeedbackService struct {
	feedback   feedbackRepository
	swaps      swapReader
	users      swapUserDirectory
	notifier   notificationSink
	metrics    *MetricsService
	cache      *CacheService
	validator  *validator.Validate
	logger     *zap.Logger
	editWindow time.Duration
	now        func() time.Time
}

func NewFeedbackService(feedback feedbackRepository, swaps swapReader, users swapUserDirectory, notifier notificationSink, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, editWindow time.Duration) *FeedbackService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if editWindow <= 0 {
		editWindow = defaultEditWindow
	}
	return &FeedbackService{
		feedback:   feedback,
		swaps:      swaps,
		users:      users,
		notifier:   notifier,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		editWindow: editWindow,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// UseCache lets rating changes evict the ratee's cached public profile.
func (s *FeedbackService) UseCache(c *CacheService) {
	s.cache = c
}

// Submit records callerID's rating of the other participant of a completed swap.
func (s *FeedbackService) Submit(ctx context.Context, callerID string, req dto.SubmitFeedbackRequest) (view *dto.FeedbackView, err error) {
	defer func() { s.metrics.RecordFeedback("create", err) }()

	req.SwapRequestID = strings.TrimSpace(req.SwapRequestID)
	req.ToUserID = strings.TrimSpace(req.ToUserID)
	req.Comment = strings.TrimSpace(req.Comment)
	req.SkillRated = strings.TrimSpace(req.SkillRated)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid feedback payload")
	}

	swap, err := s.swaps.GetByID(ctx, req.SwapRequestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "swap request not found")
		}
		return nil, internalError(err, "failed to load swap request")
	}
	if swap.Status != models.SwapCompleted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "feedback can only be given for completed swaps")
	}
	if !swap.IsParticipant(callerID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you are not a participant in this swap")
	}
	if req.ToUserID == callerID {
		return nil, appErrors.Clone(appErrors.ErrSelfReference, "cannot rate yourself")
	}
	if req.ToUserID != swap.OtherParty(callerID) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user being rated must be part of this swap")
	}

	exists, err := s.feedback.ExistsForRater(ctx, swap.ID, callerID)
	if err != nil {
		return nil, internalError(err, "failed to check existing feedback")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "you have already given feedback for this swap")
	}

	fb := &models.Feedback{
		SwapRequestID: swap.ID,
		FromUserID:    callerID,
		ToUserID:      req.ToUserID,
		Rating:        req.Rating,
		Comment:       req.Comment,
		SkillRated:    req.SkillRated,
		CreatedAt:     s.now(),
	}
	agg, err := s.feedback.CreateWithAggregate(ctx, fb)
	if err != nil {
		if errors.Is(err, repository.ErrUniqueViolation) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "you have already given feedback for this swap")
		}
		return nil, internalError(err, "failed to save feedback")
	}
	s.afterAggregate(ctx, agg)

	users := s.resolve(ctx, fb.FromUserID, fb.ToUserID)
	if s.notifier != nil {
		n := models.Notification{
			UserID:        fb.ToUserID,
			Type:          models.NotificationFeedback,
			Message:       fmt.Sprintf("You received a new rating from %s.", summaryFrom(users, callerID).Name),
			SwapRequestID: &fb.SwapRequestID,
		}
		if err := s.notifier.Enqueue(ctx, n); err != nil {
			s.logger.Warn("failed to enqueue notification", zap.String("user_id", n.UserID), zap.String("type", string(n.Type)), zap.Error(err))
		}
	}

	result := feedbackView(fb, users)
	return &result, nil
}

// Update lets the author revise rating or comment within the edit window.
func (s *FeedbackService) Update(ctx context.Context, id, callerID string, req dto.UpdateFeedbackRequest) (view *dto.FeedbackView, err error) {
	defer func() { s.metrics.RecordFeedback("update", err) }()

	if req.Comment != nil {
		trimmed := strings.TrimSpace(*req.Comment)
		req.Comment = &trimmed
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid feedback payload")
	}

	fb, err := s.editable(ctx, id, callerID)
	if err != nil {
		return nil, err
	}
	if req.Rating != nil {
		fb.Rating = *req.Rating
	}
	if req.Comment != nil {
		fb.Comment = *req.Comment
	}

	agg, err := s.feedback.UpdateWithAggregate(ctx, fb)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "feedback not found")
		}
		return nil, internalError(err, "failed to update feedback")
	}
	s.afterAggregate(ctx, agg)

	result := feedbackView(fb, s.resolve(ctx, fb.FromUserID, fb.ToUserID))
	return &result, nil
}

// Delete removes the caller's own feedback within the edit window.
func (s *FeedbackService) Delete(ctx context.Context, id, callerID string) (err error) {
	defer func() { s.metrics.RecordFeedback("delete", err) }()

	fb, err := s.editable(ctx, id, callerID)
	if err != nil {
		return err
	}
	agg, err := s.feedback.DeleteWithAggregate(ctx, fb)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "feedback not found")
		}
		return internalError(err, "failed to delete feedback")
	}
	s.afterAggregate(ctx, agg)
	return nil
}

func (s *FeedbackService) editable(ctx context.Context, id, callerID string) (*models.Feedback, error) {
	fb, err := s.feedback.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "feedback not found")
		}
		return nil, internalError(err, "failed to load feedback")
	}
	if fb.FromUserID != callerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only modify your own feedback")
	}
	if s.now().Sub(fb.CreatedAt) > s.editWindow {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("feedback can only be modified within %s", humanizeWindow(s.editWindow)))
	}
	return fb, nil
}

// ListReceived pages feedback where userID is the ratee.
func (s *FeedbackService) ListReceived(ctx context.Context, userID string, query dto.PageQuery) ([]dto.FeedbackView, *models.Pagination, error) {
	return s.list(ctx, models.FeedbackFilter{ToUserID: userID, Page: query.Page, PageSize: query.PageSize})
}

// ListGiven pages feedback authored by callerID.
func (s *FeedbackService) ListGiven(ctx context.Context, callerID string, query dto.PageQuery) ([]dto.FeedbackView, *models.Pagination, error) {
	return s.list(ctx, models.FeedbackFilter{FromUserID: callerID, Page: query.Page, PageSize: query.PageSize})
}

// ListForUser is the public view of a user's received feedback. Banned users read as not found.
func (s *FeedbackService) ListForUser(ctx context.Context, userID string, query dto.PageQuery) ([]dto.FeedbackView, *models.Pagination, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, nil, internalError(err, "failed to load user")
	}
	if user.Banned {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	return s.ListReceived(ctx, user.ID, query)
}

// ListAll pages every feedback row for moderation.
func (s *FeedbackService) ListAll(ctx context.Context, query dto.PageQuery) ([]dto.FeedbackView, *models.Pagination, error) {
	return s.list(ctx, models.FeedbackFilter{Page: query.Page, PageSize: query.PageSize})
}

// ListForSwap returns both ratings of a swap to one of its participants.
func (s *FeedbackService) ListForSwap(ctx context.Context, swapID, callerID string) ([]dto.FeedbackView, error) {
	swap, err := s.swaps.GetByID(ctx, swapID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "swap request not found")
		}
		return nil, internalError(err, "failed to load swap request")
	}
	if !swap.IsParticipant(callerID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you are not a participant in this swap")
	}

	items, err := s.feedback.ListForSwap(ctx, swap.ID)
	if err != nil {
		return nil, internalError(err, "failed to list feedback")
	}
	users := s.resolve(ctx, swap.RequesterID, swap.RecipientID)
	views := make([]dto.FeedbackView, 0, len(items))
	for i := range items {
		views = append(views, feedbackView(&items[i], users))
	}
	return views, nil
}

func (s *FeedbackService) list(ctx context.Context, filter models.FeedbackFilter) ([]dto.FeedbackView, *models.Pagination, error) {
	items, total, err := s.feedback.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list feedback")
	}
	ids := make([]string, 0, len(items)*2)
	for _, fb := range items {
		ids = append(ids, fb.FromUserID, fb.ToUserID)
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, nil, internalError(err, "failed to resolve feedback users")
	}
	views := make([]dto.FeedbackView, 0, len(items))
	for i := range items {
		views = append(views, feedbackView(&items[i], users))
	}
	page, size, _ := models.NormalizePage(filter.Page, filter.PageSize)
	return views, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func (s *FeedbackService) resolve(ctx context.Context, ids ...string) map[string]models.User {
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("failed to resolve feedback users", zap.Strings("user_ids", ids), zap.Error(err))
		return map[string]models.User{}
	}
	return users
}

func (s *FeedbackService) afterAggregate(ctx context.Context, agg *models.RatingAggregate) {
	if agg == nil {
		return
	}
	s.cache.Invalidate(ctx, profileCacheKey(agg.UserID))
	s.logger.Debug("rating recomputed",
		zap.String("user_id", agg.UserID),
		zap.Float64("rating", agg.Average),
		zap.Int("total_ratings", agg.Count),
	)
}

func humanizeWindow(d time.Duration) string {
	if d%time.Hour == 0 {
		hours := int(d / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return d.String()
}
