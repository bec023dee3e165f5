package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/skillswap-api/internal/dto"
	"github.com/noah-isme/skillswap-api/internal/models"
	"github.com/noah-isme/skillswap-api/internal/repository"
	appErrors "github.com/noah-isme/skillswap-api/pkg/errors"
	"github.com/noah-isme/skillswap-api/pkg/jobs"
)

type notificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListForUser(ctx context.Context, userID string, page, size int) ([]models.Notification, int, int, error)
	MarkRead(ctx context.Context, id, userID string) (*models.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type notificationQueue interface {
	Enqueue(job jobs.Job) error
}

// NotificationService persists in-app notifications. Writes go through the
// attached queue when one is present and inline otherwise.
type NotificationService struct {
	repo    notificationRepository
	queue   notificationQueue
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

func NewNotificationService(repo notificationRepository, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		repo:    repo,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// AttachQueue routes subsequent Enqueue calls through q. The queue's handler should be HandleJob.
func (s *NotificationService) AttachQueue(q notificationQueue) {
	s.queue = q
}

// Enqueue schedules n for delivery. The id is fixed up front so a retried insert is idempotent.
func (s *NotificationService) Enqueue(ctx context.Context, n models.Notification) error {
	if n.UserID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "notification recipient is required")
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}

	if s.queue == nil {
		err := s.deliver(ctx, n)
		s.metrics.RecordNotification(string(n.Type), err)
		return err
	}

	if err := s.queue.Enqueue(jobs.Job{ID: n.ID, Type: string(n.Type), Payload: n, Enqueued: n.CreatedAt}); err != nil {
		s.metrics.RecordNotification(string(n.Type), err)
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

// HandleJob is the queue handler for notification jobs.
func (s *NotificationService) HandleJob(ctx context.Context, job jobs.Job) error {
	n, ok := job.Payload.(models.Notification)
	if !ok {
		return fmt.Errorf("unexpected notification payload %T", job.Payload)
	}
	return s.deliver(ctx, n)
}

func (s *NotificationService) deliver(ctx context.Context, n models.Notification) error {
	if err := s.repo.Create(ctx, &n); err != nil {
		if errors.Is(err, repository.ErrUniqueViolation) {
			return nil
		}
		return err
	}
	s.logger.Debug("notification stored",
		zap.String("notification_id", n.ID),
		zap.String("user_id", n.UserID),
		zap.String("type", string(n.Type)),
	)
	return nil
}

// List pages the caller's notifications, newest first, with their unread count.
func (s *NotificationService) List(ctx context.Context, userID string, query dto.PageQuery) ([]models.Notification, *models.Pagination, *dto.UnreadCount, error) {
	page, size, _ := models.NormalizePage(query.Page, query.PageSize)
	items, total, unread, err := s.repo.ListForUser(ctx, userID, page, size)
	if err != nil {
		return nil, nil, nil, internalError(err, "failed to list notifications")
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, &dto.UnreadCount{Unread: unread}, nil
}

// MarkRead flags one of the caller's notifications as read. Other users' notifications read as not found.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) (*models.Notification, error) {
	n, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return nil, internalError(err, "failed to mark notification read")
	}
	return n, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	updated, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, internalError(err, "failed to mark notifications read")
	}
	return updated, nil
}
