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

const (
	maxReasonLength = 200

	msgActiveSwapExists = "there is already an active swap request between you and this user"
)

type swapRepository interface {
	Create(ctx context.Context, swap *models.SwapRequest) error
	GetByID(ctx context.Context, id string) (*models.SwapRequest, error)
	FindActiveBetween(ctx context.Context, a, b string) (*models.SwapRequest, error)
	Transition(ctx context.Context, patch models.SwapTransitionPatch) (*models.SwapRequest, error)
	ListForUser(ctx context.Context, filter models.SwapFilter) ([]models.SwapRequest, int, error)
}

type swapUserDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]models.User, error)
}

// notificationSink accepts notifications for asynchronous delivery.
type notificationSink interface {
	Enqueue(ctx context.Context, n models.Notification) error
}

// SwapService owns the swap lifecycle: the creation guard, the state machine and the read paths.
type SwapService struct {
	swaps     swapRepository
	users     swapUserDirectory
	notifier  notificationSink
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

func NewSwapService(swaps swapRepository, users swapUserDirectory, notifier notificationSink, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *SwapService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SwapService{
		swaps:     swaps,
		users:     users,
		notifier:  notifier,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create opens a pending swap from requesterID to req.RecipientID.
func (s *SwapService) Create(ctx context.Context, requesterID string, req dto.CreateSwapRequest) (view *dto.SwapView, err error) {
	defer func() { s.metrics.RecordSwapCreated(err) }()

	req.RecipientID = strings.TrimSpace(req.RecipientID)
	req.RequesterSkill = strings.TrimSpace(req.RequesterSkill)
	req.RecipientSkill = strings.TrimSpace(req.RecipientSkill)
	req.Message = strings.TrimSpace(req.Message)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid swap request payload")
	}

	requester, err := s.users.FindByID(ctx, requesterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists")
		}
		return nil, internalError(err, "failed to load requester")
	}
	if requester.Banned {
		return nil, appErrors.ErrBannedAccount
	}

	recipient, err := s.users.FindByID(ctx, req.RecipientID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, internalError(err, "failed to load recipient")
	}
	if recipient == nil || recipient.Banned {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "recipient not found")
	}
	if !recipient.IsPublic {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot send request to private profile")
	}
	if recipient.ID == requester.ID {
		return nil, appErrors.Clone(appErrors.ErrSelfReference, "cannot swap with yourself")
	}
	if !requester.Offers(req.RequesterSkill) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "you must offer the skill you are proposing")
	}
	if !recipient.Offers(req.RecipientSkill) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "recipient does not offer the requested skill")
	}

	existing, err := s.swaps.FindActiveBetween(ctx, requester.ID, recipient.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, internalError(err, "failed to check existing swaps")
	}
	if existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, msgActiveSwapExists)
	}

	swap := &models.SwapRequest{
		RequesterID:    requester.ID,
		RecipientID:    recipient.ID,
		RequesterSkill: req.RequesterSkill,
		RecipientSkill: req.RecipientSkill,
		Message:        req.Message,
		ScheduledDate:  req.ScheduledDate,
		CreatedAt:      s.now(),
	}
	if err := s.swaps.Create(ctx, swap); err != nil {
		if errors.Is(err, repository.ErrUniqueViolation) {
			return nil, appErrors.Clone(appErrors.ErrConflict, msgActiveSwapExists)
		}
		return nil, internalError(err, "failed to create swap request")
	}

	s.notify(ctx, models.Notification{
		UserID:        recipient.ID,
		Type:          models.NotificationSwapRequest,
		Message:       fmt.Sprintf("%s sent you a swap request.", requester.Name),
		SwapRequestID: &swap.ID,
	})

	result := swapView(swap, map[string]models.User{requester.ID: *requester, recipient.ID: *recipient}, requester.ID)
	return &result, nil
}

// Transition applies action to swapID on behalf of callerID.
// Checks run in order: known action, reason length, swap exists, caller is a
// participant, caller may perform the action, current state allows it.
func (s *SwapService) Transition(ctx context.Context, swapID, callerID string, action models.SwapAction, reason string) (view *dto.SwapView, err error) {
	defer func() { s.metrics.RecordSwapTransition(string(action), err) }()

	rule, ok := models.LookupTransition(action)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown swap action %q", action))
	}
	reason = strings.TrimSpace(reason)
	if len([]rune(reason)) > maxReasonLength {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cancellation reason must be at most 200 characters")
	}

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
	if rule.Actor == models.ActorRecipient && swap.RecipientID != callerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("only the recipient can %s this swap", action))
	}
	if !rule.Allows(swap.Status) {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("cannot %s a swap that is %s", action, swap.Status))
	}

	now := s.now()
	patch := models.SwapTransitionPatch{ID: swap.ID, From: rule.From, To: rule.To, UpdatedAt: now}
	switch action {
	case models.SwapActionComplete:
		patch.CompletedAt = &now
	case models.SwapActionCancel:
		patch.CancelledBy = &callerID
		patch.CancellationReason = reason
	}

	updated, err := s.swaps.Transition(ctx, patch)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("swap request changed before it could be %s", rule.To))
		}
		return nil, internalError(err, "failed to update swap request")
	}

	users, err := s.users.FindByIDs(ctx, []string{updated.RequesterID, updated.RecipientID})
	if err != nil {
		s.logger.Warn("failed to resolve swap participants", zap.String("swap_id", updated.ID), zap.Error(err))
		users = map[string]models.User{}
	}

	recipientName := summaryFrom(users, updated.RecipientID).Name
	switch action {
	case models.SwapActionAccept:
		s.notify(ctx, models.Notification{
			UserID:        updated.RequesterID,
			Type:          models.NotificationSwapAccepted,
			Message:       fmt.Sprintf("%s accepted your swap request!", recipientName),
			SwapRequestID: &updated.ID,
		})
	case models.SwapActionReject:
		s.notify(ctx, models.Notification{
			UserID:        updated.RequesterID,
			Type:          models.NotificationSwapRejected,
			Message:       fmt.Sprintf("%s rejected your swap request.", recipientName),
			SwapRequestID: &updated.ID,
		})
	}

	result := swapView(updated, users, callerID)
	return &result, nil
}

func (s *SwapService) Accept(ctx context.Context, swapID, callerID string) (*dto.SwapView, error) {
	return s.Transition(ctx, swapID, callerID, models.SwapActionAccept, "")
}

func (s *SwapService) Reject(ctx context.Context, swapID, callerID string) (*dto.SwapView, error) {
	return s.Transition(ctx, swapID, callerID, models.SwapActionReject, "")
}

func (s *SwapService) Cancel(ctx context.Context, swapID, callerID, reason string) (*dto.SwapView, error) {
	return s.Transition(ctx, swapID, callerID, models.SwapActionCancel, reason)
}

func (s *SwapService) Complete(ctx context.Context, swapID, callerID string) (*dto.SwapView, error) {
	return s.Transition(ctx, swapID, callerID, models.SwapActionComplete, "")
}

// Get returns one swap to one of its participants.
func (s *SwapService) Get(ctx context.Context, swapID, callerID string) (*dto.SwapView, error) {
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
	users, err := s.users.FindByIDs(ctx, []string{swap.RequesterID, swap.RecipientID})
	if err != nil {
		return nil, internalError(err, "failed to resolve swap participants")
	}
	view := swapView(swap, users, callerID)
	return &view, nil
}

// ListMine pages the caller's swaps, newest first, each annotated relative to the caller.
func (s *SwapService) ListMine(ctx context.Context, callerID string, query dto.SwapListQuery) ([]dto.SwapView, *models.Pagination, error) {
	filter := models.SwapFilter{UserID: callerID, Page: query.Page, PageSize: query.PageSize}
	status, err := parseSwapStatus(query.Status)
	if err != nil {
		return nil, nil, err
	}
	filter.Status = status

	swaps, total, err := s.swaps.ListForUser(ctx, filter)
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
		views = append(views, swapView(&swaps[i], users, callerID))
	}
	page, size, _ := models.NormalizePage(query.Page, query.PageSize)
	return views, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func (s *SwapService) notify(ctx context.Context, n models.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Enqueue(ctx, n); err != nil {
		s.logger.Warn("failed to enqueue notification",
			zap.String("user_id", n.UserID),
			zap.String("type", string(n.Type)),
			zap.Error(err),
		)
	}
}

func parseSwapStatus(raw string) (*models.SwapStatus, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" || raw == "all" {
		return nil, nil
	}
	status := models.SwapStatus(raw)
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown swap status %q", raw))
	}
	return &status, nil
}
