package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/noah-isme/skillswap-api/internal/models"
	"github.com/noah-isme/skillswap-api/internal/repository"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// Fixture ids that reach uuid-validated request fields.
const (
	aliceID  = "a11ce000-0000-4000-8000-000000000001"
	bobID    = "b0b00000-0000-4000-8000-000000000002"
	carolID  = "ca201000-0000-4000-8000-000000000003"
	daveID   = "da7e0000-0000-4000-8000-000000000004"
	eveID    = "e7e00000-0000-4000-8000-000000000005"
	nobodyID = "00000000-0000-4000-8000-0000000000ff"

	doneSwapID    = "d0e00000-0000-4000-8000-0000000000a1"
	openSwapID    = "0be00000-0000-4000-8000-0000000000a2"
	missingSwapID = "00000000-0000-4000-8000-0000000000a3"
)

type memUsers struct {
	mu    sync.Mutex
	items map[string]*models.User
}

func newMemUsers(users ...models.User) *memUsers {
	m := &memUsers{items: make(map[string]*models.User)}
	for i := range users {
		u := users[i]
		m.items[u.ID] = &u
	}
	return m
}

func (m *memUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.items[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memUsers) FindByIDs(ctx context.Context, ids []string) (map[string]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]models.User, len(ids))
	for _, id := range ids {
		if u, ok := m.items[id]; ok {
			out[id] = *u
		}
	}
	return out, nil
}

func member(id, name string, offers ...string) models.User {
	return models.User{
		ID:            id,
		Name:          name,
		Email:         id + "@example.com",
		PasswordHash:  "secret-hash",
		Role:          models.RoleUser,
		SkillsOffered: pq.StringArray(offers),
		IsPublic:      true,
		CreatedAt:     fixedNow.Add(-time.Hour),
	}
}

// memSwaps mirrors the repository: one active swap per pair and compare-and-set transitions.
type memSwaps struct {
	mu      sync.Mutex
	items   map[string]*models.SwapRequest
	seq     int
	findErr error
}

func newMemSwaps(swaps ...models.SwapRequest) *memSwaps {
	m := &memSwaps{items: make(map[string]*models.SwapRequest)}
	for i := range swaps {
		s := swaps[i]
		m.items[s.ID] = &s
	}
	return m
}

func (m *memSwaps) Create(ctx context.Context, swap *models.SwapRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := models.PairKey(swap.RequesterID, swap.RecipientID)
	for _, existing := range m.items {
		if existing.Status.Active() && models.PairKey(existing.RequesterID, existing.RecipientID) == key {
			return fmt.Errorf("create swap: %w: swap_requests_active_pair_key", repository.ErrUniqueViolation)
		}
	}
	m.seq++
	if swap.ID == "" {
		swap.ID = fmt.Sprintf("swap-%d", m.seq)
	}
	swap.Status = models.SwapPending
	swap.UpdatedAt = swap.CreatedAt
	cp := *swap
	m.items[swap.ID] = &cp
	return nil
}

func (m *memSwaps) GetByID(ctx context.Context, id string) (*models.SwapRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.items[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memSwaps) FindActiveBetween(ctx context.Context, a, b string) (*models.SwapRequest, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := models.PairKey(a, b)
	for _, s := range m.items {
		if s.Status.Active() && models.PairKey(s.RequesterID, s.RecipientID) == key {
			cp := *s
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memSwaps) Transition(ctx context.Context, patch models.SwapTransitionPatch) (*models.SwapRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.items[patch.ID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	allowed := false
	for _, from := range patch.From {
		if s.Status == from {
			allowed = true
		}
	}
	if !allowed {
		return nil, sql.ErrNoRows
	}
	s.Status = patch.To
	if patch.CompletedAt != nil {
		s.CompletedAt = patch.CompletedAt
	}
	if patch.CancelledBy != nil {
		s.CancelledBy = patch.CancelledBy
	}
	if patch.To == models.SwapCancelled {
		s.CancellationReason = patch.CancellationReason
	}
	s.UpdatedAt = patch.UpdatedAt
	cp := *s
	return &cp, nil
}

func (m *memSwaps) ListForUser(ctx context.Context, filter models.SwapFilter) ([]models.SwapRequest, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.SwapRequest, 0)
	for _, s := range m.items {
		if !s.IsParticipant(filter.UserID) {
			continue
		}
		if filter.Status != nil && s.Status != *filter.Status {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, len(out), nil
}

func (m *memSwaps) status(id string) models.SwapStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id].Status
}

// memFeedback mirrors the one-per-rater constraint and the aggregate recomputation.
type memFeedback struct {
	mu    sync.Mutex
	items map[string]*models.Feedback
	users *memUsers
	seq   int
}

func newMemFeedback(users *memUsers) *memFeedback {
	return &memFeedback{items: make(map[string]*models.Feedback), users: users}
}

func (m *memFeedback) CreateWithAggregate(ctx context.Context, fb *models.Feedback) (*models.RatingAggregate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.items {
		if existing.SwapRequestID == fb.SwapRequestID && existing.FromUserID == fb.FromUserID {
			return nil, fmt.Errorf("create feedback: %w: feedback_one_per_rater", repository.ErrUniqueViolation)
		}
	}
	m.seq++
	if fb.ID == "" {
		fb.ID = fmt.Sprintf("fb-%d", m.seq)
	}
	fb.UpdatedAt = fb.CreatedAt
	cp := *fb
	m.items[fb.ID] = &cp
	return m.recompute(fb.ToUserID), nil
}

func (m *memFeedback) UpdateWithAggregate(ctx context.Context, fb *models.Feedback) (*models.RatingAggregate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[fb.ID]; !ok {
		return nil, sql.ErrNoRows
	}
	cp := *fb
	m.items[fb.ID] = &cp
	return m.recompute(fb.ToUserID), nil
}

func (m *memFeedback) DeleteWithAggregate(ctx context.Context, fb *models.Feedback) (*models.RatingAggregate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[fb.ID]; !ok {
		return nil, sql.ErrNoRows
	}
	delete(m.items, fb.ID)
	return m.recompute(fb.ToUserID), nil
}

func (m *memFeedback) recompute(userID string) *models.RatingAggregate {
	sum, count := 0, 0
	for _, fb := range m.items {
		if fb.ToUserID == userID {
			sum += fb.Rating
			count++
		}
	}
	agg := &models.RatingAggregate{UserID: userID, Count: count}
	if count > 0 {
		agg.Average = float64(int(float64(sum)/float64(count)*10+0.5)) / 10
	}
	m.users.mu.Lock()
	if u, ok := m.users.items[userID]; ok {
		u.Rating = agg.Average
		u.TotalRatings = agg.Count
	}
	m.users.mu.Unlock()
	return agg
}

func (m *memFeedback) GetByID(ctx context.Context, id string) (*models.Feedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fb, ok := m.items[id]; ok {
		cp := *fb
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memFeedback) ExistsForRater(ctx context.Context, swapID, fromUserID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, fb := range m.items {
		if fb.SwapRequestID == swapID && fb.FromUserID == fromUserID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memFeedback) List(ctx context.Context, filter models.FeedbackFilter) ([]models.Feedback, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Feedback, 0)
	for _, fb := range m.items {
		if filter.ToUserID != "" && fb.ToUserID != filter.ToUserID {
			continue
		}
		if filter.FromUserID != "" && fb.FromUserID != filter.FromUserID {
			continue
		}
		out = append(out, *fb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memFeedback) ListForSwap(ctx context.Context, swapID string) ([]models.Feedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Feedback, 0)
	for _, fb := range m.items {
		if fb.SwapRequestID == swapID {
			out = append(out, *fb)
		}
	}
	return out, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
	err  error
}

func (r *recordingNotifier) Enqueue(ctx context.Context, n models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) all() []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Notification(nil), r.sent...)
}
