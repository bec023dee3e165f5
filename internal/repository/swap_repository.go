package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/skillswap-api/internal/models"
)

const swapColumns = `id, requester_id, recipient_id, requester_skill, recipient_skill, status, message,
	scheduled_date, completed_at, cancelled_by, cancellation_reason, created_at, updated_at`

// SwapRepository persists swap requests. Status changes go through Transition only.
type SwapRepository struct {
	db *sqlx.DB
}

func NewSwapRepository(db *sqlx.DB) *SwapRepository {
	return &SwapRepository{db: db}
}

// Create inserts a pending swap. Losing the race for the pair's active slot
// surfaces as ErrUniqueViolation from the swap_requests_active_pair_key index.
func (r *SwapRepository) Create(ctx context.Context, swap *models.SwapRequest) error {
	if swap.ID == "" {
		swap.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if swap.CreatedAt.IsZero() {
		swap.CreatedAt = now
	}
	swap.UpdatedAt = swap.CreatedAt
	swap.Status = models.SwapPending

	const query = `INSERT INTO swap_requests
	(id, requester_id, recipient_id, requester_skill, recipient_skill, status, message, scheduled_date, created_at, updated_at)
	VALUES (:id, :requester_id, :recipient_id, :requester_skill, :recipient_skill, :status, :message, :scheduled_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, swap); err != nil {
		return mapWriteError("create swap", err)
	}
	return nil
}

func (r *SwapRepository) GetByID(ctx context.Context, id string) (*models.SwapRequest, error) {
	query := `SELECT ` + swapColumns + ` FROM swap_requests WHERE id = $1`
	var swap models.SwapRequest
	if err := r.db.GetContext(ctx, &swap, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get swap: %w", err)
	}
	return &swap, nil
}

// FindActiveBetween returns the pending or accepted swap between a and b in either direction.
func (r *SwapRepository) FindActiveBetween(ctx context.Context, a, b string) (*models.SwapRequest, error) {
	query := `SELECT ` + swapColumns + ` FROM swap_requests WHERE pair_key = $1 AND status = ANY($2) LIMIT 1`
	var swap models.SwapRequest
	err := r.db.GetContext(ctx, &swap, query, models.PairKey(a, b), pq.StringArray(activeStatuses()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find active swap: %w", err)
	}
	return &swap, nil
}

// Transition applies patch only if the row is still in one of patch.From and
// returns the updated row. A row in any other state yields sql.ErrNoRows.
func (r *SwapRepository) Transition(ctx context.Context, patch models.SwapTransitionPatch) (*models.SwapRequest, error) {
	from := make(pq.StringArray, len(patch.From))
	for i, s := range patch.From {
		from[i] = string(s)
	}
	if patch.UpdatedAt.IsZero() {
		patch.UpdatedAt = time.Now().UTC()
	}

	query := `UPDATE swap_requests SET
		status = $3,
		completed_at = COALESCE($4, completed_at),
		cancelled_by = COALESCE($5, cancelled_by),
		cancellation_reason = CASE WHEN $3 = 'cancelled' THEN $6 ELSE cancellation_reason END,
		updated_at = $7
	WHERE id = $1 AND status = ANY($2)
	RETURNING ` + swapColumns

	var swap models.SwapRequest
	err := r.db.GetContext(ctx, &swap, query,
		patch.ID, from, patch.To, patch.CompletedAt, patch.CancelledBy, patch.CancellationReason, patch.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("transition swap: %w", err)
	}
	return &swap, nil
}

// ListForUser returns swaps where userID is either party, newest first.
func (r *SwapRepository) ListForUser(ctx context.Context, filter models.SwapFilter) ([]models.SwapRequest, int, error) {
	args := []interface{}{filter.UserID}
	conditions := []string{"(requester_id = $1 OR recipient_id = $1)"}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	return r.page(ctx, conditions, args, filter.Page, filter.PageSize)
}

// ListAll is the moderation listing across every user.
func (r *SwapRepository) ListAll(ctx context.Context, filter models.SwapFilter) ([]models.SwapRequest, int, error) {
	var args []interface{}
	var conditions []string
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("(requester_id = $%d OR recipient_id = $%d)", len(args), len(args)))
	}
	return r.page(ctx, conditions, args, filter.Page, filter.PageSize)
}

// ExportRows returns every swap with participant names for moderation exports.
func (r *SwapRepository) ExportRows(ctx context.Context, status *models.SwapStatus, limit int) ([]models.SwapExportRow, error) {
	query := `SELECT s.id, s.status, s.requester_skill, s.recipient_skill, s.created_at, s.completed_at,
		rq.name AS requester_name, rq.email AS requester_email,
		rc.name AS recipient_name, rc.email AS recipient_email
	FROM swap_requests s
	JOIN users rq ON rq.id = s.requester_id
	JOIN users rc ON rc.id = s.recipient_id`
	args := []interface{}{}
	if status != nil {
		args = append(args, *status)
		query += " WHERE s.status = $1"
	}
	query += fmt.Sprintf(" ORDER BY s.created_at DESC LIMIT %d", limit)

	rows := make([]models.SwapExportRow, 0)
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("export swaps: %w", err)
	}
	return rows, nil
}

// Delete removes a swap and its feedback, then refreshes both participants' ratings.
func (r *SwapRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete swap: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var parties struct {
		RequesterID string `db:"requester_id"`
		RecipientID string `db:"recipient_id"`
	}
	if err := tx.GetContext(ctx, &parties, `SELECT requester_id, recipient_id FROM swap_requests WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fmt.Errorf("load swap for delete: %w", err)
	}
	users := []string{parties.RequesterID, parties.RecipientID}
	sort.Strings(users)
	for _, userID := range users {
		if err := lockUser(ctx, tx, userID); err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM swap_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete swap: %w", err)
	}
	if err := requireRow(res, "delete swap"); err != nil {
		return err
	}
	for _, userID := range users {
		if _, err := recomputeRating(ctx, tx, userID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *SwapRepository) page(ctx context.Context, conditions []string, args []interface{}, page, size int) ([]models.SwapRequest, int, error) {
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}
	_, size, offset := models.NormalizePage(page, size)

	listQuery := fmt.Sprintf("SELECT %s FROM swap_requests%s ORDER BY created_at DESC LIMIT %d OFFSET %d", swapColumns, where, size, offset)
	swaps := make([]models.SwapRequest, 0)
	if err := r.db.SelectContext(ctx, &swaps, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list swaps: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM swap_requests"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count swaps: %w", err)
	}
	return swaps, total, nil
}

func activeStatuses() []string {
	out := make([]string, len(models.ActiveSwapStatuses))
	for i, s := range models.ActiveSwapStatuses {
		out[i] = string(s)
	}
	return out
}
