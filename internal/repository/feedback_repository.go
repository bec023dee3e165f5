package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/skillswap-api/internal/models"
)

const feedbackColumns = `id, swap_request_id, from_user_id, to_user_id, rating, comment, skill_rated, created_at, updated_at`

// FeedbackRepository persists feedback. Every write refreshes the ratee's
// rating aggregate inside the same transaction.
type FeedbackRepository struct {
	db *sqlx.DB
}

func NewFeedbackRepository(db *sqlx.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// CreateWithAggregate inserts fb and recomputes the ratee's rating. A second
// rating for the same swap by the same rater yields ErrUniqueViolation.
func (r *FeedbackRepository) CreateWithAggregate(ctx context.Context, fb *models.Feedback) (*models.RatingAggregate, error) {
	if fb.ID == "" {
		fb.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = now
	}
	fb.UpdatedAt = fb.CreatedAt

	return r.inTx(ctx, fb.ToUserID, func(tx *sqlx.Tx) error {
		const query = `INSERT INTO feedback (id, swap_request_id, from_user_id, to_user_id, rating, comment, skill_rated, created_at, updated_at)
		VALUES (:id, :swap_request_id, :from_user_id, :to_user_id, :rating, :comment, :skill_rated, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, query, fb); err != nil {
			return mapWriteError("create feedback", err)
		}
		return nil
	})
}

// UpdateWithAggregate rewrites rating and comment of fb.
func (r *FeedbackRepository) UpdateWithAggregate(ctx context.Context, fb *models.Feedback) (*models.RatingAggregate, error) {
	fb.UpdatedAt = time.Now().UTC()
	return r.inTx(ctx, fb.ToUserID, func(tx *sqlx.Tx) error {
		const query = `UPDATE feedback SET rating = :rating, comment = :comment, updated_at = :updated_at WHERE id = :id`
		res, err := tx.NamedExecContext(ctx, query, fb)
		if err != nil {
			return fmt.Errorf("update feedback: %w", err)
		}
		return requireRow(res, "update feedback")
	})
}

// DeleteWithAggregate removes fb.
func (r *FeedbackRepository) DeleteWithAggregate(ctx context.Context, fb *models.Feedback) (*models.RatingAggregate, error) {
	return r.inTx(ctx, fb.ToUserID, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM feedback WHERE id = $1`, fb.ID)
		if err != nil {
			return fmt.Errorf("delete feedback: %w", err)
		}
		return requireRow(res, "delete feedback")
	})
}

func (r *FeedbackRepository) GetByID(ctx context.Context, id string) (*models.Feedback, error) {
	query := `SELECT ` + feedbackColumns + ` FROM feedback WHERE id = $1`
	var fb models.Feedback
	if err := r.db.GetContext(ctx, &fb, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get feedback: %w", err)
	}
	return &fb, nil
}

// ExistsForRater reports whether fromUserID already rated swapID.
func (r *FeedbackRepository) ExistsForRater(ctx context.Context, swapID, fromUserID string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS (SELECT 1 FROM feedback WHERE swap_request_id = $1 AND from_user_id = $2)`
	if err := r.db.GetContext(ctx, &exists, query, swapID, fromUserID); err != nil {
		return false, fmt.Errorf("check feedback: %w", err)
	}
	return exists, nil
}

// List pages feedback filtered by ratee and/or rater, newest first.
func (r *FeedbackRepository) List(ctx context.Context, filter models.FeedbackFilter) ([]models.Feedback, int, error) {
	var args []interface{}
	where := ""
	add := func(cond string, v interface{}) {
		args = append(args, v)
		if where == "" {
			where = " WHERE "
		} else {
			where += " AND "
		}
		where += fmt.Sprintf(cond, len(args))
	}
	if filter.ToUserID != "" {
		add("to_user_id = $%d", filter.ToUserID)
	}
	if filter.FromUserID != "" {
		add("from_user_id = $%d", filter.FromUserID)
	}
	_, size, offset := models.NormalizePage(filter.Page, filter.PageSize)

	items := make([]models.Feedback, 0)
	listQuery := fmt.Sprintf("SELECT %s FROM feedback%s ORDER BY created_at DESC LIMIT %d OFFSET %d", feedbackColumns, where, size, offset)
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list feedback: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM feedback"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count feedback: %w", err)
	}
	return items, total, nil
}

func (r *FeedbackRepository) ListForSwap(ctx context.Context, swapID string) ([]models.Feedback, error) {
	query := `SELECT ` + feedbackColumns + ` FROM feedback WHERE swap_request_id = $1 ORDER BY created_at`
	items := make([]models.Feedback, 0, 2)
	if err := r.db.SelectContext(ctx, &items, query, swapID); err != nil {
		return nil, fmt.Errorf("list swap feedback: %w", err)
	}
	return items, nil
}

func (r *FeedbackRepository) inTx(ctx context.Context, rateeID string, write func(*sqlx.Tx) error) (*models.RatingAggregate, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin feedback tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// Serialises concurrent writes for the same ratee so each recompute sees the others' rows.
	if err := lockUser(ctx, tx, rateeID); err != nil {
		return nil, err
	}
	if err := write(tx); err != nil {
		return nil, err
	}
	agg, err := recomputeRating(ctx, tx, rateeID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit feedback tx: %w", err)
	}
	return agg, nil
}

func lockUser(ctx context.Context, q sqlx.QueryerContext, userID string) error {
	var id string
	if err := sqlx.GetContext(ctx, q, &id, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fmt.Errorf("lock user: %w", err)
	}
	return nil
}

// recomputeRating sets users.rating to the one-decimal mean of every rating
// userID has received and users.total_ratings to their count.
func recomputeRating(ctx context.Context, q sqlx.QueryerContext, userID string) (*models.RatingAggregate, error) {
	const query = `UPDATE users SET
		rating = COALESCE((SELECT ROUND(AVG(rating)::numeric, 1) FROM feedback WHERE to_user_id = $1), 0),
		total_ratings = (SELECT COUNT(*) FROM feedback WHERE to_user_id = $1),
		updated_at = NOW()
	WHERE id = $1
	RETURNING id AS user_id, rating, total_ratings`
	var agg models.RatingAggregate
	if err := sqlx.GetContext(ctx, q, &agg, query, userID); err != nil {
		return nil, fmt.Errorf("recompute rating: %w", err)
	}
	return &agg, nil
}
