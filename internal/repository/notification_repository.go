package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/skillswap-api/internal/models"
)

type NotificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO notifications (id, user_id, type, message, read, swap_request_id, created_at)
	VALUES (:id, :user_id, :type, :message, :read, :swap_request_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return mapWriteError("create notification", err)
	}
	return nil
}

// ListForUser pages userID's notifications newest first and reports the unread count.
func (r *NotificationRepository) ListForUser(ctx context.Context, userID string, page, size int) ([]models.Notification, int, int, error) {
	_, size, offset := models.NormalizePage(page, size)
	items := make([]models.Notification, 0)
	const listQuery = `SELECT id, user_id, type, message, read, swap_request_id, created_at
	FROM notifications WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &items, listQuery, userID, size, offset); err != nil {
		return nil, 0, 0, fmt.Errorf("list notifications: %w", err)
	}

	var counts struct {
		Total  int `db:"total"`
		Unread int `db:"unread"`
	}
	const countQuery = `SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE NOT read) AS unread FROM notifications WHERE user_id = $1`
	if err := r.db.GetContext(ctx, &counts, countQuery, userID); err != nil {
		return nil, 0, 0, fmt.Errorf("count notifications: %w", err)
	}
	return items, counts.Total, counts.Unread, nil
}

// MarkRead marks one notification read. Rows owned by someone else yield sql.ErrNoRows.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string) (*models.Notification, error) {
	const query = `UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2
	RETURNING id, user_id, type, message, read, swap_request_id, created_at`
	var n models.Notification
	if err := r.db.GetContext(ctx, &n, query, id, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	return &n, nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE user_id = $1 AND read = FALSE`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return res.RowsAffected()
}
