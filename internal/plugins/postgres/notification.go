package postgres

import (
	"context"
	"database/sql"

	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/domain"
)

type NotificationRepo struct {
	db *sql.DB
}

func NewNotificationRepo(db *sql.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

func (r *NotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	exec := GetExecutor(ctx, r.db)
	query := `
		INSERT INTO notifications (sender_id, receiver_id, content, create_time, is_read)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	return exec.QueryRowContext(ctx, query,
		n.SenderID, n.ReceiverID, n.Content, n.CreateTime, n.IsRead,
	).Scan(&n.ID)
}

func (r *NotificationRepo) ListByReceiver(ctx context.Context, receiverID int64, unreadOnly bool) ([]domain.Notification, error) {
	exec := GetExecutor(ctx, r.db)
	query := `
		SELECT id, sender_id, receiver_id, content, create_time, is_read
		FROM notifications
		WHERE receiver_id = $1 AND (NOT is_read OR NOT $2)
		ORDER BY create_time ASC, id ASC`
	rows, err := exec.QueryContext(ctx, query, receiverID, unreadOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.SenderID, &n.ReceiverID, &n.Content, &n.CreateTime, &n.IsRead); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *NotificationRepo) MarkRead(ctx context.Context, id, receiverID int64) error {
	exec := GetExecutor(ctx, r.db)
	result, err := exec.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND receiver_id = $2`, id, receiverID)
	if err != nil {
		return err
	}
	return requireRow(result, domain.ErrNotificationNotFound)
}

func (r *NotificationRepo) Delete(ctx context.Context, id, receiverID int64) error {
	exec := GetExecutor(ctx, r.db)
	result, err := exec.ExecContext(ctx,
		`DELETE FROM notifications WHERE id = $1 AND receiver_id = $2`, id, receiverID)
	if err != nil {
		return err
	}
	return requireRow(result, domain.ErrNotificationNotFound)
}
