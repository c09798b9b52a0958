package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	exec := GetExecutor(ctx, r.db)
	query := `
		INSERT INTO messages (sender_id, chat_id, text, type, create_time, update_time, reply_to, is_system)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	err := exec.QueryRowContext(ctx, query,
		m.SenderID, m.ChatID, m.Text, m.Type, m.CreateTime, m.UpdateTime, m.ReplyTo, m.IsSystem,
	).Scan(&m.ID)
	if err != nil {
		return err
	}
	for _, userID := range m.ReadBy {
		if err := r.insertRead(ctx, m.ID, userID, m.CreateTime); err != nil {
			return err
		}
	}
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	exec := GetExecutor(ctx, r.db)
	var m domain.Message
	query := `
		SELECT id, sender_id, chat_id, text, type, create_time, update_time, reply_to, is_system
		FROM messages WHERE id = $1`
	err := exec.QueryRowContext(ctx, query, id).Scan(
		&m.ID, &m.SenderID, &m.ChatID, &m.Text, &m.Type,
		&m.CreateTime, &m.UpdateTime, &m.ReplyTo, &m.IsSystem,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}
	if err := r.loadSets(ctx, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MessageRepo) loadSets(ctx context.Context, m *domain.Message) error {
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx,
		`SELECT user_id FROM message_reads WHERE msg_id = $1 ORDER BY read_time ASC`, m.ID)
	if err != nil {
		return err
	}
	m.ReadBy, err = collectIDs(rows)
	if err != nil {
		return err
	}
	rows, err = exec.QueryContext(ctx,
		`SELECT user_id FROM message_hidden WHERE msg_id = $1`, m.ID)
	if err != nil {
		return err
	}
	m.HiddenFor, err = collectIDs(rows)
	return err
}

func collectIDs(rows *sql.Rows) ([]int64, error) {
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *MessageRepo) Delete(ctx context.Context, id int64) error {
	exec := GetExecutor(ctx, r.db)
	if _, err := exec.ExecContext(ctx, `DELETE FROM message_reads WHERE msg_id = $1`, id); err != nil {
		return err
	}
	if _, err := exec.ExecContext(ctx, `DELETE FROM message_hidden WHERE msg_id = $1`, id); err != nil {
		return err
	}
	result, err := exec.ExecContext(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(result, domain.ErrMessageNotFound)
}

func (r *MessageRepo) DeleteByChat(ctx context.Context, chatID int64) error {
	exec := GetExecutor(ctx, r.db)
	subquery := `SELECT id FROM messages WHERE chat_id = $1`
	if _, err := exec.ExecContext(ctx,
		`DELETE FROM message_reads WHERE msg_id IN (`+subquery+`)`, chatID); err != nil {
		return err
	}
	if _, err := exec.ExecContext(ctx,
		`DELETE FROM message_hidden WHERE msg_id IN (`+subquery+`)`, chatID); err != nil {
		return err
	}
	_, err := exec.ExecContext(ctx, `DELETE FROM messages WHERE chat_id = $1`, chatID)
	return err
}

// MarkRead reports false when the user was already in the read set; the
// read set only grows, never shrinks.
func (r *MessageRepo) MarkRead(ctx context.Context, msgID, userID int64, at time.Time) (bool, error) {
	exec := GetExecutor(ctx, r.db)
	result, err := exec.ExecContext(ctx, `
		INSERT INTO message_reads (msg_id, user_id, read_time)
		VALUES ($1, $2, $3)
		ON CONFLICT (msg_id, user_id) DO NOTHING`, msgID, userID, at)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	_, err = exec.ExecContext(ctx,
		`UPDATE messages SET update_time = $2 WHERE id = $1`, msgID, at)
	return true, err
}

func (r *MessageRepo) insertRead(ctx context.Context, msgID, userID int64, at time.Time) error {
	exec := GetExecutor(ctx, r.db)
	_, err := exec.ExecContext(ctx, `
		INSERT INTO message_reads (msg_id, user_id, read_time)
		VALUES ($1, $2, $3)
		ON CONFLICT (msg_id, user_id) DO NOTHING`, msgID, userID, at)
	return err
}

func (r *MessageRepo) Hide(ctx context.Context, msgID, userID int64) error {
	exec := GetExecutor(ctx, r.db)
	_, err := exec.ExecContext(ctx, `
		INSERT INTO message_hidden (msg_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (msg_id, user_id) DO NOTHING`, msgID, userID)
	return err
}

func (r *MessageRepo) ListByChat(ctx context.Context, chatID int64, f domain.MessageFilter) ([]domain.Message, error) {
	exec := GetExecutor(ctx, r.db)
	query := `
		SELECT id, sender_id, chat_id, text, type, create_time, update_time, reply_to, is_system
		FROM messages
		WHERE chat_id = $1
		AND ($2::bigint = 0 OR id NOT IN (SELECT msg_id FROM message_hidden WHERE user_id = $2))
		AND ($3 = '' OR text ILIKE '%' || $3 || '%')
		AND ($4::bigint = 0 OR sender_id = $4)
		AND ($5::timestamptz IS NULL OR create_time < $5)
		AND ($6::timestamptz IS NULL OR create_time > $6)
		ORDER BY create_time ASC, id ASC`
	rows, err := exec.QueryContext(ctx, query,
		chatID, f.HideFor, f.Text, f.SenderID, nullTime(f.Before), nullTime(f.After))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(
			&m.ID, &m.SenderID, &m.ChatID, &m.Text, &m.Type,
			&m.CreateTime, &m.UpdateTime, &m.ReplyTo, &m.IsSystem,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := r.loadSets(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
