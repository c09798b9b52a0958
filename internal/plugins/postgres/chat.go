package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/domain"
)

type ChatRepo struct {
	db *sql.DB
}

func NewChatRepo(db *sql.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

func (r *ChatRepo) Create(ctx context.Context, c *domain.Chat) error {
	exec := GetExecutor(ctx, r.db)
	query := `
		INSERT INTO chats (name, is_private, create_time)
		VALUES ($1, $2, $3)
		RETURNING id`
	return exec.QueryRowContext(ctx, query, c.Name, c.IsPrivate, c.CreateTime).Scan(&c.ID)
}

func (r *ChatRepo) GetByID(ctx context.Context, id int64) (*domain.Chat, error) {
	exec := GetExecutor(ctx, r.db)
	var c domain.Chat
	query := `SELECT id, name, is_private, create_time FROM chats WHERE id = $1`
	err := exec.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.IsPrivate, &c.CreateTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrChatNotFound
		}
		return nil, err
	}
	return &c, nil
}

// NameExists only considers public chats; private chat names are derived
// from user names and may collide freely.
func (r *ChatRepo) NameExists(ctx context.Context, name string) (bool, error) {
	exec := GetExecutor(ctx, r.db)
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM chats WHERE name = $1 AND NOT is_private)`
	if err := exec.QueryRowContext(ctx, query, name).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *ChatRepo) Delete(ctx context.Context, id int64) error {
	exec := GetExecutor(ctx, r.db)
	result, err := exec.ExecContext(ctx, `DELETE FROM chats WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(result, domain.ErrChatNotFound)
}

func (r *ChatRepo) FindPrivateChat(ctx context.Context, userID, friendID int64) (*domain.Chat, error) {
	exec := GetExecutor(ctx, r.db)
	var c domain.Chat
	query := `
		SELECT c.id, c.name, c.is_private, c.create_time
		FROM chats c
		JOIN memberships a ON a.chat_id = c.id AND a.user_id = $1 AND a.approved
		JOIN memberships b ON b.chat_id = c.id AND b.user_id = $2 AND b.approved
		WHERE c.is_private
		LIMIT 1`
	err := exec.QueryRowContext(ctx, query, userID, friendID).
		Scan(&c.ID, &c.Name, &c.IsPrivate, &c.CreateTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrChatNotFound
		}
		return nil, err
	}
	return &c, nil
}
