package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/domain"
)

type FriendshipRepo struct {
	db *sql.DB
}

func NewFriendshipRepo(db *sql.DB) *FriendshipRepo {
	return &FriendshipRepo{db: db}
}

func (r *FriendshipRepo) Get(ctx context.Context, userID, friendID int64) (*domain.Friendship, error) {
	exec := GetExecutor(ctx, r.db)
	var f domain.Friendship
	query := `
		SELECT user_id, friend_id, approved, update_time
		FROM friendships WHERE user_id = $1 AND friend_id = $2`
	err := exec.QueryRowContext(ctx, query, userID, friendID).
		Scan(&f.UserID, &f.FriendID, &f.Approved, &f.UpdateTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrFriendshipNotFound
		}
		return nil, err
	}
	return &f, nil
}

func (r *FriendshipRepo) Create(ctx context.Context, f *domain.Friendship) error {
	exec := GetExecutor(ctx, r.db)
	query := `
		INSERT INTO friendships (user_id, friend_id, approved, update_time)
		VALUES ($1, $2, $3, $4)`
	_, err := exec.ExecContext(ctx, query, f.UserID, f.FriendID, f.Approved, f.UpdateTime)
	return err
}

func (r *FriendshipRepo) Update(ctx context.Context, f *domain.Friendship) error {
	exec := GetExecutor(ctx, r.db)
	query := `
		UPDATE friendships
		SET approved = $3, update_time = $4
		WHERE user_id = $1 AND friend_id = $2`
	result, err := exec.ExecContext(ctx, query, f.UserID, f.FriendID, f.Approved, f.UpdateTime)
	if err != nil {
		return err
	}
	return requireRow(result, domain.ErrFriendshipNotFound)
}

func (r *FriendshipRepo) Delete(ctx context.Context, userID, friendID int64) error {
	exec := GetExecutor(ctx, r.db)
	result, err := exec.ExecContext(ctx,
		`DELETE FROM friendships WHERE user_id = $1 AND friend_id = $2`, userID, friendID)
	if err != nil {
		return err
	}
	return requireRow(result, domain.ErrFriendshipNotFound)
}

// ListFriendIDs returns only mutual friends: both directed rows approved.
func (r *FriendshipRepo) ListFriendIDs(ctx context.Context, userID int64) ([]int64, error) {
	exec := GetExecutor(ctx, r.db)
	query := `
		SELECT f.friend_id
		FROM friendships f
		JOIN friendships b ON b.user_id = f.friend_id AND b.friend_id = f.user_id AND b.approved
		WHERE f.user_id = $1 AND f.approved
		ORDER BY f.update_time ASC`
	rows, err := exec.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return collectIDs(rows)
}
