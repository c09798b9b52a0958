package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/domain"
)

type MembershipRepo struct {
	db *sql.DB
}

func NewMembershipRepo(db *sql.DB) *MembershipRepo {
	return &MembershipRepo{db: db}
}

func (r *MembershipRepo) Get(ctx context.Context, userID, chatID int64) (*domain.Membership, error) {
	exec := GetExecutor(ctx, r.db)
	var m domain.Membership
	query := `
		SELECT user_id, chat_id, role, approved, update_time
		FROM memberships WHERE user_id = $1 AND chat_id = $2`
	err := exec.QueryRowContext(ctx, query, userID, chatID).
		Scan(&m.UserID, &m.ChatID, &m.Role, &m.Approved, &m.UpdateTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMembershipNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *MembershipRepo) Create(ctx context.Context, m *domain.Membership) error {
	exec := GetExecutor(ctx, r.db)
	query := `
		INSERT INTO memberships (user_id, chat_id, role, approved, update_time)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := exec.ExecContext(ctx, query, m.UserID, m.ChatID, m.Role, m.Approved, m.UpdateTime)
	return err
}

func (r *MembershipRepo) Update(ctx context.Context, m *domain.Membership) error {
	exec := GetExecutor(ctx, r.db)
	query := `
		UPDATE memberships
		SET role = $3, approved = $4, update_time = $5
		WHERE user_id = $1 AND chat_id = $2`
	result, err := exec.ExecContext(ctx, query, m.UserID, m.ChatID, m.Role, m.Approved, m.UpdateTime)
	if err != nil {
		return err
	}
	return requireRow(result, domain.ErrMembershipNotFound)
}

func (r *MembershipRepo) Delete(ctx context.Context, userID, chatID int64) error {
	exec := GetExecutor(ctx, r.db)
	result, err := exec.ExecContext(ctx,
		`DELETE FROM memberships WHERE user_id = $1 AND chat_id = $2`, userID, chatID)
	if err != nil {
		return err
	}
	return requireRow(result, domain.ErrMembershipNotFound)
}

func (r *MembershipRepo) DeleteByChat(ctx context.Context, chatID int64) error {
	exec := GetExecutor(ctx, r.db)
	_, err := exec.ExecContext(ctx, `DELETE FROM memberships WHERE chat_id = $1`, chatID)
	return err
}

func (r *MembershipRepo) ListByChat(ctx context.Context, chatID int64, approvedOnly bool) ([]domain.Membership, error) {
	exec := GetExecutor(ctx, r.db)
	query := `
		SELECT user_id, chat_id, role, approved, update_time
		FROM memberships
		WHERE chat_id = $1 AND (approved OR NOT $2)
		ORDER BY update_time ASC`
	rows, err := exec.QueryContext(ctx, query, chatID, approvedOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Membership
	for rows.Next() {
		var m domain.Membership
		if err := rows.Scan(&m.UserID, &m.ChatID, &m.Role, &m.Approved, &m.UpdateTime); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *MembershipRepo) ListChatIDs(ctx context.Context, userID int64) ([]int64, error) {
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx,
		`SELECT chat_id FROM memberships WHERE user_id = $1 AND approved`, userID)
	if err != nil {
		return nil, err
	}
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

func (r *MembershipRepo) CountByRole(ctx context.Context, chatID int64, role domain.Role) (int, error) {
	exec := GetExecutor(ctx, r.db)
	var count int
	query := `SELECT COUNT(*) FROM memberships WHERE chat_id = $1 AND role = $2 AND approved`
	if err := exec.QueryRowContext(ctx, query, chatID, role).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *MembershipRepo) SeniorByRole(ctx context.Context, chatID int64, role domain.Role) (*domain.Membership, error) {
	exec := GetExecutor(ctx, r.db)
	var m domain.Membership
	query := `
		SELECT user_id, chat_id, role, approved, update_time
		FROM memberships
		WHERE chat_id = $1 AND role = $2 AND approved
		ORDER BY update_time ASC
		LIMIT 1`
	err := exec.QueryRowContext(ctx, query, chatID, role).
		Scan(&m.UserID, &m.ChatID, &m.Role, &m.Approved, &m.UpdateTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMembershipNotFound
		}
		return nil, err
	}
	return &m, nil
}
