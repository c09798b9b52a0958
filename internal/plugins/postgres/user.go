package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/domain"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	exec := GetExecutor(ctx, r.db)
	query := `
		INSERT INTO users (name, password, email, register_time, login_time)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	return exec.QueryRowContext(ctx, query,
		u.Name, u.Password, u.Email, u.RegisterTime, u.LoginTime,
	).Scan(&u.ID)
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	exec := GetExecutor(ctx, r.db)
	query := `
		SELECT id, name, password, email, register_time, login_time
		FROM users WHERE id = $1`
	return scanUser(exec.QueryRowContext(ctx, query, id))
}

func (r *UserRepo) GetByName(ctx context.Context, name string) (*domain.User, error) {
	exec := GetExecutor(ctx, r.db)
	query := `
		SELECT id, name, password, email, register_time, login_time
		FROM users WHERE name = $1`
	return scanUser(exec.QueryRowContext(ctx, query, name))
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Name, &u.Password, &u.Email, &u.RegisterTime, &u.LoginTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) NameExists(ctx context.Context, name string) (bool, error) {
	exec := GetExecutor(ctx, r.db)
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE name = $1)`
	if err := exec.QueryRowContext(ctx, query, name).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *UserRepo) Update(ctx context.Context, u *domain.User) error {
	exec := GetExecutor(ctx, r.db)
	query := `
		UPDATE users
		SET name = $2, password = $3, email = $4, login_time = $5
		WHERE id = $1`
	result, err := exec.ExecContext(ctx, query, u.ID, u.Name, u.Password, u.Email, u.LoginTime)
	if err != nil {
		return err
	}
	return requireRow(result, domain.ErrUserNotFound)
}

func (r *UserRepo) Delete(ctx context.Context, id int64) error {
	exec := GetExecutor(ctx, r.db)
	result, err := exec.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(result, domain.ErrUserNotFound)
}

// requireRow maps a zero-row write to the entity's not-found error.
func requireRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
