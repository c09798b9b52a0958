package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/domain"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+@[a-zA-Z0-9_-]+(\.[a-zA-Z0-9_-]+)+$`)

// UserService owns the account lifecycle. Credential verification is the
// identity collaborator every privileged workflow sits behind; the
// stored secret is treated as an opaque credential.
type UserService struct {
	log       *slog.Logger
	users     domain.UserRepository
	txManager TxRunner
}

func NewUserService(log *slog.Logger, users domain.UserRepository, txManager TxRunner) *UserService {
	return &UserService{
		log:       log,
		users:     users,
		txManager: txManager,
	}
}

func validName(name string) bool {
	return len(name) > 0 && len(name) <= domain.MaxNameLength
}

func (s *UserService) Register(ctx context.Context, name, password, email string) (*domain.User, error) {
	if !validName(name) || !validName(password) {
		return nil, domain.ErrInvalidName
	}
	if email != "" && !emailPattern.MatchString(email) {
		return nil, domain.ErrInvalidEmail
	}
	var user *domain.User
	err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		exists, err := s.users.NameExists(txCtx, name)
		if err != nil {
			return err
		}
		if exists {
			return domain.ErrNameConflict
		}
		now := time.Now()
		user = &domain.User{
			Name:         name,
			Password:     password,
			Email:        email,
			RegisterTime: now,
			LoginTime:    now,
		}
		return s.users.Create(txCtx, user)
	})
	if err != nil {
		s.log.ErrorContext(ctx, "users - register - failed", "user_name", name, "err", err)
		return nil, err
	}
	s.log.InfoContext(ctx, "users - register - success", "user_id", user.ID, "user_name", name)
	return user, nil
}

func (s *UserService) Login(ctx context.Context, name, password string) (*domain.User, error) {
	user, err := s.users.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if user.Password != password {
		return nil, domain.ErrWrongPassword
	}
	user.LoginTime = time.Now()
	if err := s.users.Update(ctx, user); err != nil {
		s.log.ErrorContext(ctx, "users - login - update login time failed", "user_id", user.ID, "err", err)
		return nil, err
	}
	s.log.InfoContext(ctx, "users - login - success", "user_id", user.ID)
	return user, nil
}

// ProfileUpdate carries optional field changes; nil means keep.
type ProfileUpdate struct {
	Name     *string
	Password *string
	Email    *string
}

func (s *UserService) Update(ctx context.Context, userID int64, upd ProfileUpdate) error {
	err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		user, err := s.users.GetByID(txCtx, userID)
		if err != nil {
			return err
		}
		if upd.Name != nil {
			if !validName(*upd.Name) {
				return domain.ErrInvalidName
			}
			if *upd.Name != user.Name {
				exists, err := s.users.NameExists(txCtx, *upd.Name)
				if err != nil {
					return err
				}
				if exists {
					return domain.ErrNameConflict
				}
			}
			user.Name = *upd.Name
		}
		if upd.Password != nil {
			if !validName(*upd.Password) {
				return domain.ErrInvalidName
			}
			user.Password = *upd.Password
		}
		if upd.Email != nil {
			if *upd.Email != "" && !emailPattern.MatchString(*upd.Email) {
				return domain.ErrInvalidEmail
			}
			user.Email = *upd.Email
		}
		return s.users.Update(txCtx, user)
	})
	if err != nil {
		if !errors.Is(err, domain.ErrNameConflict) {
			s.log.ErrorContext(ctx, "users - update - failed", "user_id", userID, "err", err)
		}
		return err
	}
	s.log.InfoContext(ctx, "users - update - success", "user_id", userID)
	return nil
}

func (s *UserService) Delete(ctx context.Context, userID int64) error {
	if err := s.users.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete user %d: %w", userID, err)
	}
	s.log.InfoContext(ctx, "users - delete - success", "user_id", userID)
	return nil
}

func (s *UserService) Get(ctx context.Context, userID int64) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}
