package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/domain"
)

func newUserService() (*UserService, *memUsers) {
	users := newMemUsers()
	return NewUserService(testLogger(), users, passTx{}), users
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newUserService()
	user, err := svc.Register(context.Background(), "alice", "secret", "alice@example.com")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.ID == 0 {
		t.Fatal("user id not assigned")
	}
	if _, err := svc.Register(context.Background(), "alice", "other", ""); !errors.Is(err, domain.ErrNameConflict) {
		t.Fatalf("expected ErrNameConflict, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "alice", "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := svc.Login(context.Background(), "alice", "wrong"); !errors.Is(err, domain.ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "nobody", "secret"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newUserService()
	if _, err := svc.Register(context.Background(), "", "pw", ""); !errors.Is(err, domain.ErrInvalidName) {
		t.Fatalf("empty name: %v", err)
	}
	long := strings.Repeat("x", domain.MaxNameLength+1)
	if _, err := svc.Register(context.Background(), long, "pw", ""); !errors.Is(err, domain.ErrInvalidName) {
		t.Fatalf("over-long name: %v", err)
	}
	if _, err := svc.Register(context.Background(), "bob", "pw", "not-an-email"); !errors.Is(err, domain.ErrInvalidEmail) {
		t.Fatalf("bad email: %v", err)
	}
	// Email is optional.
	if _, err := svc.Register(context.Background(), "bob", "pw", ""); err != nil {
		t.Fatalf("no email: %v", err)
	}
}

func TestProfileUpdate(t *testing.T) {
	svc, users := newUserService()
	a, err := svc.Register(context.Background(), "alice", "pw", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(context.Background(), "bob", "pw", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	taken := "bob"
	if err := svc.Update(context.Background(), a.ID, ProfileUpdate{Name: &taken}); !errors.Is(err, domain.ErrNameConflict) {
		t.Fatalf("expected ErrNameConflict, got %v", err)
	}
	newName := "alicia"
	newEmail := "alicia@example.com"
	if err := svc.Update(context.Background(), a.ID, ProfileUpdate{Name: &newName, Email: &newEmail}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := users.GetByID(context.Background(), a.ID)
	if got.Name != "alicia" || got.Email != "alicia@example.com" {
		t.Fatalf("update not applied: %+v", got)
	}
	// Keeping the same name is not a conflict with yourself.
	same := "alicia"
	if err := svc.Update(context.Background(), a.ID, ProfileUpdate{Name: &same}); err != nil {
		t.Fatalf("same-name update: %v", err)
	}
}
