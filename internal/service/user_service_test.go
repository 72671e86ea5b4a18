package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"presence-auth/internal/domain"
	"presence-auth/internal/repository"
)

func newTestUserService() (*UserService, *repository.MemoryUserRepository) {
	repo := repository.NewMemoryUserRepository()
	return NewUserService(zap.NewNop(), repo), repo
}

func TestUserService_RegisterAndAuthenticate(t *testing.T) {
	svc, _ := newTestUserService()
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{
		Email:       " Alice@Example.com ",
		DisplayName: "Alice",
		Password:    "hunter2",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if user.PasswordHash == "" || user.PasswordHash == "hunter2" {
		t.Fatalf("expected a hashed password")
	}

	got, err := svc.Authenticate(ctx, "alice@example.com", "hunter2")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("expected user %s, got %s", user.ID, got.ID)
	}
}

func TestUserService_RegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestUserService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Email: "alice@example.com", Password: "hunter2"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := svc.Register(ctx, RegisterInput{Email: "ALICE@example.com", Password: "other"})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(vErr.Fields) != 1 || vErr.Fields[0].Field != "email" {
		t.Fatalf("expected email field error, got %+v", vErr.Fields)
	}
}

func TestUserService_RegisterRejectsBadInput(t *testing.T) {
	svc, _ := newTestUserService()
	ctx := context.Background()

	var vErr *ValidationError
	if _, err := svc.Register(ctx, RegisterInput{Email: "not-an-email", Password: "x"}); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for bad email, got %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Email: "ok@example.com", Password: "  "}); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for empty password, got %v", err)
	}
}

func TestUserService_AuthenticateFailures(t *testing.T) {
	svc, repo := newTestUserService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Email: "alice@example.com", Password: "hunter2"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Authenticate(ctx, "alice@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for bad password, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody@example.com", "hunter2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}

	// Cuentas dadas de alta por un proveedor externo no tienen password.
	err := repo.Create(ctx, domain.User{
		ID:        "ext1",
		Email:     "ext@example.com",
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create external user: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "ext@example.com", "anything"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for password-less account, got %v", err)
	}
}
