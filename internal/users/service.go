package users

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/polystore/polystore-console/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	CreateUser(ctx context.Context, user User, passwordHash string) (User, error)
	UpdateUser(ctx context.Context, id int64, patch Patch) (User, error)
	DeleteUser(ctx context.Context, id int64) error
	SetStatus(ctx context.Context, id int64, status Status) (User, error)
	SetPassword(ctx context.Context, id int64, passwordHash string) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CreateInput carries a new user draft. The password travels only as far as
// this service; storage ports only ever see the bcrypt hash.
type CreateInput struct {
	Username string
	Email    string
	Password string
	Role     string
}

// Patch carries a partial user update. Nil fields are left untouched.
type Patch struct {
	Username *string
	Email    *string
	Role     *string
}

// Service handles user business logic.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	now   func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// ListUsers returns all users. An empty list is a valid result; only a failed
// fetch reports ErrUnavailable.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	list, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", shared.ErrUnavailable)
	}
	return list, nil
}

// GetUser fetches a user by ID.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// CreateUser validates the draft locally, hashes the password and stores the
// new account as active with last login set to now.
func (s *Service) CreateUser(ctx context.Context, input CreateInput) (User, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(input.Email)
	if input.Username == "" {
		return User{}, fmt.Errorf("users: username required: %w", shared.ErrValidation)
	}
	if input.Email == "" {
		return User{}, fmt.Errorf("users: email required: %w", shared.ErrValidation)
	}
	if input.Password == "" {
		return User{}, fmt.Errorf("users: password required: %w", shared.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	user, err := s.repo.CreateUser(ctx, User{
		Username:  input.Username,
		Email:     input.Email,
		Role:      strings.TrimSpace(input.Role),
		Status:    StatusActive,
		LastLogin: s.now(),
	}, string(hash))
	if err != nil {
		return User{}, err
	}
	s.record(ctx, "user.create", user.ID, map[string]any{"username": user.Username})
	return user, nil
}

// UpdateUser applies a partial update. A role patch does not cascade into role
// user counts; those are reconciled by the backend.
func (s *Service) UpdateUser(ctx context.Context, id int64, patch Patch) (User, error) {
	if patch.Username != nil {
		trimmed := strings.TrimSpace(*patch.Username)
		if trimmed == "" {
			return User{}, fmt.Errorf("users: username required: %w", shared.ErrValidation)
		}
		patch.Username = &trimmed
	}
	user, err := s.repo.UpdateUser(ctx, id, patch)
	if err != nil {
		return User{}, err
	}
	s.record(ctx, "user.update", user.ID, nil)
	return user, nil
}

// DeleteUser removes a user unconditionally.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.record(ctx, "user.delete", id, nil)
	return nil
}

// ToggleStatus flips the user between active and locked.
func (s *Service) ToggleStatus(ctx context.Context, id int64) (User, error) {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	updated, err := s.repo.SetStatus(ctx, id, user.Status.Toggled())
	if err != nil {
		return User{}, err
	}
	s.record(ctx, "user.status", id, map[string]any{"status": string(updated.Status)})
	return updated, nil
}

// ResetPassword replaces the user's password. No complexity policy is applied.
func (s *Service) ResetPassword(ctx context.Context, id int64, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("users: new password required: %w", shared.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("users: hash password: %w", err)
	}
	if err := s.repo.SetPassword(ctx, id, string(hash)); err != nil {
		return err
	}
	s.record(ctx, "user.password_reset", id, nil)
	return nil
}

func (s *Service) record(ctx context.Context, action string, userID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	actorID, _ := shared.ActorFromContext(ctx)
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: fmt.Sprintf("%d", userID),
		Meta:     meta,
	})
}
