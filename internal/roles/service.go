package roles

import (
	"context"
	"fmt"
	"strings"

	"github.com/polystore/polystore-console/internal/shared"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	GetRoleByName(ctx context.Context, name string) (Role, error)
	CreateRole(ctx context.Context, role Role) (Role, error)
	UpdateRole(ctx context.Context, id int64, patch Patch) (Role, error)
	DeleteRole(ctx context.Context, id int64) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CreateInput carries a new role draft.
type CreateInput struct {
	Name            string
	Description     string
	PermissionLevel string
}

// Patch carries a partial role update. Nil fields are left untouched.
type Patch struct {
	Name            *string
	Description     *string
	PermissionLevel *string
}

// Service handles role business logic.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	list, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("roles: list: %w", shared.ErrUnavailable)
	}
	return list, nil
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// GetRoleByName fetches a role by its unique name.
func (s *Service) GetRoleByName(ctx context.Context, name string) (Role, error) {
	return s.repo.GetRoleByName(ctx, strings.TrimSpace(name))
}

// CreateRole inserts a new role with a zero user count.
func (s *Service) CreateRole(ctx context.Context, input CreateInput) (Role, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	if input.Name == "" {
		return Role{}, fmt.Errorf("roles: name required: %w", shared.ErrValidation)
	}
	if input.Description == "" {
		return Role{}, fmt.Errorf("roles: description required: %w", shared.ErrValidation)
	}
	role, err := s.repo.CreateRole(ctx, Role{
		Name:            input.Name,
		Description:     input.Description,
		PermissionLevel: strings.TrimSpace(input.PermissionLevel),
	})
	if err != nil {
		return Role{}, err
	}
	s.record(ctx, "role.create", role.ID, map[string]any{"name": role.Name})
	return role, nil
}

// UpdateRole applies a partial update.
func (s *Service) UpdateRole(ctx context.Context, id int64, patch Patch) (Role, error) {
	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		if trimmed == "" {
			return Role{}, fmt.Errorf("roles: name required: %w", shared.ErrValidation)
		}
		patch.Name = &trimmed
	}
	role, err := s.repo.UpdateRole(ctx, id, patch)
	if err != nil {
		return Role{}, err
	}
	s.record(ctx, "role.update", role.ID, nil)
	return role, nil
}

// DeleteRole removes a role. A role that still has assigned users is refused
// before any delete is issued, using the most recently fetched user count.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if role.UserCount > 0 {
		return fmt.Errorf("roles: %q has %d assigned users: %w", role.Name, role.UserCount, shared.ErrRoleInUse)
	}
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.record(ctx, "role.delete", id, map[string]any{"name": role.Name})
	return nil
}

func (s *Service) record(ctx context.Context, action string, roleID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	actorID, _ := shared.ActorFromContext(ctx)
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "role",
		EntityID: fmt.Sprintf("%d", roleID),
		Meta:     meta,
	})
}
