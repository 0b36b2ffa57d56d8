package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/polystore/polystore-console/internal/shared"
)

// UserDirectory resolves an actor to their assigned role name.
type UserDirectory interface {
	FindRoleName(ctx context.Context, userID int64) (string, error)
}

// RoleDirectory resolves a role name to its ID.
type RoleDirectory interface {
	FindRoleID(ctx context.Context, name string) (int64, error)
}

// BindingSource yields the granted permission IDs for a role.
type BindingSource interface {
	GrantedPermissions(ctx context.Context, roleID int64) ([]string, error)
}

// Service resolves effective permissions: user -> role name -> role -> grants.
type Service struct {
	users    UserDirectory
	roles    RoleDirectory
	bindings BindingSource
}

// NewService builds Service instance.
func NewService(users UserDirectory, roles RoleDirectory, bindings BindingSource) *Service {
	return &Service{users: users, roles: roles, bindings: bindings}
}

// EffectivePermissions returns the permission IDs granted to the user through
// their role. A user without a role has no permissions.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	roleName, err := s.users.FindRoleName(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: resolve user %d: %w", userID, err)
	}
	if roleName == "" {
		return nil, nil
	}
	roleID, err := s.roles.FindRoleID(ctx, roleName)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// Soft reference: the role may have been renamed or removed.
			return nil, nil
		}
		return nil, fmt.Errorf("rbac: resolve role %q: %w", roleName, err)
	}
	granted, err := s.bindings.GrantedPermissions(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("rbac: resolve grants for role %d: %w", roleID, err)
	}
	return granted, nil
}
