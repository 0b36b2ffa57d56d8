package binding

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/polystore/polystore-console/internal/shared"
)

// RepositoryPort defines data access methods for role-permission bindings.
type RepositoryPort interface {
	GetBinding(ctx context.Context, roleID int64) (RolePermissions, error)
	// ReplaceBinding swaps the persisted set for the full replacement set.
	// Implementations must be all-or-nothing; a failed replace leaves the
	// previous set intact.
	ReplaceBinding(ctx context.Context, roleID int64, permissionIDs []string, remark string) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles binding reads and full-replacement writes. Incremental
// grant/revoke calls do not exist; every write carries the complete target set.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// GetBinding fetches the persisted binding for a role.
func (s *Service) GetBinding(ctx context.Context, roleID int64) (RolePermissions, error) {
	rp, err := s.repo.GetBinding(ctx, roleID)
	if err != nil {
		return RolePermissions{}, err
	}
	return rp, nil
}

// GrantedPermissions returns the granted permission IDs for a role. Used by
// the authorization middleware.
func (s *Service) GrantedPermissions(ctx context.Context, roleID int64) ([]string, error) {
	rp, err := s.repo.GetBinding(ctx, roleID)
	if err != nil {
		return nil, err
	}
	return rp.Granted.Values(), nil
}

// ReplaceBinding replaces the full granted set for a role.
func (s *Service) ReplaceBinding(ctx context.Context, roleID int64, set PermissionSet, remark string) error {
	ids := set.Values()
	if err := s.repo.ReplaceBinding(ctx, roleID, ids, remark); err != nil {
		return err
	}
	if s.audit != nil {
		actorID, _ := shared.ActorFromContext(ctx)
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "binding.replace",
			Entity:   "role",
			EntityID: fmt.Sprintf("%d", roleID),
			Meta: map[string]any{
				"change_id": uuid.NewString(),
				"remark":    remark,
				"granted":   len(ids),
			},
		})
	}
	return nil
}
