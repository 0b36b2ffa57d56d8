package binding

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polystore/polystore-console/internal/platform/db"
	"github.com/polystore/polystore-console/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetBinding fetches the persisted binding for a role.
func (r *Repository) GetBinding(ctx context.Context, roleID int64) (RolePermissions, error) {
	var roleName string
	if err := r.pool.QueryRow(ctx, `SELECT name FROM roles WHERE id = $1`, roleID).Scan(&roleName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RolePermissions{}, fmt.Errorf("binding: role %d: %w", roleID, shared.ErrNotFound)
		}
		return RolePermissions{}, fmt.Errorf("binding: fetch role: %w", shared.ErrUnavailable)
	}

	rows, err := r.pool.Query(ctx, `SELECT permission_id FROM role_permissions WHERE role_id = $1`, roleID)
	if err != nil {
		return RolePermissions{}, fmt.Errorf("binding: fetch grants: %w", shared.ErrUnavailable)
	}
	defer rows.Close()

	granted := NewPermissionSet()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return RolePermissions{}, err
		}
		granted.Add(id)
	}
	if err := rows.Err(); err != nil {
		return RolePermissions{}, fmt.Errorf("binding: fetch grants: %w", shared.ErrUnavailable)
	}

	return RolePermissions{RoleID: roleID, RoleName: roleName, Granted: granted}, nil
}

// ReplaceBinding swaps the persisted set inside a single transaction. The
// delete and the inserts either all land or none do.
func (r *Repository) ReplaceBinding(ctx context.Context, roleID int64, permissionIDs []string, remark string) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE id = $1)`, roleID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("binding: role %d: %w", roleID, shared.ErrNotFound)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
			return err
		}
		for _, id := range permissionIDs {
			if _, err := tx.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)`, roleID, id); err != nil {
				return err
			}
		}
		if remark != "" {
			if _, err := tx.Exec(ctx, `INSERT INTO role_permission_changes (role_id, remark, granted_count, changed_at) VALUES ($1, $2, $3, NOW())`, roleID, remark, len(permissionIDs)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return err
		}
		return fmt.Errorf("binding: replace role %d: %w", roleID, shared.ErrUpdateFailed)
	}
	return nil
}
