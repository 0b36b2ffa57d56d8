package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polystore/polystore-console/internal/shared"
)

const roleColumns = `id, name, description, permission_level, user_count, created_at, updated_at`

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListRoles returns all roles ordered by name.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// GetRole fetches a role by ID.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
	return scanRoleRow(row)
}

// GetRoleByName fetches a role by its unique name.
func (r *Repository) GetRoleByName(ctx context.Context, name string) (Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name)
	return scanRoleRow(row)
}

// CreateRole inserts a new role.
func (r *Repository) CreateRole(ctx context.Context, role Role) (Role, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO roles (name, description, permission_level, user_count)
		VALUES ($1, $2, $3, 0)
		RETURNING `+roleColumns, role.Name, role.Description, role.PermissionLevel)
	created, err := scanRoleRow(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Role{}, fmt.Errorf("roles: name %q: %w", role.Name, shared.ErrDuplicate)
		}
		return Role{}, err
	}
	return created, nil
}

// UpdateRole applies a partial update and returns the updated role.
func (r *Repository) UpdateRole(ctx context.Context, id int64, patch Patch) (Role, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE roles SET
			name = COALESCE($2, name),
			description = COALESCE($3, description),
			permission_level = COALESCE($4, permission_level),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+roleColumns, id, patch.Name, patch.Description, patch.PermissionLevel)
	updated, err := scanRoleRow(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Role{}, fmt.Errorf("roles: rename: %w", shared.ErrDuplicate)
		}
		return Role{}, err
	}
	return updated, nil
}

// DeleteRole removes a role. The user_count predicate repeats the service-level
// guard so a count that went stale between fetch and delete cannot slip through.
func (r *Repository) DeleteRole(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1 AND user_count = 0`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		row := r.pool.QueryRow(ctx, `SELECT user_count FROM roles WHERE id = $1`, id)
		var count int
		if scanErr := row.Scan(&count); scanErr != nil {
			if errors.Is(scanErr, pgx.ErrNoRows) {
				return fmt.Errorf("roles: id %d: %w", id, shared.ErrNotFound)
			}
			return scanErr
		}
		return fmt.Errorf("roles: id %d has %d assigned users: %w", id, count, shared.ErrRoleInUse)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRole(row rowScanner) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.Description, &role.PermissionLevel, &role.UserCount, &role.CreatedAt, &role.UpdatedAt)
	return role, err
}

func scanRoleRow(row pgx.Row) (Role, error) {
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("roles: %w", shared.ErrNotFound)
		}
		return Role{}, err
	}
	return role, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
