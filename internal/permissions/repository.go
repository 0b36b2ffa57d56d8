package permissions

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed catalog access.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListGroups returns all permission groups with their permissions in catalog order.
func (r *Repository) ListGroups(ctx context.Context) ([]Group, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT g.id, g.name, p.id, p.name, COALESCE(p.description, '')
		FROM permission_groups g
		JOIN permissions p ON p.group_id = g.id
		ORDER BY g.sort_order, g.id, p.sort_order, p.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []Group
	index := make(map[string]int)
	for rows.Next() {
		var groupID, groupName string
		var perm Permission
		if err := rows.Scan(&groupID, &groupName, &perm.ID, &perm.Name, &perm.Description); err != nil {
			return nil, err
		}
		i, ok := index[groupID]
		if !ok {
			groups = append(groups, Group{ID: groupID, Name: groupName})
			i = len(groups) - 1
			index[groupID] = i
		}
		groups[i].Permissions = append(groups[i].Permissions, perm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return groups, nil
}
