package roles

import (
	"context"
	"fmt"
	"time"

	"github.com/polystore/polystore-console/internal/platform/gateway"
	"github.com/polystore/polystore-console/internal/shared"
)

// GatewayRepository reads and writes roles through the platform REST API.
type GatewayRepository struct {
	client *gateway.Client
}

// NewGatewayRepository constructs a repository backed by the remote API.
func NewGatewayRepository(client *gateway.Client) *GatewayRepository {
	return &GatewayRepository{client: client}
}

type roleDTO struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	PermissionLevel string    `json:"permissionLevel"`
	UserCount       int       `json:"userCount"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (dto roleDTO) toDomain() Role {
	return Role(dto)
}

// ListRoles fetches all roles.
func (r *GatewayRepository) ListRoles(ctx context.Context) ([]Role, error) {
	var dtos []roleDTO
	if err := r.client.Get(ctx, "/api/roles", &dtos); err != nil {
		return nil, err
	}
	roles := make([]Role, 0, len(dtos))
	for _, dto := range dtos {
		roles = append(roles, dto.toDomain())
	}
	return roles, nil
}

// GetRole fetches a role by ID.
func (r *GatewayRepository) GetRole(ctx context.Context, id int64) (Role, error) {
	var dto roleDTO
	if err := r.client.Get(ctx, fmt.Sprintf("/api/roles/%d", id), &dto); err != nil {
		return Role{}, err
	}
	return dto.toDomain(), nil
}

// GetRoleByName fetches a role by name.
func (r *GatewayRepository) GetRoleByName(ctx context.Context, name string) (Role, error) {
	roles, err := r.ListRoles(ctx)
	if err != nil {
		return Role{}, err
	}
	for _, role := range roles {
		if role.Name == name {
			return role, nil
		}
	}
	return Role{}, fmt.Errorf("roles: name %q: %w", name, shared.ErrNotFound)
}

// CreateRole creates a role upstream.
func (r *GatewayRepository) CreateRole(ctx context.Context, role Role) (Role, error) {
	body := map[string]string{
		"name":            role.Name,
		"description":     role.Description,
		"permissionLevel": role.PermissionLevel,
	}
	var dto roleDTO
	if err := r.client.Post(ctx, "/api/roles", body, &dto); err != nil {
		return Role{}, err
	}
	return dto.toDomain(), nil
}

// UpdateRole patches a role upstream.
func (r *GatewayRepository) UpdateRole(ctx context.Context, id int64, patch Patch) (Role, error) {
	body := map[string]*string{}
	if patch.Name != nil {
		body["name"] = patch.Name
	}
	if patch.Description != nil {
		body["description"] = patch.Description
	}
	if patch.PermissionLevel != nil {
		body["permissionLevel"] = patch.PermissionLevel
	}
	var dto roleDTO
	if err := r.client.Patch(ctx, fmt.Sprintf("/api/roles/%d", id), body, &dto); err != nil {
		return Role{}, err
	}
	return dto.toDomain(), nil
}

// DeleteRole deletes a role upstream.
func (r *GatewayRepository) DeleteRole(ctx context.Context, id int64) error {
	return r.client.Delete(ctx, fmt.Sprintf("/api/roles/%d", id))
}
