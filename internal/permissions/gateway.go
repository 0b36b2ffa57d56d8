package permissions

import (
	"context"

	"github.com/polystore/polystore-console/internal/platform/gateway"
)

// GatewayCatalog reads the permission catalog from the platform REST API.
type GatewayCatalog struct {
	client *gateway.Client
}

// NewGatewayCatalog constructs a catalog backed by the remote API.
func NewGatewayCatalog(client *gateway.Client) *GatewayCatalog {
	return &GatewayCatalog{client: client}
}

type permissionDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type groupDTO struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Permissions []permissionDTO `json:"permissions"`
}

// ListGroups fetches all permission groups.
func (c *GatewayCatalog) ListGroups(ctx context.Context) ([]Group, error) {
	var dtos []groupDTO
	if err := c.client.Get(ctx, "/api/permission-groups", &dtos); err != nil {
		return nil, err
	}
	groups := make([]Group, 0, len(dtos))
	for _, dto := range dtos {
		group := Group{ID: dto.ID, Name: dto.Name}
		for _, p := range dto.Permissions {
			group.Permissions = append(group.Permissions, Permission(p))
		}
		groups = append(groups, group)
	}
	return groups, nil
}
