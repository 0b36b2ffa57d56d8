package binding

import (
	"context"
	"fmt"

	"github.com/polystore/polystore-console/internal/platform/gateway"
)

// GatewayRepository reads and writes bindings through the platform REST API.
type GatewayRepository struct {
	client *gateway.Client
}

// NewGatewayRepository constructs a repository backed by the remote API.
func NewGatewayRepository(client *gateway.Client) *GatewayRepository {
	return &GatewayRepository{client: client}
}

type bindingDTO struct {
	RoleID             int64    `json:"roleId"`
	RoleName           string   `json:"roleName"`
	GrantedPermissions []string `json:"grantedPermissions"`
}

type replaceBindingRequest struct {
	PermissionIDs []string `json:"permissionIds"`
	Remark        string   `json:"remark"`
}

// GetBinding fetches the binding for a role.
func (r *GatewayRepository) GetBinding(ctx context.Context, roleID int64) (RolePermissions, error) {
	var dto bindingDTO
	if err := r.client.Get(ctx, fmt.Sprintf("/api/role-permissions/%d", roleID), &dto); err != nil {
		return RolePermissions{}, err
	}
	return RolePermissions{
		RoleID:   dto.RoleID,
		RoleName: dto.RoleName,
		Granted:  NewPermissionSet(dto.GrantedPermissions...),
	}, nil
}

// ReplaceBinding submits the full replacement set upstream.
func (r *GatewayRepository) ReplaceBinding(ctx context.Context, roleID int64, permissionIDs []string, remark string) error {
	body := replaceBindingRequest{PermissionIDs: permissionIDs, Remark: remark}
	if body.PermissionIDs == nil {
		body.PermissionIDs = []string{}
	}
	return r.client.Put(ctx, fmt.Sprintf("/api/role-permissions/%d", roleID), body, nil)
}
