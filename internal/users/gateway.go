package users

import (
	"context"
	"fmt"
	"time"

	"github.com/polystore/polystore-console/internal/platform/gateway"
)

// GatewayRepository reads and writes users through the platform REST API.
type GatewayRepository struct {
	client *gateway.Client
}

// NewGatewayRepository constructs a repository backed by the remote API.
func NewGatewayRepository(client *gateway.Client) *GatewayRepository {
	return &GatewayRepository{client: client}
}

type userDTO struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	LastLogin time.Time `json:"lastLogin"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (dto userDTO) toDomain() User {
	return User{
		ID:        dto.ID,
		Username:  dto.Username,
		Email:     dto.Email,
		Role:      dto.Role,
		Status:    Status(dto.Status),
		LastLogin: dto.LastLogin,
		CreatedAt: dto.CreatedAt,
		UpdatedAt: dto.UpdatedAt,
	}
}

// ListUsers fetches all users.
func (r *GatewayRepository) ListUsers(ctx context.Context) ([]User, error) {
	var dtos []userDTO
	if err := r.client.Get(ctx, "/api/users", &dtos); err != nil {
		return nil, err
	}
	users := make([]User, 0, len(dtos))
	for _, dto := range dtos {
		users = append(users, dto.toDomain())
	}
	return users, nil
}

// GetUser fetches a user by ID.
func (r *GatewayRepository) GetUser(ctx context.Context, id int64) (User, error) {
	var dto userDTO
	if err := r.client.Get(ctx, fmt.Sprintf("/api/users/%d", id), &dto); err != nil {
		return User{}, err
	}
	return dto.toDomain(), nil
}

// CreateUser creates a user upstream. Only the bcrypt hash leaves the console.
func (r *GatewayRepository) CreateUser(ctx context.Context, user User, passwordHash string) (User, error) {
	body := map[string]string{
		"username":     user.Username,
		"email":        user.Email,
		"role":         user.Role,
		"passwordHash": passwordHash,
	}
	var dto userDTO
	if err := r.client.Post(ctx, "/api/users", body, &dto); err != nil {
		return User{}, err
	}
	return dto.toDomain(), nil
}

// UpdateUser patches a user upstream.
func (r *GatewayRepository) UpdateUser(ctx context.Context, id int64, patch Patch) (User, error) {
	body := map[string]*string{}
	if patch.Username != nil {
		body["username"] = patch.Username
	}
	if patch.Email != nil {
		body["email"] = patch.Email
	}
	if patch.Role != nil {
		body["role"] = patch.Role
	}
	var dto userDTO
	if err := r.client.Patch(ctx, fmt.Sprintf("/api/users/%d", id), body, &dto); err != nil {
		return User{}, err
	}
	return dto.toDomain(), nil
}

// DeleteUser deletes a user upstream.
func (r *GatewayRepository) DeleteUser(ctx context.Context, id int64) error {
	return r.client.Delete(ctx, fmt.Sprintf("/api/users/%d", id))
}

// SetStatus updates the status flag upstream.
func (r *GatewayRepository) SetStatus(ctx context.Context, id int64, status Status) (User, error) {
	var dto userDTO
	if err := r.client.Put(ctx, fmt.Sprintf("/api/users/%d/status", id), map[string]string{"status": string(status)}, &dto); err != nil {
		return User{}, err
	}
	return dto.toDomain(), nil
}

// SetPassword replaces the credential upstream.
func (r *GatewayRepository) SetPassword(ctx context.Context, id int64, passwordHash string) error {
	return r.client.Put(ctx, fmt.Sprintf("/api/users/%d/password", id), map[string]string{"passwordHash": passwordHash}, nil)
}
