package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polystore/polystore-console/internal/shared"
)

const userColumns = `id, username, email, role_name, status, last_login, created_at, updated_at`

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListUsers returns all users ordered by username.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser fetches a user by ID.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUserRow(row)
}

// CreateUser inserts a new user.
func (r *Repository) CreateUser(ctx context.Context, user User, passwordHash string) (User, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, role_name, status, last_login, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+userColumns,
		user.Username, user.Email, user.Role, string(user.Status), user.LastLogin, passwordHash)
	created, err := scanUserRow(row)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, fmt.Errorf("users: username %q: %w", user.Username, shared.ErrDuplicate)
		}
		return User{}, err
	}
	return created, nil
}

// UpdateUser applies a partial update and returns the updated user.
func (r *Repository) UpdateUser(ctx context.Context, id int64, patch Patch) (User, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users SET
			username = COALESCE($2, username),
			email = COALESCE($3, email),
			role_name = COALESCE($4, role_name),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns, id, patch.Username, patch.Email, patch.Role)
	updated, err := scanUserRow(row)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, fmt.Errorf("users: rename: %w", shared.ErrDuplicate)
		}
		return User{}, err
	}
	return updated, nil
}

// DeleteUser removes a user.
func (r *Repository) DeleteUser(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("users: id %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// SetStatus updates the status flag only.
func (r *Repository) SetStatus(ctx context.Context, id int64, status Status) (User, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns, id, string(status))
	return scanUserRow(row)
}

// SetPassword replaces the stored credential hash.
func (r *Repository) SetPassword(ctx context.Context, id int64, passwordHash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("users: id %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var user User
	var status string
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.Role, &status, &user.LastLogin, &user.CreatedAt, &user.UpdatedAt)
	user.Status = Status(status)
	return user, err
}

func scanUserRow(row pgx.Row) (User, error) {
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("users: %w", shared.ErrNotFound)
		}
		return User{}, err
	}
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
