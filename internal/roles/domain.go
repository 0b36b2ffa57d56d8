package roles

import "time"

// Role represents a named permission bundle assignable to users.
// UserCount is maintained by the backend (see the reconciliation job) and is
// never recomputed by the console.
type Role struct {
	ID              int64
	Name            string
	Description     string
	PermissionLevel string
	UserCount       int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
