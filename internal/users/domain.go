package users

import "time"

// Status labels a user row as active or locked. Locking is a display-level
// flag for operators; it does not invalidate sessions or credentials.
type Status string

const (
	StatusActive Status = "active"
	StatusLocked Status = "locked"
)

// Toggled returns the opposite status.
func (s Status) Toggled() Status {
	if s == StatusActive {
		return StatusLocked
	}
	return StatusActive
}

// Valid reports whether the status is one of the known labels.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusLocked
}

// User represents a console user account. Role references a Role by name; the
// reference is soft and is not rewritten when a role is renamed.
type User struct {
	ID        int64
	Username  string
	Email     string
	Role      string
	Status    Status
	LastLogin time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
