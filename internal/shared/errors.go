package shared

import "errors"

var (
	// ErrValidation indicates bad input caught before any store call.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates the target record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrRoleInUse blocks deletion of a role that still has assigned users.
	ErrRoleInUse = errors.New("role has assigned users")
	// ErrUnavailable indicates a failed read from the backing store.
	ErrUnavailable = errors.New("data unavailable")
	// ErrUpdateFailed indicates a failed write to the backing store.
	ErrUpdateFailed = errors.New("update failed")
	// ErrDuplicate indicates a uniqueness conflict.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrEditConflict indicates a commit already in flight or an unsaved draft
	// that would be lost by the requested operation.
	ErrEditConflict = errors.New("edit conflict")
)

// UserSafeMessage maps internal errors to operator-facing text.
func UserSafeMessage(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "The submitted values are invalid."
	case errors.Is(err, ErrNotFound):
		return "The requested record no longer exists."
	case errors.Is(err, ErrRoleInUse):
		return "This role still has assigned users and cannot be deleted."
	case errors.Is(err, ErrUnavailable):
		return "The platform API is unreachable. Try again shortly."
	case errors.Is(err, ErrUpdateFailed):
		return "Saving failed. Your changes were not applied."
	case errors.Is(err, ErrDuplicate):
		return "A record with that name already exists."
	case errors.Is(err, ErrEditConflict):
		return "Another change to this role is still pending."
	default:
		return "Something went wrong."
	}
}
