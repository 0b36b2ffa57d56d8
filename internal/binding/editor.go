package binding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/polystore/polystore-console/internal/shared"
)

// State is the editor lifecycle position.
type State int

const (
	// StateIdle means no role is selected; editing is disallowed.
	StateIdle State = iota
	// StateViewing means a role is selected and the persisted binding is shown.
	StateViewing
	// StateEditing means a draft copy of the binding is being modified.
	StateEditing
	// StateCommitting means a replace call is in flight.
	StateCommitting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateViewing:
		return "viewing"
	case StateEditing:
		return "editing"
	case StateCommitting:
		return "committing"
	default:
		return "unknown"
	}
}

var (
	// ErrNoRoleSelected is returned for operations that need a selected role.
	ErrNoRoleSelected = errors.New("binding: no role selected")
	// ErrNotEditing is returned for draft operations outside an editing session.
	ErrNotEditing = errors.New("binding: no editing session")
)

// savedAckWindow is how long the saved acknowledgement stays visible after a
// successful commit.
const savedAckWindow = 2 * time.Second

// Editor drives one admin's permission editing session. The persisted binding
// is never touched while a draft is open: toggles mutate only the draft, and a
// commit always sends the full replacement set, never a diff.
type Editor struct {
	mu       sync.Mutex
	service  *Service
	state    State
	current  RolePermissions
	draft    PermissionSet
	ackUntil time.Time
	now      func() time.Time
}

// NewEditor builds an Editor in the idle state.
func NewEditor(service *Service) *Editor {
	return &Editor{service: service, state: StateIdle, now: time.Now}
}

// SelectRole switches the editor to the given role and fetches its binding.
// When an editing session is open, the caller must pass discardDraft to drop
// the unsaved work; otherwise the selection is refused.
func (e *Editor) SelectRole(ctx context.Context, roleID int64, discardDraft bool) (RolePermissions, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateCommitting {
		return RolePermissions{}, fmt.Errorf("binding: commit in flight: %w", shared.ErrEditConflict)
	}
	if e.state == StateEditing && !discardDraft {
		return RolePermissions{}, fmt.Errorf("binding: unsaved draft for role %d: %w", e.current.RoleID, shared.ErrEditConflict)
	}

	rp, err := e.service.GetBinding(ctx, roleID)
	if err != nil {
		e.state = StateIdle
		e.current = RolePermissions{}
		e.draft = nil
		return RolePermissions{}, err
	}
	e.state = StateViewing
	e.current = rp
	e.draft = nil
	return rp, nil
}

// BeginEdit opens an editing session seeded with a copy of the persisted set.
func (e *Editor) BeginEdit() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateIdle:
		return ErrNoRoleSelected
	case StateEditing, StateCommitting:
		return fmt.Errorf("binding: session already open: %w", shared.ErrEditConflict)
	}
	e.draft = e.current.Granted.Clone()
	e.state = StateEditing
	return nil
}

// Toggle grants or revokes a permission in the draft. Both directions are
// idempotent.
func (e *Editor) Toggle(permissionID string, granted bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateEditing {
		return ErrNotEditing
	}
	if granted {
		e.draft.Add(permissionID)
	} else {
		e.draft.Remove(permissionID)
	}
	return nil
}

// IsGranted reads from the draft while editing and from the persisted binding
// otherwise. This dual-source read is what makes checkboxes interactive
// during editing and authoritative the rest of the time.
func (e *Editor) IsGranted(permissionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateEditing {
		return e.draft.Has(permissionID)
	}
	return e.current.Granted.Has(permissionID)
}

// CancelEdit discards the draft and re-fetches the persisted binding rather
// than reverting to the in-memory copy, so edits from concurrent admins show
// up. The editor lands in viewing even when the re-fetch fails; the last
// known binding is kept in that case.
func (e *Editor) CancelEdit(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateEditing {
		return ErrNotEditing
	}
	e.draft = nil
	e.state = StateViewing

	rp, err := e.service.GetBinding(ctx, e.current.RoleID)
	if err != nil {
		return fmt.Errorf("binding: refresh after cancel: %w", err)
	}
	e.current = rp
	return nil
}

// Commit sends the full replacement set. On success the binding is re-fetched
// to reflect server-side truth and a transient saved acknowledgement is armed.
// On failure the editor stays in editing with the draft intact. A second
// commit while one is pending is rejected.
func (e *Editor) Commit(ctx context.Context, remark string) error {
	e.mu.Lock()
	if e.state == StateCommitting {
		e.mu.Unlock()
		return fmt.Errorf("binding: commit in flight: %w", shared.ErrEditConflict)
	}
	if e.state != StateEditing {
		e.mu.Unlock()
		return ErrNotEditing
	}
	roleID := e.current.RoleID
	snapshot := e.draft.Clone()
	e.state = StateCommitting
	e.mu.Unlock()

	err := e.service.ReplaceBinding(ctx, roleID, snapshot, remark)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		e.state = StateEditing
		return err
	}

	if rp, ferr := e.service.GetBinding(ctx, roleID); ferr == nil {
		e.current = rp
	} else {
		// The replace landed; the committed set is the best known truth.
		e.current = RolePermissions{RoleID: roleID, RoleName: e.current.RoleName, Granted: snapshot}
	}
	e.draft = nil
	e.state = StateViewing
	e.ackUntil = e.now().Add(savedAckWindow)
	return nil
}

// State returns the current lifecycle position.
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Current returns the selected role's binding, if any.
func (e *Editor) Current() (RolePermissions, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateIdle {
		return RolePermissions{}, false
	}
	return RolePermissions{RoleID: e.current.RoleID, RoleName: e.current.RoleName, Granted: e.current.Granted.Clone()}, true
}

// Draft returns a copy of the draft set while editing.
func (e *Editor) Draft() (PermissionSet, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateEditing {
		return nil, false
	}
	return e.draft.Clone(), true
}

// SavedAckVisible reports whether the saved acknowledgement is still inside
// its display window.
func (e *Editor) SavedAckVisible() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now().Before(e.ackUntil)
}
