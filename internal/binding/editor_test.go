package binding

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polystore/polystore-console/internal/shared"
)

type mockRepository struct {
	bindings map[int64]*RolePermissions

	getCalls     int
	replaceCalls int
	lastReplace  []string
	lastRemark   string

	getError     error
	replaceError error
}

func newMockRepository() *mockRepository {
	return &mockRepository{bindings: make(map[int64]*RolePermissions)}
}

func (m *mockRepository) seed(roleID int64, name string, granted ...string) {
	m.bindings[roleID] = &RolePermissions{RoleID: roleID, RoleName: name, Granted: NewPermissionSet(granted...)}
}

func (m *mockRepository) GetBinding(ctx context.Context, roleID int64) (RolePermissions, error) {
	m.getCalls++
	if m.getError != nil {
		return RolePermissions{}, m.getError
	}
	rp, ok := m.bindings[roleID]
	if !ok {
		return RolePermissions{}, shared.ErrNotFound
	}
	return RolePermissions{RoleID: rp.RoleID, RoleName: rp.RoleName, Granted: rp.Granted.Clone()}, nil
}

func (m *mockRepository) ReplaceBinding(ctx context.Context, roleID int64, permissionIDs []string, remark string) error {
	m.replaceCalls++
	m.lastReplace = permissionIDs
	m.lastRemark = remark
	if m.replaceError != nil {
		return m.replaceError
	}
	rp, ok := m.bindings[roleID]
	if !ok {
		return shared.ErrNotFound
	}
	rp.Granted = NewPermissionSet(permissionIDs...)
	return nil
}

func newTestEditor(repo *mockRepository) *Editor {
	return NewEditor(NewService(repo, nil))
}

func TestSelectRoleMovesToViewing(t *testing.T) {
	repo := newMockRepository()
	repo.seed(1, "viewer", "p1", "p2")
	editor := newTestEditor(repo)

	require.Equal(t, StateIdle, editor.State())

	rp, err := editor.SelectRole(context.Background(), 1, false)
	require.NoError(t, err)
	assert.Equal(t, "viewer", rp.RoleName)
	assert.Equal(t, StateViewing, editor.State())
	assert.True(t, editor.IsGranted("p1"))
	assert.False(t, editor.IsGranted("p9"))
}

func TestSelectRoleUnknownRoleReturnsToIdle(t *testing.T) {
	repo := newMockRepository()
	editor := newTestEditor(repo)

	_, err := editor.SelectRole(context.Background(), 42, false)
	require.ErrorIs(t, err, shared.ErrNotFound)
	assert.Equal(t, StateIdle, editor.State())
}

func TestBeginEditRequiresSelectedRole(t *testing.T) {
	editor := newTestEditor(newMockRepository())
	require.ErrorIs(t, editor.BeginEdit(), ErrNoRoleSelected)
}

func TestToggleRequiresEditing(t *testing.T) {
	repo := newMockRepository()
	repo.seed(1, "viewer", "p1")
	editor := newTestEditor(repo)

	_, err := editor.SelectRole(context.Background(), 1, false)
	require.NoError(t, err)
	require.ErrorIs(t, editor.Toggle("p2", true), ErrNotEditing)
}

func TestToggleIsIdempotent(t *testing.T) {
	repo := newMockRepository()
	repo.seed(1, "viewer", "p1")
	editor := newTestEditor(repo)

	_, err := editor.SelectRole(context.Background(), 1, false)
	require.NoError(t, err)
	require.NoError(t, editor.BeginEdit())

	require.NoError(t, editor.Toggle("p1", true))
	require.NoError(t, editor.Toggle("p1", true))
	draft, ok := editor.Draft()
	require.True(t, ok)
	assert.Equal(t, []string{"p1"}, draft.Values())

	require.NoError(t, editor.Toggle("p1", false))
	require.NoError(t, editor.Toggle("p1", false))
	draft, ok = editor.Draft()
	require.True(t, ok)
	assert.Empty(t, draft.Values())
}

func TestEditingLeavesPersistedBindingUntouched(t *testing.T) {
	repo := newMockRepository()
	repo.seed(1, "viewer", "p1")
	editor := newTestEditor(repo)

	_, err := editor.SelectRole(context.Background(), 1, false)
	require.NoError(t, err)
	require.NoError(t, editor.BeginEdit())
	require.NoError(t, editor.Toggle("p2", true))
	require.NoError(t, editor.Toggle("p1", false))

	// Draft reads reflect the toggles, the store has seen no writes.
	assert.True(t, editor.IsGranted("p2"))
	assert.False(t, editor.IsGranted("p1"))
	assert.Zero(t, repo.replaceCalls)
	assert.Equal(t, []string{"p1"}, repo.bindings[1].Granted.Values())
}

func TestCancelEditRefetchesPersistedBinding(t *testing.T) {
	repo := newMockRepository()
	repo.seed(1, "viewer", "p1", "p2")
	editor := newTestEditor(repo)

	_, err := editor.SelectRole(context.Background(), 1, false)
	require.NoError(t, err)

	before := map[string]bool{"p1": editor.IsGranted("p1"), "p2": editor.IsGranted("p2"), "p3": editor.IsGranted("p3")}

	require.NoError(t, editor.BeginEdit())
	require.NoError(t, editor.Toggle("p3", true))
	require.NoError(t, editor.Toggle("p1", false))

	fetchesBeforeCancel := repo.getCalls
	require.NoError(t, editor.CancelEdit(context.Background()))

	assert.Equal(t, StateViewing, editor.State())
	assert.Equal(t, fetchesBeforeCancel+1, repo.getCalls, "cancel must re-fetch, not revert in memory")
	for id, granted := range before {
		assert.Equal(t, granted, editor.IsGranted(id), "permission %s", id)
	}
}

func TestCommitSendsFullReplacementSet(t *testing.T) {
	repo := newMockRepository()
	repo.seed(1, "editor", "p1", "p2")
	editor := newTestEditor(repo)

	_, err := editor.SelectRole(context.Background(), 1, false)
	require.NoError(t, err)
	require.NoError(t, editor.BeginEdit())
	require.NoError(t, editor.Toggle("p3", true))
	require.NoError(t, editor.Toggle("p1", false))

	require.NoError(t, editor.Commit(context.Background(), "adjust editor perms"))

	assert.Equal(t, StateViewing, editor.State())
	assert.Equal(t, 1, repo.replaceCalls)
	assert.Equal(t, []string{"p2", "p3"}, repo.lastReplace)
	assert.Equal(t, "adjust editor perms", repo.lastRemark)
	assert.Equal(t, []string{"p2", "p3"}, repo.bindings[1].Granted.Values())

	assert.True(t, editor.IsGranted("p2"))
	assert.True(t, editor.IsGranted("p3"))
	assert.False(t, editor.IsGranted("p1"))
}

func TestCommitFailureKeepsDraftAndAllowsRetry(t *testing.T) {
	repo := newMockRepository()
	repo.seed(1, "editor", "p1")
	editor := newTestEditor(repo)

	_, err := editor.SelectRole(context.Background(), 1, false)
	require.NoError(t, err)
	require.NoError(t, editor.BeginEdit())
	require.NoError(t, editor.Toggle("p2", true))

	repo.replaceError = shared.ErrUpdateFailed
	err = editor.Commit(context.Background(), "")
	require.ErrorIs(t, err, shared.ErrUpdateFailed)

	assert.Equal(t, StateEditing, editor.State())
	draft, ok := editor.Draft()
	require.True(t, ok)
	assert.Equal(t, []string{"p1", "p2"}, draft.Values())

	repo.replaceError = nil
	require.NoError(t, editor.Commit(context.Background(), ""))
	assert.Equal(t, []string{"p1", "p2"}, repo.bindings[1].Granted.Values())
}

func TestCommitOutsideEditingIsRejected(t *testing.T) {
	repo := newMockRepository()
	repo.seed(1, "viewer", "p1")
	editor := newTestEditor(repo)

	_, err := editor.SelectRole(context.Background(), 1, false)
	require.NoError(t, err)
	require.ErrorIs(t, editor.Commit(context.Background(), ""), ErrNotEditing)
}

func TestSelectRoleWhileEditingNeedsDiscard(t *testing.T) {
	repo := newMockRepository()
	repo.seed(1, "viewer", "p1")
	repo.seed(2, "admin", "p9")
	editor := newTestEditor(repo)

	_, err := editor.SelectRole(context.Background(), 1, false)
	require.NoError(t, err)
	require.NoError(t, editor.BeginEdit())
	require.NoError(t, editor.Toggle("p2", true))

	_, err = editor.SelectRole(context.Background(), 2, false)
	require.ErrorIs(t, err, shared.ErrEditConflict)
	assert.Equal(t, StateEditing, editor.State())

	rp, err := editor.SelectRole(context.Background(), 2, true)
	require.NoError(t, err)
	assert.Equal(t, "admin", rp.RoleName)
	assert.Equal(t, StateViewing, editor.State())
	_, ok := editor.Draft()
	assert.False(t, ok)
}

func TestSavedAckClearsAfterWindow(t *testing.T) {
	repo := newMockRepository()
	repo.seed(1, "viewer", "p1")
	editor := newTestEditor(repo)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	editor.now = func() time.Time { return now }

	_, err := editor.SelectRole(context.Background(), 1, false)
	require.NoError(t, err)
	require.NoError(t, editor.BeginEdit())
	require.NoError(t, editor.Toggle("p2", true))
	require.NoError(t, editor.Commit(context.Background(), ""))

	assert.True(t, editor.SavedAckVisible())

	now = now.Add(savedAckWindow - time.Millisecond)
	assert.True(t, editor.SavedAckVisible())

	now = now.Add(2 * time.Millisecond)
	assert.False(t, editor.SavedAckVisible())
}

func TestPermissionSetCloneIsIndependent(t *testing.T) {
	original := NewPermissionSet("p1", "p2")
	clone := original.Clone()
	clone.Add("p3")
	clone.Remove("p1")

	assert.Equal(t, []string{"p1", "p2"}, original.Values())
	assert.Equal(t, []string{"p2", "p3"}, clone.Values())
	assert.False(t, original.Equal(clone))
	assert.True(t, original.Equal(NewPermissionSet("p2", "p1")))
}

type blockingRepository struct {
	*mockRepository
	started chan struct{}
	release chan struct{}
}

func (b *blockingRepository) ReplaceBinding(ctx context.Context, roleID int64, permissionIDs []string, remark string) error {
	close(b.started)
	<-b.release
	return b.mockRepository.ReplaceBinding(ctx, roleID, permissionIDs, remark)
}

func TestSecondCommitWhileInFlightIsRejected(t *testing.T) {
	inner := newMockRepository()
	inner.seed(1, "viewer", "p1")
	repo := &blockingRepository{mockRepository: inner, started: make(chan struct{}), release: make(chan struct{})}
	editor := NewEditor(NewService(repo, nil))

	_, err := editor.SelectRole(context.Background(), 1, false)
	require.NoError(t, err)
	require.NoError(t, editor.BeginEdit())
	require.NoError(t, editor.Toggle("p2", true))

	done := make(chan error, 1)
	go func() {
		done <- editor.Commit(context.Background(), "")
	}()

	<-repo.started
	assert.Equal(t, StateCommitting, editor.State())
	require.ErrorIs(t, editor.Commit(context.Background(), ""), shared.ErrEditConflict)

	close(repo.release)
	require.NoError(t, <-done)
	assert.Equal(t, StateViewing, editor.State())
}
