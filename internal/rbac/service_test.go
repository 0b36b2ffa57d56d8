package rbac

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polystore/polystore-console/internal/shared"
)

type stubUsers struct {
	roleNames map[int64]string
	err       error
}

func (s stubUsers) FindRoleName(ctx context.Context, userID int64) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.roleNames[userID], nil
}

type stubRoles struct {
	ids map[string]int64
}

func (s stubRoles) FindRoleID(ctx context.Context, name string) (int64, error) {
	id, ok := s.ids[name]
	if !ok {
		return 0, fmt.Errorf("roles: %w", shared.ErrNotFound)
	}
	return id, nil
}

type stubBindings struct {
	grants map[int64][]string
	err    error
}

func (s stubBindings) GrantedPermissions(ctx context.Context, roleID int64) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.grants[roleID], nil
}

func TestEffectivePermissionsResolvesThroughRole(t *testing.T) {
	service := NewService(
		stubUsers{roleNames: map[int64]string{7: "admin"}},
		stubRoles{ids: map[string]int64{"admin": 3}},
		stubBindings{grants: map[int64][]string{3: {"rbac.view", "rbac.edit"}}},
	)

	granted, err := service.EffectivePermissions(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"rbac.view", "rbac.edit"}, granted)
}

func TestEffectivePermissionsWithoutRoleIsEmpty(t *testing.T) {
	service := NewService(
		stubUsers{roleNames: map[int64]string{7: ""}},
		stubRoles{ids: map[string]int64{}},
		stubBindings{},
	)

	granted, err := service.EffectivePermissions(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, granted)
}

func TestEffectivePermissionsTreatsMissingRoleAsEmpty(t *testing.T) {
	// The user record keeps the role by name; a deleted or renamed role must
	// not surface as an error to every authorization check.
	service := NewService(
		stubUsers{roleNames: map[int64]string{7: "ghost"}},
		stubRoles{ids: map[string]int64{}},
		stubBindings{},
	)

	granted, err := service.EffectivePermissions(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, granted)
}

func TestEffectivePermissionsPropagatesDirectoryFailure(t *testing.T) {
	service := NewService(
		stubUsers{err: fmt.Errorf("directory: %w", shared.ErrUnavailable)},
		stubRoles{},
		stubBindings{},
	)

	_, err := service.EffectivePermissions(context.Background(), 7)
	require.ErrorIs(t, err, shared.ErrUnavailable)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAnyWithoutActorIsForbidden(t *testing.T) {
	m := Middleware{Service: NewService(stubUsers{}, stubRoles{}, stubBindings{})}
	handler := m.RequireAny("rbac.view")(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/roles", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireAnyGrantsMatchingPermission(t *testing.T) {
	service := NewService(
		stubUsers{roleNames: map[int64]string{1: "admin"}},
		stubRoles{ids: map[string]int64{"admin": 9}},
		stubBindings{grants: map[int64][]string{9: {"rbac.view"}}},
	)
	m := Middleware{Service: service}
	handler := m.RequireAny("rbac.view", "rbac.edit")(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/roles", nil)
	req = req.WithContext(shared.ContextWithActor(req.Context(), 1))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAnyRejectsInsufficientGrants(t *testing.T) {
	service := NewService(
		stubUsers{roleNames: map[int64]string{1: "viewer"}},
		stubRoles{ids: map[string]int64{"viewer": 4}},
		stubBindings{grants: map[int64][]string{4: {"rbac.view"}}},
	)
	m := Middleware{Service: service}
	handler := m.RequireAny("rbac.edit")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/roles", nil)
	req = req.WithContext(shared.ContextWithActor(req.Context(), 1))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireAllNeedsEveryPermission(t *testing.T) {
	service := NewService(
		stubUsers{roleNames: map[int64]string{1: "viewer"}},
		stubRoles{ids: map[string]int64{"viewer": 4}},
		stubBindings{grants: map[int64][]string{4: {"rbac.view"}}},
	)
	m := Middleware{Service: service}
	handler := m.RequireAll("rbac.view", "rbac.edit")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/roles", nil)
	req = req.WithContext(shared.ContextWithActor(req.Context(), 1))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireAnyFailureIsServerError(t *testing.T) {
	service := NewService(
		stubUsers{err: fmt.Errorf("directory: %w", shared.ErrUnavailable)},
		stubRoles{},
		stubBindings{},
	)
	m := Middleware{Service: service}
	handler := m.RequireAny("rbac.view")(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/roles", nil)
	req = req.WithContext(shared.ContextWithActor(req.Context(), 1))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
