package binding

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polystore/polystore-console/internal/rbac"
	"github.com/polystore/polystore-console/internal/shared"
)

type grantEverything struct{}

func (grantEverything) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	return shared.AdminScopes(), nil
}

func newTestRouter(repo *mockRepository) http.Handler {
	logger := slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
	handler := NewHandler(logger, NewService(repo, nil), rbac.Middleware{Service: grantEverything{}})
	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r
}

func doAs(t *testing.T, router http.Handler, actorID int64, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req = req.WithContext(shared.ContextWithActor(req.Context(), actorID))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) bindingView {
	t.Helper()
	var view bindingView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	return view
}

func TestHandlerSelectEditCommitFlow(t *testing.T) {
	repo := newMockRepository()
	repo.seed(1, "viewer", "p1", "p2")
	router := newTestRouter(repo)

	rec := doAs(t, router, 7, http.MethodGet, "/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeView(t, rec)
	assert.Equal(t, "viewing", view.State)
	assert.Equal(t, []string{"p1", "p2"}, view.Granted)

	rec = doAs(t, router, 7, http.MethodPost, "/1/edit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "editing", decodeView(t, rec).State)

	rec = doAs(t, router, 7, http.MethodPost, "/1/toggle", `{"permissionId":"p3","granted":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doAs(t, router, 7, http.MethodPost, "/1/toggle", `{"permissionId":"p1","granted":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"p2", "p3"}, decodeView(t, rec).Draft)

	rec = doAs(t, router, 7, http.MethodPost, "/1/commit", `{"remark":"tighten viewer"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	view = decodeView(t, rec)
	assert.Equal(t, "viewing", view.State)
	assert.Equal(t, []string{"p2", "p3"}, view.Granted)
	assert.True(t, view.SavedAck)
	assert.Equal(t, "tighten viewer", repo.lastRemark)
}

func TestHandlerRejectsOperationsOnUnselectedRole(t *testing.T) {
	repo := newMockRepository()
	repo.seed(1, "viewer", "p1")
	repo.seed(2, "admin", "p9")
	router := newTestRouter(repo)

	rec := doAs(t, router, 7, http.MethodGet, "/1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	// The editor is positioned on role 1; draft operations on role 2 conflict.
	rec = doAs(t, router, 7, http.MethodPost, "/2/edit", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = doAs(t, router, 7, http.MethodPost, "/2/commit", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlerSelectWhileEditingNeedsDiscardFlag(t *testing.T) {
	repo := newMockRepository()
	repo.seed(1, "viewer", "p1")
	repo.seed(2, "admin", "p9")
	router := newTestRouter(repo)

	require.Equal(t, http.StatusOK, doAs(t, router, 7, http.MethodGet, "/1", "").Code)
	require.Equal(t, http.StatusOK, doAs(t, router, 7, http.MethodPost, "/1/edit", "").Code)

	rec := doAs(t, router, 7, http.MethodGet, "/2", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doAs(t, router, 7, http.MethodGet, "/2?discard=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", decodeView(t, rec).RoleName)
}

func TestHandlerIsolatesEditorsPerActor(t *testing.T) {
	repo := newMockRepository()
	repo.seed(1, "viewer", "p1")
	router := newTestRouter(repo)

	require.Equal(t, http.StatusOK, doAs(t, router, 7, http.MethodGet, "/1", "").Code)
	require.Equal(t, http.StatusOK, doAs(t, router, 7, http.MethodPost, "/1/edit", "").Code)
	require.Equal(t, http.StatusOK, doAs(t, router, 7, http.MethodPost, "/1/toggle", `{"permissionId":"p2","granted":true}`).Code)

	// A second admin selecting the same role sees the persisted binding, not
	// the first admin's draft.
	rec := doAs(t, router, 8, http.MethodGet, "/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeView(t, rec)
	assert.Equal(t, "viewing", view.State)
	assert.Equal(t, []string{"p1"}, view.Granted)
	assert.Empty(t, view.Draft)

	// And the first admin's session is still editing with the draft intact.
	rec = doAs(t, router, 7, http.MethodPost, "/1/toggle", `{"permissionId":"p3","granted":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"p1", "p2", "p3"}, decodeView(t, rec).Draft)
}

func TestHandlerRejectsNonNumericRoleID(t *testing.T) {
	router := newTestRouter(newMockRepository())
	rec := doAs(t, router, 7, http.MethodGet, "/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
