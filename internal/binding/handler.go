package binding

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/polystore/polystore-console/internal/platform/httpx"
	"github.com/polystore/polystore-console/internal/rbac"
	"github.com/polystore/polystore-console/internal/shared"
)

// Handler manages the permission editing endpoints. Each admin gets their own
// editor; only one role binding is ever being edited per admin at a time.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware

	mu      sync.Mutex
	editors map[int64]*Editor
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, editors: make(map[int64]*Editor)}
}

// MountRoutes registers binding routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermRBACView))
		r.Get("/{roleID}", h.selectRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermRBACEdit))
		r.Post("/{roleID}/edit", h.beginEdit)
		r.Post("/{roleID}/toggle", h.togglePermission)
		r.Post("/{roleID}/cancel", h.cancelEdit)
		r.Post("/{roleID}/commit", h.commit)
	})
}

type bindingView struct {
	RoleID   int64    `json:"roleId"`
	RoleName string   `json:"roleName"`
	State    string   `json:"state"`
	Granted  []string `json:"granted"`
	Draft    []string `json:"draft,omitempty"`
	SavedAck bool     `json:"savedAck"`
}

type toggleRequest struct {
	PermissionID string `json:"permissionId"`
	Granted      bool   `json:"granted"`
}

type commitRequest struct {
	Remark string `json:"remark"`
}

func (h *Handler) selectRole(w http.ResponseWriter, r *http.Request) {
	roleID, ok := h.roleID(w, r)
	if !ok {
		return
	}
	editor := h.editorFor(r)
	discard := r.URL.Query().Get("discard") == "true"
	if _, err := editor.SelectRole(r.Context(), roleID, discard); err != nil {
		h.logger.Warn("select role", slog.Int64("role_id", roleID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.view(editor))
}

func (h *Handler) beginEdit(w http.ResponseWriter, r *http.Request) {
	editor, ok := h.editorForRole(w, r)
	if !ok {
		return
	}
	if err := editor.BeginEdit(); err != nil {
		h.respondEditorError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.view(editor))
}

func (h *Handler) togglePermission(w http.ResponseWriter, r *http.Request) {
	editor, ok := h.editorForRole(w, r)
	if !ok {
		return
	}
	var req toggleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.PermissionID == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "permissionId is required")
		return
	}
	if err := editor.Toggle(req.PermissionID, req.Granted); err != nil {
		h.respondEditorError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.view(editor))
}

func (h *Handler) cancelEdit(w http.ResponseWriter, r *http.Request) {
	editor, ok := h.editorForRole(w, r)
	if !ok {
		return
	}
	if err := editor.CancelEdit(r.Context()); err != nil {
		h.respondEditorError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.view(editor))
}

func (h *Handler) commit(w http.ResponseWriter, r *http.Request) {
	editor, ok := h.editorForRole(w, r)
	if !ok {
		return
	}
	var req commitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "request body is not valid JSON")
		return
	}
	if err := editor.Commit(r.Context(), req.Remark); err != nil {
		h.logger.Error("commit binding", slog.Any("error", err))
		h.respondEditorError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.view(editor))
}

func (h *Handler) view(editor *Editor) bindingView {
	view := bindingView{State: editor.State().String(), SavedAck: editor.SavedAckVisible()}
	if current, ok := editor.Current(); ok {
		view.RoleID = current.RoleID
		view.RoleName = current.RoleName
		view.Granted = current.Granted.Values()
	}
	if draft, ok := editor.Draft(); ok {
		view.Draft = draft.Values()
	}
	return view
}

func (h *Handler) editorFor(r *http.Request) *Editor {
	actorID, _ := shared.ActorFromContext(r.Context())
	h.mu.Lock()
	defer h.mu.Unlock()
	editor, ok := h.editors[actorID]
	if !ok {
		editor = NewEditor(h.service)
		h.editors[actorID] = editor
	}
	return editor
}

// editorForRole resolves the actor's editor and checks it is positioned on the
// role named in the URL.
func (h *Handler) editorForRole(w http.ResponseWriter, r *http.Request) (*Editor, bool) {
	roleID, ok := h.roleID(w, r)
	if !ok {
		return nil, false
	}
	editor := h.editorFor(r)
	current, selected := editor.Current()
	if !selected || current.RoleID != roleID {
		httpx.RespondError(w, fmt.Errorf("binding: role %d is not selected: %w", roleID, shared.ErrEditConflict))
		return nil, false
	}
	return editor, true
}

func (h *Handler) respondEditorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNoRoleSelected), errors.Is(err, ErrNotEditing):
		httpx.Problem(w, http.StatusConflict, "Invalid Editor State", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

func (h *Handler) roleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "roleID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "role id must be numeric")
		return 0, false
	}
	return id, true
}
