package permissions

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/polystore/polystore-console/internal/platform/httpx"
	"github.com/polystore/polystore-console/internal/rbac"
	"github.com/polystore/polystore-console/internal/shared"
)

// Handler serves the permission catalog endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermRBACView))
		r.Get("/", h.listGroups)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermRBACEdit))
		r.Post("/refresh", h.refresh)
	})
}

type permissionResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type groupResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Permissions []permissionResponse `json:"permissions"`
}

func (h *Handler) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.ListGroups(r.Context())
	if err != nil {
		h.logger.Error("list permission groups", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]groupResponse, 0, len(groups))
	for _, g := range groups {
		resp := groupResponse{ID: g.ID, Name: g.Name, Permissions: make([]permissionResponse, 0, len(g.Permissions))}
		for _, p := range g.Permissions {
			resp.Permissions = append(resp.Permissions, permissionResponse(p))
		}
		out = append(out, resp)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	h.service.Invalidate(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
