// internal/app/features/diagnostics/routes.go
package diagnostics

import (
	"github.com/dalemusser/courierhub/internal/app/system/auth"
	"github.com/dalemusser/courierhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /api/diagnostics (admins only).
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireRole(models.RoleAdmin))
	r.Get("/orphans", h.ServeOrphans)
	return r
}
