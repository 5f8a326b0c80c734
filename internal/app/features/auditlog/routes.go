// internal/app/features/auditlog/routes.go
package auditlog

import (
	"github.com/dalemusser/courierhub/internal/app/system/auth"
	"github.com/dalemusser/courierhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /api/audit. Admins only.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireRole(models.RoleAdmin))

	r.Get("/", h.ServeList)
	r.Get("/event-types", h.ServeEventTypes)
	return r
}
