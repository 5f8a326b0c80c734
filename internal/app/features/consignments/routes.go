// internal/app/features/consignments/routes.go
package consignments

import (
	"github.com/dalemusser/courierhub/internal/app/system/auth"
	"github.com/dalemusser/courierhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /api/consignments. Range administration is for
// admins; numbers and usage are open to any principal acting for the
// owner in question.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Group(func(r chi.Router) {
		r.Use(sm.RequireRole(models.RoleAdmin))
		r.Post("/assignments", h.HandleAssign)
		r.Post("/assignments/{id}/deactivate", h.HandleDeactivate)
		r.Get("/availability", h.ServeAvailability)
		r.Get("/suggest", h.ServeSuggest)
		r.Post("/usage/{id}/cancel", h.HandleCancelUsage)
	})

	r.Get("/assignments", h.ServeAssignments)
	r.Get("/assignments/{id}", h.ServeAssignment)
	r.Get("/usage", h.ServeUsages)
	r.Post("/usage", h.HandleRecordUsage)
	r.Get("/{entityType}/{entityId}/next", h.ServeNext)
	r.Get("/{entityType}/{entityId}/stats", h.ServeStats)
	return r
}
