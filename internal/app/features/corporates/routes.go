// internal/app/features/corporates/routes.go
package corporates

import (
	"github.com/dalemusser/courierhub/internal/app/system/auth"
	"github.com/dalemusser/courierhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /api/corporates.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/{id}", h.ServeGet)
	r.With(sm.RequireRole(models.RoleAdmin, models.RoleStaff)).Get("/", h.ServeList)

	r.Group(func(r chi.Router) {
		r.Use(sm.RequireRole(models.RoleAdmin))
		r.Post("/", h.HandleCreate)
		r.Post("/{id}/status", h.HandleStatus)
	})
	return r
}
