// internal/app/features/invoicing/routes.go
package invoicing

import (
	"github.com/dalemusser/courierhub/internal/app/system/auth"
	"github.com/dalemusser/courierhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /api/invoicing.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/{entityType}/{entityId}/unpaid", h.ServeUnpaid)
	r.Get("/invoices", h.ServeInvoices)
	r.Get("/invoices/{id}", h.ServeInvoice)

	r.Group(func(r chi.Router) {
		r.Use(sm.RequireRole(models.RoleAdmin))
		r.Post("/invoices", h.HandleGenerate)
		r.Post("/invoices/{id}/paid", h.HandlePaid)
	})
	return r
}
