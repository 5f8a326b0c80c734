// internal/app/features/userinfo/routes.go
package userinfo

import "github.com/go-chi/chi/v5"

// MountRoutes registers GET /api/auth/me. The handler reads the session
// itself, so no auth middleware is needed.
func MountRoutes(r chi.Router, h *Handler) {
	r.Get("/api/auth/me", h.ServeMe)
}
