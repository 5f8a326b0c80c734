// internal/app/features/userinfo/handler.go
package userinfo

import (
	"net/http"

	"github.com/dalemusser/courierhub/internal/app/system/auth"
	"github.com/dalemusser/courierhub/internal/app/system/httpapi"
)

// Handler serves the signed-in principal.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// ServeMe returns the current principal:
//
//	{ "isAuthenticated": true, "user": {"id", "kind", "name", "email", "role"} }
//
// Anonymous callers get isAuthenticated=false and no user, with status 200.
func (h *Handler) ServeMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		httpapi.WriteJSON(w, http.StatusOK, map[string]any{"isAuthenticated": false})
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"isAuthenticated": true,
		"user":            user,
	})
}
