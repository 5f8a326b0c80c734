// internal/app/features/logout/handler.go
package logout

import (
	"net/http"

	"github.com/dalemusser/courierhub/internal/app/system/apperr"
	"github.com/dalemusser/courierhub/internal/app/system/auditlog"
	"github.com/dalemusser/courierhub/internal/app/system/auth"
	"github.com/dalemusser/courierhub/internal/app/system/httpapi"
	"go.uber.org/zap"
)

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	AuditLog   *auditlog.Logger
}

func NewHandler(sessionMgr *auth.SessionManager, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
		AuditLog:   audit,
	}
}

// HandleLogout serves POST /api/auth/logout.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)

	if err := h.SessionMgr.SignOut(w, r); err != nil {
		httpapi.WriteError(w, r, h.Log, apperr.WithError(err).WithHint("Unable to end session").Mark(apperr.ErrSystem))
		return
	}

	if u != nil {
		if who, err := u.Owner(); err == nil {
			h.AuditLog.Logout(r.Context(), r, who)
		}
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}
