// internal/app/features/diagnostics/handler.go
package diagnostics

import (
	"net/http"

	"github.com/dalemusser/courierhub/internal/app/system/allocator"
	"github.com/dalemusser/courierhub/internal/app/system/httpapi"
	"github.com/dalemusser/courierhub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

type Handler struct {
	Alloc *allocator.Service
	Log   *zap.Logger
}

func NewHandler(alloc *allocator.Service, logger *zap.Logger) *Handler {
	return &Handler{Alloc: alloc, Log: logger}
}

// ServeOrphans reports assignments and usages whose owner is gone, and
// usages recorded outside every range their owner held. Read-only.
func (h *Handler) ServeOrphans(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Batch(), h.Log, "orphan scan")
	defer cancel()

	report, err := h.Alloc.FindOrphans(ctx)
	if err != nil {
		httpapi.WriteError(w, r, h.Log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, report)
}
