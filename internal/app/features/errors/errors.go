// internal/app/features/errors/errors.go
package errors

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/dalemusser/courierhub/internal/app/system/apperr"
	"github.com/dalemusser/courierhub/internal/app/system/httpapi"
	"go.uber.org/zap"
)

// Handler renders the router-level JSON errors: unknown routes, wrong
// methods and recovered panics.
type Handler struct {
	Log *zap.Logger
}

func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{Log: logger}
}

// NotFound is installed as the router's NotFound handler.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	httpapi.WriteError(w, r, h.Log, apperr.NewError("no route "+r.Method+" "+r.URL.Path).
		WithHint("Resource not found").
		Mark(apperr.ErrNotFound))
}

// MethodNotAllowed is installed as the router's MethodNotAllowed handler.
// chi sets the Allow header before calling it.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	httpapi.WriteJSON(w, http.StatusMethodNotAllowed, httpapi.ErrorResponse{
		Error: httpapi.ErrorDetail{
			Code:    "method_not_allowed",
			Message: "Method " + r.Method + " is not allowed on " + r.URL.Path,
		},
	})
}

// Recover turns a handler panic into a 500 system_error envelope.
func (h *Handler) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			h.Log.Error("panic serving request",
				zap.Any("panic", rec),
				zap.String("path", r.URL.Path),
				zap.String("request_id", httpapi.RequestIDFrom(r.Context())),
				zap.ByteString("stack", debug.Stack()))
			httpapi.WriteError(w, r, nil, apperr.NewError(fmt.Sprint(rec)).
				WithHint("An internal error occurred").
				Mark(apperr.ErrSystem))
		}()
		next.ServeHTTP(w, r)
	})
}
