// internal/app/system/httpapi/httpapi.go
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dalemusser/courierhub/internal/app/system/apperr"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 1 << 20

// HeaderRequestID is echoed on every response.
const HeaderRequestID = "X-Request-ID"

type ctxKey struct{}

// RequestID assigns (or propagates) a request id and stores it in the
// request context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

// RequestIDFrom returns the id set by RequestID, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err through the apperr taxonomy. Server errors are
// logged with the full chain; client errors at debug level.
func WriteError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status := apperr.HTTPStatus(err)
	code := apperr.ErrSystem.Code
	if k := apperr.KindOf(err); k != nil {
		code = k.Code
	}

	if logger != nil {
		fields := []zap.Field{
			zap.Error(err),
			zap.Int("status", status),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestIDFrom(r.Context())),
		}
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", fields...)
		} else {
			logger.Debug("request rejected", fields...)
		}
	}

	WriteJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: apperr.Message(err),
			Details: apperr.Details(err),
		},
	})
}

// DecodeJSON reads a single JSON object into dst. Unknown fields and
// trailing data are rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return apperr.WithError(err).WithHint("Request body is required").Mark(apperr.ErrValidation)
		case errors.As(err, &maxErr):
			return apperr.WithError(err).WithHint("Request body is too large").Mark(apperr.ErrValidation)
		default:
			return apperr.WithError(err).WithHint("Request body is not valid JSON").Mark(apperr.ErrValidation)
		}
	}
	if dec.More() {
		return apperr.NewError("trailing data after JSON body").
			WithHint("Request body must contain a single JSON object").
			Mark(apperr.ErrValidation)
	}
	return nil
}
