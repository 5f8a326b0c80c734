package errors_test

import (
	"net/http"
	"testing"

	uierrors "github.com/dalemusser/courierhub/internal/app/features/errors"
	"github.com/dalemusser/courierhub/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newRouter(logger *zap.Logger) http.Handler {
	h := uierrors.NewHandler(logger)
	r := chi.NewRouter()
	r.Use(h.Recover)
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) { panic("kaboom") })
	return r
}

func TestNotFound_JSONEnvelope(t *testing.T) {
	rec := testutil.NewRecorder()
	newRouter(testutil.TestLogger()).ServeHTTP(rec, testutil.NewRequest("GET", "/nope"))
	rec.AssertStatus(t, http.StatusNotFound)
	assert.Equal(t, "not_found", rec.ErrorCode())
	rec.AssertContains(t, "Resource not found")
}

func TestMethodNotAllowed(t *testing.T) {
	rec := testutil.NewRecorder()
	newRouter(testutil.TestLogger()).ServeHTTP(rec, testutil.NewRequest("POST", "/ping"))
	rec.AssertStatus(t, http.StatusMethodNotAllowed)
	assert.Equal(t, "method_not_allowed", rec.ErrorCode())
}

func TestRecover_LogsAndReturns500(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	rec := testutil.NewRecorder()
	newRouter(zap.New(core)).ServeHTTP(rec, testutil.NewRequest("GET", "/boom"))

	rec.AssertStatus(t, http.StatusInternalServerError)
	assert.Equal(t, "system_error", rec.ErrorCode())
	assert.NotContains(t, rec.Body.String(), "kaboom")
	assert.Equal(t, 1, logs.FilterMessage("panic serving request").Len())
}
