package logout_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/courierhub/internal/app/features/logout"
	"github.com/dalemusser/courierhub/internal/app/system/auth"
	"github.com/dalemusser/courierhub/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := testutil.TestLogger()
	sm, err := auth.NewSessionManager("test-session-key-for-testing-only-0123", "test-session", "", 24*time.Hour, false, logger)
	require.NoError(t, err)

	r := chi.NewRouter()
	// nil audit logger is a no-op
	r.Mount("/api/auth/logout", logout.Routes(logout.NewHandler(sm, nil, logger), sm))
	return r
}

func TestLogout_ClearsSessionCookie(t *testing.T) {
	r := newRouter(t)

	req := testutil.WithUser(testutil.NewRequest("POST", "/api/auth/logout"), testutil.StaffUser())
	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"success":true`)

	var cleared *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "test-session" {
			cleared = c
		}
	}
	require.NotNil(t, cleared, "expected session cookie to be expired")
	assert.True(t, cleared.MaxAge < 0)
}

func TestLogout_RequiresSession(t *testing.T) {
	r := newRouter(t)

	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, testutil.NewRequest("POST", "/api/auth/logout"))
	rec.AssertStatus(t, http.StatusUnauthorized)

	rec = testutil.NewRecorder()
	r.ServeHTTP(rec, testutil.WithUser(testutil.NewRequest("GET", "/api/auth/logout"), testutil.StaffUser()))
	rec.AssertStatus(t, http.StatusMethodNotAllowed)
}
