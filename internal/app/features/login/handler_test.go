package login_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/courierhub/internal/app/features/login"
	"github.com/dalemusser/courierhub/internal/app/store/audit"
	"github.com/dalemusser/courierhub/internal/app/system/auditlog"
	"github.com/dalemusser/courierhub/internal/app/system/auth"
	"github.com/dalemusser/courierhub/internal/app/system/ratelimit"
	"github.com/dalemusser/courierhub/internal/domain/models"
	"github.com/dalemusser/courierhub/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

type fixture struct {
	router http.Handler
	fx     *testutil.Fixtures
	events *audit.Store
}

func setup(t *testing.T, limiter *ratelimit.LoginLimiter) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := testutil.TestLogger()
	sm, err := auth.NewSessionManager("test-session-key-for-testing-only-0123", "test-session", "", time.Hour, false, logger)
	require.NoError(t, err)

	events := audit.New(db)
	al := auditlog.New(events, logger, auditlog.Config{Auth: "db", Admin: "db"})

	r := chi.NewRouter()
	r.Mount("/api/auth/login", login.Routes(login.NewHandler(db, sm, limiter, al, logger)))
	return &fixture{router: r, fx: testutil.NewFixtures(t, db), events: events}
}

func (f *fixture) post(body map[string]any) *testutil.ResponseRecorder {
	rec := testutil.NewRecorder()
	f.router.ServeHTTP(rec, testutil.NewJSONRequest("POST", "/api/auth/login", body))
	return rec
}

func sessionCookie(rec *testutil.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == "test-session" {
			return c
		}
	}
	return nil
}

func (f *fixture) eventTypes(t *testing.T) []string {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	evs, err := f.events.Query(ctx, audit.QueryFilter{Category: audit.CategoryAuth})
	require.NoError(t, err)
	out := make([]string, 0, len(evs))
	for _, e := range evs {
		out = append(out, e.EventType)
	}
	return out
}

func TestLogin_OfficeUserSuccess(t *testing.T) {
	f := setup(t, nil)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	u := f.fx.CreateOfficeUser(ctx, "Dana Clerk", "dana@courier.test", models.RoleStaff, "parcel-desk-77")

	rec := f.post(map[string]any{"email": " Dana@Courier.test ", "password": "parcel-desk-77"})
	rec.AssertStatus(t, http.StatusOK)
	require.NotNil(t, sessionCookie(rec), "expected session cookie")

	var body struct {
		Success bool             `json:"success"`
		User    auth.SessionUser `json:"user"`
	}
	rec.DecodeJSON(t, &body)
	assert.True(t, body.Success)
	assert.Equal(t, u.ID.Hex(), body.User.ID)
	assert.Equal(t, auth.KindOfficeUser, body.User.Kind)
	assert.Equal(t, models.RoleStaff, body.User.Role)

	var stored models.OfficeUser
	require.NoError(t, f.fx.DB().Collection("office_users").FindOne(ctx, bson.M{"_id": u.ID}).Decode(&stored))
	assert.NotNil(t, stored.LastLoginAt)

	assert.Equal(t, []string{audit.EventLoginSuccess}, f.eventTypes(t))
}

func TestLogin_CorporatePortal(t *testing.T) {
	f := setup(t, nil)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	c := f.fx.CreateCorporate(ctx, "Acme Freight", "ops@acme.test", "acme-portal-2024")

	// accountType defaults to office_user.
	rec := f.post(map[string]any{"email": "ops@acme.test", "password": "acme-portal-2024"})
	rec.AssertStatus(t, http.StatusUnauthorized)

	rec = f.post(map[string]any{"email": "ops@acme.test", "password": "acme-portal-2024", "accountType": "corporate"})
	rec.AssertStatus(t, http.StatusOK)
	var body struct {
		User auth.SessionUser `json:"user"`
	}
	rec.DecodeJSON(t, &body)
	assert.Equal(t, c.ID.Hex(), body.User.ID)
	assert.Equal(t, auth.KindCorporate, body.User.Kind)
	assert.Equal(t, models.RoleCorporate, body.User.Role)
}

func TestLogin_Failures(t *testing.T) {
	f := setup(t, nil)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	f.fx.CreateOfficeUser(ctx, "Dana Clerk", "dana@courier.test", models.RoleStaff, "parcel-desk-77")
	off := f.fx.CreateCorporate(ctx, "Gone Ltd", "ops@gone.test", "gone-portal-2024")
	f.fx.DisableCorporate(ctx, off.ID)
	f.fx.CreateCorporate(ctx, "No Portal", "ops@noportal.test", "")

	rec := f.post(map[string]any{"email": "dana@courier.test", "password": "wrong-password"})
	rec.AssertStatus(t, http.StatusUnauthorized)
	assert.Nil(t, sessionCookie(rec))

	rec = f.post(map[string]any{"email": "nobody@courier.test", "password": "whatever-123"})
	rec.AssertStatus(t, http.StatusUnauthorized)

	rec = f.post(map[string]any{"email": "ops@gone.test", "password": "gone-portal-2024", "accountType": "corporate"})
	rec.AssertStatus(t, http.StatusForbidden)

	rec = f.post(map[string]any{"email": "ops@noportal.test", "password": "anything-123", "accountType": "corporate"})
	rec.AssertStatus(t, http.StatusUnauthorized)

	rec = f.post(map[string]any{"email": "not-an-email", "password": "x"})
	rec.AssertStatus(t, http.StatusBadRequest)

	rec = f.post(map[string]any{"email": "dana@courier.test", "password": "x", "accountType": "warehouse"})
	rec.AssertStatus(t, http.StatusBadRequest)

	assert.ElementsMatch(t, []string{
		audit.EventLoginFailedWrongPassword,
		audit.EventLoginFailedUserNotFound,
		audit.EventLoginFailedUserDisabled,
		audit.EventLoginFailedWrongPassword,
	}, f.eventTypes(t))
}

func TestLogin_RateLimitedPerAccount(t *testing.T) {
	f := setup(t, ratelimit.NewLoginLimiterWithConfig(100, time.Minute, 2, time.Minute))
	ctx, cancel := testutil.TestContext()
	defer cancel()
	f.fx.CreateOfficeUser(ctx, "Dana Clerk", "dana@courier.test", models.RoleStaff, "parcel-desk-77")

	for i := 0; i < 2; i++ {
		f.post(map[string]any{"email": "dana@courier.test", "password": "wrong-password"}).
			AssertStatus(t, http.StatusUnauthorized)
	}
	rec := f.post(map[string]any{"email": "dana@courier.test", "password": "parcel-desk-77"})
	rec.AssertStatus(t, http.StatusTooManyRequests)
	assert.Equal(t, "rate_limited", rec.ErrorCode())

	// Another account from the same client is unaffected.
	f.fx.CreateOfficeUser(ctx, "Eli Clerk", "eli@courier.test", models.RoleStaff, "parcel-desk-88")
	f.post(map[string]any{"email": "eli@courier.test", "password": "parcel-desk-88"}).
		AssertStatus(t, http.StatusOK)
}
