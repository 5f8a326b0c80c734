package corporates_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/courierhub/internal/app/features/corporates"
	"github.com/dalemusser/courierhub/internal/app/system/auth"
	"github.com/dalemusser/courierhub/internal/app/system/authutil"
	"github.com/dalemusser/courierhub/internal/domain/models"
	"github.com/dalemusser/courierhub/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func setup(t *testing.T) (http.Handler, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := testutil.TestLogger()
	sm, err := auth.NewSessionManager("test-session-key-for-testing-only-0123", "test-session", "", time.Hour, false, logger)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Mount("/api/corporates", corporates.Routes(corporates.NewHandler(db, nil, logger), sm))
	return r, testutil.NewFixtures(t, db)
}

func serve(h http.Handler, req *http.Request, user *testutil.TestUser) *testutil.ResponseRecorder {
	if user != nil {
		req = testutil.WithUser(req, *user)
	}
	rec := testutil.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreate_AdminOnlyAndDuplicates(t *testing.T) {
	h, fx := setup(t)
	admin := testutil.AdminUser()
	staff := testutil.StaffUser()

	body := map[string]any{
		"companyName": "  Northwind Traders ",
		"code":        "NWT",
		"email":       "Billing@Northwind.test",
		"password":    "shipping-ledger-9",
	}
	rec := serve(h, testutil.NewJSONRequest("POST", "/api/corporates/", body), &staff)
	rec.AssertStatus(t, http.StatusForbidden)

	rec = serve(h, testutil.NewJSONRequest("POST", "/api/corporates/", body), &admin)
	rec.AssertStatus(t, http.StatusCreated)
	var created struct {
		ID          string `json:"id"`
		CompanyName string `json:"companyName"`
		Email       string `json:"email"`
		Status      string `json:"status"`
	}
	rec.DecodeJSON(t, &created)
	assert.Equal(t, "Northwind Traders", created.CompanyName)
	assert.Equal(t, "billing@northwind.test", created.Email)
	assert.Equal(t, "active", created.Status)
	assert.NotContains(t, rec.Body.String(), "password")

	ctx, cancel := testutil.TestContext()
	defer cancel()
	id, err := primitive.ObjectIDFromHex(created.ID)
	require.NoError(t, err)
	var stored models.Corporate
	require.NoError(t, fx.DB().Collection("corporates").FindOne(ctx, map[string]any{"_id": id}).Decode(&stored))
	assert.True(t, authutil.CheckPassword("shipping-ledger-9", stored.PasswordHash))

	body["email"] = "other@northwind.test"
	body["code"] = "nwt"
	rec = serve(h, testutil.NewJSONRequest("POST", "/api/corporates/", body), &admin)
	rec.AssertStatus(t, http.StatusConflict)
	assert.Equal(t, "conflict", rec.ErrorCode())
}

func TestCreate_Validation(t *testing.T) {
	h, _ := setup(t)
	admin := testutil.AdminUser()

	rec := serve(h, testutil.NewJSONRequest("POST", "/api/corporates/", map[string]any{
		"code": "X1",
	}), &admin)
	rec.AssertStatus(t, http.StatusBadRequest)
	assert.Equal(t, "validation_error", rec.ErrorCode())

	rec = serve(h, testutil.NewJSONRequest("POST", "/api/corporates/", map[string]any{
		"companyName": "No Mail Ltd", "code": "NML", "password": "long-enough-pass",
	}), &admin)
	rec.AssertStatus(t, http.StatusBadRequest)

	rec = serve(h, testutil.NewJSONRequest("POST", "/api/corporates/", map[string]any{
		"companyName": "Short Pw", "code": "SPW", "email": "a@b.test", "password": "abc",
	}), &admin)
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestGet_SelfAndOfficeOnly(t *testing.T) {
	h, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	acme := fx.CreateCorporate(ctx, "Acme Freight", "ops@acme.test", "")
	other := fx.CreateCorporate(ctx, "Other Co", "ops@other.test", "")

	self := testutil.CorporateUser(acme.ID)
	rec := serve(h, testutil.NewRequest("GET", "/api/corporates/"+acme.ID.Hex()), &self)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "Acme Freight")

	rec = serve(h, testutil.NewRequest("GET", "/api/corporates/"+other.ID.Hex()), &self)
	rec.AssertStatus(t, http.StatusNotFound)

	rec = serve(h, testutil.NewRequest("GET", "/api/corporates/"), &self)
	rec.AssertStatus(t, http.StatusForbidden)

	staff := testutil.StaffUser()
	rec = serve(h, testutil.NewRequest("GET", "/api/corporates/?q=acme"), &staff)
	rec.AssertStatus(t, http.StatusOK)
	var list struct {
		Items []models.Corporate `json:"items"`
	}
	rec.DecodeJSON(t, &list)
	require.Len(t, list.Items, 1)
	assert.Equal(t, acme.ID, list.Items[0].ID)

	rec = serve(h, testutil.NewRequest("GET", "/api/corporates/"+primitive.NewObjectID().Hex()), &staff)
	rec.AssertStatus(t, http.StatusNotFound)
	rec = serve(h, testutil.NewRequest("GET", "/api/corporates/zzz"), &staff)
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestStatus(t *testing.T) {
	h, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	acme := fx.CreateCorporate(ctx, "Acme Freight", "ops@acme.test", "")
	admin := testutil.AdminUser()

	rec := serve(h, testutil.NewJSONRequest("POST", "/api/corporates/"+acme.ID.Hex()+"/status",
		map[string]any{"status": "Disabled"}), &admin)
	rec.AssertStatus(t, http.StatusOK)

	var stored models.Corporate
	require.NoError(t, fx.DB().Collection("corporates").FindOne(ctx, map[string]any{"_id": acme.ID}).Decode(&stored))
	assert.Equal(t, "disabled", stored.Status)

	rec = serve(h, testutil.NewJSONRequest("POST", "/api/corporates/"+acme.ID.Hex()+"/status",
		map[string]any{"status": "archived"}), &admin)
	rec.AssertStatus(t, http.StatusBadRequest)

	rec = serve(h, testutil.NewJSONRequest("POST", "/api/corporates/"+primitive.NewObjectID().Hex()+"/status",
		map[string]any{"status": "active"}), &admin)
	rec.AssertStatus(t, http.StatusNotFound)
}
