package invoicing_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/courierhub/internal/app/features/invoicing"
	corporatestore "github.com/dalemusser/courierhub/internal/app/store/corporates"
	officeuserstore "github.com/dalemusser/courierhub/internal/app/store/officeusers"
	"github.com/dalemusser/courierhub/internal/app/system/allocator"
	"github.com/dalemusser/courierhub/internal/app/system/auth"
	"github.com/dalemusser/courierhub/internal/app/system/entities"
	"github.com/dalemusser/courierhub/internal/domain/models"
	"github.com/dalemusser/courierhub/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type harness struct {
	router http.Handler
	alloc  *allocator.Service
	corp   models.Corporate
	admin  testutil.TestUser
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := testutil.TestLogger()

	sm, err := auth.NewSessionManager("test-session-key-for-testing-only-0123", "test-session", "", time.Hour, false, logger)
	require.NoError(t, err)

	resolver := entities.NewResolver(corporatestore.New(db), officeuserstore.New(db), time.Minute)
	alloc := allocator.New(db.Client(), db, resolver, nil,
		allocator.Config{MinNumber: 100, Mode: allocator.ModeLease}, logger)

	r := chi.NewRouter()
	r.Mount("/api/invoicing", invoicing.Routes(invoicing.NewHandler(db, alloc, nil, logger), sm))

	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx := testutil.NewFixtures(t, db)
	corp := fx.CreateCorporate(ctx, "Acme Freight", "ops@acme.test", "")

	_, err = alloc.Assign(ctx, allocator.AssignInput{Owner: corp.Owner(), Start: 1000, End: 1010})
	require.NoError(t, err)
	for _, u := range []struct {
		n   int64
		typ string
		amt string
	}{
		{1000, models.PaymentTypeFreightPrepaid, "100.00"},
		{1001, models.PaymentTypeToPay, "40.00"},
		{1002, models.PaymentTypeFreightPrepaid, "25.50"},
	} {
		_, err := alloc.RecordUsage(ctx, allocator.UsageInput{
			Owner:             corp.Owner(),
			ConsignmentNumber: u.n,
			PaymentType:       u.typ,
			FreightCharges:    decimal.RequireFromString(u.amt),
			TotalAmount:       decimal.RequireFromString(u.amt),
		})
		require.NoError(t, err)
	}

	return &harness{router: r, alloc: alloc, corp: corp, admin: testutil.AdminUser()}
}

func (h *harness) do(req *http.Request, user testutil.TestUser) *testutil.ResponseRecorder {
	rec := testutil.NewRecorder()
	h.router.ServeHTTP(rec, testutil.WithUser(req, user))
	return rec
}

func TestServeUnpaid(t *testing.T) {
	h := newHarness(t)
	staff := testutil.StaffUser()

	rec := h.do(testutil.NewRequest("GET", "/api/invoicing/corporate/"+h.corp.ID.Hex()+"/unpaid"), staff)
	rec.AssertStatus(t, http.StatusOK)
	var body struct {
		Count        int    `json:"count"`
		FreightTotal string `json:"freightTotal"`
		Consignments []struct {
			ConsignmentNumber int64 `json:"consignmentNumber"`
		} `json:"consignments"`
	}
	rec.DecodeJSON(t, &body)
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, "125.50", body.FreightTotal)
	require.Len(t, body.Consignments, 2)
	assert.Equal(t, int64(1000), body.Consignments[0].ConsignmentNumber)
	assert.Equal(t, int64(1002), body.Consignments[1].ConsignmentNumber)

	rec = h.do(testutil.NewRequest("GET", "/api/invoicing/corporate/"+h.corp.ID.Hex()+"/unpaid?from=2001-01-01&to=2001-01-31"), staff)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"count":0`)

	rec = h.do(testutil.NewRequest("GET", "/api/invoicing/corporate/"+h.corp.ID.Hex()+"/unpaid?from=yesterday"), staff)
	rec.AssertStatus(t, http.StatusBadRequest)

	stranger := testutil.CorporateUser(primitive.NewObjectID())
	rec = h.do(testutil.NewRequest("GET", "/api/invoicing/corporate/"+h.corp.ID.Hex()+"/unpaid"), stranger)
	rec.AssertStatus(t, http.StatusForbidden)
}

func TestGenerateAndPay(t *testing.T) {
	h := newHarness(t)

	rec := h.do(testutil.NewJSONRequest("POST", "/api/invoicing/invoices", map[string]any{
		"entityType": "corporate", "entityId": h.corp.ID.Hex(),
	}), testutil.StaffUser())
	rec.AssertStatus(t, http.StatusForbidden)

	rec = h.do(testutil.NewJSONRequest("POST", "/api/invoicing/invoices", map[string]any{
		"entityType": "corporate", "entityId": h.corp.ID.Hex(),
	}), h.admin)
	rec.AssertStatus(t, http.StatusCreated)
	var inv struct {
		ID            string `json:"id"`
		Number        string `json:"number"`
		Total         string `json:"total"`
		PaymentStatus string `json:"paymentStatus"`
		Lines         []any  `json:"lines"`
	}
	rec.DecodeJSON(t, &inv)
	assert.Equal(t, "INV-000001", inv.Number)
	assert.Equal(t, "125.50", inv.Total)
	assert.Equal(t, models.PaymentUnpaid, inv.PaymentStatus)
	assert.Len(t, inv.Lines, 2)

	// nothing left to bill
	rec = h.do(testutil.NewJSONRequest("POST", "/api/invoicing/invoices", map[string]any{
		"entityType": "corporate", "entityId": h.corp.ID.Hex(),
	}), h.admin)
	rec.AssertStatus(t, http.StatusBadRequest)

	me := testutil.CorporateUser(h.corp.ID)
	rec = h.do(testutil.NewRequest("GET", "/api/invoicing/invoices/"+inv.ID), me)
	rec.AssertStatus(t, http.StatusOK)

	rec = h.do(testutil.NewRequest("GET", "/api/invoicing/invoices?entityType=corporate&entityId="+h.corp.ID.Hex()), me)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "INV-000001")

	rec = h.do(testutil.NewRequest("POST", "/api/invoicing/invoices/"+inv.ID+"/paid"), h.admin)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"paymentStatus":"paid"`)

	rec = h.do(testutil.NewRequest("POST", "/api/invoicing/invoices/"+inv.ID+"/paid"), h.admin)
	rec.AssertStatus(t, http.StatusConflict)

	rec = h.do(testutil.NewRequest("GET", "/api/invoicing/invoices/bogus"), h.admin)
	rec.AssertStatus(t, http.StatusBadRequest)
}
