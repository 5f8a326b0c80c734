// internal/app/features/invoicing/handler.go
package invoicing

import (
	"net/http"
	"time"

	invoicestore "github.com/dalemusser/courierhub/internal/app/store/invoices"
	"github.com/dalemusser/courierhub/internal/app/system/allocator"
	"github.com/dalemusser/courierhub/internal/app/system/apperr"
	"github.com/dalemusser/courierhub/internal/app/system/auditlog"
	"github.com/dalemusser/courierhub/internal/app/system/authz"
	"github.com/dalemusser/courierhub/internal/app/system/httpapi"
	"github.com/dalemusser/courierhub/internal/app/system/inputval"
	"github.com/dalemusser/courierhub/internal/app/system/normalize"
	"github.com/dalemusser/courierhub/internal/app/system/money"
	"github.com/dalemusser/courierhub/internal/app/system/timeouts"
	"github.com/dalemusser/courierhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Alloc    *allocator.Service
	Invoices *invoicestore.Store
	AuditLog *auditlog.Logger
	Log      *zap.Logger
}

func NewHandler(db *mongo.Database, alloc *allocator.Service, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Alloc:    alloc,
		Invoices: invoicestore.New(db),
		AuditLog: audit,
		Log:      logger,
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	httpapi.WriteError(w, r, h.Log, err)
}

// parseDay accepts RFC 3339 or a bare YYYY-MM-DD. A bare date used as an
// upper bound covers the whole day.
func parseDay(name, raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, apperr.NewError("bad "+name).
			WithHintf("'%s' must be a date (YYYY-MM-DD) or RFC 3339 timestamp", name).
			Mark(apperr.ErrValidation)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func window(from, to string) (*time.Time, *time.Time, error) {
	f, err := parseDay("from", from, false)
	if err != nil {
		return nil, nil, err
	}
	t, err := parseDay("to", to, true)
	if err != nil {
		return nil, nil, err
	}
	return f, t, nil
}

func invalidEntity(kind, id string) error {
	return apperr.NewError("invalid entity "+kind+"/"+id).
		WithHint("Entity type must be corporate or office_user with a valid id").
		Mark(apperr.ErrValidation)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /{entityType}/{entityId}/unpaid                                          |
*─────────────────────────────────────────────────────────────────────────────*/

type unpaidResponse struct {
	Owner        models.OwnerRef           `json:"owner"`
	Count        int                       `json:"count"`
	FreightTotal string                    `json:"freightTotal"`
	AmountTotal  string                    `json:"amountTotal"`
	Consignments []models.ConsignmentUsage `json:"consignments"`
}

func (h *Handler) ServeUnpaid(w http.ResponseWriter, r *http.Request) {
	kind, id := normalize.EntityType(chi.URLParam(r, "entityType")), chi.URLParam(r, "entityId")
	owner, err := models.ParseOwner(kind, id)
	if err != nil {
		h.fail(w, r, invalidEntity(kind, id))
		return
	}
	if err := authz.RequireActFor(r, owner); err != nil {
		h.fail(w, r, err)
		return
	}
	from, to, err := window(query.Get(r, "from"), query.Get(r, "to"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Query(), h.Log, "find unpaid usages")
	defer cancel()

	rows, err := h.Alloc.FindUnpaidForInvoicing(ctx, owner, from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	freight := lo.Map(rows, func(u models.ConsignmentUsage, _ int) primitive.Decimal128 { return u.FreightCharges })
	totals := lo.Map(rows, func(u models.ConsignmentUsage, _ int) primitive.Decimal128 { return u.TotalAmount })
	httpapi.WriteJSON(w, http.StatusOK, unpaidResponse{
		Owner:        models.RefOf(owner),
		Count:        len(rows),
		FreightTotal: money.Sum(freight...).StringFixed(2),
		AmountTotal:  money.Sum(totals...).StringFixed(2),
		Consignments: rows,
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| Invoices                                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

type generateRequest struct {
	EntityType string `json:"entityType" validate:"required,entitytype"`
	EntityID   string `json:"entityId" validate:"required,objectid"`
	From       string `json:"from"`
	To         string `json:"to"`
}

// invoiceView renders money as fixed-point strings.
type invoiceView struct {
	models.Invoice
	Subtotal string `json:"subtotal"`
	Total    string `json:"total"`
}

func viewOf(inv models.Invoice) invoiceView {
	return invoiceView{
		Invoice:  inv,
		Subtotal: money.FromDecimal128(inv.Subtotal).StringFixed(2),
		Total:    money.FromDecimal128(inv.Total).StringFixed(2),
	}
}

// HandleGenerate serves POST /invoices.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := httpapi.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	req.EntityType = normalize.EntityType(req.EntityType)
	if err := inputval.Validate(req); err != nil {
		h.fail(w, r, err)
		return
	}
	owner, err := models.ParseOwner(req.EntityType, req.EntityID)
	if err != nil {
		h.fail(w, r, invalidEntity(req.EntityType, req.EntityID))
		return
	}
	from, to, err := window(req.From, req.To)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Batch(), h.Log, "generate invoice")
	defer cancel()

	inv, err := h.Alloc.GenerateInvoice(ctx, allocator.InvoiceInput{
		Owner:   owner,
		From:    from,
		To:      to,
		ActorID: authz.ActorID(r),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.AuditLog.InvoiceGenerated(ctx, r, authz.ActorID(r), inv)
	httpapi.WriteJSON(w, http.StatusCreated, viewOf(inv))
}

func invoiceID(r *http.Request) (primitive.ObjectID, error) {
	raw := chi.URLParam(r, "id")
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, apperr.NewError("bad invoice id "+raw).
			WithHint("Invalid invoice id").
			Mark(apperr.ErrValidation)
	}
	return id, nil
}

// ServeInvoice serves GET /invoices/{id}.
func (h *Handler) ServeInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := invoiceID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Lookup(), h.Log, "get invoice")
	defer cancel()

	inv, err := h.Alloc.GetInvoice(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	owner, err := inv.OwnerRef.Owner()
	if err != nil || !authz.CanActFor(r, owner) {
		h.fail(w, r, apperr.NewError("invoice not visible").WithHint("Invoice not found").Mark(apperr.ErrNotFound))
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, viewOf(inv))
}

// ServeInvoices serves GET /invoices?entityType=&entityId=.
func (h *Handler) ServeInvoices(w http.ResponseWriter, r *http.Request) {
	kind, id := normalize.EntityType(query.Get(r, "entityType")), query.Get(r, "entityId")
	owner, err := models.ParseOwner(kind, id)
	if err != nil {
		h.fail(w, r, invalidEntity(kind, id))
		return
	}
	if err := authz.RequireActFor(r, owner); err != nil {
		h.fail(w, r, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Query(), h.Log, "list invoices")
	defer cancel()

	rows, err := h.Invoices.ListByOwner(ctx, models.RefOf(owner), 100)
	if err != nil {
		h.fail(w, r, apperr.Database(err, "list invoices"))
		return
	}
	items := lo.Map(rows, func(inv models.Invoice, _ int) invoiceView { return viewOf(inv) })
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

// HandlePaid serves POST /invoices/{id}/paid.
func (h *Handler) HandlePaid(w http.ResponseWriter, r *http.Request) {
	id, err := invoiceID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Allocation(), h.Log, "mark invoice paid")
	defer cancel()

	inv, err := h.Alloc.MarkInvoicePaid(ctx, id, authz.ActorID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.AuditLog.InvoicePaid(ctx, r, authz.ActorID(r), inv)
	httpapi.WriteJSON(w, http.StatusOK, viewOf(inv))
}
