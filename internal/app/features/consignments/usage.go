// internal/app/features/consignments/usage.go
package consignments

import (
	"net/http"

	"github.com/dalemusser/courierhub/internal/app/system/allocator"
	"github.com/dalemusser/courierhub/internal/app/system/apperr"
	"github.com/dalemusser/courierhub/internal/app/system/authz"
	"github.com/dalemusser/courierhub/internal/app/system/httpapi"
	"github.com/dalemusser/courierhub/internal/app/system/inputval"
	"github.com/dalemusser/courierhub/internal/app/system/normalize"
	"github.com/dalemusser/courierhub/internal/app/system/paging"
	"github.com/dalemusser/courierhub/internal/app/system/timeouts"
	"github.com/dalemusser/courierhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/shopspring/decimal"
)

// ServeNext serves GET /{entityType}/{entityId}/next.
func (h *Handler) ServeNext(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := authz.RequireActFor(r, owner); err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Query(), h.Log, "next consignment number")
	defer cancel()

	n, err := h.Alloc.NextConsignmentNumber(ctx, owner)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]int64{"consignmentNumber": n})
}

// ServeStats serves GET /{entityType}/{entityId}/stats.
func (h *Handler) ServeStats(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := authz.RequireActFor(r, owner); err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Query(), h.Log, "usage statistics")
	defer cancel()

	stats, err := h.Alloc.UsageStatistics(ctx, owner)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, stats)
}

// usageRequest records a booking. When the entity is omitted the number
// is taken from the caller's own ranges. Amounts accept JSON numbers or
// strings.
type usageRequest struct {
	EntityType        string          `json:"entityType" validate:"omitempty,entitytype"`
	EntityID          string          `json:"entityId" validate:"omitempty,objectid"`
	ConsignmentNumber int64           `json:"consignmentNumber" validate:"required"`
	BookingReference  string          `json:"bookingReference" validate:"max=100"`
	BookingData       map[string]any  `json:"bookingData"`
	PaymentType       string          `json:"paymentType" validate:"omitempty,paymenttype"`
	FreightCharges    decimal.Decimal `json:"freightCharges"`
	TotalAmount       decimal.Decimal `json:"totalAmount"`
}

// HandleRecordUsage serves POST /usage.
func (h *Handler) HandleRecordUsage(w http.ResponseWriter, r *http.Request) {
	var req usageRequest
	if err := httpapi.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	req.EntityType = normalize.EntityType(req.EntityType)
	req.PaymentType = normalize.PaymentType(req.PaymentType)
	if err := inputval.Validate(req); err != nil {
		h.fail(w, r, err)
		return
	}
	owner, err := ownerOrSelf(r, req.EntityType, req.EntityID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := authz.RequireActFor(r, owner); err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Allocation(), h.Log, "record usage")
	defer cancel()

	u, err := h.Alloc.RecordUsage(ctx, allocator.UsageInput{
		Owner:             owner,
		ConsignmentNumber: req.ConsignmentNumber,
		BookingReference:  req.BookingReference,
		BookingData:       req.BookingData,
		PaymentType:       req.PaymentType,
		FreightCharges:    req.FreightCharges,
		TotalAmount:       req.TotalAmount,
		RecordedBy:        authz.ActorID(r),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, map[string]any{
		"usageId":           u.ID.Hex(),
		"consignmentNumber": u.ConsignmentNumber,
		"assignmentId":      u.AssignmentID.Hex(),
	})
}

// ServeUsages serves GET /usage?entityType=&entityId=&status=.
func (h *Handler) ServeUsages(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerOrSelf(r, query.Get(r, "entityType"), query.Get(r, "entityId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := authz.RequireActFor(r, owner); err != nil {
		h.fail(w, r, err)
		return
	}
	status := normalize.Filter(query.Get(r, "status"))
	switch status {
	case "", models.UsageActive, models.UsageInvoiced, models.UsageCancelled:
	default:
		h.fail(w, r, apperr.NewError("bad status "+status).
			WithHint("Status must be active, invoiced or cancelled").
			Mark(apperr.ErrValidation))
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Query(), h.Log, "list usages")
	defer cancel()

	page, err := h.Usages.ListByOwner(ctx, models.RefOf(owner), status, paging.ParseAfter(r), paging.ParseLimit(r))
	if err != nil {
		h.fail(w, r, apperr.Database(err, "list usages"))
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, page)
}

// HandleCancelUsage serves POST /usage/{id}/cancel.
func (h *Handler) HandleCancelUsage(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Allocation(), h.Log, "cancel usage")
	defer cancel()

	u, err := h.Alloc.CancelUsage(ctx, id, authz.ActorID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.AuditLog.UsageCancelled(ctx, r, authz.ActorID(r), u)
	httpapi.WriteJSON(w, http.StatusOK, u)
}
