// internal/app/features/consignments/assignments.go
package consignments

import (
	"net/http"

	assignmentstore "github.com/dalemusser/courierhub/internal/app/store/assignments"
	"github.com/dalemusser/courierhub/internal/app/system/allocator"
	"github.com/dalemusser/courierhub/internal/app/system/apperr"
	"github.com/dalemusser/courierhub/internal/app/system/auth"
	"github.com/dalemusser/courierhub/internal/app/system/authz"
	"github.com/dalemusser/courierhub/internal/app/system/httpapi"
	"github.com/dalemusser/courierhub/internal/app/system/inputval"
	"github.com/dalemusser/courierhub/internal/app/system/normalize"
	"github.com/dalemusser/courierhub/internal/app/system/paging"
	"github.com/dalemusser/courierhub/internal/app/system/timeouts"
	"github.com/dalemusser/courierhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/mongo"
)

type assignRequest struct {
	EntityType  string `json:"entityType" validate:"required,entitytype"`
	EntityID    string `json:"entityId" validate:"required,objectid"`
	StartNumber *int64 `json:"startNumber" validate:"required"`
	EndNumber   *int64 `json:"endNumber" validate:"required"`
	Notes       string `json:"notes" validate:"max=500"`
}

type assignResponse struct {
	AssignmentID string `json:"assignmentId"`
	StartNumber  int64  `json:"startNumber"`
	EndNumber    int64  `json:"endNumber"`
	TotalNumbers int64  `json:"totalNumbers"`
}

// HandleAssign serves POST /assignments.
func (h *Handler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
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

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Allocation(), h.Log, "assign range")
	defer cancel()

	actorName := ""
	if u, ok := auth.CurrentUser(r); ok {
		actorName = u.Name
	}
	a, err := h.Alloc.Assign(ctx, allocator.AssignInput{
		Owner:     owner,
		Start:     *req.StartNumber,
		End:       *req.EndNumber,
		ActorID:   authz.ActorID(r),
		ActorName: actorName,
		Notes:     req.Notes,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.AuditLog.RangeAssigned(ctx, r, authz.ActorID(r), a)

	httpapi.WriteJSON(w, http.StatusCreated, assignResponse{
		AssignmentID: a.ID.Hex(),
		StartNumber:  a.StartNumber,
		EndNumber:    a.EndNumber,
		TotalNumbers: a.TotalNumbers,
	})
}

// ServeAssignments serves GET /assignments.
//
// Filters: entityType, entityId, active=true. Corporate callers only ever
// see their own ranges.
func (h *Handler) ServeAssignments(w http.ResponseWriter, r *http.Request) {
	var f assignmentstore.ListFilter
	kind, id := normalize.EntityType(query.Get(r, "entityType")), query.Get(r, "entityId")
	switch {
	case authz.IsCorporate(r):
		owner, err := ownerOrSelf(r, "", "")
		if err != nil {
			h.fail(w, r, err)
			return
		}
		ref := models.RefOf(owner)
		f.Owner = &ref
	case id != "":
		owner, err := models.ParseOwner(kind, id)
		if err != nil {
			h.fail(w, r, invalidEntity(kind, id))
			return
		}
		ref := models.RefOf(owner)
		f.Owner = &ref
	case kind != "":
		if !models.EntityType(kind).Valid() {
			h.fail(w, r, invalidEntity(kind, id))
			return
		}
		f.EntityType = models.EntityType(kind)
	}
	f.ActiveOnly = query.Get(r, "active") == "true"

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Query(), h.Log, "list assignments")
	defer cancel()

	page, err := h.Assignments.List(ctx, f, paging.ParseAfter(r), paging.ParseLimit(r))
	if err != nil {
		h.fail(w, r, apperr.Database(err, "list assignments"))
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, page)
}

// ServeAssignment serves GET /assignments/{id}.
func (h *Handler) ServeAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Lookup(), h.Log, "get assignment")
	defer cancel()

	a, err := h.Assignments.GetByID(ctx, id)
	if err == mongo.ErrNoDocuments {
		h.fail(w, r, apperr.NewError("assignment not found").WithHint("Assignment not found").Mark(apperr.ErrNotFound))
		return
	}
	if err != nil {
		h.fail(w, r, apperr.Database(err, "get assignment"))
		return
	}
	owner, err := a.OwnerRef.Owner()
	if err != nil || !authz.CanActFor(r, owner) {
		// Do not reveal other accounts' ranges.
		h.fail(w, r, apperr.NewError("assignment not visible").WithHint("Assignment not found").Mark(apperr.ErrNotFound))
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, a)
}

// HandleDeactivate serves POST /assignments/{id}/deactivate.
func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Allocation(), h.Log, "deactivate range")
	defer cancel()

	a, err := h.Alloc.Deactivate(ctx, id, authz.ActorID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.AuditLog.RangeDeactivated(ctx, r, authz.ActorID(r), a)
	httpapi.WriteJSON(w, http.StatusOK, a)
}

type availabilityResponse struct {
	StartNumber int64                          `json:"startNumber"`
	EndNumber   int64                          `json:"endNumber"`
	Available   bool                           `json:"available"`
	Conflicts   []models.ConsignmentAssignment `json:"conflicts"`
}

// ServeAvailability serves GET /availability?start=&end=.
func (h *Handler) ServeAvailability(w http.ResponseWriter, r *http.Request) {
	start, err := int64Query(r, "start")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	end, err := int64Query(r, "end")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Alloc.ValidateRange(start, end); err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Query(), h.Log, "range availability")
	defer cancel()

	conflicts, err := h.Alloc.Conflicts(ctx, start, end)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if conflicts == nil {
		conflicts = []models.ConsignmentAssignment{}
	}
	httpapi.WriteJSON(w, http.StatusOK, availabilityResponse{
		StartNumber: start,
		EndNumber:   end,
		Available:   len(conflicts) == 0,
		Conflicts:   conflicts,
	})
}

type rangeResponse struct {
	StartNumber  int64 `json:"startNumber"`
	EndNumber    int64 `json:"endNumber"`
	TotalNumbers int64 `json:"totalNumbers"`
}

// ServeSuggest serves GET /suggest?count=.
func (h *Handler) ServeSuggest(w http.ResponseWriter, r *http.Request) {
	count, err := int64Query(r, "count")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Query(), h.Log, "suggest range")
	defer cancel()

	next, err := h.Alloc.SuggestNextRange(ctx, count)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, rangeResponse{
		StartNumber:  next.Start,
		EndNumber:    next.End,
		TotalNumbers: next.Size(),
	})
}
