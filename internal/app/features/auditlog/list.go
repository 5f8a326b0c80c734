// internal/app/features/auditlog/list.go
package auditlog

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dalemusser/courierhub/internal/app/store/audit"
	"github.com/dalemusser/courierhub/internal/app/system/apperr"
	"github.com/dalemusser/courierhub/internal/app/system/httpapi"
	"github.com/dalemusser/courierhub/internal/app/system/normalize"
	"github.com/dalemusser/courierhub/internal/app/system/timeouts"
	"github.com/dalemusser/courierhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

func badParam(name, raw string) error {
	return apperr.NewError("bad "+name+" "+raw).
		WithHintf("Invalid %s", name).
		Mark(apperr.ErrValidation)
}

// parseFilter reads category, eventType, entityType+entityId, from, to
// (YYYY-MM-DD, "to" inclusive) and limit.
func parseFilter(r *http.Request) (audit.QueryFilter, error) {
	f := audit.QueryFilter{
		Category:  normalize.Filter(query.Get(r, "category")),
		EventType: normalize.Filter(query.Get(r, "eventType")),
		Limit:     defaultLimit,
	}
	if f.Category != "" && !lo.Contains([]string{audit.CategoryAuth, audit.CategoryAdmin}, f.Category) {
		return f, badParam("category", f.Category)
	}

	kind, id := normalize.EntityType(query.Get(r, "entityType")), query.Get(r, "entityId")
	if kind != "" || id != "" {
		owner, err := models.ParseOwner(kind, id)
		if err != nil {
			return f, badParam("entity", kind+":"+id)
		}
		f.SubjectType = string(owner.Kind())
		oid := owner.ID()
		f.SubjectID = &oid
	}

	if raw := query.Get(r, "from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return f, badParam("from", raw)
		}
		f.StartTime = &t
	}
	if raw := query.Get(r, "to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return f, badParam("to", raw)
		}
		end := t.Add(24*time.Hour - time.Nanosecond)
		f.EndTime = &end
	}

	if raw := query.Get(r, "limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			return f, badParam("limit", raw)
		}
		f.Limit = min(n, maxLimit)
	}
	return f, nil
}

type listItem struct {
	ID            string            `json:"id"`
	Timestamp     time.Time         `json:"timestamp"`
	Category      string            `json:"category"`
	EventType     string            `json:"eventType"`
	ActorID       string            `json:"actorId,omitempty"`
	SubjectType   string            `json:"subjectType,omitempty"`
	SubjectID     string            `json:"subjectId,omitempty"`
	IP            string            `json:"ip"`
	Success       bool              `json:"success"`
	FailureReason string            `json:"failureReason,omitempty"`
	Details       map[string]string `json:"details,omitempty"`
}

func toItem(e audit.Event, _ int) listItem {
	it := listItem{
		ID:            e.ID.Hex(),
		Timestamp:     e.Timestamp,
		Category:      e.Category,
		EventType:     e.EventType,
		ActorID:       e.ActorID,
		SubjectType:   e.SubjectType,
		IP:            e.IP,
		Success:       e.Success,
		FailureReason: e.FailureReason,
		Details:       e.Details,
	}
	if e.SubjectID != nil && *e.SubjectID != primitive.NilObjectID {
		it.SubjectID = e.SubjectID.Hex()
	}
	return it
}

// ServeList handles GET /api/audit: newest events first plus the total
// matching count.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		httpapi.WriteError(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Query(), h.Log, "audit log list")
	defer cancel()

	events, err := h.Events.Query(ctx, f)
	if err != nil {
		httpapi.WriteError(w, r, h.Log, apperr.Database(err, "query audit events"))
		return
	}
	total, err := h.Events.CountByFilter(ctx, f)
	if err != nil {
		httpapi.WriteError(w, r, h.Log, apperr.Database(err, "count audit events"))
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"items": lo.Map(events, toItem),
		"total": total,
	})
}

// ServeEventTypes handles GET /api/audit/event-types.
func (h *Handler) ServeEventTypes(w http.ResponseWriter, r *http.Request) {
	category := normalize.Filter(query.Get(r, "category"))
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"categories": allCategories(),
		"eventTypes": eventTypesForCategory(category),
	})
}
