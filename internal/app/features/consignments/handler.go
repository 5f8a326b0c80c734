// internal/app/features/consignments/handler.go
package consignments

import (
	"net/http"
	"strconv"

	assignmentstore "github.com/dalemusser/courierhub/internal/app/store/assignments"
	usagestore "github.com/dalemusser/courierhub/internal/app/store/usages"
	"github.com/dalemusser/courierhub/internal/app/system/allocator"
	"github.com/dalemusser/courierhub/internal/app/system/apperr"
	"github.com/dalemusser/courierhub/internal/app/system/auditlog"
	"github.com/dalemusser/courierhub/internal/app/system/auth"
	"github.com/dalemusser/courierhub/internal/app/system/httpapi"
	"github.com/dalemusser/courierhub/internal/app/system/normalize"
	"github.com/dalemusser/courierhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the consignment range and usage API.
type Handler struct {
	Alloc       *allocator.Service
	Assignments *assignmentstore.Store
	Usages      *usagestore.Store
	AuditLog    *auditlog.Logger
	Log         *zap.Logger
}

func NewHandler(db *mongo.Database, alloc *allocator.Service, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Alloc:       alloc,
		Assignments: assignmentstore.New(db),
		Usages:      usagestore.New(db),
		AuditLog:    audit,
		Log:         logger,
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	httpapi.WriteError(w, r, h.Log, err)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Request helpers                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

func invalidEntity(kind, id string) error {
	return apperr.NewError("invalid entity "+kind+"/"+id).
		WithHint("Entity type must be corporate or office_user with a valid id").
		Mark(apperr.ErrValidation)
}

// ownerParam reads the {entityType}/{entityId} path segments.
func ownerParam(r *http.Request) (models.Owner, error) {
	kind, id := normalize.EntityType(chi.URLParam(r, "entityType")), chi.URLParam(r, "entityId")
	owner, err := models.ParseOwner(kind, id)
	if err != nil {
		return nil, invalidEntity(kind, id)
	}
	return owner, nil
}

// ownerOrSelf parses an explicit owner, or falls back to the signed-in
// principal when both parts are empty.
func ownerOrSelf(r *http.Request, kind, id string) (models.Owner, error) {
	kind = normalize.EntityType(kind)
	if kind == "" && id == "" {
		u, ok := auth.CurrentUser(r)
		if !ok {
			return nil, apperr.NewError("no session").WithHint("Please sign in").Mark(apperr.ErrUnauthorized)
		}
		owner, err := u.Owner()
		if err != nil {
			return nil, invalidEntity(u.Kind, u.ID)
		}
		return owner, nil
	}
	owner, err := models.ParseOwner(kind, id)
	if err != nil {
		return nil, invalidEntity(kind, id)
	}
	return owner, nil
}

func idParam(r *http.Request) (primitive.ObjectID, error) {
	raw := chi.URLParam(r, "id")
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, apperr.NewError("bad id "+raw).
			WithHint("Invalid id").
			Mark(apperr.ErrValidation)
	}
	return id, nil
}

// int64Query parses a required integer query parameter.
func int64Query(r *http.Request, name string) (int64, error) {
	raw := query.Get(r, name)
	if raw == "" {
		return 0, apperr.NewError("missing "+name).
			WithHintf("Query parameter '%s' is required", name).
			Mark(apperr.ErrValidation)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperr.NewError("bad "+name).
			WithHintf("Query parameter '%s' must be an integer", name).
			Mark(apperr.ErrValidation)
	}
	return n, nil
}
