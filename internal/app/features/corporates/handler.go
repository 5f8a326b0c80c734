// internal/app/features/corporates/handler.go
package corporates

import (
	"errors"
	"net/http"
	"strconv"

	corporatestore "github.com/dalemusser/courierhub/internal/app/store/corporates"
	"github.com/dalemusser/courierhub/internal/app/system/apperr"
	"github.com/dalemusser/courierhub/internal/app/system/auditlog"
	"github.com/dalemusser/courierhub/internal/app/system/authutil"
	"github.com/dalemusser/courierhub/internal/app/system/authz"
	"github.com/dalemusser/courierhub/internal/app/system/httpapi"
	"github.com/dalemusser/courierhub/internal/app/system/inputval"
	"github.com/dalemusser/courierhub/internal/app/system/normalize"
	"github.com/dalemusser/courierhub/internal/app/system/timeouts"
	"github.com/dalemusser/courierhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Corporates *corporatestore.Store
	AuditLog   *auditlog.Logger
	Log        *zap.Logger
}

func NewHandler(db *mongo.Database, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Corporates: corporatestore.New(db),
		AuditLog:   audit,
		Log:        logger,
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	httpapi.WriteError(w, r, h.Log, err)
}

func notFound() error {
	return apperr.NewError("corporate not found").WithHint("Corporate not found").Mark(apperr.ErrNotFound)
}

func corporateID(r *http.Request) (primitive.ObjectID, error) {
	raw := chi.URLParam(r, "id")
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, apperr.NewError("bad corporate id "+raw).
			WithHint("Invalid corporate id").
			Mark(apperr.ErrValidation)
	}
	return id, nil
}

// ServeList serves GET / (office users). Filters: status, q (name prefix), limit.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	f := corporatestore.ListFilter{
		Status: normalize.Status(normalize.Filter(query.Get(r, "status"))),
		Search: normalize.QueryParam(query.Get(r, "q")),
	}
	if n, err := strconv.ParseInt(query.Get(r, "limit"), 10, 64); err == nil {
		f.Limit = n
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Query(), h.Log, "list corporates")
	defer cancel()

	rows, err := h.Corporates.List(ctx, f)
	if err != nil {
		h.fail(w, r, apperr.Database(err, "list corporates"))
		return
	}
	if rows == nil {
		rows = []models.Corporate{}
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"items": rows})
}

// ServeGet serves GET /{id}. A corporate login may read its own record.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	id, err := corporateID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !authz.CanActFor(r, models.CorporateOwner{CorporateID: id}) {
		h.fail(w, r, notFound())
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Lookup(), h.Log, "get corporate")
	defer cancel()

	c, err := h.Corporates.GetByID(ctx, id)
	if err == mongo.ErrNoDocuments {
		h.fail(w, r, notFound())
		return
	}
	if err != nil {
		h.fail(w, r, apperr.Database(err, "get corporate"))
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, c)
}

type createRequest struct {
	CompanyName string `json:"companyName" validate:"required,max=200"`
	Code        string `json:"code" validate:"required,max=20"`
	Email       string `json:"email" validate:"omitempty,email,max=254"`
	Phone       string `json:"phone" validate:"max=40"`
	GSTNumber   string `json:"gstNumber" validate:"max=20"`
	Address     string `json:"address" validate:"max=500"`
	Password    string `json:"password"`
}

// HandleCreate serves POST / (admins).
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpapi.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	req.CompanyName = normalize.Name(req.CompanyName)
	req.Code = normalize.Code(req.Code)
	req.Email = normalize.Email(req.Email)
	if err := inputval.Validate(req); err != nil {
		h.fail(w, r, err)
		return
	}

	c := models.Corporate{
		CompanyName: req.CompanyName,
		Code:        req.Code,
		Email:       req.Email,
		Phone:       req.Phone,
		GSTNumber:   req.GSTNumber,
		Address:     req.Address,
	}
	if req.Password != "" {
		if req.Email == "" {
			h.fail(w, r, apperr.NewError("password without email").
				WithHint("An email is required to enable portal sign-in").
				Mark(apperr.ErrValidation))
			return
		}
		if err := authutil.ValidatePassword(req.Password); err != nil {
			h.fail(w, r, apperr.WithError(err).WithHint("Password: "+err.Error()).Mark(apperr.ErrValidation))
			return
		}
		hash, err := authutil.HashPassword(req.Password)
		if err != nil {
			h.fail(w, r, apperr.WithError(err).Mark(apperr.ErrSystem))
			return
		}
		c.PasswordHash = hash
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Lookup(), h.Log, "create corporate")
	defer cancel()

	created, err := h.Corporates.Create(ctx, c)
	if errors.Is(err, corporatestore.ErrDuplicateCorporate) {
		h.fail(w, r, apperr.WithError(err).
			WithHint("A corporate with this code or email already exists").
			Mark(apperr.ErrConflict))
		return
	}
	if err != nil {
		h.fail(w, r, apperr.Database(err, "create corporate"))
		return
	}
	h.AuditLog.CorporateCreated(ctx, r, authz.ActorID(r), created)
	httpapi.WriteJSON(w, http.StatusCreated, created)
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=active disabled"`
}

// HandleStatus serves POST /{id}/status (admins). Disabling blocks portal
// sign-in; ranges and usages are left alone.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := corporateID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req statusRequest
	if err := httpapi.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	req.Status = normalize.Status(req.Status)
	if err := inputval.Validate(req); err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Lookup(), h.Log, "set corporate status")
	defer cancel()

	ok, err := h.Corporates.SetStatus(ctx, id, req.Status)
	if err != nil {
		h.fail(w, r, apperr.Database(err, "set corporate status"))
		return
	}
	if !ok {
		h.fail(w, r, notFound())
		return
	}
	h.AuditLog.CorporateStatusChanged(ctx, r, authz.ActorID(r), id, req.Status)
	httpapi.WriteJSON(w, http.StatusOK, map[string]string{"id": id.Hex(), "status": req.Status})
}
