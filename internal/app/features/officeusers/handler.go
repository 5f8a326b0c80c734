// internal/app/features/officeusers/handler.go
package officeusers

import (
	"errors"
	"net/http"
	"strconv"

	officeuserstore "github.com/dalemusser/courierhub/internal/app/store/officeusers"
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
	Users    *officeuserstore.Store
	AuditLog *auditlog.Logger
	Log      *zap.Logger
}

func NewHandler(db *mongo.Database, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:    officeuserstore.New(db),
		AuditLog: audit,
		Log:      logger,
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	httpapi.WriteError(w, r, h.Log, err)
}

func notFound() error {
	return apperr.NewError("office user not found").WithHint("User not found").Mark(apperr.ErrNotFound)
}

func userID(r *http.Request) (primitive.ObjectID, error) {
	raw := chi.URLParam(r, "id")
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, apperr.NewError("bad office user id "+raw).
			WithHint("Invalid user id").
			Mark(apperr.ErrValidation)
	}
	return id, nil
}

// isSelf reports whether id is the signed-in user.
func isSelf(r *http.Request, id primitive.ObjectID) bool {
	_, _, me, ok := authz.UserCtx(r)
	return ok && authz.IsOfficeUser(r) && me == id
}

// ServeList serves GET /. Filters: role, status, q (name prefix), limit.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	f := officeuserstore.ListFilter{
		Role:   normalize.Role(normalize.Filter(query.Get(r, "role"))),
		Status: normalize.Status(normalize.Filter(query.Get(r, "status"))),
		Search: normalize.QueryParam(query.Get(r, "q")),
	}
	if n, err := strconv.ParseInt(query.Get(r, "limit"), 10, 64); err == nil {
		f.Limit = n
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Query(), h.Log, "list office users")
	defer cancel()

	rows, err := h.Users.List(ctx, f)
	if err != nil {
		h.fail(w, r, apperr.Database(err, "list office users"))
		return
	}
	if rows == nil {
		rows = []models.OfficeUser{}
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"items": rows})
}

// ServeGet serves GET /{id}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Lookup(), h.Log, "get office user")
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if err == mongo.ErrNoDocuments {
		h.fail(w, r, notFound())
		return
	}
	if err != nil {
		h.fail(w, r, apperr.Database(err, "get office user"))
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, u)
}

type createRequest struct {
	FullName   string `json:"fullName" validate:"required,max=200"`
	Email      string `json:"email" validate:"required,email,max=254"`
	Role       string `json:"role" validate:"required,officerole"`
	AuthMethod string `json:"authMethod" validate:"omitempty,oneof=password google"`
	Password   string `json:"password"`
}

// HandleCreate serves POST /. Password accounts need a password; Google
// accounts are linked on first sign-in by email.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpapi.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	req.FullName = normalize.Name(req.FullName)
	req.Email = normalize.Email(req.Email)
	req.Role = normalize.Role(req.Role)
	req.AuthMethod = normalize.AuthMethod(req.AuthMethod)
	if req.AuthMethod == "" {
		req.AuthMethod = officeuserstore.AuthPassword
	}
	if err := inputval.Validate(req); err != nil {
		h.fail(w, r, err)
		return
	}

	u := models.OfficeUser{
		FullName:   req.FullName,
		Email:      req.Email,
		Role:       req.Role,
		AuthMethod: req.AuthMethod,
	}
	if req.AuthMethod == officeuserstore.AuthPassword {
		if err := authutil.ValidatePassword(req.Password); err != nil {
			h.fail(w, r, apperr.WithError(err).WithHint("Password: "+err.Error()).Mark(apperr.ErrValidation))
			return
		}
		hash, err := authutil.HashPassword(req.Password)
		if err != nil {
			h.fail(w, r, apperr.WithError(err).Mark(apperr.ErrSystem))
			return
		}
		u.PasswordHash = hash
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Lookup(), h.Log, "create office user")
	defer cancel()

	created, err := h.Users.Create(ctx, u)
	if errors.Is(err, officeuserstore.ErrDuplicateEmail) {
		h.fail(w, r, apperr.WithError(err).
			WithHint("A user with that email already exists").
			Mark(apperr.ErrConflict))
		return
	}
	if err != nil {
		h.fail(w, r, apperr.Database(err, "create office user"))
		return
	}
	h.AuditLog.OfficeUserCreated(ctx, r, authz.ActorID(r), created)
	httpapi.WriteJSON(w, http.StatusCreated, created)
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=active disabled"`
}

// HandleStatus serves POST /{id}/status. Admins cannot disable themselves.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
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
	if isSelf(r, id) && req.Status == officeuserstore.StatusDisabled {
		h.fail(w, r, apperr.NewError("self disable").
			WithHint("You cannot disable your own account").
			Mark(apperr.ErrValidation))
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Lookup(), h.Log, "set office user status")
	defer cancel()

	ok, err := h.Users.SetStatus(ctx, id, req.Status)
	if err != nil {
		h.fail(w, r, apperr.Database(err, "set office user status"))
		return
	}
	if !ok {
		h.fail(w, r, notFound())
		return
	}
	h.AuditLog.OfficeUserUpdated(ctx, r, authz.ActorID(r), id, "status", req.Status)
	httpapi.WriteJSON(w, http.StatusOK, map[string]string{"id": id.Hex(), "status": req.Status})
}

type roleRequest struct {
	Role string `json:"role" validate:"required,officerole"`
}

// HandleRole serves POST /{id}/role. Admins cannot demote themselves,
// which keeps at least one admin reachable.
func (h *Handler) HandleRole(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req roleRequest
	if err := httpapi.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	req.Role = normalize.Role(req.Role)
	if err := inputval.Validate(req); err != nil {
		h.fail(w, r, err)
		return
	}
	if isSelf(r, id) && req.Role != models.RoleAdmin {
		h.fail(w, r, apperr.NewError("self demote").
			WithHint("You cannot change your own role").
			Mark(apperr.ErrValidation))
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Lookup(), h.Log, "set office user role")
	defer cancel()

	ok, err := h.Users.SetRole(ctx, id, req.Role)
	if err != nil {
		h.fail(w, r, apperr.Database(err, "set office user role"))
		return
	}
	if !ok {
		h.fail(w, r, notFound())
		return
	}
	h.AuditLog.OfficeUserUpdated(ctx, r, authz.ActorID(r), id, "role", req.Role)
	httpapi.WriteJSON(w, http.StatusOK, map[string]string{"id": id.Hex(), "role": req.Role})
}
