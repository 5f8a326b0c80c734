// internal/app/features/login/handler.go
package login

import (
	"context"
	"net/http"
	"time"

	"github.com/dalemusser/courierhub/internal/app/store/audit"
	corporatestore "github.com/dalemusser/courierhub/internal/app/store/corporates"
	officeuserstore "github.com/dalemusser/courierhub/internal/app/store/officeusers"
	"github.com/dalemusser/courierhub/internal/app/system/apperr"
	"github.com/dalemusser/courierhub/internal/app/system/auditlog"
	"github.com/dalemusser/courierhub/internal/app/system/auth"
	"github.com/dalemusser/courierhub/internal/app/system/authutil"
	"github.com/dalemusser/courierhub/internal/app/system/httpapi"
	"github.com/dalemusser/courierhub/internal/app/system/inputval"
	"github.com/dalemusser/courierhub/internal/app/system/normalize"
	"github.com/dalemusser/courierhub/internal/app/system/ratelimit"
	"github.com/dalemusser/courierhub/internal/app/system/timeouts"
	"github.com/dalemusser/courierhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Corporates  *corporatestore.Store
	OfficeUsers *officeuserstore.Store
	SessionMgr  *auth.SessionManager
	Limiter     *ratelimit.LoginLimiter
	AuditLog    *auditlog.Logger
	Log         *zap.Logger
}

func NewHandler(db *mongo.Database, sessionMgr *auth.SessionManager, limiter *ratelimit.LoginLimiter, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	if limiter == nil {
		limiter = ratelimit.NewLoginLimiter()
	}
	return &Handler{
		Corporates:  corporatestore.New(db),
		OfficeUsers: officeuserstore.New(db),
		SessionMgr:  sessionMgr,
		Limiter:     limiter,
		AuditLog:    audit,
		Log:         logger,
	}
}

type loginRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required"`
	AccountType string `json:"accountType" validate:"omitempty,entitytype"`
}

// account is what both principal kinds look like to the login flow.
type account struct {
	owner      models.Owner
	name       string
	email      string
	role       string
	status     string
	authMethod string
	hash       string
}

// errBadCredentials covers both unknown email and wrong password.
func errBadCredentials() error {
	return apperr.NewError("bad credentials").
		WithHint("Invalid email or password").
		Mark(apperr.ErrUnauthorized)
}

// HandleLogin serves POST /api/auth/login. accountType defaults to
// office_user; corporate portal logins send "corporate".
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpapi.DecodeJSON(w, r, &req); err != nil {
		httpapi.WriteError(w, r, h.Log, err)
		return
	}
	req.Email = normalize.Email(req.Email)
	req.AccountType = normalize.EntityType(req.AccountType)
	if req.AccountType == "" {
		req.AccountType = string(models.EntityOfficeUser)
	}
	if err := inputval.Validate(req); err != nil {
		httpapi.WriteError(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Lookup(), h.Log, "login")
	defer cancel()

	limitKey := ratelimit.AccountKey(req.AccountType, req.Email)
	if ok, reason := h.Limiter.Check(r, limitKey); !ok {
		h.AuditLog.LoginFailed(ctx, r, audit.EventLoginFailedRateLimit, nil, req.Email, "rate limited")
		httpapi.WriteError(w, r, h.Log, apperr.NewError("login rate limited").WithHint(reason).Mark(apperr.ErrRateLimited))
		return
	}

	acct, err := h.lookup(ctx, models.EntityType(req.AccountType), req.Email)
	if err == mongo.ErrNoDocuments {
		h.AuditLog.LoginFailed(ctx, r, audit.EventLoginFailedUserNotFound, nil, req.Email, "no account")
		httpapi.WriteError(w, r, h.Log, errBadCredentials())
		return
	}
	if err != nil {
		httpapi.WriteError(w, r, h.Log, apperr.Database(err, "login lookup"))
		return
	}

	if normalize.Status(acct.status) == "disabled" {
		h.AuditLog.LoginFailed(ctx, r, audit.EventLoginFailedUserDisabled, acct.owner, req.Email, "account disabled")
		httpapi.WriteError(w, r, h.Log, apperr.NewError("account disabled").
			WithHint("Your account is disabled. Please contact an administrator.").
			Mark(apperr.ErrForbidden))
		return
	}
	if acct.authMethod == officeuserstore.AuthGoogle && acct.hash == "" {
		h.AuditLog.LoginFailed(ctx, r, audit.EventLoginFailedWrongPassword, acct.owner, req.Email, "google account")
		httpapi.WriteError(w, r, h.Log, apperr.NewError("google account used password login").
			WithHint("This account signs in with Google").
			Mark(apperr.ErrUnauthorized))
		return
	}
	if acct.hash == "" || !authutil.CheckPassword(req.Password, acct.hash) {
		h.AuditLog.LoginFailed(ctx, r, audit.EventLoginFailedWrongPassword, acct.owner, req.Email, "wrong password")
		httpapi.WriteError(w, r, h.Log, errBadCredentials())
		return
	}

	su := &auth.SessionUser{
		ID:    acct.owner.ID().Hex(),
		Kind:  string(acct.owner.Kind()),
		Name:  acct.name,
		Email: acct.email,
		Role:  acct.role,
	}
	if err := h.SessionMgr.SignIn(w, r, su); err != nil {
		httpapi.WriteError(w, r, h.Log, apperr.WithError(err).WithHint("Unable to create session").Mark(apperr.ErrSystem))
		return
	}
	h.Limiter.ResetAccount(limitKey)

	if o, ok := acct.owner.(models.OfficeUserOwner); ok {
		if err := h.OfficeUsers.TouchLogin(ctx, o.OfficeUserID, time.Now().UTC()); err != nil {
			h.Log.Warn("touch last login failed", zap.Error(err), zap.String("user_id", o.OfficeUserID.Hex()))
		}
	}
	h.AuditLog.LoginSuccess(ctx, r, acct.owner, officeuserstore.AuthPassword, req.Email)

	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "user": su})
}

func (h *Handler) lookup(ctx context.Context, kind models.EntityType, email string) (account, error) {
	switch kind {
	case models.EntityCorporate:
		c, err := h.Corporates.GetByEmail(ctx, email)
		if err != nil {
			return account{}, err
		}
		return account{
			owner:  c.Owner(),
			name:   c.CompanyName,
			email:  c.Email,
			role:   models.RoleCorporate,
			status: c.Status,
			hash:   c.PasswordHash,
		}, nil
	default:
		u, err := h.OfficeUsers.GetByEmail(ctx, email)
		if err != nil {
			return account{}, err
		}
		return account{
			owner:      u.Owner(),
			name:       u.FullName,
			email:      u.Email,
			role:       u.Role,
			status:     u.Status,
			authMethod: u.AuthMethod,
			hash:       u.PasswordHash,
		}, nil
	}
}
