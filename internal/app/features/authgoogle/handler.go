// internal/app/features/authgoogle/handler.go
package authgoogle

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/dalemusser/courierhub/internal/app/store/audit"
	"github.com/dalemusser/courierhub/internal/app/store/oauthstate"
	officeuserstore "github.com/dalemusser/courierhub/internal/app/store/officeusers"
	"github.com/dalemusser/courierhub/internal/app/system/auditlog"
	"github.com/dalemusser/courierhub/internal/app/system/auth"
	"github.com/dalemusser/courierhub/internal/app/system/normalize"
	"github.com/dalemusser/courierhub/internal/app/system/timeouts"
	"github.com/dalemusser/courierhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const defaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// stateTTL bounds how long a user may sit on Google's consent screen.
const stateTTL = 10 * time.Minute

// Handler signs office users in with Google. Corporate portal accounts
// always use passwords.
type Handler struct {
	Log         *zap.Logger
	SessionMgr  *auth.SessionManager
	AuditLog    *auditlog.Logger
	StateStore  *oauthstate.Store
	OfficeUsers *officeuserstore.Store

	// OAuth configuration
	ClientID     string
	ClientSecret string
	RedirectURL  string // e.g. "https://ops.courierhub.example/auth/google/callback"
	Endpoint     oauth2.Endpoint
	UserInfoURL  string

	// LoginPath receives ?error=<code> on failure; Home is the default
	// destination after sign-in.
	LoginPath string
	Home      string
}

func NewHandler(
	db *mongo.Database,
	sessionMgr *auth.SessionManager,
	audit *auditlog.Logger,
	clientID, clientSecret, baseURL string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Log:          logger,
		SessionMgr:   sessionMgr,
		AuditLog:     audit,
		StateStore:   oauthstate.New(db),
		OfficeUsers:  officeuserstore.New(db),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  baseURL + "/auth/google/callback",
		Endpoint:     google.Endpoint,
		UserInfoURL:  defaultUserInfoURL,
		LoginPath:    "/login",
		Home:         "/",
	}
}

func (h *Handler) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.ClientID,
		ClientSecret: h.ClientSecret,
		RedirectURL:  h.RedirectURL,
		Scopes: []string{
			"openid",
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: h.Endpoint,
	}
}

// IsConfigured returns true if Google OAuth is configured.
func (h *Handler) IsConfigured() bool {
	return h.ClientID != "" && h.ClientSecret != ""
}

func (h *Handler) redirectToLogin(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, h.LoginPath+"?error="+url.QueryEscape(code), http.StatusSeeOther)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	if !h.IsConfigured() {
		h.Log.Warn("Google OAuth not configured")
		h.redirectToLogin(w, r, "google_not_configured")
		return
	}

	state, err := generateState()
	if err != nil {
		h.Log.Error("failed to generate OAuth state", zap.Error(err))
		h.redirectToLogin(w, r, "internal")
		return
	}
	grant := oauthstate.Grant{
		ReturnURL: query.Get(r, "return"),
		Verifier:  oauth2.GenerateVerifier(),
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Lookup(), h.Log, "save oauth state")
	defer cancel()

	if err := h.StateStore.Save(ctx, state, grant, stateTTL); err != nil {
		h.Log.Error("failed to save OAuth state", zap.Error(err))
		h.redirectToLogin(w, r, "internal")
		return
	}

	dest := h.oauth2Config().AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(grant.Verifier))
	h.Log.Debug("initiating Google OAuth flow", zap.String("return_url", grant.ReturnURL))
	http.Redirect(w, r, dest, http.StatusTemporaryRedirect)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google/callback                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if errParam := query.Get(r, "error"); errParam != "" {
		h.Log.Warn("Google OAuth error",
			zap.String("error", errParam),
			zap.String("description", query.Get(r, "error_description")))
		h.redirectToLogin(w, r, "google_denied")
		return
	}

	state := query.Get(r, "state")
	if state == "" {
		h.redirectToLogin(w, r, "invalid_state")
		return
	}

	lookupCtx, cancel := timeouts.WithTimeout(ctx, timeouts.Lookup(), h.Log, "validate oauth state")
	defer cancel()

	grant, valid, err := h.StateStore.Take(lookupCtx, state)
	if err != nil {
		h.Log.Error("failed to validate OAuth state", zap.Error(err))
		h.redirectToLogin(w, r, "internal")
		return
	}
	if !valid {
		h.Log.Warn("invalid or expired OAuth state")
		h.redirectToLogin(w, r, "invalid_state")
		return
	}

	code := query.Get(r, "code")
	if code == "" {
		h.redirectToLogin(w, r, "invalid_code")
		return
	}

	token, err := h.oauth2Config().Exchange(ctx, code, oauth2.VerifierOption(grant.Verifier))
	if err != nil {
		h.Log.Error("failed to exchange OAuth code", zap.Error(err))
		h.redirectToLogin(w, r, "token_exchange")
		return
	}

	gu, err := h.fetchUserInfo(ctx, token)
	if err != nil {
		h.Log.Error("failed to fetch Google user info", zap.Error(err))
		h.redirectToLogin(w, r, "user_info")
		return
	}

	u, err := h.findOfficeUser(lookupCtx, gu)
	switch {
	case errors.Is(err, errUserNotFound):
		h.Log.Info("Google OAuth: no office user", zap.String("email", gu.Email))
		h.AuditLog.LoginFailed(ctx, r, audit.EventLoginFailedUserNotFound, nil, gu.Email, "no account")
		h.redirectToLogin(w, r, "no_account")
		return
	case errors.Is(err, errUserDisabled):
		h.AuditLog.LoginFailed(ctx, r, audit.EventLoginFailedUserDisabled, u.Owner(), gu.Email, "account disabled")
		h.redirectToLogin(w, r, "account_disabled")
		return
	case err != nil:
		h.Log.Error("failed to look up office user", zap.Error(err))
		h.redirectToLogin(w, r, "internal")
		return
	}

	su := &auth.SessionUser{
		ID:    u.ID.Hex(),
		Kind:  auth.KindOfficeUser,
		Name:  u.FullName,
		Email: u.Email,
		Role:  u.Role,
	}
	if err := h.SessionMgr.SignIn(w, r, su); err != nil {
		h.Log.Error("save session failed", zap.Error(err), zap.String("user_id", su.ID))
		h.redirectToLogin(w, r, "session")
		return
	}
	if err := h.OfficeUsers.TouchLogin(lookupCtx, u.ID, time.Now().UTC()); err != nil {
		h.Log.Warn("touch last login failed", zap.Error(err), zap.String("user_id", su.ID))
	}
	h.AuditLog.LoginSuccess(ctx, r, u.Owner(), officeuserstore.AuthGoogle, u.Email)
	h.Log.Info("office user signed in via Google", zap.String("user_id", su.ID))

	http.Redirect(w, r, urlutil.SafeReturn(grant.ReturnURL, "", h.Home), http.StatusSeeOther)
}

/*─────────────────────────────────────────────────────────────────────────────*
| User lookup                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

var (
	errUserNotFound = errors.New("user not found")
	errUserDisabled = errors.New("user disabled")
)

type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"verified_email"`
	Name          string `json:"name"`
}

func (h *Handler) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*googleUserInfo, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	resp, err := client.Get(h.UserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}
	return &info, nil
}

// findOfficeUser matches the Google subject first, then a verified email.
// An email match links the subject so later sign-ins survive an email change.
// Disabled users are returned alongside errUserDisabled.
func (h *Handler) findOfficeUser(ctx context.Context, gu *googleUserInfo) (models.OfficeUser, error) {
	u, err := h.OfficeUsers.GetByGoogleID(ctx, gu.ID)
	if err == mongo.ErrNoDocuments {
		if !gu.EmailVerified || gu.Email == "" {
			return models.OfficeUser{}, errUserNotFound
		}
		u, err = h.OfficeUsers.GetByEmail(ctx, normalize.Email(gu.Email))
		if err == mongo.ErrNoDocuments {
			return models.OfficeUser{}, errUserNotFound
		}
		if err != nil {
			return models.OfficeUser{}, err
		}
		if u.GoogleID != "" && u.GoogleID != gu.ID {
			return models.OfficeUser{}, errUserNotFound
		}
		if u.GoogleID == "" {
			if err := h.OfficeUsers.LinkGoogle(ctx, u.ID, gu.ID); err != nil {
				h.Log.Warn("failed to link Google account", zap.Error(err), zap.String("user_id", u.ID.Hex()))
			}
		}
	} else if err != nil {
		return models.OfficeUser{}, err
	}

	if normalize.Status(u.Status) == officeuserstore.StatusDisabled {
		return u, errUserDisabled
	}
	return u, nil
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
