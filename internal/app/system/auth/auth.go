package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/courierhub/internal/app/system/apperr"
	"github.com/dalemusser/courierhub/internal/app/system/httpapi"
	"github.com/dalemusser/courierhub/internal/domain/models"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Session constants                                                           |
*─────────────────────────────────────────────────────────────────────────────*/

const (
	isAuthKey  = "is_authenticated"
	userIDKey  = "user_id"
	userKind   = "user_kind"
	userName   = "user_name"
	userEmail  = "user_email"
	userRole   = "user_role"
	signedInAt = "signed_in_at"
)

// Principal kinds stored in the session.
const (
	KindOfficeUser = "office_user"
	KindCorporate  = "corporate"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Current-User helper                                                         |
*─────────────────────────────────────────────────────────────────────────────*/

// SessionUser is what we cache in the session & inject into r.Context().
// Office users carry role admin|staff; corporate logins carry role corporate.
type SessionUser struct {
	ID    string `json:"id"`
	Kind  string `json:"kind"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Owner returns the consignment owner this principal acts as.
func (u *SessionUser) Owner() (models.Owner, error) {
	return models.ParseOwner(u.Kind, u.ID)
}

// ObjectID parses the user id.
func (u *SessionUser) ObjectID() (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(u.ID)
}

// UserFetcher reloads a principal on each request so that disabled
// accounts and role changes take effect without waiting for the cookie
// to expire. It returns nil when the principal is gone or disabled.
type UserFetcher interface {
	FetchUser(ctx context.Context, kind, id string) *SessionUser
}

// KindFetchers routes each principal kind to the fetcher that owns it.
// Unknown kinds are rejected.
type KindFetchers map[string]UserFetcher

func (m KindFetchers) FetchUser(ctx context.Context, kind, id string) *SessionUser {
	f, ok := m[kind]
	if !ok || f == nil {
		return nil
	}
	return f.FetchUser(ctx, kind, id)
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user & "found?" flag.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok
}

// WithTestUser injects u directly, bypassing the session (tests only).
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Session manager                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

// SessionManager owns the cookie store and the auth middleware.
type SessionManager struct {
	store   *sessions.CookieStore
	name    string
	logger  *zap.Logger
	fetcher UserFetcher
}

// NewSessionManager builds a cookie-backed session manager.
//
// In production (secure=true) cookies are Secure + SameSite=None; over
// plain http in local dev use secure=false so browsers accept them.
func NewSessionManager(sessionKey, name, domain string, maxAge time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty; provide ≥32 random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}
	if name == "" {
		name = "courierhub-session"
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	opts := &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
	}
	if secure {
		opts.SameSite = http.SameSiteNoneMode
	} else {
		opts.SameSite = http.SameSiteLaxMode
	}
	store.Options = opts
	store.MaxAge(opts.MaxAge)

	logger.Info("session store initialized",
		zap.String("name", name),
		zap.Bool("secure", secure),
		zap.String("domain", domain))

	return &SessionManager{store: store, name: name, logger: logger}, nil
}

// SetUserFetcher enables per-request principal refresh.
func (sm *SessionManager) SetUserFetcher(f UserFetcher) {
	sm.fetcher = f
}

// Name is the session cookie name.
func (sm *SessionManager) Name() string { return sm.name }

// getSession loads the session, starting a fresh one when the cookie no
// longer decodes (rotated key, tampering).
func (sm *SessionManager) getSession(r *http.Request) *sessions.Session {
	sess, err := sm.store.Get(r, sm.name)
	if err != nil {
		var scErr securecookie.Error
		if errors.As(err, &scErr) && scErr.IsDecode() {
			sm.logger.Debug("discarding undecodable session cookie")
		} else {
			sm.logger.Warn("session load failed", zap.Error(err))
		}
	}
	return sess
}

// LoadSessionUser injects the user into context if they are signed in.
func (sm *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := sm.getSession(r)
		if isAuth, _ := sess.Values[isAuthKey].(bool); isAuth {
			u := &SessionUser{
				ID:    getString(sess, userIDKey),
				Kind:  getString(sess, userKind),
				Name:  getString(sess, userName),
				Email: getString(sess, userEmail),
				Role:  getString(sess, userRole),
			}
			if sm.fetcher != nil {
				u = sm.fetcher.FetchUser(r.Context(), u.Kind, u.ID)
			}
			if u != nil {
				r = withUser(r, u)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// SignIn stores u in a fresh session.
func (sm *SessionManager) SignIn(w http.ResponseWriter, r *http.Request, u *SessionUser) error {
	sess := sm.getSession(r)
	for k := range sess.Values {
		delete(sess.Values, k)
	}
	sess.Values[isAuthKey] = true
	sess.Values[userIDKey] = u.ID
	sess.Values[userKind] = u.Kind
	sess.Values[userName] = u.Name
	sess.Values[userEmail] = u.Email
	sess.Values[userRole] = u.Role
	sess.Values[signedInAt] = time.Now().UTC().Unix()
	return sess.Save(r, w)
}

// SignOut expires the session cookie.
func (sm *SessionManager) SignOut(w http.ResponseWriter, r *http.Request) error {
	sess := sm.getSession(r)
	for k := range sess.Values {
		delete(sess.Values, k)
	}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// RequireSignedIn rejects requests without a user in context (401).
func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); ok {
			next.ServeHTTP(w, r)
			return
		}
		httpapi.WriteError(w, r, nil, errUnauthorized())
	})
}

// RequireRole rejects requests whose user lacks every listed role:
// 401 when not signed in, 403 when signed in with another role.
func (sm *SessionManager) RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			if !ok {
				httpapi.WriteError(w, r, nil, errUnauthorized())
				return
			}
			if _, has := set[strings.ToLower(u.Role)]; !has {
				httpapi.WriteError(w, r, nil, apperr.NewError("role not allowed: "+u.Role).
					WithHint("You do not have permission to perform this action").
					Mark(apperr.ErrForbidden))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func errUnauthorized() error {
	return apperr.NewError("no session").
		WithHint("Please sign in").
		Mark(apperr.ErrUnauthorized)
}

// helpers

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

// getString safely extracts a string from a session value.
func getString(s *sessions.Session, key string) string {
	if v, ok := s.Values[key].(string); ok {
		return v
	}
	return ""
}
