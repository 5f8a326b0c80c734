// internal/app/system/authz/authz.go
package authz

import (
	"net/http"
	"strings"

	"github.com/dalemusser/courierhub/internal/app/system/apperr"
	"github.com/dalemusser/courierhub/internal/app/system/auth"
	"github.com/dalemusser/courierhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserCtx returns the user's role (lowercased), name, Mongo ObjectID, and a found flag.
// If no user is present in context or the user ID is malformed, it returns
// "visitor", "", NilObjectID, false, so ok=true always means a valid,
// authenticated principal.
func UserCtx(r *http.Request) (role string, name string, userID primitive.ObjectID, ok bool) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return "visitor", "", primitive.NilObjectID, false
	}
	userID, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		// Malformed user ID in session - fail closed.
		return "visitor", "", primitive.NilObjectID, false
	}
	return strings.ToLower(user.Role), user.Name, userID, true
}

// IsAdmin reports whether the current request's user is an admin.
func IsAdmin(r *http.Request) bool {
	role, _, _, ok := UserCtx(r)
	return ok && role == models.RoleAdmin
}

// IsOfficeUser reports whether the user is back-office staff (admin or staff).
func IsOfficeUser(r *http.Request) bool {
	u, ok := auth.CurrentUser(r)
	return ok && u.Kind == auth.KindOfficeUser
}

// IsCorporate reports whether the user is signed in to the corporate portal.
func IsCorporate(r *http.Request) bool {
	u, ok := auth.CurrentUser(r)
	return ok && u.Kind == auth.KindCorporate
}

// ActorID returns the signed-in principal's id hex, or "system".
func ActorID(r *http.Request) string {
	if u, ok := auth.CurrentUser(r); ok {
		return u.ID
	}
	return "system"
}

// CanActFor reports whether the current user may read or consume the
// owner's consignment numbers. Office users act for anyone; corporate
// logins only for their own account.
func CanActFor(r *http.Request, owner models.Owner) bool {
	u, ok := auth.CurrentUser(r)
	if !ok {
		return false
	}
	switch u.Kind {
	case auth.KindOfficeUser:
		return true
	case auth.KindCorporate:
		c, isCorp := owner.(models.CorporateOwner)
		return isCorp && c.CorporateID.Hex() == u.ID
	default:
		return false
	}
}

// RequireActFor is CanActFor as an error suitable for httpapi.WriteError.
func RequireActFor(r *http.Request, owner models.Owner) error {
	if _, ok := auth.CurrentUser(r); !ok {
		return apperr.NewError("no session").WithHint("Please sign in").Mark(apperr.ErrUnauthorized)
	}
	if !CanActFor(r, owner) {
		return apperr.NewError("not permitted for " + owner.String()).
			WithHint("You can only access your own consignment numbers").
			Mark(apperr.ErrForbidden)
	}
	return nil
}
