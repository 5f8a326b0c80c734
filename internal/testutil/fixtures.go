package testutil

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/courierhub/internal/app/system/authutil"
	"github.com/dalemusser/courierhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

func (f *Fixtures) hash(password string) string {
	f.t.Helper()
	if password == "" {
		return ""
	}
	h, err := authutil.HashPassword(password)
	if err != nil {
		f.t.Fatalf("hash password: %v", err)
	}
	return h
}

// CreateCorporate creates an active corporate. The code is derived from
// the name; pass a password to allow portal logins.
func (f *Fixtures) CreateCorporate(ctx context.Context, name, email, password string) models.Corporate {
	f.t.Helper()

	now := time.Now().UTC()
	code := strings.ToUpper(strings.ReplaceAll(name, " ", ""))
	if len(code) > 8 {
		code = code[:8]
	}
	code += "-" + primitive.NewObjectID().Hex()[18:]
	c := models.Corporate{
		ID:            primitive.NewObjectID(),
		CompanyName:   name,
		CompanyNameCI: text.Fold(name),
		Code:          code,
		CodeCI:        text.Fold(code),
		Email:         email,
		EmailCI:       text.Fold(email),
		Status:        "active",
		PasswordHash:  f.hash(password),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := f.db.Collection("corporates").InsertOne(ctx, c); err != nil {
		f.t.Fatalf("CreateCorporate: %v", err)
	}
	return c
}

// CreateOfficeUser creates an active password-auth office user.
func (f *Fixtures) CreateOfficeUser(ctx context.Context, fullName, email, role, password string) models.OfficeUser {
	f.t.Helper()

	now := time.Now().UTC()
	u := models.OfficeUser{
		ID:           primitive.NewObjectID(),
		FullName:     fullName,
		FullNameCI:   text.Fold(fullName),
		Email:        email,
		EmailCI:      text.Fold(email),
		Role:         role,
		Status:       "active",
		AuthMethod:   "password",
		PasswordHash: f.hash(password),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := f.db.Collection("office_users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("CreateOfficeUser: %v", err)
	}
	return u
}

// DisableCorporate flips a corporate to disabled.
func (f *Fixtures) DisableCorporate(ctx context.Context, id primitive.ObjectID) {
	f.t.Helper()
	if _, err := f.db.Collection("corporates").UpdateByID(ctx, id, bson.M{"$set": bson.M{"status": "disabled"}}); err != nil {
		f.t.Fatalf("DisableCorporate: %v", err)
	}
}

// CreateAssignment inserts an active range directly, bypassing the
// allocator's overlap check. Use it to seed state, not to test assignment.
func (f *Fixtures) CreateAssignment(ctx context.Context, owner models.Owner, start, end int64) models.ConsignmentAssignment {
	f.t.Helper()

	a := models.ConsignmentAssignment{
		ID:           primitive.NewObjectID(),
		OwnerRef:     models.RefOf(owner),
		StartNumber:  start,
		EndNumber:    end,
		TotalNumbers: end - start + 1,
		AssignedBy:   "fixture",
		AssignedAt:   time.Now().UTC(),
		IsActive:     true,
	}
	if _, err := f.db.Collection("consignment_assignments").InsertOne(ctx, a); err != nil {
		f.t.Fatalf("CreateAssignment: %v", err)
	}
	return a
}
