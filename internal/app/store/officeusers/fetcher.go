package officeuserstore

import (
	"context"

	"github.com/dalemusser/courierhub/internal/app/system/auth"
	"github.com/dalemusser/courierhub/internal/app/system/normalize"
	"github.com/dalemusser/courierhub/internal/app/system/timeouts"
	"github.com/dalemusser/courierhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Fetcher implements auth.UserFetcher for office users, loading fresh
// user data on each request.
type Fetcher struct {
	c *mongo.Collection
}

// NewFetcher creates a UserFetcher that queries the given database.
func NewFetcher(db *mongo.Database) *Fetcher {
	return &Fetcher{c: db.Collection("office_users")}
}

// FetchUser returns nil if the user is not found, disabled, of another
// kind, or if any error occurs.
func (f *Fetcher) FetchUser(ctx context.Context, kind, id string) *auth.SessionUser {
	if kind != auth.KindOfficeUser {
		return nil
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Lookup())
	defer cancel()

	var u models.OfficeUser
	proj := options.FindOne().SetProjection(bson.M{"full_name": 1, "email": 1, "role": 1, "status": 1})
	if err := f.c.FindOne(ctx, bson.M{"_id": oid}, proj).Decode(&u); err != nil {
		return nil
	}
	if normalize.Status(u.Status) == StatusDisabled {
		return nil
	}
	return &auth.SessionUser{
		ID:    u.ID.Hex(),
		Kind:  auth.KindOfficeUser,
		Name:  u.FullName,
		Email: u.Email,
		Role:  normalize.Role(u.Role),
	}
}
