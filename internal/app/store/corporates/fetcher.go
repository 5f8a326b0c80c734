package corporatestore

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

// Fetcher implements auth.UserFetcher for corporate portal logins.
type Fetcher struct {
	c *mongo.Collection
}

// NewFetcher creates a UserFetcher that queries the given database.
func NewFetcher(db *mongo.Database) *Fetcher {
	return &Fetcher{c: db.Collection("corporates")}
}

// FetchUser returns nil if the corporate is not found, disabled, of another
// kind, or if any error occurs.
func (f *Fetcher) FetchUser(ctx context.Context, kind, id string) *auth.SessionUser {
	if kind != auth.KindCorporate {
		return nil
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Lookup())
	defer cancel()

	var c models.Corporate
	proj := options.FindOne().SetProjection(bson.M{"company_name": 1, "email": 1, "status": 1})
	if err := f.c.FindOne(ctx, bson.M{"_id": oid}, proj).Decode(&c); err != nil {
		return nil
	}
	if normalize.Status(c.Status) == StatusDisabled {
		return nil
	}
	return &auth.SessionUser{
		ID:    c.ID.Hex(),
		Kind:  auth.KindCorporate,
		Name:  c.CompanyName,
		Email: c.Email,
		Role:  models.RoleCorporate,
	}
}
