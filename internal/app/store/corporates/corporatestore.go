// internal/app/store/corporates/corporatestore.go
package corporatestore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/courierhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Status values.
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

var ErrDuplicateCorporate = errors.New("a corporate with this code or email already exists")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("corporates")}
}

// Create assigns the ID, folded fields and timestamps, then inserts.
func (s *Store) Create(ctx context.Context, c models.Corporate) (models.Corporate, error) {
	now := time.Now().UTC()
	c.ID = primitive.NewObjectID()
	c.CompanyNameCI = text.Fold(c.CompanyName)
	c.CodeCI = text.Fold(c.Code)
	c.EmailCI = text.Fold(c.Email)
	if c.Status == "" {
		c.Status = StatusActive
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, c); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Corporate{}, ErrDuplicateCorporate
		}
		return models.Corporate{}, err
	}
	return c, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Corporate, error) {
	var c models.Corporate
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	return c, err
}

// GetByEmail looks a corporate up by its login email, case-insensitively.
func (s *Store) GetByEmail(ctx context.Context, email string) (models.Corporate, error) {
	var c models.Corporate
	err := s.c.FindOne(ctx, bson.M{"email_ci": text.Fold(email)}).Decode(&c)
	return c, err
}

// Exists reports whether a corporate with the given id exists.
func (s *Store) Exists(ctx context.Context, id primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ExistingIDs returns the subset of ids that exist.
func (s *Store) ExistingIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]bool, error) {
	out := make(map[primitive.ObjectID]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.ID] = true
	}
	return out, cur.Err()
}

// ListFilter narrows List. Zero values mean "any".
type ListFilter struct {
	Status string
	Search string // prefix match on folded company name
	Limit  int64
}

// List returns corporates ordered by company name.
func (s *Store) List(ctx context.Context, f ListFilter) ([]models.Corporate, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Search != "" {
		lo, hi := text.PrefixRange(text.Fold(f.Search))
		filter["company_name_ci"] = bson.M{"$gte": lo, "$lt": hi}
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "company_name_ci", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(limit)

	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Corporate
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetStatus updates status; returns false when no corporate matched.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, status string) (bool, error) {
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (s *Store) SetPasswordHash(ctx context.Context, id primitive.ObjectID, hash string) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"password_hash": hash,
		"updated_at":    time.Now().UTC(),
	}})
	return err
}
