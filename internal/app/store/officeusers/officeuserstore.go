// internal/app/store/officeusers/officeuserstore.go
package officeuserstore

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

const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// Auth methods.
const (
	AuthPassword = "password"
	AuthGoogle   = "google"
)

var ErrDuplicateEmail = errors.New("an office user with this email already exists")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("office_users")}
}

func (s *Store) Create(ctx context.Context, u models.OfficeUser) (models.OfficeUser, error) {
	now := time.Now().UTC()
	u.ID = primitive.NewObjectID()
	u.FullNameCI = text.Fold(u.FullName)
	u.EmailCI = text.Fold(u.Email)
	if u.Status == "" {
		u.Status = StatusActive
	}
	if u.AuthMethod == "" {
		u.AuthMethod = AuthPassword
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.OfficeUser{}, ErrDuplicateEmail
		}
		return models.OfficeUser{}, err
	}
	return u, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.OfficeUser, error) {
	var u models.OfficeUser
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	return u, err
}

func (s *Store) GetByEmail(ctx context.Context, email string) (models.OfficeUser, error) {
	var u models.OfficeUser
	err := s.c.FindOne(ctx, bson.M{"email_ci": text.Fold(email)}).Decode(&u)
	return u, err
}

func (s *Store) GetByGoogleID(ctx context.Context, googleID string) (models.OfficeUser, error) {
	var u models.OfficeUser
	err := s.c.FindOne(ctx, bson.M{"google_id": googleID}).Decode(&u)
	return u, err
}

// Exists reports whether an office user with the given id exists.
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

type ListFilter struct {
	Role   string
	Status string
	Search string
	Limit  int64
}

// List returns office users ordered by full name.
func (s *Store) List(ctx context.Context, f ListFilter) ([]models.OfficeUser, error) {
	filter := bson.M{}
	if f.Role != "" {
		filter["role"] = f.Role
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Search != "" {
		lo, hi := text.PrefixRange(text.Fold(f.Search))
		filter["full_name_ci"] = bson.M{"$gte": lo, "$lt": hi}
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "full_name_ci", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(limit)

	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.OfficeUser
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CountAdmins counts active admins; used to seed the bootstrap admin.
func (s *Store) CountAdmins(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"role": models.RoleAdmin, "status": StatusActive})
}

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

func (s *Store) SetRole(ctx context.Context, id primitive.ObjectID, role string) (bool, error) {
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"role":       role,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

// LinkGoogle binds a Google subject to an existing account on first sign-in.
func (s *Store) LinkGoogle(ctx context.Context, id primitive.ObjectID, googleID string) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"google_id":  googleID,
		"updated_at": time.Now().UTC(),
	}})
	if wafflemongo.IsDup(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (s *Store) TouchLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{"last_login_at": at}})
	return err
}
