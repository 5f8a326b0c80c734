// internal/app/store/assignments/assignmentstore.go
package assignmentstore

import (
	"context"
	"time"

	"github.com/dalemusser/courierhub/internal/app/system/paging"
	"github.com/dalemusser/courierhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store persists consignment_assignments. Callers that need the
// no-overlap guarantee must go through the allocator, which serializes
// Create against FindActiveOverlapping.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("consignment_assignments")}
}

func ownerFilter(ref models.OwnerRef) bson.M {
	return bson.M{"entity_type": ref.EntityType, "entity_id": ref.EntityID}
}

// Create inserts a as given. ID and AssignedAt are set if zero.
func (s *Store) Create(ctx context.Context, a models.ConsignmentAssignment) (models.ConsignmentAssignment, error) {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	if a.AssignedAt.IsZero() {
		a.AssignedAt = time.Now().UTC()
	}
	if _, err := s.c.InsertOne(ctx, a); err != nil {
		return models.ConsignmentAssignment{}, err
	}
	return a, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.ConsignmentAssignment, error) {
	var a models.ConsignmentAssignment
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	return a, err
}

// FindActiveOverlapping returns active assignments of any owner that share
// at least one number with [start, end], ordered by start_number.
func (s *Store) FindActiveOverlapping(ctx context.Context, start, end int64) ([]models.ConsignmentAssignment, error) {
	filter := bson.M{
		"is_active":    true,
		"start_number": bson.M{"$lte": end},
		"end_number":   bson.M{"$gte": start},
	}
	opts := options.Find().SetSort(bson.D{{Key: "start_number", Value: 1}}).SetLimit(20)
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.ConsignmentAssignment
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListActiveByOwner returns the owner's active assignments in ascending
// start_number order.
func (s *Store) ListActiveByOwner(ctx context.Context, ref models.OwnerRef) ([]models.ConsignmentAssignment, error) {
	filter := ownerFilter(ref)
	filter["is_active"] = true
	opts := options.Find().SetSort(bson.D{{Key: "start_number", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.ConsignmentAssignment
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListAllByOwner returns every assignment of the owner, active or not.
func (s *Store) ListAllByOwner(ctx context.Context, ref models.OwnerRef) ([]models.ConsignmentAssignment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "start_number", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, ownerFilter(ref), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.ConsignmentAssignment
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FindActiveCovering returns the owner's active assignment containing n,
// or mongo.ErrNoDocuments.
func (s *Store) FindActiveCovering(ctx context.Context, ref models.OwnerRef, n int64) (models.ConsignmentAssignment, error) {
	filter := ownerFilter(ref)
	filter["is_active"] = true
	filter["start_number"] = bson.M{"$lte": n}
	filter["end_number"] = bson.M{"$gte": n}
	var a models.ConsignmentAssignment
	err := s.c.FindOne(ctx, filter).Decode(&a)
	return a, err
}

// HighestEndNumber returns the largest end_number ever assigned, active or
// not. ok is false when no assignment exists.
func (s *Store) HighestEndNumber(ctx context.Context) (end int64, ok bool, err error) {
	opts := options.FindOne().
		SetSort(bson.D{{Key: "end_number", Value: -1}}).
		SetProjection(bson.M{"end_number": 1})
	var row struct {
		EndNumber int64 `bson:"end_number"`
	}
	err = s.c.FindOne(ctx, bson.M{}, opts).Decode(&row)
	if err == mongo.ErrNoDocuments {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return row.EndNumber, true, nil
}

// Deactivate flips an active assignment to inactive. Returns false when
// the assignment does not exist or is already inactive.
func (s *Store) Deactivate(ctx context.Context, id primitive.ObjectID, by string, at time.Time) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "is_active": true},
		bson.M{"$set": bson.M{
			"is_active":      false,
			"deactivated_at": at,
			"deactivated_by": by,
		}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// ListFilter narrows List. Nil/zero fields are ignored.
type ListFilter struct {
	Owner      *models.OwnerRef
	EntityType models.EntityType
	ActiveOnly bool
}

// List returns one keyset page ordered by start_number.
func (s *Store) List(ctx context.Context, f ListFilter, after *paging.Cursor, limit int) (paging.Page[models.ConsignmentAssignment], error) {
	filter := bson.M{}
	if f.Owner != nil {
		filter = ownerFilter(*f.Owner)
	} else if f.EntityType != "" {
		filter["entity_type"] = f.EntityType
	}
	if f.ActiveOnly {
		filter["is_active"] = true
	}
	if w := paging.KeysetAfter("start_number", after); w != nil {
		filter = bson.M{"$and": []bson.M{filter, w}}
	}

	cur, err := s.c.Find(ctx, filter, paging.FindOptions("start_number", limit))
	if err != nil {
		return paging.Page[models.ConsignmentAssignment]{}, err
	}
	defer cur.Close(ctx)
	var rows []models.ConsignmentAssignment
	if err := cur.All(ctx, &rows); err != nil {
		return paging.Page[models.ConsignmentAssignment]{}, err
	}
	return paging.Build(rows,
		limit,
		func(a models.ConsignmentAssignment) int64 { return a.StartNumber },
		func(a models.ConsignmentAssignment) primitive.ObjectID { return a.ID },
	), nil
}

// DistinctOwners lists every (entity_type, entity_id) that has held a range.
func (s *Store) DistinctOwners(ctx context.Context) ([]models.OwnerRef, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": bson.M{"entity_type": "$entity_type", "entity_id": "$entity_id"}}}},
		{{Key: "$replaceRoot", Value: bson.M{"newRoot": "$_id"}}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.OwnerRef
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
