// internal/app/store/guards/guardstore.go
package guardstore

import (
	"context"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConsignmentRanges names the guard serializing range assignment.
const ConsignmentRanges = "consignment_ranges"

// Store holds allocation_guards documents. A guard is either bumped inside
// a transaction (write-conflict serialization) or held as a lease when
// transactions are unavailable.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("allocation_guards")}
}

// Bump increments the guard's version. Called first inside a transaction
// so that concurrent transactions touching the same guard conflict.
func (s *Store) Bump(ctx context.Context, name string) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": name},
		bson.M{
			"$inc": bson.M{"version": int64(1)},
			"$set": bson.M{"touched_at": time.Now().UTC()},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func leaseID(name string) string { return name + ".lease" }

// AcquireLease takes the named lease for holder until now+ttl. It succeeds
// when the lease is free, expired, or already held by holder. Returns
// false without error when another holder owns a live lease.
func (s *Store) AcquireLease(ctx context.Context, name, holder string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"_id": leaseID(name),
		"$or": []bson.M{
			{"holder": ""},
			{"holder": holder},
			{"lease_until": bson.M{"$lt": now}},
		},
	}
	update := bson.M{"$set": bson.M{
		"holder":      holder,
		"lease_until": now.Add(ttl),
		"acquired_at": now,
	}}
	err := s.c.FindOneAndUpdate(ctx, filter, update, options.FindOneAndUpdate().SetUpsert(true)).Err()
	switch {
	case err == nil, err == mongo.ErrNoDocuments:
		// ErrNoDocuments: the upsert inserted a fresh lease.
		return true, nil
	case wafflemongo.IsDup(err):
		// The lease document exists and the filter did not match it.
		return false, nil
	default:
		return false, err
	}
}

// ReleaseLease frees the lease if holder still owns it.
func (s *Store) ReleaseLease(ctx context.Context, name, holder string) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": leaseID(name), "holder": holder},
		bson.M{"$set": bson.M{"holder": "", "lease_until": time.Time{}}},
	)
	return err
}

// ReapExpired clears leases whose holder never released them. Returns the
// number cleared.
func (s *Store) ReapExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"holder": bson.M{"$ne": ""}, "lease_until": bson.M{"$lt": now}},
		bson.M{"$set": bson.M{"holder": "", "lease_until": time.Time{}}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
