// internal/app/store/oauthstate/store.go
package oauthstate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Grant is what a pending Google sign-in needs back on the callback.
type Grant struct {
	ReturnURL string // local path to land on after sign-in
	Verifier  string // PKCE code verifier sent with the token exchange
}

// pending is the stored form. The state value itself never reaches the
// database, only its SHA-256.
type pending struct {
	Key       string    `bson:"_id"`
	ReturnURL string    `bson:"return_url,omitempty"`
	Verifier  string    `bson:"verifier"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}

// Store keeps in-flight OAuth sign-ins in the oauth_states collection.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("oauth_states")}
}

func keyOf(state string) string {
	sum := sha256.Sum256([]byte(state))
	return hex.EncodeToString(sum[:])
}

// EnsureIndexes adds the TTL index; lookups go through _id.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0).SetName("idx_oauth_states_expires"),
	})
	return err
}

// Save records a grant for state until ttl elapses. Reusing a state value
// fails with a duplicate-key error.
func (s *Store) Save(ctx context.Context, state string, g Grant, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.c.InsertOne(ctx, pending{
		Key:       keyOf(state),
		ReturnURL: g.ReturnURL,
		Verifier:  g.Verifier,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	})
	return err
}

// Take consumes the grant for state. ok is false when the state is unknown,
// already used, or expired.
func (s *Store) Take(ctx context.Context, state string) (g Grant, ok bool, err error) {
	var p pending
	err = s.c.FindOneAndDelete(ctx, bson.M{
		"_id":        keyOf(state),
		"expires_at": bson.M{"$gt": time.Now().UTC()},
	}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Grant{}, false, nil
	}
	if err != nil {
		return Grant{}, false, err
	}
	return Grant{ReturnURL: p.ReturnURL, Verifier: p.Verifier}, true, nil
}

// CleanupExpired deletes grants that expired before now. The TTL monitor
// runs about once a minute; the scheduler calls this as a backstop.
func (s *Store) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": now}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
