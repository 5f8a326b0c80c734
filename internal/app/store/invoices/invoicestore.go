// internal/app/store/invoices/invoicestore.go
package invoicestore

import (
	"context"
	"time"

	"github.com/dalemusser/courierhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("invoices")}
}

func (s *Store) Create(ctx context.Context, inv models.Invoice) (models.Invoice, error) {
	if inv.ID.IsZero() {
		inv.ID = primitive.NewObjectID()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	if inv.PaymentStatus == "" {
		inv.PaymentStatus = models.PaymentUnpaid
	}
	if _, err := s.c.InsertOne(ctx, inv); err != nil {
		return models.Invoice{}, err
	}
	return inv, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Invoice, error) {
	var inv models.Invoice
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&inv)
	return inv, err
}

// MarkPaid flips an unpaid invoice to paid. Returns false if the invoice
// is missing or already paid.
func (s *Store) MarkPaid(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "payment_status": models.PaymentUnpaid},
		bson.M{"$set": bson.M{"payment_status": models.PaymentPaid, "paid_at": at}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// ListByOwner returns the owner's invoices, newest first.
func (s *Store) ListByOwner(ctx context.Context, ref models.OwnerRef, limit int64) ([]models.Invoice, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cur, err := s.c.Find(ctx, bson.M{"entity_type": ref.EntityType, "entity_id": ref.EntityID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Invoice
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
