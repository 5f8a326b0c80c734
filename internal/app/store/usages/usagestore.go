// internal/app/store/usages/usagestore.go
package usagestore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/courierhub/internal/app/system/paging"
	"github.com/dalemusser/courierhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrDuplicateUsage is returned by Create when the owner already recorded
// the number. The unique (entity_type, entity_id, consignment_number)
// index is the only guard; there is no read-before-insert.
var ErrDuplicateUsage = errors.New("consignment number already used by this owner")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("consignment_usages")}
}

func ownerFilter(ref models.OwnerRef) bson.M {
	return bson.M{"entity_type": ref.EntityType, "entity_id": ref.EntityID}
}

func (s *Store) Create(ctx context.Context, u models.ConsignmentUsage) (models.ConsignmentUsage, error) {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if u.UsedAt.IsZero() {
		u.UsedAt = time.Now().UTC()
	}
	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.ConsignmentUsage{}, ErrDuplicateUsage
		}
		return models.ConsignmentUsage{}, err
	}
	return u, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.ConsignmentUsage, error) {
	var u models.ConsignmentUsage
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	return u, err
}

// CountInRange counts the owner's usages within [start, end]. Cancelled
// usages are included: a cancelled number is never handed out again. The
// unique owner/number index makes this a count of distinct numbers.
func (s *Store) CountInRange(ctx context.Context, ref models.OwnerRef, start, end int64) (int64, error) {
	filter := ownerFilter(ref)
	filter["consignment_number"] = bson.M{"$gte": start, "$lte": end}
	return s.c.CountDocuments(ctx, filter)
}

// CountByOwner counts every usage of the owner regardless of range.
func (s *Store) CountByOwner(ctx context.Context, ref models.OwnerRef) (int64, error) {
	return s.c.CountDocuments(ctx, ownerFilter(ref))
}

// FindUnpaid returns active, unpaid, freight-prepaid usages of the owner,
// optionally bounded by used_at (inclusive), oldest first.
func (s *Store) FindUnpaid(ctx context.Context, ref models.OwnerRef, from, to *time.Time) ([]models.ConsignmentUsage, error) {
	filter := ownerFilter(ref)
	filter["status"] = models.UsageActive
	filter["payment_status"] = models.PaymentUnpaid
	filter["payment_type"] = models.PaymentTypeFreightPrepaid
	if from != nil || to != nil {
		window := bson.M{}
		if from != nil {
			window["$gte"] = *from
		}
		if to != nil {
			window["$lte"] = *to
		}
		filter["used_at"] = window
	}
	opts := options.Find().SetSort(bson.D{
		{Key: "used_at", Value: 1},
		{Key: "consignment_number", Value: 1},
	})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.ConsignmentUsage
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkInvoiced moves still-active usages to invoiced. Ids already
// invoiced or cancelled are skipped. Returns the number modified.
func (s *Store) MarkInvoiced(ctx context.Context, ids []primitive.ObjectID, invoiceID primitive.ObjectID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.c.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "status": models.UsageActive},
		bson.M{"$set": bson.M{
			"status":      models.UsageInvoiced,
			"invoice_id":  invoiceID,
			"invoiced_at": at,
		}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// ReleaseInvoice returns usages still invoiced to invoiceID to active and
// clears their invoice reference. Used to undo an invoice that was never
// stored. Paid usages are left alone.
func (s *Store) ReleaseInvoice(ctx context.Context, invoiceID primitive.ObjectID) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"invoice_id": invoiceID, "status": models.UsageInvoiced, "payment_status": models.PaymentUnpaid},
		bson.M{
			"$set":   bson.M{"status": models.UsageActive},
			"$unset": bson.M{"invoice_id": "", "invoiced_at": ""},
		},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// FindByInvoice returns the usages billed on an invoice, oldest first.
func (s *Store) FindByInvoice(ctx context.Context, invoiceID primitive.ObjectID) ([]models.ConsignmentUsage, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "used_at", Value: 1},
		{Key: "consignment_number", Value: 1},
	})
	cur, err := s.c.Find(ctx, bson.M{"invoice_id": invoiceID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.ConsignmentUsage
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkPaidByInvoice flips every usage billed on the invoice to paid.
func (s *Store) MarkPaidByInvoice(ctx context.Context, invoiceID primitive.ObjectID) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"invoice_id": invoiceID, "payment_status": models.PaymentUnpaid},
		bson.M{"$set": bson.M{"payment_status": models.PaymentPaid}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Cancel moves an active usage to cancelled. Returns false when the usage
// is missing or no longer active.
func (s *Store) Cancel(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.UsageActive},
		bson.M{"$set": bson.M{"status": models.UsageCancelled, "cancelled_at": at}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// ListByOwner returns one keyset page of the owner's usages ordered by
// consignment number. status filters when non-empty.
func (s *Store) ListByOwner(ctx context.Context, ref models.OwnerRef, status string, after *paging.Cursor, limit int) (paging.Page[models.ConsignmentUsage], error) {
	filter := ownerFilter(ref)
	if status != "" {
		filter["status"] = status
	}
	if w := paging.KeysetAfter("consignment_number", after); w != nil {
		filter = bson.M{"$and": []bson.M{filter, w}}
	}
	cur, err := s.c.Find(ctx, filter, paging.FindOptions("consignment_number", limit))
	if err != nil {
		return paging.Page[models.ConsignmentUsage]{}, err
	}
	defer cur.Close(ctx)
	var rows []models.ConsignmentUsage
	if err := cur.All(ctx, &rows); err != nil {
		return paging.Page[models.ConsignmentUsage]{}, err
	}
	return paging.Build(rows,
		limit,
		func(u models.ConsignmentUsage) int64 { return u.ConsignmentNumber },
		func(u models.ConsignmentUsage) primitive.ObjectID { return u.ID },
	), nil
}

// DistinctOwners lists every owner with at least one usage.
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

// CountByOwners counts usages held by each of the given owners.
func (s *Store) CountByOwners(ctx context.Context, refs []models.OwnerRef) (int64, error) {
	if len(refs) == 0 {
		return 0, nil
	}
	or := make([]bson.M, 0, len(refs))
	for _, r := range refs {
		or = append(or, ownerFilter(r))
	}
	return s.c.CountDocuments(ctx, bson.M{"$or": or})
}

// FindOutside returns the owner's usages whose number lies in none of the
// given ranges. ranges holds [start, end] pairs.
func (s *Store) FindOutside(ctx context.Context, ref models.OwnerRef, ranges [][2]int64, limit int64) ([]models.ConsignmentUsage, error) {
	filter := ownerFilter(ref)
	if len(ranges) > 0 {
		nor := make([]bson.M, 0, len(ranges))
		for _, r := range ranges {
			nor = append(nor, bson.M{"consignment_number": bson.M{"$gte": r[0], "$lte": r[1]}})
		}
		filter["$nor"] = nor
	}
	opts := options.Find().SetSort(bson.D{{Key: "consignment_number", Value: 1}}).SetLimit(limit)
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.ConsignmentUsage
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
