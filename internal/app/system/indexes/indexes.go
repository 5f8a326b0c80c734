// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	auditstore "github.com/dalemusser/courierhub/internal/app/store/audit"
	"github.com/dalemusser/courierhub/internal/app/store/oauthstate"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.

The unique index on consignment_usages is load-bearing: it is what turns a
second recording of the same number into a duplicate-key error.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	steps := []struct {
		name string
		fn   func(context.Context, *mongo.Database) error
	}{
		{"corporates", ensureCorporates},
		{"office_users", ensureOfficeUsers},
		{"consignment_assignments", ensureAssignments},
		{"consignment_usages", ensureUsages},
		{"invoices", ensureInvoices},
		{"allocation_guards", ensureAllocationGuards},
		{"oauth_states", func(ctx context.Context, db *mongo.Database) error {
			return oauthstate.New(db).EnsureIndexes(ctx)
		}},
		{"audit_events", func(ctx context.Context, db *mongo.Database) error {
			return auditstore.New(db).EnsureIndexes(ctx)
		}},
	}
	for _, s := range steps {
		if err := s.fn(ctx, db); err != nil {
			problems = append(problems, s.name+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func sameBoolPtr(a, b *bool) bool {
	av := false
	bv := false
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	return av == bv
}

// Best-effort duplicate-detector (works cross-vendors)
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

func listExisting(ctx context.Context, coll *mongo.Collection) (map[string]existingIndex, error) {
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	existing := map[string]existingIndex{} // sig -> index
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		existing[keySig(idx.Key)] = idx
	}
	return existing, cur.Err()
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	existing, err := listExisting(ctx, coll)
	if err != nil {
		// Collection may not exist yet; treat as empty.
		existing = map[string]existingIndex{}
	}

	var errs []string
	for _, m := range models {
		var desiredName string
		var desiredUnique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				desiredName = *m.Options.Name
			}
			desiredUnique = m.Options.Unique
		}
		desiredSig := keySig(m.Keys.(bson.D))
		start := time.Now()

		if ex, ok := existing[desiredSig]; ok {
			if sameBoolPtr(desiredUnique, ex.Unique) && (desiredName == "" || ex.Name == desiredName) {
				zap.L().Debug("reusing existing index",
					zap.String("collection", coll.Name()),
					zap.String("name", ex.Name),
					zap.String("keys", desiredSig))
				continue
			}

			// Name or uniqueness differs: drop and recreate.
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), desiredName, err))
				continue
			}
			zap.L().Info("dropped index for recreation",
				zap.String("collection", coll.Name()),
				zap.String("from", ex.Name),
				zap.String("to", desiredName))
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if isDuplicateKeyErr(err) && desiredUnique != nil && *desiredUnique {
				errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index on [%s] (duplicates present)",
					coll.Name(), desiredName, desiredSig))
			} else {
				errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), desiredName, err))
			}
			continue
		}
		zap.L().Info("index created",
			zap.String("collection", coll.Name()),
			zap.String("name", desiredName),
			zap.String("keys", desiredSig),
			zap.Bool("unique", desiredUnique != nil && *desiredUnique),
			zap.String("took", time.Since(start).String()))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collections                                                                */
/* -------------------------------------------------------------------------- */

func ensureCorporates(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("corporates"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "code_ci", Value: 1}},
			Options: options.Index().SetName("uniq_corporates_code_ci").SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "email_ci", Value: 1}},
			Options: options.Index().SetName("uniq_corporates_email_ci").SetUnique(true).
				SetPartialFilterExpression(bson.M{"email_ci": bson.M{"$type": "string", "$gt": ""}}),
		},
		{
			Keys:    bson.D{{Key: "company_name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_corporates_name_ci_id"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_corporates_status"),
		},
	})
}

func ensureOfficeUsers(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("office_users"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email_ci", Value: 1}},
			Options: options.Index().SetName("uniq_office_users_email_ci").SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "google_id", Value: 1}},
			Options: options.Index().SetName("uniq_office_users_google_id").SetUnique(true).
				SetPartialFilterExpression(bson.M{"google_id": bson.M{"$type": "string", "$gt": ""}}),
		},
		{
			Keys:    bson.D{{Key: "role", Value: 1}, {Key: "status", Value: 1}, {Key: "full_name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_office_users_role_status_name_id"),
		},
	})
}

func ensureAssignments(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("consignment_assignments"), []mongo.IndexModel{
		// overlap scan
		{
			Keys:    bson.D{{Key: "is_active", Value: 1}, {Key: "start_number", Value: 1}, {Key: "end_number", Value: 1}},
			Options: options.Index().SetName("idx_assignments_active_start_end"),
		},
		// per-owner listings
		{
			Keys: bson.D{
				{Key: "entity_type", Value: 1},
				{Key: "entity_id", Value: 1},
				{Key: "is_active", Value: 1},
				{Key: "start_number", Value: 1},
			},
			Options: options.Index().SetName("idx_assignments_owner_active_start"),
		},
		// highest end for suggestions
		{
			Keys:    bson.D{{Key: "end_number", Value: -1}},
			Options: options.Index().SetName("idx_assignments_end_desc"),
		},
		// keyset paging
		{
			Keys:    bson.D{{Key: "start_number", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_assignments_start_id"),
		},
	})
}

func ensureUsages(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("consignment_usages"), []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "entity_type", Value: 1},
				{Key: "entity_id", Value: 1},
				{Key: "consignment_number", Value: 1},
			},
			Options: options.Index().SetName("uniq_usage_owner_number").SetUnique(true),
		},
		// unpaid FP scan for invoicing
		{
			Keys: bson.D{
				{Key: "entity_type", Value: 1},
				{Key: "entity_id", Value: 1},
				{Key: "status", Value: 1},
				{Key: "payment_status", Value: 1},
				{Key: "payment_type", Value: 1},
				{Key: "used_at", Value: 1},
			},
			Options: options.Index().SetName("idx_usage_owner_unpaid_used"),
		},
		{
			Keys:    bson.D{{Key: "invoice_id", Value: 1}},
			Options: options.Index().SetName("idx_usage_invoice"),
		},
		{
			Keys:    bson.D{{Key: "assignment_id", Value: 1}},
			Options: options.Index().SetName("idx_usage_assignment"),
		},
	})
}

func ensureInvoices(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("invoices"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "number", Value: 1}},
			Options: options.Index().SetName("uniq_invoices_number").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "entity_type", Value: 1}, {Key: "entity_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_invoices_owner_created"),
		},
	})
}

func ensureAllocationGuards(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("allocation_guards"), []mongo.IndexModel{
		// reaper scan
		{
			Keys:    bson.D{{Key: "lease_until", Value: 1}},
			Options: options.Index().SetName("idx_guards_lease_until"),
		},
	})
}
