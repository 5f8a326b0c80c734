package allocator_test

import (
	"context"
	"sync"
	"testing"
	"time"

	corporatestore "github.com/dalemusser/courierhub/internal/app/store/corporates"
	officeuserstore "github.com/dalemusser/courierhub/internal/app/store/officeusers"
	"github.com/dalemusser/courierhub/internal/app/system/allocator"
	"github.com/dalemusser/courierhub/internal/app/system/entities"
	"github.com/dalemusser/courierhub/internal/app/system/events"
	"github.com/dalemusser/courierhub/internal/domain/models"
	"github.com/dalemusser/courierhub/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
)

const testMin int64 = 100

// recorder captures published events.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type env struct {
	svc    *allocator.Service
	db     *mongo.Database
	fx     *testutil.Fixtures
	events *recorder
	corp   models.Owner
	clerk  models.Owner
}

// newEnv builds a Service in the given mode over a fresh database seeded
// with one corporate and one office user. Transaction mode is skipped when
// the test server is not a replica set.
func newEnv(t *testing.T, mode string) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	if mode == allocator.ModeTransaction && !testutil.SupportsTransactions(t, db) {
		t.Skip("transactions not supported by test MongoDB")
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx := testutil.NewFixtures(t, db)
	corp := fx.CreateCorporate(ctx, "Acme Freight", "ops@acme.test", "")
	clerk := fx.CreateOfficeUser(ctx, "Dana Clerk", "dana@courier.test", models.RoleStaff, "")

	rec := &recorder{}
	resolver := entities.NewResolver(corporatestore.New(db), officeuserstore.New(db), time.Minute)
	svc := allocator.New(db.Client(), db, resolver,
		events.NewEmitter(rec, testutil.TestLogger(), time.Second),
		allocator.Config{MinNumber: testMin, Mode: mode, LeaseTTL: 5 * time.Second, LeaseWait: 5 * time.Second},
		testutil.TestLogger())

	return &env{svc: svc, db: db, fx: fx, events: rec, corp: corp.Owner(), clerk: clerk.Owner()}
}

// forModes runs fn once per serialization mode.
func forModes(t *testing.T, fn func(t *testing.T, e *env)) {
	for _, mode := range []string{allocator.ModeLease, allocator.ModeTransaction, allocator.ModeAuto} {
		t.Run(mode, func(t *testing.T) {
			fn(t, newEnv(t, mode))
		})
	}
}
