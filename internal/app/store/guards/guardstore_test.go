package guardstore_test

import (
	"testing"
	"time"

	guardstore "github.com/dalemusser/courierhub/internal/app/store/guards"
	"github.com/dalemusser/courierhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
)

func TestStore_Bump(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := guardstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for i := 0; i < 2; i++ {
		if err := store.Bump(ctx, guardstore.ConsignmentRanges); err != nil {
			t.Fatalf("Bump failed: %v", err)
		}
	}
	var doc struct {
		Version int64 `bson:"version"`
	}
	if err := db.Collection("allocation_guards").FindOne(ctx, bson.M{"_id": guardstore.ConsignmentRanges}).Decode(&doc); err != nil {
		t.Fatalf("FindOne failed: %v", err)
	}
	if doc.Version != 2 {
		t.Errorf("version = %d, want 2", doc.Version)
	}
}

func TestStore_Lease(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := guardstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	name := guardstore.ConsignmentRanges

	ok, err := store.AcquireLease(ctx, name, "h1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire = %v, %v", ok, err)
	}
	// re-entrant for the same holder
	if ok, err := store.AcquireLease(ctx, name, "h1", time.Minute); err != nil || !ok {
		t.Fatalf("re-acquire by holder = %v, %v", ok, err)
	}
	// busy for others
	if ok, err := store.AcquireLease(ctx, name, "h2", time.Minute); err != nil || ok {
		t.Fatalf("acquire by h2 while held = %v, %v; want false", ok, err)
	}

	// release by a non-holder is ignored
	if err := store.ReleaseLease(ctx, name, "h2"); err != nil {
		t.Fatalf("ReleaseLease failed: %v", err)
	}
	if ok, _ := store.AcquireLease(ctx, name, "h2", time.Minute); ok {
		t.Fatal("lease should still be held by h1")
	}

	if err := store.ReleaseLease(ctx, name, "h1"); err != nil {
		t.Fatalf("ReleaseLease failed: %v", err)
	}
	if ok, err := store.AcquireLease(ctx, name, "h2", time.Minute); err != nil || !ok {
		t.Fatalf("acquire after release = %v, %v", ok, err)
	}
}

func TestStore_LeaseExpiryAndReap(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := guardstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if ok, _ := store.AcquireLease(ctx, "invoicing:x", "dead", 10*time.Millisecond); !ok {
		t.Fatal("acquire failed")
	}
	time.Sleep(30 * time.Millisecond)

	// an expired lease can be taken over
	if ok, err := store.AcquireLease(ctx, "invoicing:x", "alive", time.Minute); err != nil || !ok {
		t.Fatalf("takeover = %v, %v", ok, err)
	}

	if ok, _ := store.AcquireLease(ctx, "invoicing:y", "dead", 10*time.Millisecond); !ok {
		t.Fatal("acquire failed")
	}
	time.Sleep(30 * time.Millisecond)

	n, err := store.ReapExpired(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("ReapExpired failed: %v", err)
	}
	if n != 1 {
		t.Errorf("reaped %d leases, want 1 (live lease untouched)", n)
	}
}
