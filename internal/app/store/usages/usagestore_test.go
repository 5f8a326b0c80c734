package usagestore_test

import (
	"errors"
	"testing"
	"time"

	usagestore "github.com/dalemusser/courierhub/internal/app/store/usages"
	"github.com/dalemusser/courierhub/internal/domain/models"
	"github.com/dalemusser/courierhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func usage(owner models.Owner, n int64, paymentType string, usedAt time.Time) models.ConsignmentUsage {
	return models.ConsignmentUsage{
		OwnerRef:          models.RefOf(owner),
		ConsignmentNumber: n,
		AssignmentID:      primitive.NewObjectID(),
		BookingReference:  "BK-1",
		UsedAt:            usedAt,
		Status:            models.UsageActive,
		PaymentStatus:     models.PaymentUnpaid,
		PaymentType:       paymentType,
	}
}

func TestStore_Create_DuplicatePerOwner(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := usagestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	corp := models.CorporateOwner{CorporateID: primitive.NewObjectID()}
	now := time.Now().UTC()

	u, err := store.Create(ctx, usage(corp, 500, models.PaymentTypeFreightPrepaid, now))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if u.ID.IsZero() {
		t.Error("expected ID to be set")
	}

	_, err = store.Create(ctx, usage(corp, 500, models.PaymentTypeFreightPrepaid, now))
	if !errors.Is(err, usagestore.ErrDuplicateUsage) {
		t.Fatalf("expected ErrDuplicateUsage, got %v", err)
	}

	other := models.OfficeUserOwner{OfficeUserID: corp.CorporateID}
	if _, err := store.Create(ctx, usage(other, 500, models.PaymentTypeFreightPrepaid, now)); err != nil {
		t.Fatalf("same id under another entity type should insert: %v", err)
	}
}

func TestStore_Counts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := usagestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	corp := models.CorporateOwner{CorporateID: primitive.NewObjectID()}
	now := time.Now().UTC()
	for _, n := range []int64{105, 101, 103, 250} {
		if _, err := store.Create(ctx, usage(corp, n, models.PaymentTypeFreightPrepaid, now)); err != nil {
			t.Fatalf("Create %d failed: %v", n, err)
		}
	}
	c, _ := store.Create(ctx, usage(corp, 102, models.PaymentTypeToPay, now))
	if ok, err := store.Cancel(ctx, c.ID, now); err != nil || !ok {
		t.Fatalf("Cancel = %v, %v", ok, err)
	}
	if ok, _ := store.Cancel(ctx, c.ID, now); ok {
		t.Error("second Cancel should report false")
	}

	ref := models.RefOf(corp)
	if n, _ := store.CountInRange(ctx, ref, 100, 199); n != 4 {
		t.Errorf("CountInRange = %d, want 4", n)
	}
	if n, _ := store.CountInRange(ctx, ref, 102, 102); n != 1 {
		t.Errorf("cancelled number should still count, got %d", n)
	}
	if n, _ := store.CountInRange(ctx, ref, 104, 104); n != 0 {
		t.Errorf("CountInRange(104) = %d, want 0", n)
	}
	if n, _ := store.CountByOwner(ctx, ref); n != 5 {
		t.Errorf("CountByOwner = %d, want 5", n)
	}

	outside, err := store.FindOutside(ctx, ref, [][2]int64{{100, 199}}, 10)
	if err != nil || len(outside) != 1 || outside[0].ConsignmentNumber != 250 {
		t.Errorf("FindOutside = %v, %v", outside, err)
	}

	stranger := models.RefOf(models.CorporateOwner{CorporateID: primitive.NewObjectID()})
	if n, _ := store.CountByOwners(ctx, []models.OwnerRef{ref, stranger}); n != 5 {
		t.Errorf("CountByOwners = %d, want 5", n)
	}
	if n, _ := store.CountByOwners(ctx, nil); n != 0 {
		t.Errorf("CountByOwners(nil) = %d, want 0", n)
	}
}

func TestStore_UnpaidInvoicedPaid(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := usagestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	corp := models.CorporateOwner{CorporateID: primitive.NewObjectID()}
	ref := models.RefOf(corp)
	day := func(d int) time.Time { return time.Date(2026, 3, d, 10, 0, 0, 0, time.UTC) }

	a, _ := store.Create(ctx, usage(corp, 3, models.PaymentTypeFreightPrepaid, day(3)))
	b, _ := store.Create(ctx, usage(corp, 1, models.PaymentTypeFreightPrepaid, day(1)))
	_, _ = store.Create(ctx, usage(corp, 2, models.PaymentTypeToPay, day(2)))
	cx, _ := store.Create(ctx, usage(corp, 4, models.PaymentTypeFreightPrepaid, day(4)))
	_, _ = store.Cancel(ctx, cx.ID, day(5))

	unpaid, err := store.FindUnpaid(ctx, ref, nil, nil)
	if err != nil {
		t.Fatalf("FindUnpaid failed: %v", err)
	}
	if len(unpaid) != 2 || unpaid[0].ID != b.ID || unpaid[1].ID != a.ID {
		t.Fatalf("FindUnpaid = %+v; want [b, a] (FP only, oldest first)", unpaid)
	}

	from, to := day(2), day(3)
	windowed, _ := store.FindUnpaid(ctx, ref, &from, &to)
	if len(windowed) != 1 || windowed[0].ID != a.ID {
		t.Errorf("windowed FindUnpaid = %d rows, want [a]", len(windowed))
	}

	invID := primitive.NewObjectID()
	n, err := store.MarkInvoiced(ctx, []primitive.ObjectID{a.ID, b.ID, cx.ID}, invID, day(6))
	if err != nil || n != 2 {
		t.Fatalf("MarkInvoiced = %d, %v; want 2 (cancelled skipped)", n, err)
	}
	if again, _ := store.MarkInvoiced(ctx, []primitive.ObjectID{a.ID}, primitive.NewObjectID(), day(7)); again != 0 {
		t.Errorf("re-invoicing modified %d rows, want 0", again)
	}
	if rest, _ := store.FindUnpaid(ctx, ref, nil, nil); len(rest) != 0 {
		t.Errorf("expected no unpaid usages after invoicing, got %d", len(rest))
	}

	paid, err := store.MarkPaidByInvoice(ctx, invID)
	if err != nil || paid != 2 {
		t.Errorf("MarkPaidByInvoice = %d, %v; want 2", paid, err)
	}
	got, _ := store.GetByID(ctx, a.ID)
	if got.Status != models.UsageInvoiced || got.PaymentStatus != models.PaymentPaid || got.InvoiceID == nil || *got.InvoiceID != invID {
		t.Errorf("unexpected usage after payment: %+v", got)
	}
}

func TestStore_FindAndReleaseInvoice(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := usagestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	corp := models.CorporateOwner{CorporateID: primitive.NewObjectID()}
	ref := models.RefOf(corp)
	day := func(d int) time.Time { return time.Date(2026, 4, d, 9, 0, 0, 0, time.UTC) }

	late, _ := store.Create(ctx, usage(corp, 20, models.PaymentTypeFreightPrepaid, day(2)))
	early, _ := store.Create(ctx, usage(corp, 21, models.PaymentTypeFreightPrepaid, day(1)))
	other, _ := store.Create(ctx, usage(corp, 22, models.PaymentTypeFreightPrepaid, day(3)))

	invID := primitive.NewObjectID()
	if n, err := store.MarkInvoiced(ctx, []primitive.ObjectID{late.ID, early.ID}, invID, day(4)); err != nil || n != 2 {
		t.Fatalf("MarkInvoiced = %d, %v", n, err)
	}
	paidInv := primitive.NewObjectID()
	if _, err := store.MarkInvoiced(ctx, []primitive.ObjectID{other.ID}, paidInv, day(4)); err != nil {
		t.Fatalf("MarkInvoiced: %v", err)
	}
	if _, err := store.MarkPaidByInvoice(ctx, paidInv); err != nil {
		t.Fatalf("MarkPaidByInvoice: %v", err)
	}

	billed, err := store.FindByInvoice(ctx, invID)
	if err != nil {
		t.Fatalf("FindByInvoice failed: %v", err)
	}
	if len(billed) != 2 || billed[0].ID != early.ID || billed[1].ID != late.ID {
		t.Fatalf("FindByInvoice = %+v; want [early, late]", billed)
	}

	n, err := store.ReleaseInvoice(ctx, invID)
	if err != nil || n != 2 {
		t.Fatalf("ReleaseInvoice = %d, %v; want 2", n, err)
	}
	got, _ := store.GetByID(ctx, late.ID)
	if got.Status != models.UsageActive || got.InvoiceID != nil || got.InvoicedAt != nil {
		t.Errorf("released usage still invoiced: %+v", got)
	}
	if unpaid, _ := store.FindUnpaid(ctx, ref, nil, nil); len(unpaid) != 2 {
		t.Errorf("released usages should be billable again, got %d", len(unpaid))
	}

	// paid usages stay on their invoice
	if n, _ := store.ReleaseInvoice(ctx, paidInv); n != 0 {
		t.Errorf("ReleaseInvoice touched %d paid usages", n)
	}
}

func TestStore_ListByOwner(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := usagestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	corp := models.CorporateOwner{CorporateID: primitive.NewObjectID()}
	now := time.Now().UTC()
	for n := int64(10); n < 15; n++ {
		if _, err := store.Create(ctx, usage(corp, n, models.PaymentTypeFreightPrepaid, now)); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	page, err := store.ListByOwner(ctx, models.RefOf(corp), models.UsageActive, nil, 3)
	if err != nil {
		t.Fatalf("ListByOwner failed: %v", err)
	}
	if len(page.Items) != 3 || page.Items[0].ConsignmentNumber != 10 || page.NextCursor == "" {
		t.Fatalf("unexpected first page: %d items, cursor %q", len(page.Items), page.NextCursor)
	}

	none, _ := store.ListByOwner(ctx, models.RefOf(corp), models.UsageCancelled, nil, 3)
	if len(none.Items) != 0 || none.Items == nil {
		t.Errorf("expected empty non-nil items, got %v", none.Items)
	}
}
