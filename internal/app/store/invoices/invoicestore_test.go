package invoicestore_test

import (
	"testing"
	"time"

	counterstore "github.com/dalemusser/courierhub/internal/app/store/counters"
	invoicestore "github.com/dalemusser/courierhub/internal/app/store/invoices"
	"github.com/dalemusser/courierhub/internal/domain/models"
	"github.com/dalemusser/courierhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_CreatePayList(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := invoicestore.New(db)
	counters := counterstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ref := models.RefOf(models.CorporateOwner{CorporateID: primitive.NewObjectID()})

	var ids []primitive.ObjectID
	for i := 0; i < 2; i++ {
		seq, err := counters.Next(ctx, counterstore.InvoiceCounter)
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		inv, err := store.Create(ctx, models.Invoice{
			Number:    counterstore.FormatInvoiceNumber(seq),
			OwnerRef:  ref,
			CreatedBy: "admin",
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if inv.PaymentStatus != models.PaymentUnpaid {
			t.Errorf("PaymentStatus = %q, want unpaid", inv.PaymentStatus)
		}
		ids = append(ids, inv.ID)
	}

	list, err := store.ListByOwner(ctx, ref, 10)
	if err != nil {
		t.Fatalf("ListByOwner failed: %v", err)
	}
	if len(list) != 2 || list[0].Number != "INV-000002" {
		t.Fatalf("expected newest first, got %+v", list)
	}

	ok, err := store.MarkPaid(ctx, ids[0], time.Now().UTC())
	if err != nil || !ok {
		t.Fatalf("MarkPaid = %v, %v", ok, err)
	}
	if ok, _ := store.MarkPaid(ctx, ids[0], time.Now().UTC()); ok {
		t.Error("second MarkPaid should report false")
	}
	got, _ := store.GetByID(ctx, ids[0])
	if got.PaymentStatus != models.PaymentPaid || got.PaidAt == nil {
		t.Errorf("unexpected invoice after payment: %+v", got)
	}

	// unique number
	if _, err := store.Create(ctx, models.Invoice{Number: "INV-000001", OwnerRef: ref}); err == nil {
		t.Error("expected duplicate invoice number to fail")
	}
}

func TestFormatInvoiceNumber(t *testing.T) {
	if got := counterstore.FormatInvoiceNumber(42); got != "INV-000042" {
		t.Errorf("FormatInvoiceNumber(42) = %q", got)
	}
	if got := counterstore.FormatInvoiceNumber(1234567); got != "INV-1234567" {
		t.Errorf("FormatInvoiceNumber(1234567) = %q", got)
	}
}
