// internal/app/system/allocator/invoicing.go
package allocator

import (
	"context"
	"time"

	counterstore "github.com/dalemusser/courierhub/internal/app/store/counters"
	"github.com/dalemusser/courierhub/internal/app/system/apperr"
	"github.com/dalemusser/courierhub/internal/app/system/events"
	"github.com/dalemusser/courierhub/internal/app/system/money"
	"github.com/dalemusser/courierhub/internal/app/system/timeouts"
	"github.com/dalemusser/courierhub/internal/domain/models"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// FindUnpaidForInvoicing returns the owner's active, unpaid,
// freight-prepaid usages within the optional used_at window, oldest first.
func (s *Service) FindUnpaidForInvoicing(ctx context.Context, owner models.Owner, from, to *time.Time) ([]models.ConsignmentUsage, error) {
	if from != nil && to != nil && from.After(*to) {
		return nil, apperr.NewError("from after to").
			WithHint("'from' must not be after 'to'").
			Mark(apperr.ErrValidation)
	}
	rows, err := s.usages.FindUnpaid(ctx, models.RefOf(owner), from, to)
	if err != nil {
		return nil, apperr.Database(err, "find unpaid usages")
	}
	if rows == nil {
		rows = []models.ConsignmentUsage{}
	}
	return rows, nil
}

// MarkInvoiced moves the given usages from active to invoiced. Usages no
// longer active are skipped. Returns how many were updated.
func (s *Service) MarkInvoiced(ctx context.Context, usageIDs []primitive.ObjectID, invoiceID primitive.ObjectID) (int64, error) {
	n, err := s.usages.MarkInvoiced(ctx, lo.Uniq(usageIDs), invoiceID, s.now())
	if err != nil {
		return 0, apperr.Database(err, "mark usages invoiced")
	}
	return n, nil
}

// InvoiceInput requests an invoice for an owner's unpaid usages.
type InvoiceInput struct {
	Owner   models.Owner
	From    *time.Time
	To      *time.Time
	ActorID string
}

func invoiceGuard(owner models.Owner) string {
	return "invoicing:" + owner.String()
}

func errNothingToInvoice() error {
	return apperr.NewError("nothing to invoice").
		WithHint("No unpaid consignments found for this period").
		Mark(apperr.ErrValidation)
}

func newInvoice(id primitive.ObjectID, number string, in InvoiceInput, billed []models.ConsignmentUsage, at time.Time) models.Invoice {
	lines := lo.Map(billed, func(u models.ConsignmentUsage, _ int) models.InvoiceLine {
		return models.InvoiceLine{
			UsageID:           u.ID,
			ConsignmentNumber: u.ConsignmentNumber,
			BookingReference:  u.BookingReference,
			UsedAt:            u.UsedAt,
			FreightCharges:    u.FreightCharges,
			TotalAmount:       u.TotalAmount,
		}
	})
	freight := lo.Map(billed, func(u models.ConsignmentUsage, _ int) primitive.Decimal128 { return u.FreightCharges })
	totals := lo.Map(billed, func(u models.ConsignmentUsage, _ int) primitive.Decimal128 { return u.TotalAmount })

	return models.Invoice{
		ID:            id,
		Number:        number,
		OwnerRef:      models.RefOf(in.Owner),
		PeriodFrom:    in.From,
		PeriodTo:      in.To,
		UsageIDs:      lo.Map(billed, func(u models.ConsignmentUsage, _ int) primitive.ObjectID { return u.ID }),
		Lines:         lines,
		Subtotal:      money.ToDecimal128(money.Sum(freight...)),
		Total:         money.ToDecimal128(money.Sum(totals...)),
		PaymentStatus: models.PaymentUnpaid,
		CreatedBy:     in.ActorID,
		CreatedAt:     at,
	}
}

// releaseInvoice puts usages moved onto an invoice that was never stored
// back to active. Inside a transaction the abort does this already.
func (s *Service) releaseInvoice(ctx context.Context, invoiceID primitive.ObjectID) {
	if mongo.SessionFromContext(ctx) != nil {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Batch())
	defer cancel()
	if _, err := s.usages.ReleaseInvoice(rctx, invoiceID); err != nil {
		// The usages stay invoiced to a missing invoice: not billed twice,
		// but not billed either until an admin releases them.
		s.logger.Error("release usages of unsaved invoice",
			zap.Error(err), zap.String("invoice_id", invoiceID.Hex()))
	}
}

// GenerateInvoice bills every unpaid freight-prepaid usage of the owner in
// the window. Runs serialized per owner so a usage lands on one invoice.
func (s *Service) GenerateInvoice(ctx context.Context, in InvoiceInput) (models.Invoice, error) {
	if in.Owner == nil {
		return models.Invoice{}, apperr.NewError("missing owner").
			WithHint("Entity is required").
			Mark(apperr.ErrValidation)
	}
	if err := s.requireOwner(ctx, in.Owner); err != nil {
		return models.Invoice{}, err
	}
	if in.From != nil && in.To != nil && in.From.After(*in.To) {
		return models.Invoice{}, apperr.NewError("from after to").
			WithHint("'from' must not be after 'to'").
			Mark(apperr.ErrValidation)
	}

	var created models.Invoice
	err := s.serialize(ctx, invoiceGuard(in.Owner), func(ctx context.Context) error {
		unpaid, err := s.usages.FindUnpaid(ctx, models.RefOf(in.Owner), in.From, in.To)
		if err != nil {
			return err
		}
		if len(unpaid) == 0 {
			return errNothingToInvoice()
		}

		seq, err := s.counters.Next(ctx, counterstore.InvoiceCounter)
		if err != nil {
			return err
		}

		// Usages move first, so a usage carrying this id is never offered to
		// a later run. The invoice is built from what was actually moved.
		invoiceID := primitive.NewObjectID()
		at := s.now()
		ids := lo.Map(unpaid, func(u models.ConsignmentUsage, _ int) primitive.ObjectID { return u.ID })
		if _, err := s.usages.MarkInvoiced(ctx, ids, invoiceID, at); err != nil {
			s.releaseInvoice(ctx, invoiceID)
			return err
		}
		billed, err := s.usages.FindByInvoice(ctx, invoiceID)
		if err != nil {
			s.releaseInvoice(ctx, invoiceID)
			return err
		}
		if len(billed) == 0 {
			return errNothingToInvoice()
		}

		inv := newInvoice(invoiceID, counterstore.FormatInvoiceNumber(seq), in, billed, at)
		if created, err = s.invoices.Create(ctx, inv); err != nil {
			s.releaseInvoice(ctx, invoiceID)
			return err
		}
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) != nil {
			return models.Invoice{}, err
		}
		return models.Invoice{}, apperr.Database(err, "generate invoice")
	}

	s.emit(ctx, events.New(events.InvoiceCreated, in.Owner, in.ActorID, map[string]any{
		"invoiceId": created.ID.Hex(),
		"number":    created.Number,
		"lines":     len(created.Lines),
		"total":     money.FromDecimal128(created.Total).StringFixed(2),
	}))
	return created, nil
}

// GetInvoice loads one invoice.
func (s *Service) GetInvoice(ctx context.Context, id primitive.ObjectID) (models.Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, id)
	if err == mongo.ErrNoDocuments {
		return models.Invoice{}, apperr.NewError("invoice not found").
			WithHint("Invoice not found").
			Mark(apperr.ErrNotFound)
	}
	if err != nil {
		return models.Invoice{}, apperr.Database(err, "load invoice")
	}
	return inv, nil
}

// MarkInvoicePaid confirms payment of an invoice and of every usage on it.
// Usages are flipped before the invoice, so a failed call leaves the
// invoice unpaid and can simply be repeated.
func (s *Service) MarkInvoicePaid(ctx context.Context, id primitive.ObjectID, actorID string) (models.Invoice, error) {
	inv, err := s.GetInvoice(ctx, id)
	if err != nil {
		return models.Invoice{}, err
	}
	owner, err := inv.OwnerRef.Owner()
	if err != nil {
		return models.Invoice{}, apperr.WithError(err).
			WithHint("Invoice has an unknown owner").
			Mark(apperr.ErrSystem)
	}

	at := s.now()
	err = s.serialize(ctx, invoiceGuard(owner), func(ctx context.Context) error {
		if _, err := s.usages.MarkPaidByInvoice(ctx, id); err != nil {
			return err
		}
		ok, err := s.invoices.MarkPaid(ctx, id, at)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NewError("invoice already paid").
				WithHint("Invoice is already paid").
				Mark(apperr.ErrConflict)
		}
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) != nil {
			return models.Invoice{}, err
		}
		return models.Invoice{}, apperr.Database(err, "mark invoice paid")
	}
	inv.PaymentStatus = models.PaymentPaid
	inv.PaidAt = &at

	s.emit(ctx, events.New(events.InvoicePaid, owner, actorID, map[string]any{
		"invoiceId": inv.ID.Hex(),
		"number":    inv.Number,
	}))
	return inv, nil
}
