// internal/app/system/allocator/usage.go
package allocator

import (
	"context"
	"errors"

	usagestore "github.com/dalemusser/courierhub/internal/app/store/usages"
	"github.com/dalemusser/courierhub/internal/app/system/apperr"
	"github.com/dalemusser/courierhub/internal/app/system/events"
	"github.com/dalemusser/courierhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/courierhub/internal/app/system/money"
	"github.com/dalemusser/courierhub/internal/domain/consignment"
	"github.com/dalemusser/courierhub/internal/domain/models"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func noAvailableErr(owner models.Owner) error {
	return apperr.NewError("no consignment numbers available for " + owner.String()).
		Mark(apperr.ErrNoAvailableNumbers)
}

// NextConsignmentNumber returns the lowest unused number in the owner's
// active ranges, scanning ranges by ascending start. It reserves nothing:
// two callers may see the same number, and RecordUsage decides.
func (s *Service) NextConsignmentNumber(ctx context.Context, owner models.Owner) (int64, error) {
	ref := models.RefOf(owner)
	ranges, err := s.assignments.ListActiveByOwner(ctx, ref)
	if err != nil {
		return 0, apperr.Database(err, "list active assignments")
	}
	countUsed := func(r consignment.Range) (int64, error) {
		return s.usages.CountInRange(ctx, ref, r.Start, r.End)
	}
	for _, a := range ranges {
		n, ok, err := consignment.FirstFree(consignment.Range{Start: a.StartNumber, End: a.EndNumber}, countUsed)
		if err != nil {
			return 0, apperr.Database(err, "count used numbers")
		}
		if ok {
			return n, nil
		}
	}
	return 0, noAvailableErr(owner)
}

// UsageInput records one booking against a consignment number.
type UsageInput struct {
	Owner             models.Owner
	ConsignmentNumber int64
	BookingReference  string
	BookingData       map[string]any
	PaymentType       string // FP (default) or TP
	FreightCharges    decimal.Decimal
	TotalAmount       decimal.Decimal
	RecordedBy        string
}

// RecordUsage marks a number as consumed by a booking.
//
// Errors: ErrOutOfRange when no active assignment of the owner covers the
// number, ErrDuplicateUsage when the owner already recorded it.
func (s *Service) RecordUsage(ctx context.Context, in UsageInput) (models.ConsignmentUsage, error) {
	if in.Owner == nil {
		return models.ConsignmentUsage{}, apperr.NewError("missing owner").
			WithHint("Entity is required").
			Mark(apperr.ErrValidation)
	}
	ref := models.RefOf(in.Owner)

	paymentType := lo.Ternary(in.PaymentType == "", models.PaymentTypeFreightPrepaid, in.PaymentType)
	if paymentType != models.PaymentTypeFreightPrepaid && paymentType != models.PaymentTypeToPay {
		return models.ConsignmentUsage{}, apperr.NewError("invalid payment type").
			WithHintf("Payment type must be %s or %s", models.PaymentTypeFreightPrepaid, models.PaymentTypeToPay).
			Mark(apperr.ErrValidation)
	}
	if in.FreightCharges.IsNegative() || in.TotalAmount.IsNegative() {
		return models.ConsignmentUsage{}, apperr.NewError("negative amount").
			WithHint("Amounts must not be negative").
			Mark(apperr.ErrValidation)
	}

	a, err := s.assignments.FindActiveCovering(ctx, ref, in.ConsignmentNumber)
	if err == mongo.ErrNoDocuments {
		return models.ConsignmentUsage{}, apperr.NewError("number outside active ranges").
			WithHintf("Consignment number %d is not within any active range for this %s",
				in.ConsignmentNumber, ownerNoun(in.Owner)).
			Mark(apperr.ErrOutOfRange)
	}
	if err != nil {
		return models.ConsignmentUsage{}, apperr.Database(err, "find covering assignment")
	}

	u := models.ConsignmentUsage{
		OwnerRef:          ref,
		ConsignmentNumber: in.ConsignmentNumber,
		AssignmentID:      a.ID,
		BookingReference:  htmlsanitize.PlainText(in.BookingReference),
		UsedAt:            s.now(),
		Status:            models.UsageActive,
		PaymentStatus:     models.PaymentUnpaid,
		PaymentType:       paymentType,
		FreightCharges:    money.ToDecimal128(in.FreightCharges),
		TotalAmount:       money.ToDecimal128(in.TotalAmount),
		RecordedBy:        in.RecordedBy,
	}
	if len(in.BookingData) > 0 {
		u.BookingData = bson.M(in.BookingData)
	}

	created, err := s.usages.Create(ctx, u)
	if errors.Is(err, usagestore.ErrDuplicateUsage) {
		return models.ConsignmentUsage{}, apperr.WithError(err).
			WithHintf("Consignment number %d has already been used", in.ConsignmentNumber).
			WithDetails(map[string]any{"consignmentNumber": in.ConsignmentNumber}).
			Mark(apperr.ErrDuplicateUsage)
	}
	if err != nil {
		return models.ConsignmentUsage{}, apperr.Database(err, "record usage")
	}

	s.emit(ctx, events.New(events.UsageRecorded, in.Owner, in.RecordedBy, map[string]any{
		"usageId":           created.ID.Hex(),
		"consignmentNumber": created.ConsignmentNumber,
		"bookingReference":  created.BookingReference,
	}))
	return created, nil
}

func ownerNoun(owner models.Owner) string {
	switch owner.(type) {
	case models.CorporateOwner:
		return "corporate"
	case models.OfficeUserOwner:
		return "office user"
	default:
		return "entity"
	}
}

// CancelUsage moves an active usage to cancelled. The number stays
// consumed and is never offered again.
func (s *Service) CancelUsage(ctx context.Context, id primitive.ObjectID, actorID string) (models.ConsignmentUsage, error) {
	u, err := s.usages.GetByID(ctx, id)
	if err == mongo.ErrNoDocuments {
		return models.ConsignmentUsage{}, apperr.NewError("usage not found").
			WithHint("Usage record not found").
			Mark(apperr.ErrNotFound)
	}
	if err != nil {
		return models.ConsignmentUsage{}, apperr.Database(err, "load usage")
	}

	at := s.now()
	ok, err := s.usages.Cancel(ctx, id, at)
	if err != nil {
		return models.ConsignmentUsage{}, apperr.Database(err, "cancel usage")
	}
	if !ok {
		return models.ConsignmentUsage{}, apperr.NewError("usage not active").
			WithHintf("Only active usages can be cancelled (status is %s)", u.Status).
			Mark(apperr.ErrConflict)
	}
	u.Status = models.UsageCancelled
	u.CancelledAt = &at

	if owner, oerr := u.OwnerRef.Owner(); oerr == nil {
		s.emit(ctx, events.New(events.UsageCancelled, owner, actorID, map[string]any{
			"usageId":           u.ID.Hex(),
			"consignmentNumber": u.ConsignmentNumber,
		}))
	}
	return u, nil
}

// RangeStats is the usage of one active assignment.
type RangeStats struct {
	AssignmentID    primitive.ObjectID `json:"assignmentId"`
	StartNumber     int64              `json:"startNumber"`
	EndNumber       int64              `json:"endNumber"`
	TotalNumbers    int64              `json:"totalNumbers"`
	Used            int64              `json:"used"`
	Available       int64              `json:"available"`
	UsagePercentage int64              `json:"usagePercentage"`
}

// Statistics summarizes an owner's consignment numbers.
type Statistics struct {
	Owner           models.OwnerRef `json:"owner"`
	TotalAssigned   int64           `json:"totalAssigned"`
	TotalUsed       int64           `json:"totalUsed"`
	Available       int64           `json:"available"`
	UsagePercentage int64           `json:"usagePercentage"`
	TotalRecorded   int64           `json:"totalRecorded"`
	Ranges          []RangeStats    `json:"ranges"`
}

// UsageStatistics reports assigned/used/available counts over the owner's
// active ranges. TotalUsed only counts usages inside active ranges, so it
// never exceeds TotalAssigned; TotalRecorded counts every usage.
func (s *Service) UsageStatistics(ctx context.Context, owner models.Owner) (Statistics, error) {
	ref := models.RefOf(owner)
	ranges, err := s.assignments.ListActiveByOwner(ctx, ref)
	if err != nil {
		return Statistics{}, apperr.Database(err, "list active assignments")
	}

	out := Statistics{Owner: ref, Ranges: make([]RangeStats, 0, len(ranges))}
	for _, a := range ranges {
		used, err := s.usages.CountInRange(ctx, ref, a.StartNumber, a.EndNumber)
		if err != nil {
			return Statistics{}, apperr.Database(err, "count usages")
		}
		out.Ranges = append(out.Ranges, RangeStats{
			AssignmentID:    a.ID,
			StartNumber:     a.StartNumber,
			EndNumber:       a.EndNumber,
			TotalNumbers:    a.TotalNumbers,
			Used:            used,
			Available:       a.TotalNumbers - used,
			UsagePercentage: consignment.UsagePercentage(used, a.TotalNumbers),
		})
	}

	out.TotalAssigned = lo.SumBy(out.Ranges, func(r RangeStats) int64 { return r.TotalNumbers })
	out.TotalUsed = lo.SumBy(out.Ranges, func(r RangeStats) int64 { return r.Used })
	out.Available = out.TotalAssigned - out.TotalUsed
	out.UsagePercentage = consignment.UsagePercentage(out.TotalUsed, out.TotalAssigned)

	out.TotalRecorded, err = s.usages.CountByOwner(ctx, ref)
	if err != nil {
		return Statistics{}, apperr.Database(err, "count usages")
	}
	return out, nil
}
