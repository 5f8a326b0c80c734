package allocator_test

import (
	"context"
	"testing"

	"github.com/dalemusser/courierhub/internal/app/system/allocator"
	"github.com/dalemusser/courierhub/internal/app/system/apperr"
	"github.com/dalemusser/courierhub/internal/app/system/events"
	"github.com/dalemusser/courierhub/internal/app/system/money"
	"github.com/dalemusser/courierhub/internal/domain/consignment"
	"github.com/dalemusser/courierhub/internal/domain/models"
	"github.com/dalemusser/courierhub/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func record(t *testing.T, ctx context.Context, e *env, owner models.Owner, n int64) models.ConsignmentUsage {
	t.Helper()
	u, err := e.svc.RecordUsage(ctx, allocator.UsageInput{
		Owner:             owner,
		ConsignmentNumber: n,
		BookingReference:  "BK-1",
		FreightCharges:    decimal.RequireFromString("10.00"),
		TotalAmount:       decimal.RequireFromString("11.80"),
		RecordedBy:        "clerk",
	})
	require.NoError(t, err)
	return u
}

func TestNextConsignmentNumber_WalksAndExhausts(t *testing.T) {
	e := newEnv(t, allocator.ModeLease)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := e.svc.Assign(ctx, allocator.AssignInput{Owner: e.clerk, Start: 2000, End: 2002})
	require.NoError(t, err)

	for _, want := range []int64{2000, 2001, 2002} {
		n, err := e.svc.NextConsignmentNumber(ctx, e.clerk)
		require.NoError(t, err)
		assert.Equal(t, want, n)
		record(t, ctx, e, e.clerk, n)
	}

	_, err = e.svc.NextConsignmentNumber(ctx, e.clerk)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ErrNoAvailableNumbers))
	assert.Equal(t, "No consignment numbers available", apperr.Message(err))
}

func TestNextConsignmentNumber_TopRangeExhausts(t *testing.T) {
	e := newEnv(t, allocator.ModeLease)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	top := consignment.MaxNumber
	_, err := e.svc.Assign(ctx, allocator.AssignInput{Owner: e.clerk, Start: top - 1, End: top})
	require.NoError(t, err)

	for _, want := range []int64{top - 1, top} {
		n, err := e.svc.NextConsignmentNumber(ctx, e.clerk)
		require.NoError(t, err)
		assert.Equal(t, want, n)
		record(t, ctx, e, e.clerk, n)
	}

	n, err := e.svc.NextConsignmentNumber(ctx, e.clerk)
	assert.True(t, apperr.Is(err, apperr.ErrNoAvailableNumbers), "got %d, %v", n, err)
}

func TestNextConsignmentNumber_FillsGapsAndSkipsInactive(t *testing.T) {
	e := newEnv(t, allocator.ModeLease)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	first, err := e.svc.Assign(ctx, allocator.AssignInput{Owner: e.corp, Start: 200, End: 204})
	require.NoError(t, err)
	_, err = e.svc.Assign(ctx, allocator.AssignInput{Owner: e.corp, Start: 300, End: 304})
	require.NoError(t, err)

	record(t, ctx, e, e.corp, 200)
	record(t, ctx, e, e.corp, 202)

	n, err := e.svc.NextConsignmentNumber(ctx, e.corp)
	require.NoError(t, err)
	assert.Equal(t, int64(201), n)

	_, err = e.svc.Deactivate(ctx, first.ID, "admin")
	require.NoError(t, err)

	n, err = e.svc.NextConsignmentNumber(ctx, e.corp)
	require.NoError(t, err)
	assert.Equal(t, int64(300), n)
}

func TestNextConsignmentNumber_NoRanges(t *testing.T) {
	e := newEnv(t, allocator.ModeLease)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := e.svc.NextConsignmentNumber(ctx, e.corp)
	assert.True(t, apperr.Is(err, apperr.ErrNoAvailableNumbers))
}

func TestRecordUsage_OutOfRange(t *testing.T) {
	e := newEnv(t, allocator.ModeLease)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := e.svc.Assign(ctx, allocator.AssignInput{Owner: e.corp, Start: 1000, End: 1010})
	require.NoError(t, err)

	_, err = e.svc.RecordUsage(ctx, allocator.UsageInput{Owner: e.corp, ConsignmentNumber: 9999})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ErrOutOfRange))
	assert.Contains(t, apperr.Message(err), "9999")

	// another owner's range does not cover this owner
	_, err = e.svc.RecordUsage(ctx, allocator.UsageInput{Owner: e.clerk, ConsignmentNumber: 1005})
	assert.True(t, apperr.Is(err, apperr.ErrOutOfRange))
}

func TestRecordUsage_Duplicate(t *testing.T) {
	e := newEnv(t, allocator.ModeLease)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := e.svc.Assign(ctx, allocator.AssignInput{Owner: e.corp, Start: 1000, End: 1010})
	require.NoError(t, err)

	u := record(t, ctx, e, e.corp, 1003)
	assert.Equal(t, models.UsageActive, u.Status)
	assert.Equal(t, models.PaymentUnpaid, u.PaymentStatus)
	assert.Equal(t, models.PaymentTypeFreightPrepaid, u.PaymentType)
	assert.Equal(t, "11.8", money.FromDecimal128(u.TotalAmount).String())

	_, err = e.svc.RecordUsage(ctx, allocator.UsageInput{Owner: e.corp, ConsignmentNumber: 1003})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ErrDuplicateUsage))
	assert.Equal(t, "Consignment number 1003 has already been used", apperr.Message(err))

	assert.Equal(t, []string{events.AssignmentCreated, events.UsageRecorded}, e.events.types())
}

func TestRecordUsage_Validation(t *testing.T) {
	e := newEnv(t, allocator.ModeLease)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := e.svc.RecordUsage(ctx, allocator.UsageInput{ConsignmentNumber: 1000})
	assert.True(t, apperr.Is(err, apperr.ErrValidation))

	_, err = e.svc.RecordUsage(ctx, allocator.UsageInput{Owner: e.corp, ConsignmentNumber: 1000, PaymentType: "COD"})
	assert.True(t, apperr.Is(err, apperr.ErrValidation))

	_, err = e.svc.RecordUsage(ctx, allocator.UsageInput{Owner: e.corp, ConsignmentNumber: 1000, FreightCharges: decimal.NewFromInt(-1)})
	assert.True(t, apperr.Is(err, apperr.ErrValidation))
}

func TestCancelUsage_NumberStaysConsumed(t *testing.T) {
	e := newEnv(t, allocator.ModeLease)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := e.svc.Assign(ctx, allocator.AssignInput{Owner: e.clerk, Start: 2000, End: 2001})
	require.NoError(t, err)
	u := record(t, ctx, e, e.clerk, 2000)

	got, err := e.svc.CancelUsage(ctx, u.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, models.UsageCancelled, got.Status)
	require.NotNil(t, got.CancelledAt)

	n, err := e.svc.NextConsignmentNumber(ctx, e.clerk)
	require.NoError(t, err)
	assert.Equal(t, int64(2001), n)

	_, err = e.svc.RecordUsage(ctx, allocator.UsageInput{Owner: e.clerk, ConsignmentNumber: 2000})
	assert.True(t, apperr.Is(err, apperr.ErrDuplicateUsage))

	_, err = e.svc.CancelUsage(ctx, u.ID, "admin")
	assert.True(t, apperr.Is(err, apperr.ErrConflict))

	_, err = e.svc.CancelUsage(ctx, primitive.NewObjectID(), "admin")
	assert.True(t, apperr.Is(err, apperr.ErrNotFound))
}

func TestUsageStatistics(t *testing.T) {
	e := newEnv(t, allocator.ModeLease)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	stats, err := e.svc.UsageStatistics(ctx, e.corp)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalAssigned)
	assert.Zero(t, stats.UsagePercentage)
	assert.Empty(t, stats.Ranges)

	_, err = e.svc.Assign(ctx, allocator.AssignInput{Owner: e.corp, Start: 100, End: 110})
	require.NoError(t, err)
	old, err := e.svc.Assign(ctx, allocator.AssignInput{Owner: e.corp, Start: 200, End: 209})
	require.NoError(t, err)

	for _, n := range []int64{100, 101, 102, 200} {
		record(t, ctx, e, e.corp, n)
	}
	_, err = e.svc.Deactivate(ctx, old.ID, "admin")
	require.NoError(t, err)

	stats, err = e.svc.UsageStatistics(ctx, e.corp)
	require.NoError(t, err)
	assert.Equal(t, int64(11), stats.TotalAssigned)
	assert.Equal(t, int64(3), stats.TotalUsed)
	assert.Equal(t, int64(8), stats.Available)
	assert.Equal(t, int64(27), stats.UsagePercentage)
	assert.Equal(t, int64(4), stats.TotalRecorded)
	assert.LessOrEqual(t, stats.TotalUsed, stats.TotalAssigned)
	require.Len(t, stats.Ranges, 1)
	assert.Equal(t, int64(100), stats.Ranges[0].StartNumber)
	assert.Equal(t, models.EntityCorporate, stats.Owner.EntityType)
}
