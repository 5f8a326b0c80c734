// internal/app/system/allocator/guard.go
package allocator

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dalemusser/courierhub/internal/app/system/apperr"
	"github.com/dalemusser/courierhub/internal/app/system/txn"
	"github.com/oklog/ulid/v2"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var errLeaseBusy = errors.New("allocation lease held by another process")

// serialize runs fn so that no two calls for the same guard overlap.
//
// In transaction mode fn runs inside a transaction that first bumps the
// guard document; concurrent transactions write-conflict on it and the
// driver retries the loser after the winner commits, so fn always reads
// committed state. In lease mode fn runs while holding a TTL lease on the
// guard. fn may be invoked more than once.
func (s *Service) serialize(ctx context.Context, guard string, fn func(ctx context.Context) error) error {
	switch s.cfg.Mode {
	case ModeTransaction:
		err := s.inTransaction(ctx, guard, fn)
		if errors.Is(err, txn.ErrNotSupported) {
			return apperr.WithError(err).
				WithHint("Range allocation requires a replica set").
				Mark(apperr.ErrSystem)
		}
		return err
	case ModeLease:
		return s.underLease(ctx, guard, fn)
	}

	if !s.txnUnsupported.Load() {
		err := s.inTransaction(ctx, guard, fn)
		if !errors.Is(err, txn.ErrNotSupported) {
			return err
		}
		if s.txnUnsupported.CompareAndSwap(false, true) {
			s.logger.Warn("transactions unavailable; falling back to lease locking", zap.Error(err))
		}
	}
	return s.underLease(ctx, guard, fn)
}

func (s *Service) inTransaction(ctx context.Context, guard string, fn func(ctx context.Context) error) error {
	return txn.Run(ctx, s.client, func(sc mongo.SessionContext) error {
		if err := s.guards.Bump(sc, guard); err != nil {
			return err
		}
		return fn(sc)
	})
}

func (s *Service) underLease(ctx context.Context, guard string, fn func(ctx context.Context) error) error {
	holder := ulid.Make().String()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = s.cfg.LeaseWait

	acquire := func() error {
		ok, err := s.guards.AcquireLease(ctx, guard, holder, s.cfg.LeaseTTL)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return errLeaseBusy
		}
		return nil
	}
	if err := backoff.Retry(acquire, backoff.WithContext(b, ctx)); err != nil {
		if errors.Is(err, errLeaseBusy) {
			return apperr.WithError(err).
				WithHint("Range allocation is busy. Please retry.").
				Mark(apperr.ErrUnavailable)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperr.Database(err, "acquire allocation lease")
	}
	defer func() {
		if err := s.guards.ReleaseLease(context.WithoutCancel(ctx), guard, holder); err != nil {
			s.logger.Warn("release allocation lease", zap.Error(err), zap.String("guard", guard))
		}
	}()

	// Stop before the lease can expire under us.
	fctx, cancel := context.WithTimeout(ctx, s.cfg.LeaseTTL)
	defer cancel()
	return fn(fctx)
}
