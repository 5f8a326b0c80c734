// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"github.com/dalemusser/courierhub/internal/app/system/allocator"
	"go.uber.org/zap"
)

// OrphanFinder reports ranges and usages whose owner no longer exists.
type OrphanFinder interface {
	FindOrphans(ctx context.Context) (allocator.OrphanReport, error)
}

// ExpiredCleaner deletes records that expired before now.
type ExpiredCleaner interface {
	CleanupExpired(ctx context.Context, now time.Time) (int64, error)
}

// LeaseReaper clears allocation leases whose holder died.
type LeaseReaper interface {
	ReapExpired(ctx context.Context, now time.Time) (int64, error)
}

// OrphanScanJob periodically logs data-integrity problems. It never repairs
// anything; an admin reviews the report via the diagnostics endpoint.
func OrphanScanJob(finder OrphanFinder, logger *zap.Logger, interval time.Duration) Job {
	return Job{
		Name:     "orphan-scan",
		Interval: interval,
		Timeout:  2 * time.Minute,
		Run: func(ctx context.Context) error {
			report, err := finder.FindOrphans(ctx)
			if err != nil {
				return err
			}
			if report.Empty() {
				logger.Debug("orphan scan clean")
				return nil
			}
			logger.Warn("orphan scan found problems",
				zap.Int("assignment_owners", len(report.AssignmentOwners)),
				zap.Int("usage_owners", len(report.UsageOwners)),
				zap.Int64("orphan_usages", report.OrphanUsageCount),
				zap.Int("usages_outside_ranges", len(report.UsagesOutsideRanges)))
			return nil
		},
	}
}

// OAuthStateCleanupJob creates a job that removes expired OAuth state tokens.
// This is a backup for when MongoDB's TTL index cleanup is delayed.
func OAuthStateCleanupJob(states ExpiredCleaner, logger *zap.Logger) Job {
	return Job{
		Name:     "oauth-state-cleanup",
		Interval: 1 * time.Hour,
		Run: func(ctx context.Context) error {
			count, err := states.CleanupExpired(ctx, time.Now().UTC())
			if err != nil {
				return err
			}
			if count > 0 {
				logger.Debug("cleaned up expired OAuth states", zap.Int64("count", count))
			}
			return nil
		},
	}
}

// LeaseReapJob releases allocation leases left behind by crashed processes.
func LeaseReapJob(guards LeaseReaper, logger *zap.Logger, interval time.Duration) Job {
	return Job{
		Name:     "lease-reap",
		Interval: interval,
		Run: func(ctx context.Context) error {
			count, err := guards.ReapExpired(ctx, time.Now().UTC())
			if err != nil {
				return err
			}
			if count > 0 {
				logger.Info("released expired allocation leases", zap.Int64("count", count))
			}
			return nil
		},
	}
}
