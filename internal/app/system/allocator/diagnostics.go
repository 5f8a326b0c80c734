// internal/app/system/allocator/diagnostics.go
package allocator

import (
	"context"
	"time"

	"github.com/dalemusser/courierhub/internal/app/system/apperr"
	"github.com/dalemusser/courierhub/internal/domain/models"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// outsideLimit caps how many stray usages are listed per owner.
const outsideLimit = 100

// StrayUsage is a usage whose number lies in none of its owner's ranges.
type StrayUsage struct {
	UsageID           primitive.ObjectID `json:"usageId"`
	Owner             models.OwnerRef    `json:"owner"`
	ConsignmentNumber int64              `json:"consignmentNumber"`
}

// OrphanReport lists records that point at missing entities or ranges.
// It is informational; nothing is repaired.
type OrphanReport struct {
	GeneratedAt         time.Time         `json:"generatedAt"`
	AssignmentOwners    []models.OwnerRef `json:"assignmentOwnersMissing"`
	UsageOwners         []models.OwnerRef `json:"usageOwnersMissing"`
	OrphanUsageCount    int64             `json:"orphanUsageCount"`
	UsagesOutsideRanges []StrayUsage      `json:"usagesOutsideRanges"`
}

// Empty reports whether the scan found nothing.
func (r OrphanReport) Empty() bool {
	return len(r.AssignmentOwners) == 0 && len(r.UsageOwners) == 0 && len(r.UsagesOutsideRanges) == 0
}

// FindOrphans scans assignments and usages for dangling owner references
// and for usages recorded outside every range their owner ever held.
func (s *Service) FindOrphans(ctx context.Context) (OrphanReport, error) {
	report := OrphanReport{
		GeneratedAt:         s.now(),
		AssignmentOwners:    []models.OwnerRef{},
		UsageOwners:         []models.OwnerRef{},
		UsagesOutsideRanges: []StrayUsage{},
	}

	assignmentOwners, err := s.assignments.DistinctOwners(ctx)
	if err != nil {
		return OrphanReport{}, apperr.Database(err, "distinct assignment owners")
	}
	usageOwners, err := s.usages.DistinctOwners(ctx)
	if err != nil {
		return OrphanReport{}, apperr.Database(err, "distinct usage owners")
	}

	exists, err := s.existingOwners(ctx, append(append([]models.OwnerRef{}, assignmentOwners...), usageOwners...))
	if err != nil {
		return OrphanReport{}, apperr.Database(err, "check owners")
	}
	missing := func(r models.OwnerRef, _ int) bool { return !exists[r] }
	report.AssignmentOwners = append(report.AssignmentOwners, lo.Filter(assignmentOwners, missing)...)
	report.UsageOwners = append(report.UsageOwners, lo.Filter(usageOwners, missing)...)

	if report.OrphanUsageCount, err = s.usages.CountByOwners(ctx, report.UsageOwners); err != nil {
		return OrphanReport{}, apperr.Database(err, "count orphan usages")
	}

	for _, ref := range usageOwners {
		if !exists[ref] {
			continue
		}
		ranges, err := s.assignments.ListAllByOwner(ctx, ref)
		if err != nil {
			return OrphanReport{}, apperr.Database(err, "list owner assignments")
		}
		bounds := lo.Map(ranges, func(a models.ConsignmentAssignment, _ int) [2]int64 {
			return [2]int64{a.StartNumber, a.EndNumber}
		})
		stray, err := s.usages.FindOutside(ctx, ref, bounds, outsideLimit)
		if err != nil {
			return OrphanReport{}, apperr.Database(err, "find stray usages")
		}
		for _, u := range stray {
			report.UsagesOutsideRanges = append(report.UsagesOutsideRanges, StrayUsage{
				UsageID:           u.ID,
				Owner:             u.OwnerRef,
				ConsignmentNumber: u.ConsignmentNumber,
			})
		}
	}
	return report, nil
}

// existingOwners checks every ref directly against its collection,
// bypassing the owner cache.
func (s *Service) existingOwners(ctx context.Context, refs []models.OwnerRef) (map[models.OwnerRef]bool, error) {
	refs = lo.Uniq(refs)
	idsOf := func(kind models.EntityType) []primitive.ObjectID {
		return lo.FilterMap(refs, func(r models.OwnerRef, _ int) (primitive.ObjectID, bool) {
			return r.EntityID, r.EntityType == kind
		})
	}

	corps, err := s.corporates.ExistingIDs(ctx, idsOf(models.EntityCorporate))
	if err != nil {
		return nil, err
	}
	users, err := s.officeUsers.ExistingIDs(ctx, idsOf(models.EntityOfficeUser))
	if err != nil {
		return nil, err
	}

	out := make(map[models.OwnerRef]bool, len(refs))
	for _, r := range refs {
		switch r.EntityType {
		case models.EntityCorporate:
			out[r] = corps[r.EntityID]
		case models.EntityOfficeUser:
			out[r] = users[r.EntityID]
		}
	}
	return out, nil
}
