// internal/app/system/allocator/ranges.go
package allocator

import (
	"context"
	"fmt"

	guardstore "github.com/dalemusser/courierhub/internal/app/store/guards"
	"github.com/dalemusser/courierhub/internal/app/system/apperr"
	"github.com/dalemusser/courierhub/internal/app/system/events"
	"github.com/dalemusser/courierhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/courierhub/internal/domain/consignment"
	"github.com/dalemusser/courierhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// ConflictError describes why a requested range was rejected. It is
// returned marked with apperr.ErrRangeConflict; use errors.As to reach it.
type ConflictError struct {
	Requested consignment.Range
	Existing  models.ConsignmentAssignment
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("range %d-%d overlaps active assignment %s (%d-%d) of %s:%s",
		e.Requested.Start, e.Requested.End,
		e.Existing.ID.Hex(), e.Existing.StartNumber, e.Existing.EndNumber,
		e.Existing.EntityType, e.Existing.EntityID.Hex())
}

func conflictErr(req consignment.Range, existing models.ConsignmentAssignment) error {
	return apperr.WithError(&ConflictError{Requested: req, Existing: existing}).
		WithHintf("Range %d-%d overlaps an active assignment (%d-%d)",
			req.Start, req.End, existing.StartNumber, existing.EndNumber).
		WithDetails(map[string]any{
			"conflictAssignmentId": existing.ID.Hex(),
			"conflictEntityType":   string(existing.EntityType),
			"conflictEntityId":     existing.EntityID.Hex(),
			"conflictStart":        existing.StartNumber,
			"conflictEnd":          existing.EndNumber,
		}).
		Mark(apperr.ErrRangeConflict)
}

// ValidateRange checks start <= end, start >= the configured minimum and
// end <= consignment.MaxNumber.
func (s *Service) ValidateRange(start, end int64) error {
	if start > end {
		return apperr.InvalidRange("Start number (%d) must not be greater than end number (%d)", start, end)
	}
	if start < s.cfg.MinNumber {
		return apperr.InvalidRange("Start number must be at least %d", s.cfg.MinNumber)
	}
	if end > consignment.MaxNumber {
		return apperr.InvalidRange("End number must be at most %d", consignment.MaxNumber)
	}
	return nil
}

// Conflicts returns active assignments that share a number with [start, end].
func (s *Service) Conflicts(ctx context.Context, start, end int64) ([]models.ConsignmentAssignment, error) {
	rows, err := s.assignments.FindActiveOverlapping(ctx, start, end)
	if err != nil {
		return nil, apperr.Database(err, "find overlapping assignments")
	}
	return rows, nil
}

// IsRangeAvailable reports whether no active assignment overlaps
// [start, end]. The answer is advisory; Assign re-checks under the guard.
func (s *Service) IsRangeAvailable(ctx context.Context, start, end int64) (bool, error) {
	rows, err := s.Conflicts(ctx, start, end)
	if err != nil {
		return false, err
	}
	return len(rows) == 0, nil
}

// AssignInput is a request to grant a range.
type AssignInput struct {
	Owner     models.Owner
	Start     int64
	End       int64
	ActorID   string
	ActorName string
	Notes     string
}

// Assign grants [Start, End] to Owner.
//
// Errors: ErrInvalidRange, ErrEntityNotFound, ErrRangeConflict (wrapping
// *ConflictError).
func (s *Service) Assign(ctx context.Context, in AssignInput) (models.ConsignmentAssignment, error) {
	if in.Owner == nil {
		return models.ConsignmentAssignment{}, apperr.NewError("missing owner").
			WithHint("Entity is required").
			Mark(apperr.ErrValidation)
	}
	if err := s.ValidateRange(in.Start, in.End); err != nil {
		return models.ConsignmentAssignment{}, err
	}
	if err := s.requireOwner(ctx, in.Owner); err != nil {
		return models.ConsignmentAssignment{}, err
	}

	req := consignment.Range{Start: in.Start, End: in.End}
	draft := models.ConsignmentAssignment{
		OwnerRef:       models.RefOf(in.Owner),
		StartNumber:    req.Start,
		EndNumber:      req.End,
		TotalNumbers:   req.Size(),
		AssignedBy:     in.ActorID,
		AssignedByName: in.ActorName,
		IsActive:       true,
		Notes:          htmlsanitize.PlainText(in.Notes),
	}

	var created models.ConsignmentAssignment
	err := s.serialize(ctx, guardstore.ConsignmentRanges, func(ctx context.Context) error {
		conflicts, err := s.assignments.FindActiveOverlapping(ctx, req.Start, req.End)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return conflictErr(req, conflicts[0])
		}
		a := draft
		a.AssignedAt = s.now()
		created, err = s.assignments.Create(ctx, a)
		return err
	})
	if err != nil {
		if apperr.KindOf(err) != nil {
			return models.ConsignmentAssignment{}, err
		}
		return models.ConsignmentAssignment{}, apperr.Database(err, "assign range")
	}

	s.emit(ctx, events.New(events.AssignmentCreated, in.Owner, in.ActorID, map[string]any{
		"assignmentId": created.ID.Hex(),
		"startNumber":  created.StartNumber,
		"endNumber":    created.EndNumber,
	}))
	return created, nil
}

func (s *Service) requireOwner(ctx context.Context, owner models.Owner) error {
	ok, err := s.owners.Exists(ctx, owner)
	if err != nil {
		return apperr.Database(err, "check owner")
	}
	if !ok {
		return apperr.NewError("owner not found: "+owner.String()).
			WithHintf("%s not found", ownerLabel(owner)).
			Mark(apperr.ErrEntityNotFound)
	}
	return nil
}

func ownerLabel(owner models.Owner) string {
	switch owner.(type) {
	case models.CorporateOwner:
		return "Corporate"
	case models.OfficeUserOwner:
		return "Office user"
	default:
		return "Entity"
	}
}

// Deactivate soft-deletes an assignment. Its numbers stop counting toward
// the owner's availability; recorded usages are kept.
func (s *Service) Deactivate(ctx context.Context, id primitive.ObjectID, actorID string) (models.ConsignmentAssignment, error) {
	a, err := s.assignments.GetByID(ctx, id)
	if err == mongo.ErrNoDocuments {
		return models.ConsignmentAssignment{}, apperr.NewError("assignment not found").
			WithHint("Assignment not found").
			Mark(apperr.ErrNotFound)
	}
	if err != nil {
		return models.ConsignmentAssignment{}, apperr.Database(err, "load assignment")
	}

	at := s.now()
	changed, err := s.assignments.Deactivate(ctx, id, actorID, at)
	if err != nil {
		return models.ConsignmentAssignment{}, apperr.Database(err, "deactivate assignment")
	}
	if !changed {
		return models.ConsignmentAssignment{}, apperr.NewError("assignment already inactive").
			WithHint("Assignment is already inactive").
			Mark(apperr.ErrConflict)
	}

	a.IsActive = false
	a.DeactivatedAt = &at
	a.DeactivatedBy = actorID

	if owner, oerr := a.OwnerRef.Owner(); oerr == nil {
		s.emit(ctx, events.New(events.AssignmentDeactivated, owner, actorID, map[string]any{
			"assignmentId": a.ID.Hex(),
			"startNumber":  a.StartNumber,
			"endNumber":    a.EndNumber,
		}))
	}
	return a, nil
}

// SuggestNextRange proposes count numbers directly after the highest
// number ever assigned, never below the configured minimum.
func (s *Service) SuggestNextRange(ctx context.Context, count int64) (consignment.Range, error) {
	if count < 1 {
		return consignment.Range{}, apperr.NewError("count must be positive").
			WithHint("Count must be at least 1").
			Mark(apperr.ErrValidation)
	}
	highest, ok, err := s.assignments.HighestEndNumber(ctx)
	if err != nil {
		return consignment.Range{}, apperr.Database(err, "highest end number")
	}
	if !ok {
		highest = s.cfg.MinNumber - 1
	}
	r, ok := consignment.SuggestAfter(highest, s.cfg.MinNumber, count)
	if !ok {
		return consignment.Range{}, apperr.InvalidRange("No room for %d more numbers at or below %d", count, consignment.MaxNumber)
	}
	return r, nil
}
