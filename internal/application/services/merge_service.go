package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/labtrail/backend/internal/domain/entities"
	"github.com/labtrail/backend/internal/domain/providers"
	"github.com/labtrail/backend/internal/domain/repositories"
	"github.com/labtrail/backend/internal/infrastructure/observability"
	apperrors "github.com/labtrail/backend/pkg/errors"
)

// MergeService combines two records of the same subject into one. Planning
// and execution are split so a caller can show conflicts before anything is
// touched; nothing is ever resolved automatically.
type MergeService struct {
	recordRepo repositories.TestRecordRepository
	lineRepo   repositories.TestResultLineRepository
	eventBus   providers.EventBus
}

// NewMergeService creates a new merge service
func NewMergeService(
	recordRepo repositories.TestRecordRepository,
	lineRepo repositories.TestResultLineRepository,
	eventBus providers.EventBus,
) *MergeService {
	return &MergeService{
		recordRepo: recordRepo,
		lineRepo:   lineRepo,
		eventBus:   eventBus,
	}
}

// PlanMerge inspects source and target and reports every conflict a merge
// would have to settle. It reads but never writes.
func (s *MergeService) PlanMerge(ctx context.Context, sourceID, targetID string) (*entities.MergePlan, error) {
	if sourceID == targetID {
		return nil, apperrors.NewValidationError("cannot merge a record into itself")
	}

	source, err := s.recordRepo.GetHeader(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	target, err := s.recordRepo.GetHeader(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if source.SubjectID != target.SubjectID {
		return nil, apperrors.NewValidationError("records belong to different subjects")
	}

	plan := &entities.MergePlan{
		SourceID:         sourceID,
		TargetID:         targetID,
		DateConflict:     !sameDay(source.TestDate, target.TestDate),
		HospitalConflict: source.HospitalName != "" && target.HospitalName != "" && source.HospitalName != target.HospitalName,
	}

	sourceLines, err := s.lineRepo.ListByRecordID(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	targetLines, err := s.lineRepo.ListByRecordID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	targetByCanonical := make(map[string]*entities.TestResultLine, len(targetLines))
	for _, line := range targetLines {
		targetByCanonical[line.CanonicalID] = line
	}

	for _, line := range sourceLines {
		targetLine, both := targetByCanonical[line.CanonicalID]
		if !both || valuesEqual(line.Value, targetLine.Value) {
			continue
		}
		plan.ItemConflicts = append(plan.ItemConflicts, entities.ItemConflict{
			CanonicalID: line.CanonicalID,
			SourceValue: line.Value,
			TargetValue: targetLine.Value,
		})
	}

	return plan, nil
}

// ExecuteMerge carries out a planned merge. Every item conflict in the plan
// needs an explicit resolution or the merge is rejected up front. Header
// conflicts never need one: the caller-supplied target date and hospital
// always win and are written onto the surviving record. The steps are not
// atomic: a failure partway leaves both records present, and re-running the
// merge is safe because moved lines are no longer conflicts.
func (s *MergeService) ExecuteMerge(ctx context.Context, plan *entities.MergePlan, targetDate time.Time, targetHospital string, resolutions []entities.MergeResolution) error {
	if plan == nil {
		return apperrors.NewValidationError("merge plan is required")
	}

	resolved := make(map[string]bool, len(resolutions))
	for _, r := range resolutions {
		resolved[r.CanonicalID] = r.UseSource
	}
	for _, conflict := range plan.ItemConflicts {
		if _, ok := resolved[conflict.CanonicalID]; !ok {
			return apperrors.NewConflictError(fmt.Sprintf("unresolved value conflict for item %s", conflict.CanonicalID))
		}
	}

	target, err := s.recordRepo.GetHeader(ctx, plan.TargetID)
	if err != nil {
		return err
	}
	// Zero values mean the caller did not override that field.
	if !targetDate.IsZero() {
		target.TestDate = targetDate
	}
	if targetHospital != "" {
		target.HospitalName = targetHospital
	}
	if err := s.recordRepo.UpdateHeader(ctx, target); err != nil {
		return fmt.Errorf("failed to apply target header values: %w", err)
	}

	sourceLines, err := s.lineRepo.ListByRecordID(ctx, plan.SourceID)
	if err != nil {
		return err
	}
	targetLines, err := s.lineRepo.ListByRecordID(ctx, plan.TargetID)
	if err != nil {
		return err
	}
	targetByCanonical := make(map[string]*entities.TestResultLine, len(targetLines))
	for _, line := range targetLines {
		targetByCanonical[line.CanonicalID] = line
	}

	for _, line := range sourceLines {
		_, both := targetByCanonical[line.CanonicalID]
		if !both {
			if err := s.lineRepo.ReassignToRecord(ctx, line.ID, plan.TargetID); err != nil {
				return fmt.Errorf("failed to move line %s: %w", line.ID, err)
			}
			continue
		}

		if useSource, conflicted := resolved[line.CanonicalID]; conflicted && useSource {
			if err := s.lineRepo.DeleteByRecordAndCanonical(ctx, plan.TargetID, line.CanonicalID); err != nil {
				return fmt.Errorf("failed to replace target line for item %s: %w", line.CanonicalID, err)
			}
			if err := s.lineRepo.ReassignToRecord(ctx, line.ID, plan.TargetID); err != nil {
				return fmt.Errorf("failed to move line %s: %w", line.ID, err)
			}
			continue
		}

		// Target wins, or the values agreed: the source copy is redundant.
		if err := s.lineRepo.DeleteByRecordAndCanonical(ctx, plan.SourceID, line.CanonicalID); err != nil {
			return fmt.Errorf("failed to drop source line for item %s: %w", line.CanonicalID, err)
		}
	}

	if err := s.recordRepo.DeleteHeader(ctx, plan.SourceID); err != nil {
		return fmt.Errorf("failed to delete merged source record: %w", err)
	}

	s.publishMerged(ctx, target)
	return nil
}

func (s *MergeService) publishMerged(ctx context.Context, target *entities.TestRecordHeader) {
	if s.eventBus == nil {
		return
	}
	event := &entities.RecordEvent{
		ID:         uuid.New().String(),
		Type:       entities.RecordEventMerged,
		RecordID:   target.ID,
		SubjectID:  target.SubjectID,
		OccurredAt: time.Now(),
	}
	if err := s.eventBus.Publish(ctx, entities.RecordEventChannel, event); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("record_id", target.ID).Msg("failed to publish merge event")
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func valuesEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
