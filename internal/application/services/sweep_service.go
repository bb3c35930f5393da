package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/labtrail/backend/internal/domain/entities"
	"github.com/labtrail/backend/internal/domain/repositories"
	"github.com/labtrail/backend/internal/infrastructure/observability"
	apperrors "github.com/labtrail/backend/pkg/errors"
	"github.com/labtrail/backend/pkg/utils"
)

const (
	// SweepRemapFloor is the minimum similarity for the sweep to remap an
	// unmapped name without human review. It sits above the ingest-time
	// floors because the sweep acts on its own.
	SweepRemapFloor = 80

	sweepBatchSize = 100
)

// SweepSummary reports one sweep run.
type SweepSummary struct {
	TotalUnmapped int
	Remapped      int
	Remaining     int
	Failures      int
}

// UnmappedSweepService periodically revisits names parked in the unmapped
// category. The vocabulary and alias dictionary grow over time, so a name
// that had no home yesterday may resolve cleanly today.
type UnmappedSweepService struct {
	itemRepo    repositories.CanonicalItemRepository
	aliasRepo   repositories.AliasRepository
	lineRepo    repositories.TestResultLineRepository
	workerCount int
}

// NewUnmappedSweepService creates a new sweep service
func NewUnmappedSweepService(
	itemRepo repositories.CanonicalItemRepository,
	aliasRepo repositories.AliasRepository,
	lineRepo repositories.TestResultLineRepository,
	workers int,
) *UnmappedSweepService {
	if workers <= 0 {
		workers = 1
	}
	return &UnmappedSweepService{
		itemRepo:    itemRepo,
		aliasRepo:   aliasRepo,
		lineRepo:    lineRepo,
		workerCount: workers,
	}
}

// SweepAll re-resolves every unmapped item against the current vocabulary.
func (s *UnmappedSweepService) SweepAll(ctx context.Context) (*SweepSummary, error) {
	logger := observability.LoggerFromContext(ctx)

	active := true
	mapped, err := s.itemRepo.List(ctx, repositories.CanonicalItemFilter{IsActive: &active})
	if err != nil {
		return nil, fmt.Errorf("failed to load vocabulary: %w", err)
	}
	candidates := make([]*entities.CanonicalItem, 0, len(mapped))
	for _, item := range mapped {
		if item.Category != entities.UnmappedCategory {
			candidates = append(candidates, item)
		}
	}

	var total, remapped, remaining, failures int64

	itemChan := make(chan *entities.CanonicalItem, sweepBatchSize)
	var wg sync.WaitGroup

	for i := 0; i < s.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range itemChan {
				atomic.AddInt64(&total, 1)
				moved, err := s.sweepSingle(ctx, item, candidates)
				switch {
				case err != nil:
					atomic.AddInt64(&failures, 1)
					logger.Warn().Err(err).Str("item_id", item.ID).Str("name", item.Name).Msg("failed to sweep unmapped item")
				case moved:
					atomic.AddInt64(&remapped, 1)
				default:
					atomic.AddInt64(&remaining, 1)
				}
			}
		}()
	}

	offset := 0
	for {
		unmapped, err := s.itemRepo.List(ctx, repositories.CanonicalItemFilter{
			Category: entities.UnmappedCategory,
			Limit:    sweepBatchSize,
			Offset:   offset,
		})
		if err != nil {
			close(itemChan)
			return nil, fmt.Errorf("failed to list unmapped items: %w", err)
		}
		if len(unmapped) == 0 {
			break
		}

		for _, item := range unmapped {
			select {
			case itemChan <- item:
			case <-ctx.Done():
				close(itemChan)
				return nil, ctx.Err()
			}
		}

		if len(unmapped) < sweepBatchSize {
			break
		}
		offset += len(unmapped)
	}

	close(itemChan)
	wg.Wait()

	summary := &SweepSummary{
		TotalUnmapped: int(total),
		Remapped:      int(remapped),
		Remaining:     int(remaining),
		Failures:      int(failures),
	}

	logger.Info().
		Int("total", summary.TotalUnmapped).
		Int("remapped", summary.Remapped).
		Int("remaining", summary.Remaining).
		Int("failures", summary.Failures).
		Msg("unmapped sweep finished")

	return summary, nil
}

// sweepSingle tries to find a home for one unmapped item. Only placeholders
// with zero dependent lines are remapped on their own: the spelling is
// recorded as an alias for future ingests and the empty placeholder is
// removed. A placeholder that still carries lines stays put for a curator
// to merge.
func (s *UnmappedSweepService) sweepSingle(ctx context.Context, item *entities.CanonicalItem, candidates []*entities.CanonicalItem) (bool, error) {
	match := s.bestCandidate(item.Name, candidates)
	if match == nil {
		return false, nil
	}

	count, err := s.lineRepo.CountByCanonicalID(ctx, item.ID)
	if err != nil {
		return false, err
	}
	if count > 0 {
		observability.LoggerFromContext(ctx).Info().
			Str("item_id", item.ID).
			Str("name", item.Name).
			Str("candidate_id", match.ID).
			Int("dependent_lines", count).
			Msg("unmapped item has a close match but carries lines; left for manual review")
		return false, nil
	}

	alias := &entities.AliasEntry{
		Alias:       item.Name,
		CanonicalID: match.ID,
		SourceHint:  "unmapped-sweep",
	}
	if err := s.aliasRepo.Create(ctx, alias); err != nil {
		// A duplicate alias is not worth failing the sweep over.
		observability.LoggerFromContext(ctx).Debug().Err(err).Str("alias", item.Name).Msg("could not record sweep alias")
	}

	if err := s.itemRepo.Delete(ctx, item.ID); err != nil && !apperrors.IsNotFound(err) {
		return true, err
	}
	return true, nil
}

func (s *UnmappedSweepService) bestCandidate(name string, candidates []*entities.CanonicalItem) *entities.CanonicalItem {
	normalized := utils.NormalizeName(name)

	var best *entities.CanonicalItem
	bestScore := 0
	for _, candidate := range candidates {
		score := Similarity(normalized, utils.NormalizeName(candidate.Name))
		if score >= SweepRemapFloor && score > bestScore {
			best = candidate
			bestScore = score
		}
	}
	return best
}
