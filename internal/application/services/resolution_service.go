package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/agnivade/levenshtein"

	"github.com/labtrail/backend/internal/domain/entities"
	"github.com/labtrail/backend/internal/domain/providers"
	"github.com/labtrail/backend/internal/domain/repositories"
	"github.com/labtrail/backend/internal/infrastructure/observability"
	apperrors "github.com/labtrail/backend/pkg/errors"
	"github.com/labtrail/backend/pkg/utils"
)

const (
	// AliasExactConfidence is assigned when a curated alias matches exactly.
	AliasExactConfidence = 100

	// NormalizedExactConfidence is assigned when names agree once case,
	// whitespace, and punctuation are stripped but no curated alias exists.
	NormalizedExactConfidence = 95

	// AliasSimilarityFloor and CanonicalSimilarityFloor are the minimum
	// similarity scores for a fuzzy match against the alias dictionary and
	// the canonical names respectively. Aliases get the lower floor because
	// they were curated from real-world spellings.
	AliasSimilarityFloor     = 60
	CanonicalSimilarityFloor = 70

	// AssistedTrustFloor gates model suggestions: anything below it is
	// treated as unresolved.
	AssistedTrustFloor = 70
)

// ResolutionService maps raw extracted names onto the canonical vocabulary.
// The cascade runs cheapest-first: exact alias, then edit-distance
// similarity, then the assisted matcher as a last resort.
type ResolutionService struct {
	itemRepo  repositories.CanonicalItemRepository
	aliasRepo repositories.AliasRepository
	matcher   providers.AssistedMatchProvider
}

// NewResolutionService creates a new resolution service. The matcher may be
// nil, in which case unresolved names go straight to the unmapped category.
func NewResolutionService(
	itemRepo repositories.CanonicalItemRepository,
	aliasRepo repositories.AliasRepository,
	matcher providers.AssistedMatchProvider,
) *ResolutionService {
	return &ResolutionService{
		itemRepo:  itemRepo,
		aliasRepo: aliasRepo,
		matcher:   matcher,
	}
}

// vocabulary is a point-in-time snapshot used to resolve one batch without
// re-reading the dictionary per line.
type vocabulary struct {
	items   []*entities.CanonicalItem
	aliases []*entities.AliasEntry
	byID    map[string]*entities.CanonicalItem
}

func (s *ResolutionService) loadVocabulary(ctx context.Context) (*vocabulary, error) {
	active := true
	items, err := s.itemRepo.List(ctx, repositories.CanonicalItemFilter{IsActive: &active})
	if err != nil {
		return nil, fmt.Errorf("failed to load canonical vocabulary: %w", err)
	}

	aliases, err := s.aliasRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load alias dictionary: %w", err)
	}

	byID := make(map[string]*entities.CanonicalItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	return &vocabulary{items: items, aliases: aliases, byID: byID}, nil
}

// Resolve maps one raw measurement name. A nil suggestion with a nil error
// means the name could not be resolved and belongs in the unmapped category.
func (s *ResolutionService) Resolve(ctx context.Context, m entities.RawMeasurement) (*entities.MappingSuggestion, error) {
	vocab, err := s.loadVocabulary(ctx)
	if err != nil {
		return nil, err
	}
	return s.resolveAgainst(ctx, vocab, m)
}

// ResolveMany maps a batch of raw measurements against one vocabulary
// snapshot. The returned slice is index-aligned with the input; nil entries
// are unresolved. Outcomes are memoized by normalized name, so repeated
// spellings of the same name cost one cascade pass per batch and the
// assisted matcher sees each unresolved name at most once.
func (s *ResolutionService) ResolveMany(ctx context.Context, measurements []entities.RawMeasurement) ([]*entities.MappingSuggestion, error) {
	vocab, err := s.loadVocabulary(ctx)
	if err != nil {
		return nil, err
	}

	suggestions := make([]*entities.MappingSuggestion, len(measurements))
	outcomes := make(map[string]*entities.MappingSuggestion, len(measurements))
	for i, m := range measurements {
		key := utils.NormalizeName(m.Name)
		if cached, seen := outcomes[key]; seen {
			suggestions[i] = cached
			continue
		}
		suggestion, err := s.resolveAgainst(ctx, vocab, m)
		if err != nil {
			return nil, err
		}
		outcomes[key] = suggestion
		suggestions[i] = suggestion
	}
	return suggestions, nil
}

func (s *ResolutionService) resolveAgainst(ctx context.Context, vocab *vocabulary, m entities.RawMeasurement) (*entities.MappingSuggestion, error) {
	logger := observability.LoggerFromContext(ctx)

	normalized := utils.NormalizeName(m.Name)
	if normalized == "" {
		return nil, apperrors.NewValidationError("measurement name is required")
	}

	// Step 1: exact alias lookup.
	entry, err := s.aliasRepo.GetByAlias(ctx, m.Name)
	if err == nil {
		if _, known := vocab.byID[entry.CanonicalID]; known {
			return &entities.MappingSuggestion{
				CanonicalID: entry.CanonicalID,
				Confidence:  AliasExactConfidence,
				Reasoning:   fmt.Sprintf("exact alias match %q", entry.Alias),
			}, nil
		}
	} else if !apperrors.IsNotFound(err) {
		return nil, err
	}

	// Step 2: edit-distance similarity over aliases and canonical names.
	if suggestion := s.bestSimilarity(vocab, normalized); suggestion != nil {
		return suggestion, nil
	}

	// Step 3: assisted matching.
	if s.matcher == nil {
		return nil, nil
	}

	suggestion, err := s.assistedMatch(ctx, vocab, m)
	if err != nil {
		if errors.Is(err, providers.ErrAssistedMatchRefused) {
			logger.Debug().Str("raw_name", m.Name).Msg("assisted matcher refused")
			return nil, nil
		}
		logger.Warn().Err(err).Str("raw_name", m.Name).Msg("assisted matching failed, leaving name unmapped")
		return nil, nil
	}
	return suggestion, nil
}

// bestSimilarity scans the dictionary for the highest-scoring fuzzy match
// that clears its floor. Canonical names that agree once punctuation is
// stripped score a fixed confidence just below a curated alias.
func (s *ResolutionService) bestSimilarity(vocab *vocabulary, normalized string) *entities.MappingSuggestion {
	var best *entities.MappingSuggestion
	code := utils.NormalizeCode(normalized)

	consider := func(candidate *entities.MappingSuggestion) {
		if best == nil || candidate.Confidence > best.Confidence {
			best = candidate
		}
	}

	for _, alias := range vocab.aliases {
		if _, known := vocab.byID[alias.CanonicalID]; !known {
			continue
		}
		score := Similarity(normalized, utils.NormalizeName(alias.Alias))
		if score < AliasSimilarityFloor {
			continue
		}
		consider(&entities.MappingSuggestion{
			CanonicalID: alias.CanonicalID,
			Confidence:  score,
			Reasoning:   fmt.Sprintf("similarity %d against alias %q", score, alias.Alias),
		})
	}

	for _, item := range vocab.items {
		if item.Category == entities.UnmappedCategory {
			continue
		}
		if code != "" && code == utils.NormalizeCode(item.Name) {
			consider(&entities.MappingSuggestion{
				CanonicalID: item.ID,
				Confidence:  NormalizedExactConfidence,
				Reasoning:   fmt.Sprintf("name matches %q after stripping punctuation", item.Name),
			})
			continue
		}
		score := Similarity(normalized, utils.NormalizeName(item.Name))
		if score < CanonicalSimilarityFloor {
			continue
		}
		consider(&entities.MappingSuggestion{
			CanonicalID: item.ID,
			Confidence:  score,
			Reasoning:   fmt.Sprintf("similarity %d against canonical name %q", score, item.Name),
		})
	}

	return best
}

func (s *ResolutionService) assistedMatch(ctx context.Context, vocab *vocabulary, m entities.RawMeasurement) (*entities.MappingSuggestion, error) {
	candidates := make([]providers.MatchCandidate, 0, len(vocab.items))
	for _, item := range vocab.items {
		if item.Category == entities.UnmappedCategory {
			continue
		}
		candidates = append(candidates, providers.MatchCandidate{
			ID:          item.ID,
			Name:        item.Name,
			DisplayName: item.DisplayName,
			Unit:        item.UnitDefault,
		})
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	req := providers.MatchRequest{
		RawName:    m.Name,
		Unit:       m.Unit,
		Candidates: candidates,
	}
	if m.Value != nil {
		req.RawValue = fmt.Sprintf("%v", m.Value)
	}
	if m.RefText != nil {
		req.RefText = *m.RefText
	}

	suggestion, err := s.matcher.SuggestMatch(ctx, req)
	if err != nil {
		return nil, err
	}

	if suggestion.Confidence < AssistedTrustFloor {
		return nil, nil
	}
	// A suggested id outside the vocabulary is a hallucination, not a match.
	if _, known := vocab.byID[suggestion.CanonicalID]; !known {
		return nil, nil
	}
	return suggestion, nil
}

// Similarity scores two strings 0-100 from their levenshtein distance,
// relative to the longer string. Identical strings score 100.
func Similarity(a, b string) int {
	if a == b {
		return 100
	}
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 100
	}
	dist := levenshtein.ComputeDistance(a, b)
	score := 100 - (dist*100+longest-1)/longest
	if score < 0 {
		return 0
	}
	return score
}
