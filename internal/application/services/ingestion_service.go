package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/labtrail/backend/internal/domain/entities"
	"github.com/labtrail/backend/internal/domain/providers"
	"github.com/labtrail/backend/internal/domain/repositories"
	"github.com/labtrail/backend/internal/infrastructure/observability"
	"github.com/labtrail/backend/internal/validation"
	apperrors "github.com/labtrail/backend/pkg/errors"
	"github.com/labtrail/backend/pkg/measure"
	"github.com/labtrail/backend/pkg/utils"
)

// IngestSummary reports what happened to one batch of documents.
type IngestSummary struct {
	RecordID       string
	TotalExtracted int
	Mapped         int
	Unmapped       int
	Deduplicated   int
	Skipped        int
	ReviewFlagged  int
}

// IngestionService runs the full pipeline for a batch of scanned documents:
// extraction, value parsing, name resolution, plausibility validation,
// deduplication, and persistence as one record.
type IngestionService struct {
	ocr        providers.OCRProvider
	resolver   *ResolutionService
	validator  *validation.Validator
	reconciler *BatchReconciler
	itemRepo   repositories.CanonicalItemRepository
	recordRepo repositories.TestRecordRepository
	lineRepo   repositories.TestResultLineRepository
	eventBus   providers.EventBus
}

// NewIngestionService creates a new ingestion service. The event bus may be
// nil when no downstream consumers exist.
func NewIngestionService(
	ocr providers.OCRProvider,
	resolver *ResolutionService,
	validator *validation.Validator,
	reconciler *BatchReconciler,
	itemRepo repositories.CanonicalItemRepository,
	recordRepo repositories.TestRecordRepository,
	lineRepo repositories.TestResultLineRepository,
	eventBus providers.EventBus,
) *IngestionService {
	return &IngestionService{
		ocr:        ocr,
		resolver:   resolver,
		validator:  validator,
		reconciler: reconciler,
		itemRepo:   itemRepo,
		recordRepo: recordRepo,
		lineRepo:   lineRepo,
		eventBus:   eventBus,
	}
}

// IngestDocuments extracts, reconciles, and persists one batch of documents
// as a single record for the subject. All documents in a batch are assumed
// to come from the same measurement session.
func (s *IngestionService) IngestDocuments(ctx context.Context, subjectID string, docs []providers.SourceDocument) (*IngestSummary, error) {
	logger := observability.LoggerFromContext(ctx)

	if subjectID == "" {
		return nil, apperrors.NewValidationError("subject id is required")
	}
	if len(docs) == 0 {
		return nil, apperrors.NewValidationError("at least one document is required")
	}

	extracted, err := s.extractAll(ctx, docs)
	if err != nil {
		return nil, err
	}

	header := s.buildHeader(subjectID, extracted)
	summary := &IngestSummary{RecordID: header.ID}

	pending := s.collectMeasurements(ctx, extracted, summary)
	entries, err := s.resolveEntries(ctx, pending, summary)
	if err != nil {
		return nil, err
	}

	lines, deduplicated := s.reconciler.Reconcile(header.ID, entries)
	summary.Deduplicated = deduplicated

	if err := s.recordRepo.CreateHeader(ctx, header); err != nil {
		return nil, err
	}

	if err := s.lineRepo.BulkInsert(ctx, lines); err != nil {
		// Compensating delete keeps a failed ingestion from leaving an
		// empty header behind. The delete itself is best-effort.
		if delErr := s.recordRepo.DeleteHeader(ctx, header.ID); delErr != nil {
			logger.Error().Err(delErr).Str("record_id", header.ID).Msg("failed to roll back record header after line insert failure")
		}
		return nil, fmt.Errorf("failed to persist result lines: %w", err)
	}

	s.publishEvent(ctx, entities.RecordEventIngested, header)

	logger.Info().
		Str("record_id", header.ID).
		Str("subject_id", subjectID).
		Int("extracted", summary.TotalExtracted).
		Int("mapped", summary.Mapped).
		Int("unmapped", summary.Unmapped).
		Int("deduplicated", summary.Deduplicated).
		Msg("ingested document batch")

	return summary, nil
}

type indexedExtraction struct {
	index int
	doc   *providers.ExtractedDocument
	err   error
}

// extractAll fans extraction out across the batch. Results come back in
// document order so header fields and arrival-order semantics stay stable
// regardless of which extraction finishes first.
func (s *IngestionService) extractAll(ctx context.Context, docs []providers.SourceDocument) ([]*providers.ExtractedDocument, error) {
	results := make([]indexedExtraction, len(docs))
	var wg sync.WaitGroup

	for i, doc := range docs {
		wg.Add(1)
		go func(i int, doc providers.SourceDocument) {
			defer wg.Done()
			extracted, err := s.ocr.ExtractDocument(ctx, doc)
			results[i] = indexedExtraction{index: i, doc: extracted, err: err}
		}(i, doc)
	}
	wg.Wait()

	extracted := make([]*providers.ExtractedDocument, 0, len(docs))
	for _, result := range results {
		if result.err != nil {
			return nil, fmt.Errorf("failed to extract document %s: %w", docs[result.index].ID, result.err)
		}
		extracted = append(extracted, result.doc)
	}
	return extracted, nil
}

// buildHeader assembles the record header from the first document that
// carries each field.
func (s *IngestionService) buildHeader(subjectID string, extracted []*providers.ExtractedDocument) *entities.TestRecordHeader {
	header := &entities.TestRecordHeader{
		ID:        uuid.New().String(),
		SubjectID: subjectID,
	}
	for _, doc := range extracted {
		if header.TestDate.IsZero() && doc.TestDate != nil {
			header.TestDate = *doc.TestDate
		}
		if header.HospitalName == "" && doc.HospitalName != "" {
			header.HospitalName = doc.HospitalName
		}
	}
	if header.TestDate.IsZero() {
		header.TestDate = time.Now()
	}
	return header
}

// pendingMeasurement is one measurement that survived validation and is
// waiting on name resolution.
type pendingMeasurement struct {
	raw    entities.RawMeasurement
	parsed measure.ParsedValue
	warned bool
}

// collectMeasurements parses and validates every extracted measurement,
// dropping the ones that cannot be stored at all.
func (s *IngestionService) collectMeasurements(ctx context.Context, extracted []*providers.ExtractedDocument, summary *IngestSummary) []pendingMeasurement {
	logger := observability.LoggerFromContext(ctx)

	var pending []pendingMeasurement
	for _, doc := range extracted {
		for _, m := range doc.Measurements {
			summary.TotalExtracted++

			parsed := measure.Parse(m.Value)
			outcome := s.validator.Validate(m.Name, parsed)
			if !outcome.Valid() {
				summary.Skipped++
				logger.Debug().Str("raw_name", m.Name).Str("issues", validation.Summarize(outcome)).Msg("skipping measurement")
				continue
			}
			if utils.NormalizeName(m.Name) == "" {
				summary.Skipped++
				logger.Debug().Str("raw_value", parsed.Raw).Msg("skipping measurement without a name")
				continue
			}
			pending = append(pending, pendingMeasurement{
				raw:    m,
				parsed: parsed,
				warned: len(outcome.Warnings) > 0,
			})
		}
	}
	return pending
}

// resolveEntries maps the whole batch against one vocabulary snapshot and
// parks unresolved names in the unmapped category.
func (s *IngestionService) resolveEntries(ctx context.Context, pending []pendingMeasurement, summary *IngestSummary) ([]BatchEntry, error) {
	if len(pending) == 0 {
		return nil, nil
	}
	logger := observability.LoggerFromContext(ctx)

	raws := make([]entities.RawMeasurement, len(pending))
	for i, p := range pending {
		raws[i] = p.raw
	}
	suggestions, err := s.resolver.ResolveMany(ctx, raws)
	if err != nil {
		return nil, err
	}

	entries := make([]BatchEntry, 0, len(pending))
	for i, p := range pending {
		entry := BatchEntry{
			RawName:       p.raw.Name,
			Parsed:        p.parsed,
			Unit:          p.raw.Unit,
			RefMin:        p.raw.RefMin,
			RefMax:        p.raw.RefMax,
			ReviewFlagged: p.warned,
		}

		if suggestions[i] != nil {
			entry.CanonicalID = suggestions[i].CanonicalID
			summary.Mapped++
		} else {
			item, err := s.getOrCreateUnmapped(ctx, p.raw.Name)
			if err != nil {
				summary.Skipped++
				logger.Warn().Err(err).Str("raw_name", p.raw.Name).Msg("failed to park measurement as unmapped")
				continue
			}
			entry.CanonicalID = item.ID
			entry.ReviewFlagged = true
			summary.Unmapped++
		}

		if entry.ReviewFlagged {
			summary.ReviewFlagged++
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// getOrCreateUnmapped finds or creates the placeholder canonical item a raw
// name is parked under until a curator or the sweep resolves it.
func (s *IngestionService) getOrCreateUnmapped(ctx context.Context, rawName string) (*entities.CanonicalItem, error) {
	item, err := s.itemRepo.GetByName(ctx, rawName)
	if err == nil {
		return item, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, err
	}

	item = &entities.CanonicalItem{
		Name:     rawName,
		Category: entities.UnmappedCategory,
		IsActive: true,
	}
	if err := s.itemRepo.Create(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *IngestionService) publishEvent(ctx context.Context, eventType string, header *entities.TestRecordHeader) {
	if s.eventBus == nil {
		return
	}
	event := &entities.RecordEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		RecordID:   header.ID,
		SubjectID:  header.SubjectID,
		OccurredAt: time.Now(),
	}
	if err := s.eventBus.Publish(ctx, entities.RecordEventChannel, event); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("record_id", header.ID).Msg("failed to publish record event")
	}
}
