package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/labtrail/backend/internal/domain/entities"
	"github.com/labtrail/backend/internal/domain/providers"
	"github.com/labtrail/backend/internal/validation"
	apperrors "github.com/labtrail/backend/pkg/errors"
)

type ingestionFixture struct {
	service    *IngestionService
	ocr        *MockOCRProvider
	itemRepo   *MockCanonicalItemRepo
	aliasRepo  *MockAliasRepo
	recordRepo *MockTestRecordRepo
	lineRepo   *MockTestResultLineRepo
	eventBus   *MockEventBus
}

func setupIngestion() *ingestionFixture {
	f := &ingestionFixture{
		ocr:        new(MockOCRProvider),
		itemRepo:   new(MockCanonicalItemRepo),
		aliasRepo:  new(MockAliasRepo),
		recordRepo: new(MockTestRecordRepo),
		lineRepo:   new(MockTestResultLineRepo),
		eventBus:   new(MockEventBus),
	}
	resolver := NewResolutionService(f.itemRepo, f.aliasRepo, nil)
	f.service = NewIngestionService(
		f.ocr,
		resolver,
		validation.NewValidator(nil),
		NewBatchReconciler(),
		f.itemRepo,
		f.recordRepo,
		f.lineRepo,
		f.eventBus,
	)
	return f
}

func refPtr(v float64) *float64 { return &v }

func extractedFixture(doc providers.SourceDocument, measurements []entities.RawMeasurement) *providers.ExtractedDocument {
	testDate := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	return &providers.ExtractedDocument{
		Document:     doc,
		Measurements: measurements,
		TestDate:     &testDate,
		HospitalName: "St. Mary's",
	}
}

func TestIngestDocuments_DeduplicatesSameItemAcrossSpellings(t *testing.T) {
	f := setupIngestion()
	doc := providers.SourceDocument{ID: "doc-1", URI: "s3://scans/doc-1.pdf"}

	f.ocr.On("ExtractDocument", mock.Anything, doc).Return(extractedFixture(doc, []entities.RawMeasurement{
		{Name: "BUN", Value: "25", Unit: "mg/dL", RefMin: refPtr(8), RefMax: refPtr(20)},
		{Name: "B.U.N", Value: 25.0, Unit: "mg/dL", RefMin: refPtr(8), RefMax: refPtr(20)},
	}), nil)

	f.itemRepo.On("List", mock.Anything, mock.Anything).Return([]*entities.CanonicalItem{
		{ID: "item-bun", Name: "BUN", UnitDefault: "mg/dL", Category: "kidney", IsActive: true},
	}, nil)
	f.aliasRepo.On("List", mock.Anything).Return([]*entities.AliasEntry{}, nil)
	f.aliasRepo.On("GetByAlias", mock.Anything, "BUN").Return(nil, apperrors.NewNotFoundError("no alias"))
	f.aliasRepo.On("GetByAlias", mock.Anything, "B.U.N").Return(&entities.AliasEntry{
		ID: "alias-1", Alias: "B.U.N", CanonicalID: "item-bun",
	}, nil)

	f.recordRepo.On("CreateHeader", mock.Anything, mock.Anything).Return(nil)

	var inserted []*entities.TestResultLine
	f.lineRepo.On("BulkInsert", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		inserted = args.Get(1).([]*entities.TestResultLine)
	}).Return(nil)
	f.eventBus.On("Publish", mock.Anything, entities.RecordEventChannel, mock.MatchedBy(func(e *entities.RecordEvent) bool {
		return e.Type == entities.RecordEventIngested
	})).Return(nil)

	summary, err := f.service.IngestDocuments(context.Background(), "subject-1", []providers.SourceDocument{doc})

	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalExtracted)
	assert.Equal(t, 2, summary.Mapped)
	assert.Equal(t, 1, summary.Deduplicated)
	assert.Equal(t, 0, summary.Unmapped)

	require.Len(t, inserted, 1)
	assert.Equal(t, "item-bun", inserted[0].CanonicalID)
	require.NotNil(t, inserted[0].Value)
	assert.Equal(t, 25.0, *inserted[0].Value)
	assert.Equal(t, entities.StatusHigh, inserted[0].Status)
	f.eventBus.AssertExpectations(t)
}

func TestIngestDocuments_ParksUnresolvedNamesAsUnmapped(t *testing.T) {
	f := setupIngestion()
	doc := providers.SourceDocument{ID: "doc-1", URI: "s3://scans/doc-1.pdf"}

	f.ocr.On("ExtractDocument", mock.Anything, doc).Return(extractedFixture(doc, []entities.RawMeasurement{
		{Name: "mystery marker", Value: "1.8"},
	}), nil)

	f.itemRepo.On("List", mock.Anything, mock.Anything).Return([]*entities.CanonicalItem{
		{ID: "item-bun", Name: "BUN", Category: "kidney", IsActive: true},
	}, nil)
	f.aliasRepo.On("List", mock.Anything).Return([]*entities.AliasEntry{}, nil)
	f.aliasRepo.On("GetByAlias", mock.Anything, mock.Anything).Return(nil, apperrors.NewNotFoundError("no alias"))

	f.itemRepo.On("GetByName", mock.Anything, "mystery marker").Return(nil, apperrors.NewNotFoundError("no item"))
	f.itemRepo.On("Create", mock.Anything, mock.MatchedBy(func(item *entities.CanonicalItem) bool {
		return item.Name == "mystery marker" && item.Category == entities.UnmappedCategory && item.IsActive
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*entities.CanonicalItem).ID = "item-unmapped-1"
	}).Return(nil)

	f.recordRepo.On("CreateHeader", mock.Anything, mock.Anything).Return(nil)

	var inserted []*entities.TestResultLine
	f.lineRepo.On("BulkInsert", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		inserted = args.Get(1).([]*entities.TestResultLine)
	}).Return(nil)
	f.eventBus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	summary, err := f.service.IngestDocuments(context.Background(), "subject-1", []providers.SourceDocument{doc})

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Unmapped)
	assert.Equal(t, 0, summary.Mapped)

	require.Len(t, inserted, 1)
	assert.Equal(t, "item-unmapped-1", inserted[0].CanonicalID)
	assert.Equal(t, "mystery marker", inserted[0].RawName)
	assert.True(t, inserted[0].ReviewFlagged)
	f.itemRepo.AssertExpectations(t)
}

func TestIngestDocuments_LoadsVocabularyOncePerBatch(t *testing.T) {
	f := setupIngestion()
	doc := providers.SourceDocument{ID: "doc-1", URI: "s3://scans/doc-1.pdf"}

	f.ocr.On("ExtractDocument", mock.Anything, doc).Return(extractedFixture(doc, []entities.RawMeasurement{
		{Name: "BUN", Value: "25"},
		{Name: "Glucose", Value: "95"},
		{Name: "Glucose", Value: "96"},
	}), nil)

	f.itemRepo.On("List", mock.Anything, mock.Anything).Return([]*entities.CanonicalItem{
		{ID: "item-bun", Name: "BUN", Category: "kidney", IsActive: true},
		{ID: "item-glucose", Name: "Glucose", Category: "metabolic", IsActive: true},
	}, nil).Once()
	f.aliasRepo.On("List", mock.Anything).Return([]*entities.AliasEntry{}, nil).Once()
	f.aliasRepo.On("GetByAlias", mock.Anything, "BUN").Return(nil, apperrors.NewNotFoundError("no alias")).Once()
	f.aliasRepo.On("GetByAlias", mock.Anything, "Glucose").Return(nil, apperrors.NewNotFoundError("no alias")).Once()

	f.recordRepo.On("CreateHeader", mock.Anything, mock.Anything).Return(nil)
	f.lineRepo.On("BulkInsert", mock.Anything, mock.Anything).Return(nil)
	f.eventBus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	summary, err := f.service.IngestDocuments(context.Background(), "subject-1", []providers.SourceDocument{doc})

	require.NoError(t, err)
	assert.Equal(t, 3, summary.Mapped)
	assert.Equal(t, 1, summary.Deduplicated)
	f.itemRepo.AssertExpectations(t)
	f.aliasRepo.AssertExpectations(t)
}

func TestIngestDocuments_RollsBackHeaderWhenLineInsertFails(t *testing.T) {
	f := setupIngestion()
	doc := providers.SourceDocument{ID: "doc-1", URI: "s3://scans/doc-1.pdf"}

	f.ocr.On("ExtractDocument", mock.Anything, doc).Return(extractedFixture(doc, []entities.RawMeasurement{
		{Name: "BUN", Value: "25"},
	}), nil)

	f.itemRepo.On("List", mock.Anything, mock.Anything).Return([]*entities.CanonicalItem{
		{ID: "item-bun", Name: "BUN", Category: "kidney", IsActive: true},
	}, nil)
	f.aliasRepo.On("List", mock.Anything).Return([]*entities.AliasEntry{}, nil)
	f.aliasRepo.On("GetByAlias", mock.Anything, mock.Anything).Return(nil, apperrors.NewNotFoundError("no alias"))

	var headerID string
	f.recordRepo.On("CreateHeader", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		headerID = args.Get(1).(*entities.TestRecordHeader).ID
	}).Return(nil)
	f.lineRepo.On("BulkInsert", mock.Anything, mock.Anything).Return(errors.New("constraint violation"))
	f.recordRepo.On("DeleteHeader", mock.Anything, mock.MatchedBy(func(id string) bool {
		return id == headerID
	})).Return(nil)

	_, err := f.service.IngestDocuments(context.Background(), "subject-1", []providers.SourceDocument{doc})

	require.Error(t, err)
	f.recordRepo.AssertCalled(t, "DeleteHeader", mock.Anything, mock.Anything)
	f.eventBus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestDocuments_SkipsEmptyValues(t *testing.T) {
	f := setupIngestion()
	doc := providers.SourceDocument{ID: "doc-1", URI: "s3://scans/doc-1.pdf"}

	f.ocr.On("ExtractDocument", mock.Anything, doc).Return(extractedFixture(doc, []entities.RawMeasurement{
		{Name: "BUN", Value: ""},
	}), nil)

	f.recordRepo.On("CreateHeader", mock.Anything, mock.Anything).Return(nil)
	f.lineRepo.On("BulkInsert", mock.Anything, mock.Anything).Return(nil)
	f.eventBus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	summary, err := f.service.IngestDocuments(context.Background(), "subject-1", []providers.SourceDocument{doc})

	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalExtracted)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Mapped)
}

func TestIngestDocuments_ExtractionFailureAbortsBatch(t *testing.T) {
	f := setupIngestion()
	doc := providers.SourceDocument{ID: "doc-1", URI: "s3://scans/doc-1.pdf"}

	f.ocr.On("ExtractDocument", mock.Anything, doc).Return(nil, errors.New("service unavailable"))

	_, err := f.service.IngestDocuments(context.Background(), "subject-1", []providers.SourceDocument{doc})

	require.Error(t, err)
	f.recordRepo.AssertNotCalled(t, "CreateHeader", mock.Anything, mock.Anything)
}

func TestIngestDocuments_MergesMeasurementsAcrossDocuments(t *testing.T) {
	f := setupIngestion()
	doc1 := providers.SourceDocument{ID: "doc-1", URI: "s3://scans/p1.pdf"}
	doc2 := providers.SourceDocument{ID: "doc-2", URI: "s3://scans/p2.pdf"}

	f.ocr.On("ExtractDocument", mock.Anything, doc1).Return(extractedFixture(doc1, []entities.RawMeasurement{
		{Name: "BUN", Value: "25"},
	}), nil)
	f.ocr.On("ExtractDocument", mock.Anything, doc2).Return(&providers.ExtractedDocument{
		Document: doc2,
		Measurements: []entities.RawMeasurement{
			{Name: "Glucose", Value: "95"},
		},
	}, nil)

	f.itemRepo.On("List", mock.Anything, mock.Anything).Return([]*entities.CanonicalItem{
		{ID: "item-bun", Name: "BUN", Category: "kidney", IsActive: true},
		{ID: "item-glucose", Name: "Glucose", Category: "metabolic", IsActive: true},
	}, nil)
	f.aliasRepo.On("List", mock.Anything).Return([]*entities.AliasEntry{}, nil)
	f.aliasRepo.On("GetByAlias", mock.Anything, mock.Anything).Return(nil, apperrors.NewNotFoundError("no alias"))

	f.recordRepo.On("CreateHeader", mock.Anything, mock.MatchedBy(func(h *entities.TestRecordHeader) bool {
		return h.HospitalName == "St. Mary's" && h.SubjectID == "subject-1"
	})).Return(nil)

	var inserted []*entities.TestResultLine
	f.lineRepo.On("BulkInsert", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		inserted = args.Get(1).([]*entities.TestResultLine)
	}).Return(nil)
	f.eventBus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	summary, err := f.service.IngestDocuments(context.Background(), "subject-1", []providers.SourceDocument{doc1, doc2})

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Mapped)
	require.Len(t, inserted, 2)
	f.recordRepo.AssertExpectations(t)
}
