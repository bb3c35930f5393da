package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/labtrail/backend/internal/domain/entities"
	"github.com/labtrail/backend/internal/domain/providers"
	"github.com/labtrail/backend/internal/domain/repositories"
)

// Mocks

type MockCanonicalItemRepo struct {
	mock.Mock
}

func (m *MockCanonicalItemRepo) Create(ctx context.Context, item *entities.CanonicalItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockCanonicalItemRepo) GetByID(ctx context.Context, id string) (*entities.CanonicalItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.CanonicalItem), args.Error(1)
}

func (m *MockCanonicalItemRepo) GetByIDs(ctx context.Context, ids []string) ([]*entities.CanonicalItem, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.CanonicalItem), args.Error(1)
}

func (m *MockCanonicalItemRepo) GetByName(ctx context.Context, name string) (*entities.CanonicalItem, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.CanonicalItem), args.Error(1)
}

func (m *MockCanonicalItemRepo) List(ctx context.Context, filter repositories.CanonicalItemFilter) ([]*entities.CanonicalItem, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.CanonicalItem), args.Error(1)
}

func (m *MockCanonicalItemRepo) Update(ctx context.Context, item *entities.CanonicalItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockCanonicalItemRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockAliasRepo struct {
	mock.Mock
}

func (m *MockAliasRepo) Create(ctx context.Context, entry *entities.AliasEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAliasRepo) GetByAlias(ctx context.Context, alias string) (*entities.AliasEntry, error) {
	args := m.Called(ctx, alias)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.AliasEntry), args.Error(1)
}

func (m *MockAliasRepo) List(ctx context.Context) ([]*entities.AliasEntry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.AliasEntry), args.Error(1)
}

func (m *MockAliasRepo) DeleteByCanonicalID(ctx context.Context, canonicalID string) error {
	args := m.Called(ctx, canonicalID)
	return args.Error(0)
}

type MockTestRecordRepo struct {
	mock.Mock
}

func (m *MockTestRecordRepo) CreateHeader(ctx context.Context, header *entities.TestRecordHeader) error {
	args := m.Called(ctx, header)
	return args.Error(0)
}

func (m *MockTestRecordRepo) GetHeader(ctx context.Context, id string) (*entities.TestRecordHeader, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.TestRecordHeader), args.Error(1)
}

func (m *MockTestRecordRepo) UpdateHeader(ctx context.Context, header *entities.TestRecordHeader) error {
	args := m.Called(ctx, header)
	return args.Error(0)
}

func (m *MockTestRecordRepo) DeleteHeader(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTestRecordRepo) ListHeaders(ctx context.Context, filter repositories.TestRecordFilter) ([]*entities.TestRecordHeader, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.TestRecordHeader), args.Error(1)
}

type MockTestResultLineRepo struct {
	mock.Mock
}

func (m *MockTestResultLineRepo) BulkInsert(ctx context.Context, lines []*entities.TestResultLine) error {
	args := m.Called(ctx, lines)
	return args.Error(0)
}

func (m *MockTestResultLineRepo) ListByRecordID(ctx context.Context, recordID string) ([]*entities.TestResultLine, error) {
	args := m.Called(ctx, recordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.TestResultLine), args.Error(1)
}

func (m *MockTestResultLineRepo) DeleteByRecordAndCanonical(ctx context.Context, recordID, canonicalID string) error {
	args := m.Called(ctx, recordID, canonicalID)
	return args.Error(0)
}

func (m *MockTestResultLineRepo) ReassignToRecord(ctx context.Context, lineID, targetRecordID string) error {
	args := m.Called(ctx, lineID, targetRecordID)
	return args.Error(0)
}

func (m *MockTestResultLineRepo) CountByCanonicalID(ctx context.Context, canonicalID string) (int, error) {
	args := m.Called(ctx, canonicalID)
	return args.Int(0), args.Error(1)
}

type MockOCRProvider struct {
	mock.Mock
}

func (m *MockOCRProvider) ExtractDocument(ctx context.Context, doc providers.SourceDocument) (*providers.ExtractedDocument, error) {
	args := m.Called(ctx, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.ExtractedDocument), args.Error(1)
}

type MockMatchProvider struct {
	mock.Mock
}

func (m *MockMatchProvider) SuggestMatch(ctx context.Context, req providers.MatchRequest) (*entities.MappingSuggestion, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.MappingSuggestion), args.Error(1)
}

type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.RecordEvent) error {
	args := m.Called(ctx, channel, event)
	return args.Error(0)
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.RecordEvent, error) {
	args := m.Called(ctx, channel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan *entities.RecordEvent), args.Error(1)
}

func (m *MockEventBus) Unsubscribe(ctx context.Context, channel string) error {
	args := m.Called(ctx, channel)
	return args.Error(0)
}

func (m *MockEventBus) Close() error {
	args := m.Called()
	return args.Error(0)
}
