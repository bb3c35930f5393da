package repositories

import (
	"context"

	"github.com/labtrail/backend/internal/domain/entities"
)

// TestRecordRepository defines the interface for record header operations
type TestRecordRepository interface {
	// CreateHeader creates a new record header
	CreateHeader(ctx context.Context, header *entities.TestRecordHeader) error

	// GetHeader retrieves a record header by ID
	GetHeader(ctx context.Context, id string) (*entities.TestRecordHeader, error)

	// UpdateHeader updates a record header
	UpdateHeader(ctx context.Context, header *entities.TestRecordHeader) error

	// DeleteHeader removes a record header. Its result lines are
	// cascade-deleted by the store.
	DeleteHeader(ctx context.Context, id string) error

	// ListHeaders retrieves record headers with filters
	ListHeaders(ctx context.Context, filter TestRecordFilter) ([]*entities.TestRecordHeader, error)
}

// TestRecordFilter defines filters for listing record headers
type TestRecordFilter struct {
	SubjectID string
	Limit     int
	Offset    int
}

// TestResultLineRepository defines the interface for result line operations
type TestResultLineRepository interface {
	// BulkInsert inserts lines, upserting on (record_id, canonical_id)
	BulkInsert(ctx context.Context, lines []*entities.TestResultLine) error

	// ListByRecordID retrieves all lines of one record
	ListByRecordID(ctx context.Context, recordID string) ([]*entities.TestResultLine, error)

	// DeleteByRecordAndCanonical removes one line by its natural key
	DeleteByRecordAndCanonical(ctx context.Context, recordID, canonicalID string) error

	// ReassignToRecord moves a line to another record header
	ReassignToRecord(ctx context.Context, lineID, targetRecordID string) error

	// CountByCanonicalID counts the lines depending on a canonical item
	CountByCanonicalID(ctx context.Context, canonicalID string) (int, error)
}
