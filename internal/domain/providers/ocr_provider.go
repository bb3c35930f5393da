package providers

import (
	"context"
	"time"

	"github.com/labtrail/backend/internal/domain/entities"
)

// SourceDocument identifies one scanned document to extract.
type SourceDocument struct {
	ID    string `json:"id"`
	URI   string `json:"uri"`
	Label string `json:"label"`
}

// ExtractedDocument is the extraction collaborator's output for one
// document: the raw measurement lines plus document-level metadata.
type ExtractedDocument struct {
	Document     SourceDocument           `json:"document"`
	Measurements []entities.RawMeasurement `json:"measurements"`
	TestDate     *time.Time               `json:"test_date"`
	HospitalName string                   `json:"hospital_name"`
}

// OCRProvider is the external document extraction collaborator. Extraction
// itself is opaque to the pipeline.
type OCRProvider interface {
	// ExtractDocument extracts the measurement lines of one document
	ExtractDocument(ctx context.Context, doc SourceDocument) (*ExtractedDocument, error)
}
