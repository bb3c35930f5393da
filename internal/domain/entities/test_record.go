package entities

import "time"

// ResultStatus classifies a line's value against its per-source reference
// range.
type ResultStatus string

const (
	StatusHigh    ResultStatus = "high"
	StatusLow     ResultStatus = "low"
	StatusNormal  ResultStatus = "normal"
	StatusUnknown ResultStatus = "unknown"
)

// TestRecordHeader is one measurement session.
type TestRecordHeader struct {
	ID           string    `json:"id" db:"id"`
	TestDate     time.Time `json:"test_date" db:"test_date"`
	HospitalName string    `json:"hospital_name" db:"hospital_name"`
	SubjectID    string    `json:"subject_id" db:"subject_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// TestResultLine is one reconciled measurement within a record. At most one
// line exists per (RecordID, CanonicalID); the store enforces this with a
// unique constraint.
type TestResultLine struct {
	ID          string       `json:"id" db:"id"`
	RecordID    string       `json:"record_id" db:"record_id"`
	CanonicalID string       `json:"canonical_id" db:"canonical_id"`
	Value       *float64     `json:"value" db:"value"`
	RawValue    string       `json:"raw_value" db:"raw_value"`
	Unit        string       `json:"unit" db:"unit"`
	RefMin      *float64     `json:"ref_min" db:"ref_min"`
	RefMax      *float64     `json:"ref_max" db:"ref_max"`
	Status      ResultStatus `json:"status" db:"status"`
	// RawName preserves the extracted spelling for lines parked in the
	// unmapped category so curators can still see what was printed.
	RawName       string    `json:"raw_name" db:"raw_name"`
	ReviewFlagged bool      `json:"review_flagged" db:"review_flagged"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// ComputeStatus classifies value against [refMin, refMax]. Unknown when the
// value or either bound is missing. Bounds come from the source document's
// printed reference range, not the biological plausibility table.
func ComputeStatus(value, refMin, refMax *float64) ResultStatus {
	if value == nil || refMin == nil || refMax == nil {
		return StatusUnknown
	}
	switch {
	case *value > *refMax:
		return StatusHigh
	case *value < *refMin:
		return StatusLow
	default:
		return StatusNormal
	}
}
