package entities

import "time"

// ItemConflict reports one canonical item whose value differs between the
// source and target records of a planned merge.
type ItemConflict struct {
	CanonicalID string   `json:"canonical_id"`
	SourceValue *float64 `json:"source_value"`
	TargetValue *float64 `json:"target_value"`
}

// MergeResolution says which side wins for one conflicted canonical item.
type MergeResolution struct {
	CanonicalID string `json:"canonical_id"`
	UseSource   bool   `json:"use_source"`
}

// MergePlan is the result of planning a merge of two record headers.
// Conflicts are always shown to the caller before execution; nothing is
// auto-resolved.
type MergePlan struct {
	SourceID         string         `json:"source_id"`
	TargetID         string         `json:"target_id"`
	DateConflict     bool           `json:"date_conflict"`
	HospitalConflict bool           `json:"hospital_conflict"`
	ItemConflicts    []ItemConflict `json:"item_conflicts"`
}

// RecordEvent is published on the event bus when a record is created or
// merged.
type RecordEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	RecordID   string    `json:"record_id"`
	SubjectID  string    `json:"subject_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Record event types.
const (
	RecordEventIngested = "record.ingested"
	RecordEventMerged   = "record.merged"
)

// RecordEventChannel is the pub/sub channel record lifecycle events are
// published on.
const RecordEventChannel = "records.lifecycle"
