package services

import (
	"github.com/labtrail/backend/internal/domain/entities"
	"github.com/labtrail/backend/pkg/measure"
)

// BatchEntry is one parsed, resolved measurement waiting to be reconciled
// into a record.
type BatchEntry struct {
	CanonicalID   string
	RawName       string
	Parsed        measure.ParsedValue
	Unit          string
	RefMin        *float64
	RefMax        *float64
	ReviewFlagged bool
}

// BatchReconciler collapses a batch of entries into at most one result line
// per canonical item and classifies each value against its printed
// reference range.
type BatchReconciler struct{}

// NewBatchReconciler creates a new batch reconciler
func NewBatchReconciler() *BatchReconciler {
	return &BatchReconciler{}
}

// Reconcile deduplicates entries by canonical id and builds result lines
// for one record. When the same item appears more than once, the first
// arrival is kept; a later reading replaces it only when the kept value is
// null or zero and the new one carries real information. Output order
// follows first arrival. The second return value counts collapsed
// duplicates.
func (r *BatchReconciler) Reconcile(recordID string, entries []BatchEntry) ([]*entities.TestResultLine, int) {
	byCanonical := make(map[string]*entities.TestResultLine)
	order := make([]string, 0, len(entries))
	deduplicated := 0

	for _, entry := range entries {
		line := r.buildLine(recordID, entry)

		existing, seen := byCanonical[entry.CanonicalID]
		if !seen {
			byCanonical[entry.CanonicalID] = line
			order = append(order, entry.CanonicalID)
			continue
		}

		deduplicated++
		if improves(existing.Value, line.Value) {
			byCanonical[entry.CanonicalID] = line
		}
	}

	lines := make([]*entities.TestResultLine, 0, len(order))
	for _, id := range order {
		lines = append(lines, byCanonical[id])
	}
	return lines, deduplicated
}

func (r *BatchReconciler) buildLine(recordID string, entry BatchEntry) *entities.TestResultLine {
	var value *float64
	if entry.Parsed.HasNumeric() {
		v := *entry.Parsed.Numeric
		value = &v
	}

	return &entities.TestResultLine{
		RecordID:      recordID,
		CanonicalID:   entry.CanonicalID,
		Value:         value,
		RawValue:      entry.Parsed.Raw,
		Unit:          entry.Unit,
		RefMin:        entry.RefMin,
		RefMax:        entry.RefMax,
		Status:        entities.ComputeStatus(value, entry.RefMin, entry.RefMax),
		RawName:       entry.RawName,
		ReviewFlagged: entry.ReviewFlagged,
	}
}

// improves reports whether a candidate reading should replace the kept one.
// A kept null yields to any numeric value and a kept zero yields to a
// non-zero one; a value that already carries information is never
// overwritten by a later document.
func improves(kept, candidate *float64) bool {
	if candidate == nil {
		return false
	}
	if kept == nil {
		return true
	}
	return *kept == 0 && *candidate != 0
}
