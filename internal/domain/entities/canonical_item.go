package entities

import "time"

// UnmappedCategory is the reserved category that raw names which could not
// be resolved are persisted under, pending curation.
const UnmappedCategory = "unmapped"

// CanonicalItem is one entry in the curated vocabulary of measurement
// types. The pipeline looks items up but never creates them.
type CanonicalItem struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	DisplayName string    `json:"display_name" db:"display_name"`
	UnitDefault string    `json:"unit_default" db:"unit_default"`
	Category    string    `json:"category" db:"category"`
	OrganTags   []string  `json:"organ_tags" db:"organ_tags"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// AliasEntry maps one free-text spelling to a canonical item. Aliases are
// curated in advance and are the highest-confidence resolution path.
type AliasEntry struct {
	ID          string    `json:"id" db:"id"`
	Alias       string    `json:"alias" db:"alias"`
	CanonicalID string    `json:"canonical_id" db:"canonical_id"`
	SourceHint  string    `json:"source_hint" db:"source_hint"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// MappingSuggestion is the ephemeral output of resolving a single raw
// name. Confidence is 0-100. It is never persisted directly.
type MappingSuggestion struct {
	CanonicalID string `json:"canonical_id"`
	Confidence  int    `json:"confidence"`
	Reasoning   string `json:"reasoning"`
}
