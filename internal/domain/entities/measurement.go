package entities

// RawMeasurement is one extracted line from a source document, as returned
// by the document extraction collaborator. Immutable; consumed once by the
// pipeline.
type RawMeasurement struct {
	Name           string      `json:"name"`
	Value          interface{} `json:"value"`
	Unit           string      `json:"unit"`
	RefMin         *float64    `json:"ref_min"`
	RefMax         *float64    `json:"ref_max"`
	RefText        *string     `json:"ref_text"`
	SourceDocument string      `json:"source_document"`
}
