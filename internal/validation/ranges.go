package validation

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/labtrail/backend/pkg/utils"
)

// PlausibleRange is the widest range a value can physically take for one
// measurement type. It is independent of any lab's printed reference range.
type PlausibleRange struct {
	Min          float64  `json:"min"`
	Max          float64  `json:"max"`
	Unit         string   `json:"unit"`
	CriticalLow  *float64 `json:"criticalLow,omitempty"`
	CriticalHigh *float64 `json:"criticalHigh,omitempty"`
}

// RangeTable maps normalized item codes to their plausible ranges.
type RangeTable map[string]PlausibleRange

// Lookup finds the range for a raw item name, keyed by normalized code.
func (t RangeTable) Lookup(nameHint string) (PlausibleRange, bool) {
	r, ok := t[utils.NormalizeCode(nameHint)]
	return r, ok
}

func f(v float64) *float64 { return &v }

// DefaultRangeTable returns the built-in plausibility table. Values are
// deliberately generous: the table exists to catch extraction errors, not
// to second-guess unusual but real results.
func DefaultRangeTable() RangeTable {
	return RangeTable{
		// Hematology
		"WBC":   {Min: 0.1, Max: 200, Unit: "10^3/uL", CriticalLow: f(0.5), CriticalHigh: f(100)},
		"RBC":   {Min: 0.5, Max: 10, Unit: "10^6/uL", CriticalLow: f(1.5)},
		"HGB":   {Min: 1, Max: 25, Unit: "g/dL", CriticalLow: f(5), CriticalHigh: f(22)},
		"HCT":   {Min: 5, Max: 75, Unit: "%", CriticalLow: f(15)},
		"PLT":   {Min: 1, Max: 2000, Unit: "10^3/uL", CriticalLow: f(20), CriticalHigh: f(1000)},
		"MCV":   {Min: 50, Max: 150, Unit: "fL"},
		"NEUT":  {Min: 0, Max: 100, Unit: "%"},
		"LYMPH": {Min: 0, Max: 100, Unit: "%"},
		"MONO":  {Min: 0, Max: 100, Unit: "%"},
		"EOS":   {Min: 0, Max: 100, Unit: "%"},
		"BASO":  {Min: 0, Max: 100, Unit: "%"},

		// Chemistry
		"BUN":        {Min: 1, Max: 250, Unit: "mg/dL", CriticalHigh: f(100)},
		"CRE":        {Min: 0.1, Max: 30, Unit: "mg/dL", CriticalHigh: f(10)},
		"CREATININE": {Min: 0.1, Max: 30, Unit: "mg/dL", CriticalHigh: f(10)},
		"GLU":        {Min: 10, Max: 1500, Unit: "mg/dL", CriticalLow: f(40), CriticalHigh: f(500)},
		"HBA1C":      {Min: 3, Max: 20, Unit: "%", CriticalHigh: f(14)},
		"ALT":        {Min: 1, Max: 5000, Unit: "U/L", CriticalHigh: f(1000)},
		"AST":        {Min: 1, Max: 5000, Unit: "U/L", CriticalHigh: f(1000)},
		"ALP":        {Min: 5, Max: 3000, Unit: "U/L"},
		"GGT":        {Min: 1, Max: 3000, Unit: "U/L"},
		"LDH":        {Min: 50, Max: 5000, Unit: "U/L"},
		"AMY":        {Min: 5, Max: 3000, Unit: "U/L"},
		"TBIL":       {Min: 0.1, Max: 50, Unit: "mg/dL", CriticalHigh: f(15)},
		"ALB":        {Min: 0.5, Max: 7, Unit: "g/dL", CriticalLow: f(1.5)},
		"TP":         {Min: 2, Max: 12, Unit: "g/dL"},
		"UA":         {Min: 0.5, Max: 25, Unit: "mg/dL"},
		"TG":         {Min: 10, Max: 5000, Unit: "mg/dL"},
		"TC":         {Min: 50, Max: 1000, Unit: "mg/dL"},
		"HDL":        {Min: 5, Max: 200, Unit: "mg/dL"},
		"LDL":        {Min: 10, Max: 500, Unit: "mg/dL"},
		"CRP":        {Min: 0, Max: 60, Unit: "mg/dL"},

		// Electrolytes
		"NA": {Min: 100, Max: 180, Unit: "mEq/L", CriticalLow: f(120), CriticalHigh: f(160)},
		"K":  {Min: 1, Max: 10, Unit: "mEq/L", CriticalLow: f(2.5), CriticalHigh: f(6.5)},
		"CL": {Min: 70, Max: 140, Unit: "mEq/L"},
		"CA": {Min: 4, Max: 18, Unit: "mg/dL", CriticalLow: f(6), CriticalHigh: f(13)},
	}
}

// LoadRangeTable returns the built-in table, optionally overlaid with
// entries from a JSON file. File entries win over built-ins for the same
// code; keys in the file are normalized before merging.
func LoadRangeTable(path string) (RangeTable, error) {
	table := DefaultRangeTable()
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read range table file: %w", err)
	}

	var overrides map[string]PlausibleRange
	if err := json.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse range table file: %w", err)
	}

	for code, r := range overrides {
		table[utils.NormalizeCode(code)] = r
	}
	return table, nil
}
