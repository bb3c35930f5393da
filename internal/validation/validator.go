package validation

import (
	"fmt"
	"strings"

	"github.com/labtrail/backend/pkg/measure"
)

// Issue severity levels. High means the value is very likely an
// extraction artifact and needs human review before it can be trusted.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// Issue codes.
const (
	CodeMissingValue       = "missing_value"
	CodeUnrecognizedFormat = "unrecognized_format"
	CodeNegativeValue      = "negative_value"
	CodeOutOfRange         = "out_of_biological_range"
	CodeUnusualValue       = "unusual_value"
	CodeImplausibleZero    = "implausible_zero"
	CodeGlyphConfusion     = "possible_glyph_confusion"
)

// Issue is a single finding about one measurement value.
type Issue struct {
	Code        string   `json:"code"`
	Severity    string   `json:"severity"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Outcome collects everything the validator found. Errors mean the value
// cannot be stored as-is; warnings travel with it for review.
type Outcome struct {
	Warnings []Issue `json:"warnings"`
	Errors   []Issue `json:"errors"`
}

// Valid reports whether the value can be stored.
func (o Outcome) Valid() bool { return len(o.Errors) == 0 }

// HasWarning reports whether any warning carries the given code.
func (o Outcome) HasWarning(code string) bool {
	for _, w := range o.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

func (o *Outcome) warn(issue Issue) { o.Warnings = append(o.Warnings, issue) }
func (o *Outcome) fail(issue Issue) { o.Errors = append(o.Errors, issue) }

// Validator checks parsed values against a biological plausibility table
// and flags patterns characteristic of scan extraction errors.
type Validator struct {
	table RangeTable
}

// NewValidator creates a validator over the given range table.
func NewValidator(table RangeTable) *Validator {
	if table == nil {
		table = DefaultRangeTable()
	}
	return &Validator{table: table}
}

// Validate checks one parsed value for the named item. The name is only a
// hint: unknown items still get format and sign checks, just no range check.
func (v *Validator) Validate(nameHint string, value measure.ParsedValue) Outcome {
	var out Outcome

	if !value.HasNumeric() {
		switch {
		case value.Kind == measure.KindSpecial && value.Special == measure.SpecialBlank:
			out.fail(Issue{
				Code:     CodeMissingValue,
				Severity: SeverityHigh,
				Message:  "value is empty",
			})
		case value.Kind == measure.KindUnparsed:
			out.warn(Issue{
				Code:     CodeUnrecognizedFormat,
				Severity: SeverityMedium,
				Message:  fmt.Sprintf("value %q has no recognized numeric or qualitative form", value.Raw),
			})
		}
		// Qualitative and not-applicable tokens are fine as-is.
		return out
	}

	num := *value.Numeric

	if num < 0 {
		out.warn(Issue{
			Code:     CodeNegativeValue,
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("negative value %g is not biologically possible", num),
		})
	}

	r, known := v.table.Lookup(nameHint)
	if !known {
		return out
	}

	if num < r.Min || num > r.Max {
		issue := Issue{
			Code:     CodeOutOfRange,
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("value %g is outside the plausible range %g-%g %s", num, r.Min, r.Max, r.Unit),
		}
		issue.Suggestions = append(issue.Suggestions, "verify against the source document")
		out.warn(issue)
	}

	// Critical thresholds are checked independently of the range bounds: a
	// value can be both implausible and past a critical cutoff.
	if r.CriticalHigh != nil && num > *r.CriticalHigh {
		out.warn(Issue{
			Code:     CodeUnusualValue,
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("value %g exceeds the critical threshold %g %s", num, *r.CriticalHigh, r.Unit),
		})
	}
	if r.CriticalLow != nil && num < *r.CriticalLow {
		out.warn(Issue{
			Code:     CodeUnusualValue,
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("value %g is below the critical threshold %g %s", num, *r.CriticalLow, r.Unit),
		})
	}

	v.applyScanHeuristics(&out, num, r)
	return out
}

// applyScanHeuristics adds correction hints for the error patterns scanned
// reports produce: dropped decimal points, misread letters as zero, and
// the 1/l/I glyph family.
func (v *Validator) applyScanHeuristics(out *Outcome, num float64, r PlausibleRange) {
	if num > 10*r.Max {
		v.appendSuggestions(out, CodeOutOfRange, []string{
			fmt.Sprintf("a missing decimal point would make it %g", num/10),
			fmt.Sprintf("a shifted decimal point would make it %g", num/100),
		})
	}

	if num == 0 && r.Min > 0 {
		out.warn(Issue{
			Code:     CodeImplausibleZero,
			Severity: SeverityHigh,
			Message:  "zero is not plausible for this item; a letter may have been misread as 0",
		})
	}

	if num > 0 && num < 2 && r.Min > num {
		out.warn(Issue{
			Code:     CodeGlyphConfusion,
			Severity: SeverityMedium,
			Message:  fmt.Sprintf("value %g may come from a 1/l/I glyph confusion during extraction", num),
		})
	}
}

func (v *Validator) appendSuggestions(out *Outcome, code string, suggestions []string) {
	for i := range out.Warnings {
		if out.Warnings[i].Code == code {
			out.Warnings[i].Suggestions = append(out.Warnings[i].Suggestions, suggestions...)
			return
		}
	}
	out.warn(Issue{
		Code:        code,
		Severity:    SeverityHigh,
		Message:     "value is outside the plausible range",
		Suggestions: suggestions,
	})
}

// Summarize renders the outcome as a single line for logs.
func Summarize(out Outcome) string {
	if out.Valid() && len(out.Warnings) == 0 {
		return "ok"
	}
	parts := make([]string, 0, len(out.Errors)+len(out.Warnings))
	for _, e := range out.Errors {
		parts = append(parts, "error:"+e.Code)
	}
	for _, w := range out.Warnings {
		parts = append(parts, "warn:"+w.Code)
	}
	return strings.Join(parts, ",")
}
