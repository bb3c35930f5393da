package validation

import (
	"fmt"

	apperrors "github.com/labtrail/backend/pkg/errors"
)

// Issue codes for cross-item checks.
const (
	CodeDifferentialSumMismatch = "differential_sum_mismatch"
	CodeImplausibleRatio        = "implausible_ratio"
)

// Differential sum bounds in percent. Rounding on the printed report
// accounts for a few points of slack either way.
const (
	differentialSumMin = 95.0
	differentialSumMax = 105.0
)

// A/G ratio plausibility band. Outside it the albumin or globulin value
// is probably an extraction error rather than a real finding.
const (
	agRatioMin = 0.3
	agRatioMax = 3.5
)

// CheckDifferentialSum verifies that white cell differential percentages
// add up to roughly 100. Components holds percentage values keyed by item
// code; a partial differential (fewer than two components) is not checked.
func CheckDifferentialSum(components map[string]float64) Outcome {
	var out Outcome
	if len(components) < 2 {
		return out
	}

	var sum float64
	for _, pct := range components {
		sum += pct
	}

	if sum < differentialSumMin || sum > differentialSumMax {
		out.warn(Issue{
			Code:     CodeDifferentialSumMismatch,
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("differential percentages sum to %.1f, expected %.0f-%.0f", sum, differentialSumMin, differentialSumMax),
			Suggestions: []string{
				"one of the differential components was likely misread during extraction",
			},
		})
	}
	return out
}

// CheckAGRatio computes the albumin/globulin ratio and flags implausible
// results. A zero globulin cannot produce a ratio and is an error.
func CheckAGRatio(albumin, globulin float64) (float64, Outcome, error) {
	var out Outcome
	if globulin == 0 {
		return 0, out, apperrors.NewValidationError("globulin must be non-zero to compute the A/G ratio")
	}

	ratio := albumin / globulin
	if ratio < agRatioMin || ratio > agRatioMax {
		out.warn(Issue{
			Code:     CodeImplausibleRatio,
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("A/G ratio %.2f is outside the plausible band %.1f-%.1f", ratio, agRatioMin, agRatioMax),
		})
	}
	return ratio, out, nil
}
