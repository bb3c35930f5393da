package measure

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind tags a parsed measurement value
type Kind int

const (
	// KindNumeric is a plain numeric reading
	KindNumeric Kind = iota

	// KindSpecial is a recognized non-plain token (comparator, flag,
	// qualitative, not-applicable, blank)
	KindSpecial

	// KindUnparsed is a token no rule recognized; a numeric component may
	// still have been salvaged from it
	KindUnparsed
)

// SpecialKind identifies which rule matched a special token
type SpecialKind string

const (
	SpecialComparator    SpecialKind = "comparator"
	SpecialFlagged       SpecialKind = "flagged"
	SpecialQualitative   SpecialKind = "qualitative"
	SpecialNotApplicable SpecialKind = "not_applicable"
	SpecialBlank         SpecialKind = "blank"
)

// ParsedValue is the typed result of parsing one raw value token.
// Numeric is nil when no numeric component was found.
type ParsedValue struct {
	Kind    Kind
	Special SpecialKind
	Numeric *float64
	Raw     string
}

// IsSpecial reports whether the token matched a special rule
func (v ParsedValue) IsSpecial() bool {
	return v.Kind == KindSpecial
}

// HasNumeric reports whether a numeric component was extracted
func (v ParsedValue) HasNumeric() bool {
	return v.Numeric != nil
}

var (
	plainDecimalRe = regexp.MustCompile(`^[+-]?\d+(\.\d+)?$`)
	comparatorRe   = regexp.MustCompile(`^[<>≤≥]\s*=?\s*(\d+(\.\d+)?)$`)
	flaggedRe      = regexp.MustCompile(`^\*?\s*(\d+(\.\d+)?)\s*(\*|[HL])?$`)
	qualitativeRe  = regexp.MustCompile(`(?i)^\(?\s*(positive|negative|pos|neg|reactive|non-?reactive|detected|not\s+detected|[+-]{1,3})\s*\)?$`)
	naRe           = regexp.MustCompile(`(?i)^(n/?a|n\.a\.?|not\s+applicable|not\s+tested|not\s+done|none)$`)
	firstNumberRe  = regexp.MustCompile(`\d+(\.\d+)?`)
)

// Parse turns a raw value token into a typed measurement value. Numeric
// inputs pass through unchanged; strings run through an ordered rule
// cascade. Parse never fails: tokens no rule recognizes degrade to
// KindUnparsed and are surfaced later by validation.
func Parse(raw interface{}) ParsedValue {
	switch v := raw.(type) {
	case float64:
		return numericValue(v, strconv.FormatFloat(v, 'f', -1, 64))
	case float32:
		return numericValue(float64(v), strconv.FormatFloat(float64(v), 'f', -1, 64))
	case int:
		return numericValue(float64(v), strconv.Itoa(v))
	case int64:
		return numericValue(float64(v), strconv.FormatInt(v, 10))
	case string:
		return parseString(v)
	case nil:
		return ParsedValue{Kind: KindSpecial, Special: SpecialBlank, Raw: ""}
	default:
		return ParsedValue{Kind: KindUnparsed, Raw: ""}
	}
}

// ParseString parses a raw string token
func ParseString(raw string) ParsedValue {
	return parseString(raw)
}

func parseString(raw string) ParsedValue {
	token := strings.TrimSpace(raw)
	// Thousand separators show up in counts like "12,500"
	normalized := strings.ReplaceAll(token, ",", "")

	if token == "" || isDashes(token) {
		return ParsedValue{Kind: KindSpecial, Special: SpecialBlank, Raw: raw}
	}

	if plainDecimalRe.MatchString(normalized) {
		if f, err := strconv.ParseFloat(normalized, 64); err == nil {
			return numericValue(f, raw)
		}
	}

	if m := comparatorRe.FindStringSubmatch(normalized); m != nil {
		f, _ := strconv.ParseFloat(m[1], 64)
		return ParsedValue{Kind: KindSpecial, Special: SpecialComparator, Numeric: &f, Raw: raw}
	}

	if m := flaggedRe.FindStringSubmatch(normalized); m != nil && (strings.ContainsAny(normalized, "*HL") || strings.HasPrefix(normalized, "*")) {
		f, _ := strconv.ParseFloat(m[1], 64)
		return ParsedValue{Kind: KindSpecial, Special: SpecialFlagged, Numeric: &f, Raw: raw}
	}

	if qualitativeRe.MatchString(token) {
		return ParsedValue{Kind: KindSpecial, Special: SpecialQualitative, Raw: raw}
	}

	if naRe.MatchString(token) {
		return ParsedValue{Kind: KindSpecial, Special: SpecialNotApplicable, Raw: raw}
	}

	// No rule matched; salvage the first numeric component if one exists so
	// noisy extractions like "12.3 mg/dL (fasting)" keep their reading.
	if m := firstNumberRe.FindString(normalized); m != "" {
		if f, err := strconv.ParseFloat(m, 64); err == nil {
			return ParsedValue{Kind: KindUnparsed, Numeric: &f, Raw: raw}
		}
	}

	return ParsedValue{Kind: KindUnparsed, Raw: raw}
}

func numericValue(f float64, raw string) ParsedValue {
	return ParsedValue{Kind: KindNumeric, Numeric: &f, Raw: raw}
}

func isDashes(token string) bool {
	for _, r := range token {
		if r != '-' && r != '–' && r != '—' {
			return false
		}
	}
	return len(token) > 0
}
