package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/labtrail/backend/internal/domain/providers"
)

const matchSystemPrompt = `You map a laboratory test name extracted from a scanned report to one entry of a fixed vocabulary. Return ONLY valid JSON with this schema:
{
  "canonical_id": string (the id of the single best candidate, or ""),
  "confidence": integer 0-100,
  "reasoning": string (one short sentence),
  "refusal": string (non-empty only when no candidate fits; leave canonical_id empty then)
}
Pick a candidate only when the extracted name, unit, and reference range are consistent with it. Extracted names may contain OCR noise, abbreviations, or non-English spellings. Never invent an id that is not in the candidate list.`

// matchPayload is the model's answer shape.
type matchPayload struct {
	CanonicalID string `json:"canonical_id"`
	Confidence  int    `json:"confidence"`
	Reasoning   string `json:"reasoning"`
	Refusal     string `json:"refusal"`
}

func buildMatchUserPrompt(req providers.MatchRequest) (string, error) {
	candidates, err := json.Marshal(req.Candidates)
	if err != nil {
		return "", fmt.Errorf("failed to encode candidates: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Extracted name: %s\n", req.RawName)
	if req.RawValue != "" {
		fmt.Fprintf(&b, "Extracted value: %s\n", req.RawValue)
	}
	if req.Unit != "" {
		fmt.Fprintf(&b, "Unit: %s\n", req.Unit)
	}
	if req.RefText != "" {
		fmt.Fprintf(&b, "Printed reference range: %s\n", req.RefText)
	}
	fmt.Fprintf(&b, "Candidates: %s\n", candidates)
	return b.String(), nil
}

func parseMatchPayload(data []byte) (*matchPayload, error) {
	var payload matchPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse match payload: %w", err)
	}
	return &payload, nil
}
