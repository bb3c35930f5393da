package providers

import (
	"context"
	"errors"

	"github.com/labtrail/backend/internal/domain/entities"
)

// ErrAssistedMatchRefused is returned when the matching service declines to
// suggest a candidate for a raw name.
var ErrAssistedMatchRefused = errors.New("assisted match refused")

// ErrAssistedMatchUnauthorized is returned when the matching service
// rejects our credentials.
var ErrAssistedMatchUnauthorized = errors.New("assisted match unauthorized")

// MatchCandidate is one vocabulary entry offered to the matching service.
type MatchCandidate struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Unit        string `json:"unit"`
}

// MatchRequest carries a raw name plus its extraction context and the full
// candidate vocabulary.
type MatchRequest struct {
	RawName    string           `json:"raw_name"`
	RawValue   string           `json:"raw_value"`
	Unit       string           `json:"unit"`
	RefText    string           `json:"ref_text"`
	Candidates []MatchCandidate `json:"candidates"`
}

// AssistedMatchProvider is the external best-effort matching collaborator,
// consulted only when local exact and fuzzy matching fail. Responses are
// untrusted until gated by the resolver.
type AssistedMatchProvider interface {
	// SuggestMatch returns one best-candidate suggestion or a refusal
	SuggestMatch(ctx context.Context, req MatchRequest) (*entities.MappingSuggestion, error)
}
