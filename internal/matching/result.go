package matching

import (
	"encoding/json"

	"github.com/ShreyaJV11/support-chatbot/internal/storage/models"
)

// Source records which stage produced a MatchResult.
type Source int

const (
	SourceNone Source = iota
	SourceVector
	SourceText
	SourceWeightedScan
)

func (s Source) String() string {
	switch s {
	case SourceVector:
		return "VECTOR"
	case SourceText:
		return "TEXT"
	case SourceWeightedScan:
		return "WEIGHTED_SCAN"
	default:
		return "NONE"
	}
}

func (s Source) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// MatchResult is created per request. Entry is nil when Source is SourceNone.
type MatchResult struct {
	Entry  *models.KnowledgeEntry `json:"matched_entry"`
	Score  float64                `json:"confidence_score"`
	Source Source                 `json:"source"`
}

func (r MatchResult) IsConfident(threshold float64) bool {
	return r.Score >= threshold
}

func noMatch(bestScore float64) MatchResult {
	return MatchResult{Score: clamp01(bestScore), Source: SourceNone}
}
