package match

import (
	"strings"

	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/model"
)

// Score ladder, highest confidence first.
const (
	scoreExact      = 100
	scoreContains   = 80
	scoreContained  = 60
	scoreSimilar    = 50
	acceptThreshold = 50
)

// Matcher proposes an initial header-to-field assignment for the mapping
// step. Heuristic by design: false positives are expected and every
// suggestion remains user-correctable.
type Matcher struct {
	scorer SimilarityScorer
}

func NewMatcher(scorer SimilarityScorer) *Matcher {
	if scorer == nil {
		scorer = OverlapScorer{}
	}
	return &Matcher{scorer: scorer}
}

// Match fills unmapped fields in the given mapping and returns the keys it
// auto-matched. A field already mapped (a user choice) is never overwritten.
// Ties resolve to the first header in index order.
func (m *Matcher) Match(headers []string, fields []model.FieldDescriptor, mapping *model.ColumnMapping) []string {
	var autoMatched []string

	for _, field := range fields {
		if mapping.IsMapped(field.Key) {
			continue
		}

		bestScore := 0
		bestHeader := -1
		for i, header := range headers {
			score := m.scoreField(header, field)
			if score > bestScore {
				bestScore = score
				bestHeader = i
			}
		}

		if bestScore >= acceptThreshold && bestHeader >= 0 {
			mapping.Set(field.Key, bestHeader)
			autoMatched = append(autoMatched, field.Key)
		}
	}

	return autoMatched
}

// scoreField takes the best score over the field's label, key and aliases.
func (m *Matcher) scoreField(header string, field model.FieldDescriptor) int {
	patterns := make([]string, 0, len(field.Aliases)+2)
	patterns = append(patterns, field.Label, field.Key)
	patterns = append(patterns, field.Aliases...)

	best := 0
	for _, pattern := range patterns {
		if score := m.scorePattern(header, pattern); score > best {
			best = score
		}
	}
	return best
}

func (m *Matcher) scorePattern(header, pattern string) int {
	h := strings.ToLower(strings.TrimSpace(header))
	p := strings.ToLower(strings.TrimSpace(pattern))
	if h == "" || p == "" {
		return 0
	}

	switch {
	case h == p:
		return scoreExact
	case strings.Contains(h, p):
		return scoreContains
	case strings.Contains(p, h) && len([]rune(h)) > 2:
		return scoreContained
	case m.scorer.Score(h, p) > 0.7:
		return scoreSimilar
	default:
		return 0
	}
}
