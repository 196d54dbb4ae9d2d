package match

import "strings"

// SimilarityScorer rates how alike two strings are, in [0, 1]. Pluggable so
// the default overlap measure can be swapped for an edit-distance or
// token-set measure without touching callers.
type SimilarityScorer interface {
	Score(a, b string) float64
}

// OverlapScorer counts how many of the shorter string's characters appear in
// the longer one, normalized by the longer length. Crude and intentionally
// permissive; matches stay user-correctable.
type OverlapScorer struct{}

func (OverlapScorer) Score(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)

	shorter, longer := []rune(a), []rune(b)
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(longer) == 0 {
		return 0
	}

	pool := make(map[rune]int, len(longer))
	for _, r := range longer {
		pool[r]++
	}

	found := 0
	for _, r := range shorter {
		if pool[r] > 0 {
			pool[r]--
			found++
		}
	}

	return float64(found) / float64(len(longer))
}
