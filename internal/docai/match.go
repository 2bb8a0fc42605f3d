package docai

import (
	"regexp"
	"strings"
)

var nonWordRe = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeDocumentType lowercases and snake_cases a model-reported document
// type so "Driver License" and "driver_license" land in the same lineage.
func NormalizeDocumentType(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonWordRe.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// BestMatch reconciles a classified type against the lineage's known types,
// returning the existing name when it is close enough. This stops near-miss
// spellings from the classifier ("drivers_license" vs "driver_license") from
// forking a second lineage for the same document.
func BestMatch(classified string, existing []string, threshold float64) (string, bool) {
	classified = NormalizeDocumentType(classified)
	var (
		best      string
		bestScore float64
	)
	for _, candidate := range existing {
		normalized := NormalizeDocumentType(candidate)
		if normalized == classified {
			return candidate, true
		}
		score := similarity(classified, normalized)
		if strings.Contains(normalized, classified) || strings.Contains(classified, normalized) {
			if score < 0.85 {
				score = 0.85
			}
		}
		if score >= threshold && score > bestScore {
			best = candidate
			bestScore = score
		}
	}
	return best, best != ""
}

// similarity is a Levenshtein ratio in [0,1]: 1 - distance/maxLen.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	distance := prev[len(b)]
	longest := max(len(a), len(b))
	return 1 - float64(distance)/float64(longest)
}
