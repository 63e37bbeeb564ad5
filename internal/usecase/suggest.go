package usecase

import (
	"unicode"

	"github.com/msrptw/backend/internal/domain"
)

// DefaultSuggestThreshold is the minimum score a part needs to be suggested
const DefaultSuggestThreshold = 50.0

// Suggestion is the part closest to an unmatched product name
type Suggestion struct {
	// Index is the position of Part in the category's parts
	Index int
	Part  *domain.Part
	// Score ranges from 0 to 100
	Score float64
}

// SuggestPart ranks the parts of a category by character similarity to name
// and returns the best one scoring at least threshold. It only runs when no
// part matched by substring, so it scores overlap rather than containment.
// Parts vetoed by one of their anti aliases are never suggested. Ties keep
// declaration order.
func SuggestPart(category *domain.Category, name string, threshold float64) (Suggestion, bool) {
	name = Normalize(name)
	if category == nil || name == "" {
		return Suggestion{}, false
	}
	if threshold <= 0 {
		threshold = DefaultSuggestThreshold
	}

	best := Suggestion{Index: -1, Score: -1}
	for i := range category.Parts {
		part := &category.Parts[i]
		if vetoed(part, name) {
			continue
		}

		score := similarity(name, Normalize(part.Name))
		for _, alias := range part.Aliases {
			if alias.Anti {
				continue
			}
			if s := similarity(name, Normalize(alias.Name)); s > score {
				score = s
			}
		}

		if score > best.Score {
			best = Suggestion{Index: i, Part: part, Score: score}
		}
	}

	if best.Part == nil || best.Score < threshold {
		return Suggestion{}, false
	}
	return best, true
}

func vetoed(part *domain.Part, name string) bool {
	for _, alias := range part.Aliases {
		if alias.Anti && containsKeyword(name, alias.Name) {
			return true
		}
	}
	return false
}

// similarity computes a 0-100 score between a product name and a part surface string.
// Uses a weighted combination of:
//   - surface coverage: what share of the part's characters appear in the name (most important)
//   - name coverage: what share of the name's characters appear in the part
//   - Jaccard overlap of both character sets
//
// Strings within one edit of each other get a bonus.
func similarity(name, surface string) float64 {
	nameTokens := tokenize(name)
	surfaceTokens := tokenize(Normalize(surface))
	if len(nameTokens) == 0 || len(surfaceTokens) == 0 {
		return 0
	}

	matched := findIntersection(surfaceTokens, nameTokens)
	surfaceCoverage := float64(matched) / float64(len(surfaceTokens))
	nameCoverage := float64(findIntersection(nameTokens, surfaceTokens)) / float64(len(nameTokens))
	jaccard := float64(matched) / float64(findUnion(nameTokens, surfaceTokens))

	score := (surfaceCoverage*0.60 + nameCoverage*0.20 + jaccard*0.20) * 100

	if levenshteinDistance(name, Normalize(surface)) <= 1 {
		score += 10
	}
	if score > 100 {
		score = 100
	}
	return score
}

// tokenize splits CJK text into its distinct characters, dropping digits,
// latin letters and punctuation that only carry size or packaging.
func tokenize(s string) []string {
	seen := make(map[rune]bool)
	var tokens []string
	for _, r := range s {
		if r < unicode.MaxASCII || unicode.IsPunct(r) || unicode.IsSymbol(r) || seen[r] {
			continue
		}
		seen[r] = true
		tokens = append(tokens, string(r))
	}
	return tokens
}

// levenshteinDistance calculates the edit distance between two strings in runes
func levenshteinDistance(s1, s2 string) int {
	r1 := []rune(s1)
	r2 := []rune(s2)
	m := len(r1)
	n := len(r2)
	if m == 0 {
		return n
	}
	if n == 0 {
		return m
	}

	// Two rows instead of the full matrix
	prev := make([]int, n+1)
	curr := make([]int, n+1)
	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[n]
}

// findIntersection counts the tokens of tokens1 that appear in tokens2
func findIntersection(tokens1, tokens2 []string) int {
	set := make(map[string]bool, len(tokens2))
	for _, t := range tokens2 {
		set[t] = true
	}
	count := 0
	for _, t := range tokens1 {
		if set[t] {
			count++
		}
	}
	return count
}

// findUnion returns the count of unique tokens across both sets
func findUnion(tokens1, tokens2 []string) int {
	set := make(map[string]bool, len(tokens1)+len(tokens2))
	for _, t := range tokens1 {
		set[t] = true
	}
	for _, t := range tokens2 {
		set[t] = true
	}
	return len(set)
}
