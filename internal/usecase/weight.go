package usecase

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/msrptw/backend/internal/domain"
)

// Package-level compiled regex patterns for performance
var (
	// Matches repetition markers like "*3", "×3", "3x" ("120g*3入", "3x200g")
	multiplierPattern = regexp.MustCompile(`[*×xX](\d+)|(\d+)[*×xX]`)

	// Matches pack counts like "6入", "3包", "10粒"
	countPattern = regexp.MustCompile(`(\d+)(?:入|包|粒|顆|盒|袋|片)`)
)

// unitPattern recognizes a number followed by one unit spelling family
type unitPattern struct {
	re    *regexp.Regexp
	scale float64
	unit  domain.Unit
}

// unitPatterns is ordered: at the same position in the string the earlier entry
// wins, so spellings that are prefixes of others ("l" of "lb") come later.
var unitPatterns = []unitPattern{
	{regexp.MustCompile(`(\d+(?:\.\d+)?)(?:lb|磅)`), 453.592, domain.UnitGram},
	{regexp.MustCompile(`(\d+(?:\.\d+)?)(?:kg|公斤)`), 1000, domain.UnitGram},
	{regexp.MustCompile(`(\d+(?:\.\d+)?)(?:公升|l)`), 1000, domain.UnitMillilitre},
	{regexp.MustCompile(`(\d+(?:\.\d+)?)(?:臺斤|斤)`), 600, domain.UnitGram},
	{regexp.MustCompile(`(\d+(?:\.\d+)?)(?:g|公克|克)`), 1, domain.UnitGram},
	{regexp.MustCompile(`(\d+(?:\.\d+)?)(?:ml|毫升|cc)`), 1, domain.UnitMillilitre},
}

// ExtractWeight parses a size/weight string into grams or millilitres.
// A repetition marker multiplies the result ("120g*3入" is 360 g). When several
// units are mentioned the leftmost one is used. Returns false when no unit
// pattern matches or the number cannot be parsed.
func ExtractWeight(s string) (domain.Quantity, bool) {
	s = Normalize(s)
	if s == "" {
		return domain.Quantity{}, false
	}

	multiplier := 1
	if m := multiplierPattern.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(firstNonEmpty(m[1:]...))
		if err != nil || n <= 0 {
			return domain.Quantity{}, false
		}
		multiplier = n
		s = multiplierPattern.ReplaceAllString(s, "")
	}

	s = strings.ToLower(s)

	start := -1
	var best unitPattern
	var number string
	for _, p := range unitPatterns {
		loc := p.re.FindStringSubmatchIndex(s)
		if loc == nil {
			continue
		}
		if start == -1 || loc[0] < start {
			start = loc[0]
			best = p
			number = s[loc[2]:loc[3]]
		}
	}
	if start == -1 {
		return domain.Quantity{}, false
	}

	value, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return domain.Quantity{}, false
	}

	return domain.Quantity{
		Value: value * best.scale * float64(multiplier),
		Unit:  best.unit,
	}, true
}

// ExtractCount returns the number of pieces a listing is sold as.
// An explicit pack count wins over a repetition marker; the default is 1.
func ExtractCount(s string) int {
	s = Normalize(s)
	if m := countPattern.FindStringSubmatch(s); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
	}
	if m := multiplierPattern.FindStringSubmatch(s); m != nil {
		if n, err := strconv.Atoi(firstNonEmpty(m[1:]...)); err == nil && n > 0 {
			return n
		}
	}
	return 1
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
