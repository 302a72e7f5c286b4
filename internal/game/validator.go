// internal/game/validator.go
package game

import (
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
)

// matchThreshold is the minimum similarity ratio for a fuzzy match.
const matchThreshold = 0.7

var parenthetical = regexp.MustCompile(`\s*\([^)]*\)`)

// Normalize strips parenthetical segments such as a trailing "(feat. X)",
// trims surrounding whitespace and lowercases:
//
//	"Give Me Everything (feat. Nayer)" -> "give me everything"
func Normalize(title string) string {
	return strings.ToLower(strings.TrimSpace(parenthetical.ReplaceAllString(title, "")))
}

// IsCloseMatch reports whether guess is close enough to the reference title.
// Both strings are normalized, then compared by character-sequence
// similarity; a ratio of at least 0.7 counts as a match. This fuzzy path
// backs only the single-shot validation endpoint, not in-game scoring,
// which stays exact case-insensitive.
func IsCloseMatch(guess, reference string) bool {
	return similarity(Normalize(guess), Normalize(reference)) >= matchThreshold
}

// similarity maps edit distance into a [0,1] ratio: identical strings score
// 1, strings sharing no characters score 0.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}
