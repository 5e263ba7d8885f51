package rules

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MatchMode selects how include keywords combine.
type MatchMode string

const (
	// MatchAll requires every non-blank include keyword to be present.
	MatchAll MatchMode = "ALL"
	// MatchAny requires at least one include keyword; an empty include list is
	// vacuously satisfied and the decision falls to the structured constraints.
	MatchAny MatchMode = "ANY"
)

// Normalize folds text for matching: NFC composition first, then lowercase.
// Registry payloads arrive in mixed Unicode forms, so "ż" composed and
// decomposed must compare equal.
func Normalize(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}

// minStemRunes is the shortest keyword the inflection tolerance applies to;
// anything shorter matches verbatim only.
const minStemRunes = 4

// containsKeyword reports whether the folded haystack contains the folded
// keyword. Invoice text inflects Polish nouns ("pasza" shows up as "paszy",
// "paszę"), so a keyword long enough to keep a meaningful stem also counts
// as found when only its final rune is missing.
func containsKeyword(folded, kw string) bool {
	if strings.Contains(folded, kw) {
		return true
	}
	runes := []rune(kw)
	if len(runes) < minStemRunes {
		return false
	}
	return strings.Contains(folded, string(runes[:len(runes)-1]))
}

// Matches evaluates the keyword predicate against the haystack. Blank
// keywords are ignored, containment is case-insensitive and inflection
// tolerant, and any exclude hit wins over the include outcome.
func Matches(haystack string, include, exclude []string, mode MatchMode) bool {
	folded := Normalize(haystack)

	for _, kw := range exclude {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if containsKeyword(folded, Normalize(kw)) {
			return false
		}
	}

	matched := 0
	total := 0
	for _, kw := range include {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		total++
		if containsKeyword(folded, Normalize(kw)) {
			matched++
		}
	}

	switch mode {
	case MatchAll:
		return matched == total
	default:
		return total == 0 || matched > 0
	}
}
