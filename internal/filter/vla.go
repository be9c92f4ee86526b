// Package filter decides whether a paper is topically in scope for the
// VLA (Vision-Language-Action) corpus.
package filter

import "strings"

// fullPhrases are unambiguous spellings of the full term. Any one of these
// in the title or abstract admits the paper outright.
var fullPhrases = []string{
	"vision-language-action",
	"vision language action",
	"visionlanguageaction",
}

// contextPhrases qualify a bare "VLA" mention. The abbreviation collides
// with unrelated domains (e.g. value-at-risk analysis in finance), so it only
// counts when it co-occurs with one of these.
var contextPhrases = []string{
	"vla model",
	"vla policy",
	"vla agent",
	"vla robot",
	"vla framework",
	"vla architecture",
}

// Related reports whether the paper is VLA-related based on its title and
// abstract. It is a pure, case-insensitive predicate: either the full phrase
// appears in some spelling, or "vla" appears as an isolated token together
// with a qualifying context phrase.
func Related(title, abstract string) bool {
	text := strings.ToLower(title + " " + abstract)

	for _, phrase := range fullPhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}

	isolated := strings.Contains(text, " vla ") ||
		strings.HasPrefix(text, "vla ") ||
		strings.HasSuffix(text, " vla")
	if !isolated {
		return false
	}

	for _, ctx := range contextPhrases {
		if strings.Contains(text, ctx) {
			return true
		}
	}
	return false
}
