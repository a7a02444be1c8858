// Package suggest produces caption improvements: keyword and hashtag
// suggestions, alternative phrasings and the authenticity rewrite.
package suggest

import (
	"strings"
)

// Suggestion bundles the rule-based improvements for one caption.
type Suggestion struct {
	Keywords     []string `json:"keywords"`
	Hashtags     []string `json:"hashtags"`
	Engaging     string   `json:"version1"`
	Professional string   `json:"version2"`
}

// HeuristicSuggest builds every rule-based suggestion for caption.
func HeuristicSuggest(caption string) Suggestion {
	text := strings.TrimSpace(caption)
	kw := ExtractKeywords(text, 3)
	return Suggestion{
		Keywords:     kw,
		Hashtags:     SuggestHashtags(text, kw),
		Engaging:     EngagingVersion(text),
		Professional: ProfessionalVersion(text),
	}
}

// Preview shortens s to n runes, marking the cut with "...".
func Preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
