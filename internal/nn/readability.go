package nn

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	ReadabilityComputed = "computed"
	ReadabilityFallback = "fallback"
)

var sentenceSplit = regexp.MustCompile(`[.!?]+`)

// FleschKincaidGrade returns the grade level of text rounded to one decimal,
// and whether it was computed or fell back to 0.0 (no countable words).
func FleschKincaidGrade(text string) (float64, string) {
	var words []string
	for _, w := range strings.Fields(text) {
		if w = strings.TrimFunc(w, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) }); w != "" {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return 0, ReadabilityFallback
	}
	sentences := 0
	for _, s := range sentenceSplit.Split(text, -1) {
		if strings.TrimSpace(s) != "" {
			sentences++
		}
	}
	if sentences == 0 {
		sentences = 1
	}
	syllables := 0
	for _, w := range words {
		syllables += countSyllables(w)
	}
	wc := float64(len(words))
	grade := 0.39*(wc/float64(sentences)) + 11.8*(float64(syllables)/wc) - 15.59
	return round(grade, 1), ReadabilityComputed
}

// countSyllables approximates syllables as vowel groups, dropping a silent
// trailing 'e'. Every word has at least one.
func countSyllables(word string) int {
	w := strings.ToLower(word)
	n := 0
	prevVowel := false
	for _, r := range w {
		v := strings.ContainsRune("aeiouy", r)
		if v && !prevVowel {
			n++
		}
		prevVowel = v
	}
	if strings.HasSuffix(w, "e") && !strings.HasSuffix(w, "le") && n > 1 {
		n--
	}
	if n == 0 {
		n = 1
	}
	return n
}
