package suggest

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"inspiro/internal/util"
)

var (
	linkOrPlaceholder = regexp.MustCompile(`(?i)(http\S*\s?|www\.\S+|\[link\])`)
	spamWordPatterns  = compileAll(
		`\bbuy\b`, `\boffer\b`, `\bfree\b`, `\blimited\b`, `\burgent\b`,
		`\bact now\b`, `\bclick here\b`, `\bdiscount\b`, `\bexclusive\b`,
	)
	personalWord    = regexp.MustCompile(`(?i)\b(i|my|me|we|our)\b`)
	bangRun         = regexp.MustCompile(`!{2,}`)
	questionRun     = regexp.MustCompile(`\?{2,}`)
	flashyEmoji     = regexp.MustCompile(`✨|🔥|💫|🎉|👉`)
)

const genuineFallback = "This is a genuine caption reflecting my authentic thoughts and feelings."

// GenerateRealCaption strips promotional language from a caption flagged as
// fake and gives it a first-person voice.
func GenerateRealCaption(caption string) string {
	s := linkOrPlaceholder.ReplaceAllString(caption, "")
	for _, p := range spamWordPatterns {
		s = p.ReplaceAllString(s, "")
	}
	s = bangRun.ReplaceAllString(s, "!")
	s = questionRun.ReplaceAllString(s, "?")
	s = util.NormalizeWhitespace(s)
	if s == "" {
		return genuineFallback
	}
	if !personalWord.MatchString(s) {
		r, size := utf8.DecodeRuneInString(s)
		s = "I " + string(unicode.ToLower(r)) + s[size:]
	}
	return s
}

// EngagingVersion adds enthusiasm and a call to comment.
func EngagingVersion(caption string) string {
	s := strings.TrimSpace(caption)
	if !strings.ContainsAny(s, "!?") && !strings.Contains(s, "✨") {
		s += " ✨"
	}
	if strings.HasPrefix(s, "I ") {
		s = "I'm " + s[2:]
	}
	if utf8.RuneCountInString(s) < 100 {
		s += " 💯 What do you think? #share"
	}
	return s
}

// ProfessionalVersion tones a caption down for a business audience.
func ProfessionalVersion(caption string) string {
	s := punctRunPattern.ReplaceAllString(caption, "!")
	s = flashyEmoji.ReplaceAllString(s, "")
	s = strings.NewReplacer("I'm", "I am", "don't", "do not", "can't", "cannot").Replace(s)
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, ".") {
		s += "."
	}
	if utf8.RuneCountInString(s) < 100 {
		s += " Learn more about this topic."
	}
	return s
}
