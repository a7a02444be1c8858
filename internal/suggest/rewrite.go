package suggest

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"

	"inspiro/internal/util"
)

var (
	urlPattern      = regexp.MustCompile(`(?i)(https?://|www\.)\S+`)
	hashtagPattern  = regexp.MustCompile(`#\w+`)
	punctRunPattern = regexp.MustCompile(`[!?]{2,}`)
	allCapsPattern  = regexp.MustCompile(`\b[A-Z]{4,}\b`)
	spaceBeforeEnd  = regexp.MustCompile(`\s+([.!?])`)
	spaceAfterEnd   = regexp.MustCompile(`([.!?])\s*([a-zA-Z])`)
	sentenceSplit   = regexp.MustCompile(`[.!?]`)
)

// Opening phrases removed as whole phrases.
var genericOpeners = compileAll(
	`\bi\s+am\s+a\s+student\b`,
	`\blooking\s+for\s+opportunit(y|ies)\b`,
	`\bconnect\s+with\s+me\b`,
	`\bfeel\s+free\s+to\s+contact\b`,
	`\bdm\s+me\b`,
	`\blink\s+in\s+bio\b`,
)

// Templated phrases reported by AnalyzeFakeness.
var genericPhrases = compileAll(
	`i\s+am\s+a\s+student`,
	`looking\s+for\s+opportunit(y|ies)`,
	`connect\s+with\s+me`,
	`feel\s+free\s+to\s+contact`,
	`dm\s+me`,
	`link\s+in\s+bio`,
	`check\s+this\s+out`,
	`dont?\s+miss\s+this?`,
	`limited\s+time`,
	`act\s+now`,
	`hurry`,
	`grab\s+yours?`,
	`click\s+here`,
)

var cliches = []string{
	"blessed", "grateful", "amazing", "awesome", "incredible", "life changing",
	"success", "goals", "believe in yourself", "never give up", "alhamdulillah",
}

var clichePatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(cliches))
	for i, c := range cliches {
		out[i] = regexp.MustCompile(`(?i)\b` + strings.ReplaceAll(c, " ", `\s+`) + `\b`)
	}
	return out
}()

var casualMarkers = []string{
	"honestly", "ngl", "not gonna lie", "tbh", "real talk",
	"like", "literally", "literally me", "fr fr",
	"i swear", "i cant", "lol", "lmao", "smh",
	"idk", "ig", "istg",
}

var markerPrefixes = []string{"honestly", "ngl", "tbh", "fr", "lol", "idk"}

type contraction struct {
	formal  *regexp.Regexp
	options []string
}

var contractions = []contraction{
	{regexp.MustCompile(`(?i)\bi\s+am\b`), []string{"im", "i'm"}},
	{regexp.MustCompile(`(?i)\bdo\s+not\b`), []string{"dont", "don't"}},
	{regexp.MustCompile(`(?i)\bcannot\b`), []string{"can't", "cant"}},
	{regexp.MustCompile(`(?i)\bwill\s+not\b`), []string{"won't", "wont"}},
	{regexp.MustCompile(`(?i)\byou\s+are\b`), []string{"you're", "ur"}},
	{regexp.MustCompile(`(?i)\bthey\s+are\b`), []string{"they're"}},
	{regexp.MustCompile(`(?i)\bwe\s+are\b`), []string{"we're"}},
	{regexp.MustCompile(`(?i)\bhave\s+not\b`), []string{"haven't", "havent"}},
	{regexp.MustCompile(`(?i)\bhas\s+not\b`), []string{"hasn't", "hasnt"}},
	{regexp.MustCompile(`(?i)\bis\s+not\b`), []string{"isn't", "isnt"}},
	{regexp.MustCompile(`(?i)\bam\s+not\b`), []string{"ain't", "aint"}},
}

var personality = []string{
	"anyway idk why im sharing this lol",
	"thats it. thats all i got",
	"no thoughts head empty",
	"but hey thats just me",
	"probs overthinking this",
}

var formalWords = []string{"opportunity", "professional", "endeavor", "pursuant", "hereby"}

const (
	tooShortReply = "honestly not sure what to say lol"
	emptyReply    = "honestly idk what to say here lol"
)

// Rewriter turns spammy or templated captions into casual, personal ones.
// Steps that add casual phrasing draw from its random source.
type Rewriter struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRewriter returns a Rewriter drawing from src. A nil src seeds from the
// clock, so output varies between runs.
func NewRewriter(src rand.Source) *Rewriter {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Rewriter{rng: rand.New(src)}
}

// Rewrite applies the de-spamming pipeline to caption.
func (r *Rewriter) Rewrite(caption string) string {
	original := strings.TrimSpace(caption)
	if len([]rune(original)) < 5 {
		return tooShortReply
	}

	text := stripSpam(original)

	if t := removeGenericOpeners(text); len(strings.Fields(t)) >= 3 {
		text = t
	}

	text = removeCliches(text)
	if len([]rune(strings.TrimSpace(text))) < 5 {
		words := strings.Fields(original)
		text = strings.Join(words[:min(len(words), max(3, len(words)/2))], " ")
	}

	r.mu.Lock()
	text = r.casualize(text)
	text = rejoinSentences(text)
	if len([]rune(text)) > 10 {
		text = r.addPersonality(text)
	}
	r.mu.Unlock()

	text = collapsePunct(util.NormalizeWhitespace(text))
	if len([]rune(text)) < 5 {
		return emptyReply
	}
	return text
}

// stripSpam removes links, keeps the first two hashtags and collapses
// !/? runs.
func stripSpam(s string) string {
	s = urlPattern.ReplaceAllString(s, "")
	tags := hashtagPattern.FindAllString(s, -1)
	if len(tags) > 2 {
		seen := 0
		s = hashtagPattern.ReplaceAllStringFunc(s, func(tag string) string {
			seen++
			if seen <= 2 {
				return tag
			}
			return ""
		})
	}
	return strings.TrimSpace(collapsePunct(s))
}

func collapsePunct(s string) string {
	return punctRunPattern.ReplaceAllStringFunc(s, func(run string) string { return run[:1] })
}

func removeGenericOpeners(s string) string {
	for _, p := range genericOpeners {
		s = p.ReplaceAllString(s, "")
	}
	return strings.TrimSpace(s)
}

func removeCliches(s string) string {
	for _, p := range clichePatterns {
		s = p.ReplaceAllString(s, "")
	}
	return util.NormalizeWhitespace(s)
}

func (r *Rewriter) casualize(s string) string {
	if r.rng.Float64() > 0.5 && len([]rune(s)) > 20 {
		marker := casualMarkers[r.rng.Intn(len(casualMarkers))]
		if !hasAnyPrefix(strings.ToLower(s), markerPrefixes) {
			s = marker + " " + s
		}
	}
	for _, c := range contractions {
		if c.formal.MatchString(s) {
			s = c.formal.ReplaceAllLiteralString(s, c.options[r.rng.Intn(len(c.options))])
		}
	}
	return strings.TrimSpace(s)
}

// rejoinSentences splits on sentence punctuation and rejoins with a single
// space after each mark.
func rejoinSentences(s string) string {
	var b strings.Builder
	last := 0
	for _, loc := range sentenceSplit.FindAllStringIndex(s, -1) {
		if part := strings.TrimSpace(s[last:loc[0]]); part != "" {
			b.WriteString(part)
			b.WriteString(s[loc[0]:loc[1]])
		}
		last = loc[1]
	}
	if part := strings.TrimSpace(s[last:]); part != "" {
		b.WriteString(part)
	}
	out := spaceBeforeEnd.ReplaceAllString(b.String(), "$1")
	out = spaceAfterEnd.ReplaceAllString(out, "$1 $2")
	return strings.TrimSpace(out)
}

func (r *Rewriter) addPersonality(s string) string {
	if len([]rune(s)) > 50 && r.rng.Float64() > 0.6 {
		s += " " + personality[r.rng.Intn(len(personality))]
	}
	return s
}

// FakenessReport lists what makes a caption read as fake. It does not
// influence Rewrite.
type FakenessReport struct {
	Issues  []string `json:"issues"`
	Count   int      `json:"count"`
	Summary string   `json:"summary"`
}

// AnalyzeFakeness runs independent checks over caption.
func AnalyzeFakeness(caption string) FakenessReport {
	issues := []string{}
	if urlPattern.MatchString(caption) {
		issues = append(issues, "Contains URLs or links")
	}
	if n := len(hashtagPattern.FindAllString(caption, -1)); n > 2 {
		issues = append(issues, fmt.Sprintf("Too many hashtags (%d found, keep to 2 max)", n))
	}
	if punctRunPattern.MatchString(caption) {
		issues = append(issues, "Excessive punctuation (!!! or ???)")
	}
	if n := len(allCapsPattern.FindAllString(caption, -1)); n > 0 {
		issues = append(issues, fmt.Sprintf("Too many ALL CAPS words (%d found)", n))
	}
	for _, p := range genericPhrases {
		if p.MatchString(caption) {
			issues = append(issues, "Contains generic/templated phrases")
			break
		}
	}
	for i, p := range clichePatterns {
		if p.MatchString(caption) {
			issues = append(issues, fmt.Sprintf("Contains motivational cliches (e.g., '%s')", cliches[i]))
			break
		}
	}
	if util.ContainsAnyCaseInsensitive(caption, formalWords) {
		issues = append(issues, "Too formal/professional tone")
	}
	summary := "No specific issues detected"
	if len(issues) > 0 {
		summary = strings.Join(issues, " | ")
	}
	return FakenessReport{Issues: issues, Count: len(issues), Summary: summary}
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
