package suggest

import (
	"regexp"
	"sort"
	"strings"

	"github.com/kljensen/snowball"
)

var wordPattern = regexp.MustCompile(`[a-z]+`)

var stopwords = map[string]bool{}

func init() {
	for _, w := range strings.Fields(`the a an and or but in on at to for of with by from up about into
		through during is are was were be been being have has had do does did will would should
		could may might can this that these those i you he she it we they what which who when
		where why how`) {
		stopwords[w] = true
	}
}

// DefaultKeywords is returned when a caption has no usable words.
var DefaultKeywords = []string{"content", "post", "update"}

// ExtractKeywords returns up to n frequent content words of text. Words are
// grouped by stem so "run" and "running" count together; each group is
// reported by its first surface form.
func ExtractKeywords(text string, n int) []string {
	type group struct {
		word  string
		count int
		first int
	}
	groups := map[string]*group{}
	for i, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if stopwords[w] || len(w) <= 2 {
			continue
		}
		stem, err := snowball.Stem(w, "english", true)
		if err != nil || stem == "" {
			stem = w
		}
		g, ok := groups[stem]
		if !ok {
			g = &group{word: w, first: i}
			groups[stem] = g
		}
		g.count++
	}
	if len(groups) == 0 {
		return append([]string(nil), DefaultKeywords...)
	}
	ranked := make([]*group, 0, len(groups))
	for _, g := range groups {
		ranked = append(ranked, g)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].first < ranked[j].first
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make([]string, len(ranked))
	for i, g := range ranked {
		out[i] = g.word
	}
	return out
}

type theme struct {
	pattern *regexp.Regexp
	tags    []string
}

var themes = []theme{
	{regexp.MustCompile(`(?i)(love|happy|joy|smile|excited|amazing|awesome|wonderful)`), []string{"#Happy", "#Positive", "#Blessed"}},
	{regexp.MustCompile(`(?i)(sad|down|depressed|miss|hurt|pain|broken)`), []string{"#Real", "#Heart", "#Feel"}},
	{regexp.MustCompile(`(?i)(anger|angry|frustrated|mad|hate|terrible)`), []string{"#Voice", "#Speak", "#Truth"}},
	{regexp.MustCompile(`(?i)(fear|scared|worried|anxious|nervous)`), []string{"#Courage", "#Strong", "#Hope"}},
	{regexp.MustCompile(`(?i)(success|win|achieve|goal|proud|accomplished)`), []string{"#Goals", "#Success", "#Winning"}},
	{regexp.MustCompile(`(?i)(work|job|career|business|startup)`), []string{"#Hustle", "#Grind", "#Business"}},
	{regexp.MustCompile(`(?i)(family|friend|love|relationship)`), []string{"#Family", "#Friends", "#Love"}},
	{regexp.MustCompile(`(?i)(travel|adventure|explore|destination)`), []string{"#Travel", "#Adventure", "#Explore"}},
	{regexp.MustCompile(`(?i)(food|eat|cook|recipe|delicious)`), []string{"#FoodLove", "#Foodie", "#YumYum"}},
	{regexp.MustCompile(`(?i)(health|fitness|workout|gym|exercise)`), []string{"#FitnessGoals", "#HealthyLife", "#Workout"}},
}

// DefaultHashtags is returned when no theme or keyword applies.
var DefaultHashtags = []string{"#Content", "#Share", "#Update"}

// SuggestHashtags picks up to five hashtags from the caption's themes and
// its longer keywords, sorted alphabetically.
func SuggestHashtags(text string, keywords []string) []string {
	set := map[string]bool{}
	for _, th := range themes {
		if th.pattern.MatchString(text) {
			for _, tag := range th.tags {
				set[tag] = true
			}
		}
	}
	for _, k := range keywords {
		if len(k) > 3 {
			set["#"+strings.ToUpper(k[:1])+strings.ToLower(k[1:])] = true
		}
	}
	if len(set) == 0 {
		return append([]string(nil), DefaultHashtags...)
	}
	out := make([]string, 0, len(set))
	for tag := range set {
		out = append(out, tag)
	}
	sort.Strings(out)
	if len(out) > 5 {
		out = out[:5]
	}
	return out
}
