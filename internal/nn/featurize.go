package nn

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"inspiro/internal/sentiment"
)

// Feature is one named engineered value.
type Feature struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// FeatureVector is an ordered set of named features. Order is significant:
// classifiers consume values positionally.
type FeatureVector struct {
	Features []Feature `json:"features"`
}

func (v *FeatureVector) add(name string, value float64) {
	v.Features = append(v.Features, Feature{Name: name, Value: value})
}

func (v FeatureVector) Names() []string {
	out := make([]string, len(v.Features))
	for i, f := range v.Features {
		out[i] = f.Name
	}
	return out
}

func (v FeatureVector) Values() []float64 {
	out := make([]float64, len(v.Features))
	for i, f := range v.Features {
		out[i] = f.Value
	}
	return out
}

// Get returns the value for name.
func (v FeatureVector) Get(name string) (float64, bool) {
	for _, f := range v.Features {
		if f.Name == name {
			return f.Value, true
		}
	}
	return 0, false
}

// Select returns values in the order of names. Any name the vector does not
// carry is an error, never a silent zero.
func (v FeatureVector) Select(names []string) ([]float64, error) {
	out := make([]float64, len(names))
	for i, n := range names {
		val, ok := v.Get(n)
		if !ok {
			return nil, fmt.Errorf("feature %q not produced by extractor", n)
		}
		out[i] = val
	}
	return out, nil
}

// Map returns the features keyed by name.
func (v FeatureVector) Map() map[string]float64 {
	out := make(map[string]float64, len(v.Features))
	for _, f := range v.Features {
		out[f.Name] = f.Value
	}
	return out
}

// StatusColumns lists every feature ExtractStatus produces, in order.
var StatusColumns = []string{
	"text_length", "num_emojis", "punctuation_count", "has_links", "sentiment",
	"total_engagement", "log_engagement", "avg_word_len", "num_hashtags",
	"num_mentions", "uppercase_ratio",
}

// ReachColumns lists every feature the reach extractor produces, in order.
var ReachColumns = []string{
	"char_count", "word_count", "avg_word_len", "emoji_count", "has_hashtag", "fk_grade",
	"hour", "dow", "is_weekend", "hour_sin", "hour_cos", "dow_sin", "dow_cos",
}

var (
	linkPattern  = regexp.MustCompile(`http|www`)
	punctPattern = regexp.MustCompile(`[!?]`)
)

// ExtractStatus computes the authenticity schema for caption.
// Engagement is unknown for unpublished captions and stays 0.
func ExtractStatus(caption string) FeatureVector {
	words := strings.Fields(caption)
	var v FeatureVector
	v.add("text_length", float64(len(words)))
	v.add("num_emojis", float64(CountAstralEmoji(caption)))
	v.add("punctuation_count", float64(len(punctPattern.FindAllStringIndex(caption, -1))))
	v.add("has_links", boolf(linkPattern.MatchString(caption)))
	v.add("sentiment", float64(sentiment.Bucket(caption)))
	v.add("total_engagement", 0)
	v.add("log_engagement", 0)
	v.add("avg_word_len", avgWordLen(words))
	v.add("num_hashtags", float64(strings.Count(caption, "#")))
	v.add("num_mentions", float64(strings.Count(caption, "@")))
	v.add("uppercase_ratio", uppercaseRatio(caption))
	return v
}

// CaptionStats holds the time-independent part of the reach schema so it can
// be reused across many timestamps.
type CaptionStats struct {
	CharCount         int
	WordCount         int
	AvgWordLen        float64
	EmojiCount        int
	HasHashtag        bool
	FKGrade           float64
	ReadabilityStatus string
}

// NewCaptionStats computes the caption-level reach features.
func NewCaptionStats(caption string) CaptionStats {
	words := strings.Fields(caption)
	grade, status := FleschKincaidGrade(caption)
	return CaptionStats{
		CharCount:         utf8.RuneCountInString(caption),
		WordCount:         len(words),
		AvgWordLen:        avgWordLen(words),
		EmojiCount:        CountEmoji(caption),
		HasHashtag:        strings.Contains(caption, "#"),
		FKGrade:           grade,
		ReadabilityStatus: status,
	}
}

// Reach produces the full reach schema for the given hour and day of week.
func (s CaptionStats) Reach(hour, dow int) FeatureVector {
	tf := EncodeTime(hour, dow)
	var v FeatureVector
	v.add("char_count", float64(s.CharCount))
	v.add("word_count", float64(s.WordCount))
	v.add("avg_word_len", s.AvgWordLen)
	v.add("emoji_count", float64(s.EmojiCount))
	v.add("has_hashtag", boolf(s.HasHashtag))
	v.add("fk_grade", s.FKGrade)
	v.add("hour", float64(tf.Hour))
	v.add("dow", float64(tf.Dow))
	v.add("is_weekend", boolf(tf.IsWeekend))
	v.add("hour_sin", tf.HourSin)
	v.add("hour_cos", tf.HourCos)
	v.add("dow_sin", tf.DowSin)
	v.add("dow_cos", tf.DowCos)
	return v
}

// ExtractReach computes the reach schema for caption posted at ts.
func ExtractReach(caption string, ts time.Time) (FeatureVector, CaptionStats) {
	s := NewCaptionStats(caption)
	return s.Reach(ts.Hour(), Weekday(ts)), s
}

// CountAstralEmoji counts runes outside the Basic Multilingual Plane.
func CountAstralEmoji(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 && r <= 0x10FFFF {
			n++
		}
	}
	return n
}

// CountEmoji counts astral emoji plus the BMP pictographs in the
// Miscellaneous Symbols and Dingbats blocks (U+2600–U+27BF).
func CountEmoji(s string) int {
	n := 0
	for _, r := range s {
		if (r >= 0x10000 && r <= 0x10FFFF) || (r >= 0x2600 && r <= 0x27BF) {
			n++
		}
	}
	return n
}

func avgWordLen(words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	total := 0
	for _, w := range words {
		total += utf8.RuneCountInString(w)
	}
	return float64(total) / float64(len(words))
}

func uppercaseRatio(s string) float64 {
	n := utf8.RuneCountInString(s)
	if n == 0 {
		return 0
	}
	upper := 0
	for _, r := range s {
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return float64(upper) / float64(n)
}

func boolf(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
