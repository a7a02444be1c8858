package sentiment

import (
	"html"
	"regexp"
	"strings"

	"github.com/jonreiter/govader"
	"github.com/russross/blackfriday/v2"
)

// Polarity threshold separating positive/negative from neutral.
const Threshold = 0.1

var (
	analyzer    = govader.NewSentimentIntensityAnalyzer()
	linkPattern = regexp.MustCompile(`\[(.*?)\]\((https?:\/\/[^\s\)]+)\)`)
	urlPattern  = regexp.MustCompile(`https?://\S+|www\.\S+`)
	tagPattern  = regexp.MustCompile(`<[^>]+>`)
)

func RemoveLinks(input string) string {
	input = linkPattern.ReplaceAllString(input, "$1")
	return urlPattern.ReplaceAllString(input, "")
}

// PlainText renders markdown and strips the resulting markup and links.
func PlainText(input string) string {
	output := blackfriday.Run([]byte(input), blackfriday.WithNoExtensions())
	text := html.UnescapeString(tagPattern.ReplaceAllString(string(output), " "))
	return strings.Join(strings.Fields(RemoveLinks(text)), " ")
}

// Compound returns the VADER compound polarity of text in [-1, 1].
func Compound(text string) float64 {
	return analyzer.PolarityScores(PlainText(text)).Compound
}

// Bucket maps text to -1, 0 or 1 using Threshold.
func Bucket(text string) int {
	return BucketScore(Compound(text))
}

func BucketScore(score float64) int {
	switch {
	case score > Threshold:
		return 1
	case score < -Threshold:
		return -1
	default:
		return 0
	}
}

// Label names a bucket.
func Label(bucket int) string {
	switch bucket {
	case 1:
		return "positive"
	case -1:
		return "negative"
	default:
		return "neutral"
	}
}
