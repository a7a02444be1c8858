package model

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Authenticity is the real/fake/spam breakdown shown next to a caption.
// Percentages are integers in [0,100].
type Authenticity struct {
	Real   int    `json:"real"`
	Fake   int    `json:"fake"`
	Spam   int    `json:"spam"`
	Label  string `json:"label"`
	Reason string `json:"reason"`
}

var (
	spamLinkPattern   = regexp.MustCompile(`(?i)(http|www\.|\.com|\.co|https)`)
	spamWordPattern   = regexp.MustCompile(`(?i)(📱|💰|💎|🎁|link|click|buy|offer|free|limited)`)
	promoPattern      = regexp.MustCompile(`(buy|offer|free|limited|urgent|act now|click here)`)
	marketingPattern  = regexp.MustCompile(`(buy|offer|free|limited|urgent|act now|click here|discount|exclusive)`)
	urlPattern        = regexp.MustCompile(`(http|www\.|\.com|\.co)`)
	multiLinkPattern  = regexp.MustCompile(`(http.*){2,}`)
	spamEmojiPattern  = regexp.MustCompile(`🔗|💰|💎|🎁|💸`)
	spamPhrasePattern = regexp.MustCompile(`(congratulations|winner|claim|prize|reward)`)
	punctSpamPattern  = regexp.MustCompile(`(!{2,}|\?{2,}|🚀)`)
)

// LooksLikeSpam reports link or promotional patterns that override the
// classifier label.
func LooksLikeSpam(caption string) bool {
	return spamLinkPattern.MatchString(caption) || spamWordPattern.MatchString(caption)
}

// ClassifyAuthenticity combines the status label and suspicion score with
// surface spam patterns.
func ClassifyAuthenticity(caption, statusLabel string, suspicion float64) Authenticity {
	suspicion = clamp01(suspicion)
	var a Authenticity
	switch {
	case LooksLikeSpam(caption):
		a = Authenticity{Real: 5, Fake: 30, Spam: 65, Label: "Spam"}
	case statusLabel == "Real":
		p := 1 - suspicion
		a.Label = "Real"
		a.Real = int(p * 100)
		a.Fake = max(0, int((1-p)*100)-20)
		a.Spam = max(0, 100-a.Real-a.Fake)
	default:
		a.Label = "Fake"
		a.Fake = int(suspicion * 100)
		a.Real = max(0, int((1-suspicion)*100)-20)
		a.Spam = max(0, 100-a.Real-a.Fake)
	}
	a.Reason = AuthenticityReason(a, caption)
	return a
}

// AuthenticityReason explains a breakdown in one line.
func AuthenticityReason(a Authenticity, caption string) string {
	lc := strings.ToLower(caption)
	var reasons []string
	switch a.Label {
	case "Real":
		if a.Real > 70 {
			reasons = append(reasons, "Natural, human-like language flow")
		}
		if strings.Contains(lc, "i ") || strings.Contains(lc, "my ") {
			reasons = append(reasons, "Personal perspective with authentic context")
		}
		if !promoPattern.MatchString(lc) {
			reasons = append(reasons, "No promotional or spam trigger words")
		}
		if utf8.RuneCountInString(caption) > 50 {
			reasons = append(reasons, "Adequate length suggests genuine thought")
		}
		return joinReasons(reasons, "Caption appears genuine and authentic")
	case "Fake":
		if a.Fake > 60 {
			reasons = append(reasons, "Over-polished or repetitive language pattern")
		}
		if urlPattern.MatchString(lc) {
			reasons = append(reasons, "Contains URL or promotional links")
		}
		if marketingPattern.MatchString(lc) {
			reasons = append(reasons, "Marketing/promotional language detected")
		}
		if punctSpamPattern.MatchString(caption) {
			reasons = append(reasons, "Excessive punctuation or spam indicators")
		}
		if utf8.RuneCountInString(caption) < 30 {
			reasons = append(reasons, "Too brief - lacks authentic substance")
		}
		return joinReasons(reasons, "Caption detected as inauthentic")
	case "Spam":
		if a.Spam > 70 {
			reasons = append(reasons, "Classic spam indicators present")
		}
		if urlPattern.MatchString(lc) {
			reasons = append(reasons, "URL/link detected - spam characteristic")
		}
		if multiLinkPattern.MatchString(lc) {
			reasons = append(reasons, "Multiple links detected")
		}
		if spamEmojiPattern.MatchString(caption) {
			reasons = append(reasons, "Spam emojis detected")
		}
		if spamPhrasePattern.MatchString(lc) {
			reasons = append(reasons, "Common spam phrases detected")
		}
		return joinReasons(reasons, "Spam content detected")
	}
	return "Could not determine authenticity reason"
}

var emotionReasons = map[string]string{
	"joy":      "Positive tone with optimistic language and enthusiastic expressions",
	"sadness":  "Melancholic undertone with reflective or sorrowful language",
	"anger":    "Intense, confrontational, or frustrated language detected",
	"surprise": "Unexpected elements or exclamatory expressions found",
	"fear":     "Anxiety-inducing language or expressions of concern",
	"neutral":  "Objective, informative tone without strong emotional indicators",
}

// EmotionReason explains a dominant emotion label.
func EmotionReason(label string) string {
	if r, ok := emotionReasons[strings.ToLower(label)]; ok {
		return r
	}
	return "Emotional tone detected from text analysis"
}

// Percent converts a probability to a clamped integer percentage.
func Percent(p float64) int {
	return int(math.Floor(clamp01(p) * 100))
}

func joinReasons(r []string, fallback string) string {
	if len(r) == 0 {
		return fallback
	}
	return strings.Join(r, " + ")
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
