package predict

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"inspiro/internal/logging"
	"inspiro/internal/metrics"
	"inspiro/internal/util"
)

// EmotionLabels are the classes the emotion model is trained on.
var EmotionLabels = []string{"anger", "fear", "joy", "neutral", "sadness", "surprise"}

// FallbackEmotions is reported when the emotion model is unavailable.
var FallbackEmotions = map[string]float64{
	"anger": 0.1, "fear": 0.1, "joy": 0.2, "neutral": 0.4, "sadness": 0.1, "surprise": 0.1,
}

const (
	EmotionOK       = "ok"
	EmotionFallback = "fallback"
)

type EmotionScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// EmotionResult is the emotion prediction for one caption. Status is
// "fallback" when Scores is the fixed distribution, with Note saying why.
type EmotionResult struct {
	Label      string             `json:"label"`
	Confidence float64            `json:"confidence"`
	Scores     map[string]float64 `json:"scores"`
	Ranked     []EmotionScore     `json:"ranked"`
	Status     string             `json:"status"`
	Note       string             `json:"note,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// Emotion classifies caption into one of the six emotions. It always
// returns a usable distribution.
func (s *Service) Emotion(ctx context.Context, caption string) EmotionResult {
	start := time.Now()
	defer metrics.ObservePrediction("emotion", start)

	if s.emotion == nil {
		err := s.emotionErr
		if err == nil {
			err = errors.New("emotion model not loaded")
		}
		return s.emotionFallback(err)
	}
	text := util.TruncateRunes(caption, s.emoMaxLen)
	raw, err := s.emotion.Classify(ctx, text)
	if err != nil {
		return s.emotionFallback(err)
	}
	scores, err := normalizeEmotions(raw)
	if err != nil {
		return s.emotionFallback(err)
	}
	res := emotionResult(scores, EmotionOK)
	metrics.IncPrediction("emotion", res.Label)
	return res
}

func (s *Service) emotionFallback(err error) EmotionResult {
	metrics.IncPredictionError("emotion")
	logging.Warn("emotion_fallback", map[string]any{"error": err.Error()})
	scores := make(map[string]float64, len(FallbackEmotions))
	for k, v := range FallbackEmotions {
		scores[k] = v
	}
	res := emotionResult(scores, EmotionFallback)
	res.Note = "emotion model unavailable: " + err.Error()
	return res
}

// normalizeEmotions keeps the known labels and rescales them to sum to 1.
func normalizeEmotions(raw map[string]float64) (map[string]float64, error) {
	out := make(map[string]float64, len(EmotionLabels))
	var sum float64
	for _, l := range EmotionLabels {
		out[l] = 0
	}
	for k, v := range raw {
		k = strings.ToLower(strings.TrimSpace(k))
		if _, ok := out[k]; !ok || v < 0 {
			continue
		}
		out[k] += v
		sum += v
	}
	if sum <= 0 {
		return nil, errors.New("emotion model returned no known labels")
	}
	for k := range out {
		out[k] /= sum
	}
	return out, nil
}

func emotionResult(scores map[string]float64, status string) EmotionResult {
	ranked := make([]EmotionScore, 0, len(scores))
	for k, v := range scores {
		ranked = append(ranked, EmotionScore{Label: k, Score: v})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Label < ranked[j].Label
	})
	return EmotionResult{
		Label:      ranked[0].Label,
		Confidence: ranked[0].Score,
		Scores:     scores,
		Ranked:     ranked,
		Status:     status,
	}
}
