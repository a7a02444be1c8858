package predict

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"inspiro/internal/logging"
	"inspiro/internal/metrics"
	"inspiro/internal/nn"
	"inspiro/internal/util"
)

// ReachResult is the reach prediction for a caption at a given time.
type ReachResult struct {
	Label             string             `json:"label,omitempty"`
	Probability       float64            `json:"probability"`
	Threshold         float64            `json:"threshold"`
	At                time.Time          `json:"at"`
	ReadabilityStatus string             `json:"readability_status,omitempty"`
	Features          map[string]float64 `json:"features,omitempty"`
	Error             string             `json:"error,omitempty"`
}

// Reach predicts reach for caption posted now.
func (s *Service) Reach(ctx context.Context, caption string) ReachResult {
	return s.ReachAt(ctx, caption, s.Now())
}

// ReachAt predicts reach for caption posted at ts.
func (s *Service) ReachAt(ctx context.Context, caption string, ts time.Time) ReachResult {
	start := time.Now()
	defer metrics.ObservePrediction("reach", start)

	res, err := s.reach(ctx, caption, ts)
	if err != nil {
		metrics.IncPredictionError("reach")
		logging.Warn("reach_predict_error", map[string]any{"error": err.Error()})
		return ReachResult{At: ts, Error: err.Error()}
	}
	metrics.IncPrediction("reach", res.Label)
	return res
}

func (s *Service) reach(ctx context.Context, caption string, ts time.Time) (ReachResult, error) {
	if s.reg == nil || s.reg.Reach == nil || s.emb == nil {
		return ReachResult{}, ErrModelsNotLoaded
	}
	rm := s.reg.Reach
	caption = util.TruncateRunes(caption, s.maxLen)
	vec, err := s.embed(ctx, caption, rm.EmbeddingDim)
	if err != nil {
		return ReachResult{}, err
	}
	ts = ts.In(s.loc)
	stats := nn.NewCaptionStats(caption)
	fv := stats.Reach(ts.Hour(), nn.Weekday(ts))
	p, row, err := scoreReach(rm, vec, fv)
	if err != nil {
		return ReachResult{}, err
	}
	label := LabelLowReach
	if p >= rm.Threshold {
		label = LabelHighReach
	}
	res := ReachResult{
		Label:             label,
		Probability:       p,
		Threshold:         rm.Threshold,
		At:                ts,
		ReadabilityStatus: stats.ReadabilityStatus,
		Features:          fv.Map(),
	}
	s.record(ctx, Record{Task: "reach", Caption: caption, At: ts, Row: row, Features: res.Features, Label: label, Score: p})
	return res, nil
}

// scoreReach builds embedding | categorical | scaled numerics and scores it.
// The categorical block is empty for the current artifacts.
func scoreReach(rm *nn.ReachModels, vec []float64, fv nn.FeatureVector) (float64, []float64, error) {
	num, err := fv.Select(rm.NumCols)
	if err != nil {
		return 0, nil, err
	}
	scaled, err := rm.Scaler.Transform(num)
	if err != nil {
		return 0, nil, err
	}
	row := concat(vec, nil, scaled)
	p, err := rm.Classifier.Score(row)
	if err != nil {
		return 0, nil, fmt.Errorf("score reach: %w", err)
	}
	return clamp01(p), row, nil
}

// HourScore is the reach probability for posting at Hour.
type HourScore struct {
	Display     string  `json:"time"`
	Probability float64 `json:"probability"`
	Hour        int     `json:"hour"`
}

// BestTimes scores every hour of day dow (0=Monday) for caption, in hour
// order. The caption is embedded once. An hour whose scoring fails gets 0.
func (s *Service) BestTimes(ctx context.Context, caption string, dow int) ([]HourScore, error) {
	start := time.Now()
	defer metrics.ObservePrediction("besttime", start)

	if dow < 0 || dow > 6 {
		return nil, fmt.Errorf("day of week %d outside 0..6", dow)
	}
	if s.reg == nil || s.reg.Reach == nil || s.emb == nil {
		metrics.IncPredictionError("besttime")
		return nil, ErrModelsNotLoaded
	}
	rm := s.reg.Reach
	caption = util.TruncateRunes(caption, s.maxLen)
	vec, err := s.embed(ctx, caption, rm.EmbeddingDim)
	if err != nil {
		metrics.IncPredictionError("besttime")
		return nil, err
	}
	stats := nn.NewCaptionStats(caption)
	out := make([]HourScore, 24)
	for h := 0; h < 24; h++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, _, err := scoreReach(rm, vec, stats.Reach(h, dow))
		if err != nil {
			logging.Warn("besttime_hour_error", map[string]any{"hour": h, "error": err.Error()})
			p = 0
		}
		out[h] = HourScore{Display: FormatHour(h), Probability: p, Hour: h}
	}
	return out, nil
}

// TopHours returns the n highest-probability hours, ties broken by hour.
func TopHours(scores []HourScore, n int) []HourScore {
	out := append([]HourScore(nil), scores...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Probability > out[j].Probability
	})
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// FormatHour renders an hour of day on the 12-hour clock, e.g. "3:00 PM".
func FormatHour(h int) string {
	switch {
	case h == 0:
		return "12:00 AM"
	case h < 12:
		return fmt.Sprintf("%d:00 AM", h)
	case h == 12:
		return "12:00 PM"
	default:
		return fmt.Sprintf("%d:00 PM", h-12)
	}
}

var dayNames = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// ParseDay accepts a weekday name or its three-letter prefix and returns
// 0=Monday..6=Sunday.
func ParseDay(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) >= 3 {
		for i, d := range dayNames {
			if strings.HasPrefix(d, s) {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("unknown day %q", s)
}

// DayName is the English name of dow (0=Monday).
func DayName(dow int) string {
	if dow < 0 || dow > 6 {
		return ""
	}
	d := dayNames[dow]
	return strings.ToUpper(d[:1]) + d[1:]
}
