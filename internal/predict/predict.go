// Package predict turns captions into authenticity, emotion and reach
// predictions using the models in an nn.Registry.
//
// Predictors never return errors to their callers. A failure is reported in
// the result's Error field and the caller must check it before reading any
// other field.
package predict

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"inspiro/internal/embed"
	"inspiro/internal/logging"
	"inspiro/internal/metrics"
	"inspiro/internal/nn"
	"inspiro/internal/util"
)

var ErrModelsNotLoaded = errors.New("models not loaded")

const (
	LabelReal = "Real"
	LabelFake = "Fake/Spam"

	LabelHighReach = "High Reach"
	LabelLowReach  = "Low Reach"

	DefaultMaxCaptionLength = 5000
	DefaultEmotionMaxLength = 512
)

// EmotionModel scores text against each emotion label.
type EmotionModel interface {
	Classify(ctx context.Context, text string) (map[string]float64, error)
}

// PredictionLog records model inputs and outputs for later review.
type PredictionLog interface {
	LogPrediction(ctx context.Context, rec Record) error
}

// Record is one logged prediction.
type Record struct {
	Task     string
	Caption  string
	At       time.Time
	Row      []float64
	Features map[string]float64
	Label    string
	Score    float64
}

// Options configure a Service. Zero values select defaults.
type Options struct {
	Location         *time.Location
	MaxCaptionLength int
	EmotionMaxLength int
	// EmotionLoadErr explains why Emotion is nil, reported in fallback notes.
	EmotionLoadErr error
	Emotion        EmotionModel
	Log            PredictionLog
	Now            func() time.Time
}

// Service runs the three predictors and the best-time sweep. It is safe for
// concurrent use once built.
type Service struct {
	reg        *nn.Registry
	emb        embed.Embedder
	emotion    EmotionModel
	emotionErr error
	log        PredictionLog
	loc        *time.Location
	now        func() time.Time
	maxLen     int
	emoMaxLen  int
}

// New builds a Service. reg or emb may be nil, in which case the dependent
// predictors return error-tagged results.
func New(reg *nn.Registry, emb embed.Embedder, opts Options) *Service {
	s := &Service{
		reg:        reg,
		emb:        emb,
		emotion:    opts.Emotion,
		emotionErr: opts.EmotionLoadErr,
		log:        opts.Log,
		loc:        opts.Location,
		now:        opts.Now,
		maxLen:     opts.MaxCaptionLength,
		emoMaxLen:  opts.EmotionMaxLength,
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.maxLen <= 0 {
		s.maxLen = DefaultMaxCaptionLength
	}
	if s.emoMaxLen <= 0 {
		s.emoMaxLen = DefaultEmotionMaxLength
	}
	return s
}

// Ready reports whether the status and reach predictors can run.
func (s *Service) Ready() error {
	if s.reg == nil || s.reg.Status == nil || s.reg.Reach == nil || s.emb == nil {
		return ErrModelsNotLoaded
	}
	if d := s.emb.Dim(); d != s.reg.Status.EmbeddingDim || d != s.reg.Reach.EmbeddingDim {
		return fmt.Errorf("%w: embedder produces %d dims, models expect %d/%d",
			nn.ErrWidth, d, s.reg.Status.EmbeddingDim, s.reg.Reach.EmbeddingDim)
	}
	return nil
}

// Location is the timezone used when no timestamp is given.
func (s *Service) Location() *time.Location { return s.loc }

// Now returns the current time in the service timezone.
func (s *Service) Now() time.Time { return s.now().In(s.loc) }

// StatusResult is the authenticity prediction for one caption.
type StatusResult struct {
	Label      string             `json:"label,omitempty"`
	Score      float64            `json:"suspicion_score"`
	Raw        float64            `json:"raw_probability"`
	Confidence float64            `json:"confidence"`
	Model      string             `json:"model,omitempty"`
	Features   map[string]float64 `json:"features,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// Status predicts whether caption reads as real or fake/spam.
func (s *Service) Status(ctx context.Context, caption string) StatusResult {
	start := time.Now()
	defer metrics.ObservePrediction("status", start)

	res, err := s.status(ctx, caption)
	if err != nil {
		metrics.IncPredictionError("status")
		logging.Warn("status_predict_error", map[string]any{"error": err.Error()})
		return StatusResult{Error: err.Error()}
	}
	metrics.IncPrediction("status", res.Label)
	return res
}

func (s *Service) status(ctx context.Context, caption string) (StatusResult, error) {
	if s.reg == nil || s.reg.Status == nil || s.emb == nil {
		return StatusResult{}, ErrModelsNotLoaded
	}
	sm := s.reg.Status
	caption = util.TruncateRunes(caption, s.maxLen)
	vec, err := s.embed(ctx, caption, sm.EmbeddingDim)
	if err != nil {
		return StatusResult{}, err
	}
	fv := nn.ExtractStatus(caption)
	style, err := fv.Select(sm.StyleFeatures)
	if err != nil {
		return StatusResult{}, err
	}
	row := concat(vec, style)
	raw, err := sm.Trusted.Score(row)
	if err != nil {
		return StatusResult{}, fmt.Errorf("score status_%s: %w", sm.TrustedName, err)
	}
	score := sm.Calibration.Apply(raw)
	label := LabelReal
	if score >= 0.5 {
		label = LabelFake
	}
	res := StatusResult{
		Label:      label,
		Score:      score,
		Raw:        raw,
		Confidence: clamp01(math.Abs(score-0.5) * 2),
		Model:      sm.Trusted.Version(),
		Features:   fv.Map(),
	}
	s.record(ctx, Record{Task: "status", Caption: caption, Row: row, Features: res.Features, Label: label, Score: score})
	return res, nil
}

func (s *Service) embed(ctx context.Context, caption string, want int) ([]float64, error) {
	vec, err := s.emb.Embed(ctx, caption)
	if err != nil {
		return nil, fmt.Errorf("embed caption: %w", err)
	}
	if len(vec) != want {
		return nil, fmt.Errorf("%w: embedding has %d dims, model expects %d", nn.ErrWidth, len(vec), want)
	}
	return vec, nil
}

func (s *Service) record(ctx context.Context, rec Record) {
	if s.log == nil {
		return
	}
	if rec.At.IsZero() {
		rec.At = s.Now()
	}
	if err := s.log.LogPrediction(ctx, rec); err != nil {
		logging.Warn("prediction_log_error", map[string]any{"task": rec.Task, "error": err.Error()})
	}
}

func concat(parts ...[]float64) []float64 {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]float64, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
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
