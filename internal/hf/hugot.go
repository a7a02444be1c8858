// Package hf runs local transformer pipelines through hugot: sentence
// embeddings for captions and the emotion text classifier.
package hf

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"

	"inspiro/internal/embed"
	"inspiro/internal/logging"
)

// Session owns the hugot runtime. Pipelines created from it are released by Close.
type Session struct {
	s *hugot.Session
}

// NewSession starts a pure-Go hugot session.
func NewSession() (*Session, error) {
	s, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("hugot session: %w", err)
	}
	return &Session{s: s}, nil
}

func (s *Session) Close() error {
	return s.s.Destroy()
}

// Embedder produces mean-pooled, L2-normalized sentence embeddings.
type Embedder struct {
	mu  sync.Mutex
	p   *pipelines.FeatureExtractionPipeline
	dim int
}

// NewEmbedder loads an ONNX sentence-transformer from modelPath.
func NewEmbedder(s *Session, modelPath string, dim int) (*Embedder, error) {
	p, err := hugot.NewPipeline(s.s, hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "caption-embedder",
	})
	if err != nil {
		return nil, fmt.Errorf("load embedder %s: %w", modelPath, err)
	}
	logging.Info("embedder_loaded", map[string]any{"model": modelPath, "dim": dim})
	return &Embedder{p: p, dim: dim}, nil
}

func (e *Embedder) Dim() int { return e.dim }

func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	out, err := e.p.RunPipeline([]string{text})
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if len(out.Embeddings) != 1 {
		return nil, fmt.Errorf("embedder returned %d rows", len(out.Embeddings))
	}
	row := out.Embeddings[0]
	if len(row) != e.dim {
		return nil, fmt.Errorf("embedder returned %d dims, want %d", len(row), e.dim)
	}
	v := make([]float64, len(row))
	for i, x := range row {
		v[i] = float64(x)
	}
	embed.Normalize(v)
	return v, nil
}

// EmotionClassifier scores text against every label of a text
// classification model.
type EmotionClassifier struct {
	mu sync.Mutex
	p  *pipelines.TextClassificationPipeline
}

// NewEmotionClassifier loads an ONNX text-classification model from modelPath.
func NewEmotionClassifier(s *Session, modelPath string) (*EmotionClassifier, error) {
	p, err := hugot.NewPipeline(s.s, hugot.TextClassificationConfig{
		ModelPath: modelPath,
		Name:      "emotion-classifier",
		Options: []hugot.TextClassificationOption{
			pipelines.WithSoftmax(),
			pipelines.WithMultiLabel(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("load emotion model %s: %w", modelPath, err)
	}
	logging.Info("emotion_model_loaded", map[string]any{"model": modelPath})
	return &EmotionClassifier{p: p}, nil
}

// Classify returns a score per label.
func (c *EmotionClassifier) Classify(ctx context.Context, text string) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	out, err := c.p.RunPipeline([]string{text})
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if len(out.ClassificationOutputs) != 1 || len(out.ClassificationOutputs[0]) == 0 {
		return nil, errors.New("emotion model returned no scores")
	}
	scores := make(map[string]float64, len(out.ClassificationOutputs[0]))
	for _, o := range out.ClassificationOutputs[0] {
		scores[o.Label] = float64(o.Score)
	}
	return scores, nil
}
