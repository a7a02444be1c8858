// Package nntest writes small, deterministic model artifacts for tests.
package nntest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"inspiro/internal/nn"
)

// StatusStyle is the style column order the status artifacts are fit on.
var StatusStyle = []string{
	"text_length", "num_emojis", "punctuation_count", "has_links", "sentiment",
	"log_engagement", "avg_word_len", "num_hashtags", "num_mentions", "uppercase_ratio",
}

const (
	StatusVersion = "status_rf.v1"
	// Raw status probability for a caption with no !/? and no link.
	BaseStatusProb = 0.40
)

// WriteRegistry writes a complete artifact set for embedding width dim into
// a temp dir and returns its path.
//
// The trusted status model ignores the embedding and raises the fake
// probability by logit 0.5 per '!'/'?' and 1.0 for a link, from a base of
// 0.40. The reach ensemble averages a logistic member that prefers mornings
// (hour_sin) and hashtags with a one-split forest on has_hashtag.
func WriteRegistry(t testing.TB, dim int) string {
	t.Helper()
	dir := t.TempDir()

	sw := make([]float64, dim+len(StatusStyle))
	for i, name := range StatusStyle {
		switch name {
		case "punctuation_count":
			sw[dim+i] = 0.5
		case "has_links":
			sw[dim+i] = 1.0
		}
	}
	write(t, dir, "status_rf.json", nn.Artifact{
		Kind: "logistic", Version: StatusVersion, NFeatures: len(sw),
		Weights: sw, Bias: nn.Logit(BaseStatusProb),
	})
	write(t, dir, "status_xgb.json", nn.Artifact{
		Kind: "logistic", Version: "status_xgb.v1", NFeatures: len(sw),
		Weights: make([]float64, len(sw)), Bias: 2,
	})
	write(t, dir, "status_meta.json", map[string]any{
		"best_threshold": 0.5,
		"embedding_dim":  dim,
		"calibration":    nn.Calibration{Center: 0.46, Spread: 0.008, ModelVersion: StatusVersion},
		"ensemble_weights": map[string]float64{
			"xgb": 0.5, "rf": 0.3, "lgb": 0.2,
		},
	})
	write(t, dir, "status_style_features.json", StatusStyle)

	cols := nn.ReachColumns
	width := dim + len(cols)
	rw := make([]float64, width)
	hashtag := 0
	for i, c := range cols {
		switch c {
		case "hour_sin":
			rw[dim+i] = 1.5
		case "has_hashtag":
			rw[dim+i] = 0.8
			hashtag = dim + i
		}
	}
	write(t, dir, "reach_voting.json", nn.Artifact{
		Kind: "voting", Version: "reach_voting.v1", NFeatures: width,
		Members: []nn.Artifact{
			{Kind: "logistic", NFeatures: width, Weights: rw, Bias: -0.4, Weight: 2},
			{Kind: "forest", NFeatures: width, Weight: 1, Trees: []nn.Tree{{Nodes: []nn.Node{
				{Feature: hashtag, Threshold: 0.5, Left: 1, Right: 2},
				{Left: -1, Right: -1, Value: 0.3},
				{Left: -1, Right: -1, Value: 0.7},
			}}}},
		},
	})
	scale := make([]float64, len(cols))
	for i, c := range cols {
		switch c {
		case "char_count":
			scale[i] = 100
		case "word_count":
			scale[i] = 20
		default:
			scale[i] = 1
		}
	}
	write(t, dir, "reach_scaler.json", nn.Scaler{Mean: make([]float64, len(cols)), Scale: scale})
	write(t, dir, "reach_meta.json", map[string]any{
		"num_cols": cols, "cat_cols": []string{}, "embedding_dim": dim,
	})
	write(t, dir, "reach_thresh.json", map[string]float64{"best_thresh": 0.40})
	return dir
}

// Overwrite replaces one artifact file in dir.
func Overwrite(t testing.TB, dir, name string, v any) {
	t.Helper()
	write(t, dir, name, v)
}

func write(t testing.TB, dir, name string, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), b, 0o644); err != nil {
		t.Fatal(err)
	}
}
