package nn

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// Classifier scores a feature row with the probability of the positive class.
type Classifier interface {
	Score(x []float64) (float64, error)
	// Features is the row width the classifier was fit on.
	Features() int
	Version() string
}

// Artifact is the serialized form of a classifier. Kind selects the scoring
// strategy: "logistic", "forest", "voting" or "exec".
type Artifact struct {
	Kind      string  `json:"kind"`
	Version   string  `json:"version,omitempty"`
	NFeatures int     `json:"n_features"`
	Weight    float64 `json:"weight,omitempty"`

	// logistic
	Weights []float64 `json:"weights,omitempty"`
	Bias    float64   `json:"bias,omitempty"`

	// forest
	Trees []Tree `json:"trees,omitempty"`

	// voting
	Members []Artifact `json:"members,omitempty"`

	// exec
	Binary string `json:"binary,omitempty"`
	Model  string `json:"model,omitempty"`
}

var ErrWidth = errors.New("feature row width mismatch")

// LoadClassifier reads and decodes an artifact file.
func LoadClassifier(path string) (Classifier, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var a Artifact
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	c, err := Decode(a)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Decode builds the concrete classifier named by a.Kind.
func Decode(a Artifact) (Classifier, error) {
	switch a.Kind {
	case "logistic":
		if len(a.Weights) == 0 {
			return nil, errors.New("logistic artifact has no weights")
		}
		if a.NFeatures != 0 && a.NFeatures != len(a.Weights) {
			return nil, fmt.Errorf("logistic artifact declares %d features but has %d weights", a.NFeatures, len(a.Weights))
		}
		return &Logistic{W: a.Weights, B: a.Bias, version: a.Version}, nil
	case "forest":
		return newForest(a)
	case "voting":
		return newVoting(a)
	case "exec":
		if a.Binary == "" || a.Model == "" {
			return nil, errors.New("exec artifact needs binary and model")
		}
		if a.NFeatures <= 0 {
			return nil, errors.New("exec artifact needs n_features")
		}
		return &Exec{Binary: a.Binary, ModelPath: a.Model, N: a.NFeatures, version: a.Version}, nil
	default:
		return nil, fmt.Errorf("unknown classifier kind %q", a.Kind)
	}
}

// Logistic is a linear model with a sigmoid link.
type Logistic struct {
	W       []float64
	B       float64
	version string
}

func (l *Logistic) Features() int   { return len(l.W) }
func (l *Logistic) Version() string { return l.version }

func (l *Logistic) Score(x []float64) (float64, error) {
	if len(x) != len(l.W) {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrWidth, len(x), len(l.W))
	}
	z := l.B
	for i, w := range l.W {
		z += w * x[i]
	}
	return Sigmoid(z), nil
}

// Voting averages member probabilities, weighted (soft voting).
type Voting struct {
	Members []Classifier
	Weights []float64
	version string
}

func newVoting(a Artifact) (*Voting, error) {
	if len(a.Members) == 0 {
		return nil, errors.New("voting artifact has no members")
	}
	v := &Voting{version: a.Version}
	for i, m := range a.Members {
		c, err := Decode(m)
		if err != nil {
			return nil, fmt.Errorf("member %d: %w", i, err)
		}
		if i > 0 && c.Features() != v.Members[0].Features() {
			return nil, fmt.Errorf("member %d width %d differs from %d", i, c.Features(), v.Members[0].Features())
		}
		w := m.Weight
		if w == 0 {
			w = 1
		}
		v.Members = append(v.Members, c)
		v.Weights = append(v.Weights, w)
	}
	return v, nil
}

func (v *Voting) Features() int   { return v.Members[0].Features() }
func (v *Voting) Version() string { return v.version }

func (v *Voting) Score(x []float64) (float64, error) {
	var sum, wsum float64
	for i, m := range v.Members {
		p, err := m.Score(x)
		if err != nil {
			return 0, err
		}
		sum += v.Weights[i] * p
		wsum += v.Weights[i]
	}
	return sum / wsum, nil
}

func Sigmoid(z float64) float64 { return 1 / (1 + math.Exp(-z)) }

// Logit is the inverse of Sigmoid.
func Logit(p float64) float64 { return math.Log(p / (1 - p)) }
