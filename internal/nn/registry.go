package nn

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
)

// DefaultReachThreshold applies when reach_thresh.json is absent.
const DefaultReachThreshold = 0.40

// Calibration maps a raw status probability onto a sharper score with
// sigmoid((raw-Center)/Spread). ModelVersion names the artifact the constants
// were fitted against.
type Calibration struct {
	Center       float64 `json:"center"`
	Spread       float64 `json:"spread"`
	ModelVersion string  `json:"model_version"`
}

// Apply calibrates raw.
func (c Calibration) Apply(raw float64) float64 {
	return Sigmoid((raw - c.Center) / c.Spread)
}

// StatusModels is everything the authenticity predictor needs.
type StatusModels struct {
	Trusted         Classifier
	TrustedName     string
	Members         map[string]Classifier
	EnsembleWeights map[string]float64
	StyleFeatures   []string
	EmbeddingDim    int
	BestThreshold   float64
	Calibration     Calibration
}

// ReachModels is everything the reach and best-time predictors need.
type ReachModels struct {
	Classifier   Classifier
	Scaler       Scaler
	NumCols      []string
	CatCols      []string
	EmbeddingDim int
	Threshold    float64
}

// Registry holds the loaded classifier artifacts. It is built once at
// startup and read-only afterwards.
type Registry struct {
	Dir    string
	Status *StatusModels
	Reach  *ReachModels
}

// LoadOptions tune registry loading.
type LoadOptions struct {
	// Status ensemble member whose probability is trusted; "rf" if empty.
	TrustedStatusMember string
	// Used when status_meta.json has no calibration block.
	DefaultCalibration Calibration
}

type statusMeta struct {
	BestThreshold   float64            `json:"best_threshold"`
	EmbeddingDim    int                `json:"embedding_dim"`
	Calibration     *Calibration       `json:"calibration"`
	EnsembleWeights map[string]float64 `json:"ensemble_weights"`
}

type reachMeta struct {
	NumCols      []string `json:"num_cols"`
	CatCols      []string `json:"cat_cols"`
	EmbeddingDim int      `json:"embedding_dim"`
}

type reachThresh struct {
	BestThresh *float64 `json:"best_thresh"`
}

var statusMembers = []string{"rf", "xgb", "lgb"}

// LoadRegistry loads the status and reach artifacts from dir and checks that
// their feature columns line up with what the extractors produce.
func LoadRegistry(dir string, opts LoadOptions) (*Registry, error) {
	st, err := loadStatus(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("status models: %w", err)
	}
	rc, err := loadReach(dir)
	if err != nil {
		return nil, fmt.Errorf("reach models: %w", err)
	}
	return &Registry{Dir: dir, Status: st, Reach: rc}, nil
}

func loadStatus(dir string, opts LoadOptions) (*StatusModels, error) {
	trusted := opts.TrustedStatusMember
	if trusted == "" {
		trusted = "rf"
	}
	var meta statusMeta
	if err := readJSON(filepath.Join(dir, "status_meta.json"), &meta); err != nil {
		return nil, err
	}
	var style []string
	if err := readJSON(filepath.Join(dir, "status_style_features.json"), &style); err != nil {
		return nil, err
	}
	if err := CheckColumns(StatusColumns, style); err != nil {
		return nil, err
	}
	sm := &StatusModels{
		TrustedName:     trusted,
		Members:         map[string]Classifier{},
		EnsembleWeights: meta.EnsembleWeights,
		StyleFeatures:   style,
		EmbeddingDim:    meta.EmbeddingDim,
		BestThreshold:   meta.BestThreshold,
		Calibration:     opts.DefaultCalibration,
	}
	if meta.Calibration != nil {
		sm.Calibration = *meta.Calibration
	}
	if sm.Calibration.Spread <= 0 {
		return nil, fmt.Errorf("calibration spread must be positive, got %v", sm.Calibration.Spread)
	}
	for _, name := range statusMembers {
		path := filepath.Join(dir, "status_"+name+".json")
		c, err := LoadClassifier(path)
		if errors.Is(err, os.ErrNotExist) && name != trusted {
			continue
		}
		if err != nil {
			return nil, err
		}
		sm.Members[name] = c
	}
	sm.Trusted = sm.Members[trusted]
	if sm.Trusted == nil {
		return nil, fmt.Errorf("trusted member %q not found", trusted)
	}
	if want := sm.EmbeddingDim + len(style); sm.Trusted.Features() != want {
		return nil, fmt.Errorf("%w: status_%s expects %d columns, embedding_dim+style gives %d", ErrWidth, trusted, sm.Trusted.Features(), want)
	}
	if v, cv := sm.Trusted.Version(), sm.Calibration.ModelVersion; v != "" && cv != "" && v != cv {
		return nil, fmt.Errorf("calibration fitted for %q but trusted classifier is %q", cv, v)
	}
	return sm, nil
}

func loadReach(dir string) (*ReachModels, error) {
	var meta reachMeta
	if err := readJSON(filepath.Join(dir, "reach_meta.json"), &meta); err != nil {
		return nil, err
	}
	if err := CheckColumns(ReachColumns, meta.NumCols); err != nil {
		return nil, err
	}
	var sc Scaler
	if err := readJSON(filepath.Join(dir, "reach_scaler.json"), &sc); err != nil {
		return nil, err
	}
	if err := sc.validate(); err != nil {
		return nil, err
	}
	if sc.Width() != len(meta.NumCols) {
		return nil, fmt.Errorf("%w: scaler has %d columns, num_cols has %d", ErrWidth, sc.Width(), len(meta.NumCols))
	}
	c, err := LoadClassifier(filepath.Join(dir, "reach_voting.json"))
	if err != nil {
		return nil, err
	}
	if want := meta.EmbeddingDim + len(meta.NumCols); c.Features() != want {
		return nil, fmt.Errorf("%w: reach_voting expects %d columns, embedding_dim+num_cols gives %d", ErrWidth, c.Features(), want)
	}
	rm := &ReachModels{
		Classifier:   c,
		Scaler:       sc,
		NumCols:      meta.NumCols,
		CatCols:      meta.CatCols,
		EmbeddingDim: meta.EmbeddingDim,
		Threshold:    DefaultReachThreshold,
	}
	var th reachThresh
	err = readJSON(filepath.Join(dir, "reach_thresh.json"), &th)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	case th.BestThresh != nil:
		if *th.BestThresh < 0 || *th.BestThresh > 1 || math.IsNaN(*th.BestThresh) {
			return nil, fmt.Errorf("reach threshold %v outside [0,1]", *th.BestThresh)
		}
		rm.Threshold = *th.BestThresh
	}
	return rm, nil
}

// CheckColumns reports names in wanted that are absent from known, and
// duplicates in wanted.
func CheckColumns(known, wanted []string) error {
	if len(wanted) == 0 {
		return errors.New("no feature columns listed")
	}
	have := make(map[string]bool, len(known))
	for _, k := range known {
		have[k] = true
	}
	seen := map[string]bool{}
	var missing []string
	for _, w := range wanted {
		if seen[w] {
			return fmt.Errorf("duplicate feature column %q", w)
		}
		seen[w] = true
		if !have[w] {
			missing = append(missing, w)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("feature columns not produced by extractor: %v", missing)
	}
	return nil
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
