package nn

import "fmt"

// Scaler standardizes numeric columns with pre-fit statistics.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

func (s Scaler) Width() int { return len(s.Scale) }

// Transform returns (x-mean)/scale. A zero scale leaves the centred value
// unscaled. An absent mean means no centring.
func (s Scaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.Scale) {
		return nil, fmt.Errorf("%w: scaler fit on %d columns, got %d", ErrWidth, len(s.Scale), len(x))
	}
	out := make([]float64, len(x))
	for i, v := range x {
		if len(s.Mean) > 0 {
			v -= s.Mean[i]
		}
		if s.Scale[i] != 0 {
			v /= s.Scale[i]
		}
		out[i] = v
	}
	return out, nil
}

func (s Scaler) validate() error {
	if len(s.Scale) == 0 {
		return fmt.Errorf("scaler has no columns")
	}
	if len(s.Mean) != 0 && len(s.Mean) != len(s.Scale) {
		return fmt.Errorf("scaler mean has %d columns, scale has %d", len(s.Mean), len(s.Scale))
	}
	return nil
}
