package nn

import (
	"errors"
	"fmt"
)

// Tree is one decision tree in flattened node form. Leaves have Left == -1
// and carry the positive-class probability in Value.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

// Forest averages the leaf probabilities of its trees.
type Forest struct {
	Trees   []Tree
	N       int
	version string
}

func newForest(a Artifact) (*Forest, error) {
	if len(a.Trees) == 0 {
		return nil, errors.New("forest artifact has no trees")
	}
	if a.NFeatures <= 0 {
		return nil, errors.New("forest artifact needs n_features")
	}
	for ti, t := range a.Trees {
		if len(t.Nodes) == 0 {
			return nil, fmt.Errorf("tree %d is empty", ti)
		}
		for ni, n := range t.Nodes {
			if n.Left == -1 {
				continue
			}
			if n.Feature < 0 || n.Feature >= a.NFeatures {
				return nil, fmt.Errorf("tree %d node %d splits on feature %d outside [0,%d)", ti, ni, n.Feature, a.NFeatures)
			}
			if n.Left <= ni || n.Right <= ni || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
				return nil, fmt.Errorf("tree %d node %d has invalid children", ti, ni)
			}
		}
	}
	return &Forest{Trees: a.Trees, N: a.NFeatures, version: a.Version}, nil
}

func (f *Forest) Features() int   { return f.N }
func (f *Forest) Version() string { return f.version }

func (f *Forest) Score(x []float64) (float64, error) {
	if len(x) != f.N {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrWidth, len(x), f.N)
	}
	var sum float64
	for _, t := range f.Trees {
		i := 0
		for t.Nodes[i].Left != -1 {
			n := t.Nodes[i]
			if x[n.Feature] <= n.Threshold {
				i = n.Left
			} else {
				i = n.Right
			}
		}
		sum += t.Nodes[i].Value
	}
	return sum / float64(len(f.Trees)), nil
}
