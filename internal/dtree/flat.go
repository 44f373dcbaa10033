package dtree

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
)

// Flat is the parallel-array form a fitted tree is exported in. Entries are
// indexed by node id. Feature[i] == LeafSentinel (or ChildrenLeft[i] == -1)
// marks node i as a leaf.
type Flat struct {
	NumFeatures   int         `json:"n_features"`
	FeatureNames  []string    `json:"feature_names,omitempty"`
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Class         []int       `json:"class,omitempty"`
	Value         [][]float64 `json:"value,omitempty"`
}

// FromFlat converts the parallel-array form into a validated Tree.
func FromFlat(f Flat) (*Tree, error) {
	n := len(f.Feature)
	if n == 0 {
		return nil, fmt.Errorf("%w: no nodes", ErrMalformedTree)
	}
	if len(f.ChildrenLeft) != n || len(f.ChildrenRight) != n || len(f.Threshold) != n {
		return nil, fmt.Errorf("%w: array lengths differ (feature=%d left=%d right=%d threshold=%d)",
			ErrMalformedTree, n, len(f.ChildrenLeft), len(f.ChildrenRight), len(f.Threshold))
	}
	if f.Class == nil && f.Value == nil {
		return nil, fmt.Errorf("%w: neither class nor value present", ErrMalformedTree)
	}
	if f.Class != nil && len(f.Class) != n {
		return nil, fmt.Errorf("%w: class has %d entries for %d nodes", ErrMalformedTree, len(f.Class), n)
	}
	if f.Class == nil && len(f.Value) != n {
		return nil, fmt.Errorf("%w: value has %d entries for %d nodes", ErrMalformedTree, len(f.Value), n)
	}

	nodes := make([]Node, n)
	for i := range n {
		if f.Feature[i] == LeafSentinel || f.ChildrenLeft[i] == -1 {
			class, err := f.leafClass(i)
			if err != nil {
				return nil, err
			}
			nodes[i] = Leaf(class)
			continue
		}
		nodes[i] = Internal(f.Feature[i], f.Threshold[i], f.ChildrenLeft[i], f.ChildrenRight[i])
	}

	t, err := New(nodes, f.NumFeatures)
	if err != nil {
		return nil, err
	}
	if f.FeatureNames != nil {
		return t.WithFeatureNames(f.FeatureNames)
	}
	return t, nil
}

func (f Flat) leafClass(i int) (int, error) {
	if f.Class != nil {
		return f.Class[i], nil
	}
	counts := f.Value[i]
	if len(counts) == 0 {
		return 0, fmt.Errorf("%w: leaf %d has no class counts", ErrMalformedTree, i)
	}
	best := 0
	for c := 1; c < len(counts); c++ {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best, nil
}

// Decode reads a JSON-encoded Flat tree from r.
func Decode(r io.Reader) (*Tree, error) {
	var f Flat
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode tree: %w", err)
	}
	return FromFlat(f)
}

// Load reads a JSON-encoded Flat tree from path.
func Load(path string) (*Tree, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tree: %w", err)
	}
	defer fh.Close()
	return Decode(fh)
}
