// Package decisionpath explains a single decision-tree prediction as the
// split conditions the input row passed through on its way to a leaf.
package decisionpath

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/dgallion1/aquasens/internal/dtree"
)

// MaxSteps caps the number of split conditions reported per prediction.
const MaxSteps = 5

// ErrMalformedInput is returned when the row or feature names do not fit the tree.
var ErrMalformedInput = errors.New("malformed input")

// Step is one traversed split, rendered for humans.
type Step struct {
	Feature   string  `json:"feature"`
	Condition string  `json:"condition"`
	Value     float64 `json:"value"`
}

// Extract walks tree for row and returns the first MaxSteps internal nodes
// visited, root first. featureNames is indexed by the tree's feature indices.
// A tree whose root is a leaf yields an empty, non-nil slice.
func Extract(tree *dtree.Tree, row []float64, featureNames []string) ([]Step, error) {
	path, err := tree.Path(row)
	if err != nil {
		if errors.Is(err, dtree.ErrRowWidth) {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
		return nil, err
	}

	steps := make([]Step, 0, MaxSteps)
	for _, id := range path {
		if len(steps) == MaxSteps {
			break
		}
		n, _ := tree.Node(id)
		if n.IsLeaf() {
			continue
		}
		idx := n.Feature()
		if idx >= len(featureNames) {
			return nil, fmt.Errorf("%w: node %d references feature %d, only %d names given", ErrMalformedInput, id, idx, len(featureNames))
		}
		name := featureNames[idx]
		steps = append(steps, Step{
			Feature:   name,
			Condition: fmt.Sprintf("%s <= %.2f", name, n.Threshold()),
			Value:     Round2(row[idx]),
		})
	}
	return steps, nil
}

// Round2 rounds v to two decimal places the way %.2f does, so a step's
// value and the threshold in its condition agree on ties (0.125 -> 0.12).
func Round2(v float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	if err != nil {
		return v
	}
	return r
}
