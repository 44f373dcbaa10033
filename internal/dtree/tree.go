package dtree

import (
	"errors"
	"fmt"
)

// LeafSentinel is the feature index the flattened export uses to mark a leaf.
const LeafSentinel = -2

var (
	// ErrMalformedTree is returned when a tree structure is inconsistent.
	ErrMalformedTree = errors.New("malformed tree")
	// ErrRowWidth is returned when a row does not match the tree's feature count.
	ErrRowWidth = errors.New("row width does not match tree")
)

// Node is one node of a fitted binary decision tree. A node is either
// internal (it routes on Feature/Threshold) or a leaf (it holds Class).
type Node struct {
	internal  bool
	feature   int
	threshold float64
	left      int
	right     int
	class     int
}

// Internal returns a split node. Rows with row[feature] <= threshold go left.
func Internal(feature int, threshold float64, left, right int) Node {
	return Node{internal: true, feature: feature, threshold: threshold, left: left, right: right}
}

// Leaf returns a terminal node predicting class.
func Leaf(class int) Node {
	return Node{class: class}
}

// IsLeaf reports whether n is a terminal node.
func (n Node) IsLeaf() bool { return !n.internal }

// Feature is the column index an internal node splits on.
func (n Node) Feature() int { return n.feature }

// Threshold is the split value; rows at or below it go left.
func (n Node) Threshold() float64 { return n.threshold }

// Children returns the left and right child ids of an internal node.
func (n Node) Children() (int, int) { return n.left, n.right }

// Class is the predicted class index of a leaf.
func (n Node) Class() int { return n.class }

// Tree is an immutable fitted decision tree. Node 0 is the root.
type Tree struct {
	nodes        []Node
	numFeatures  int
	featureNames []string
}

// New validates nodes and returns a tree over rows of numFeatures columns.
func New(nodes []Node, numFeatures int) (*Tree, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: no nodes", ErrMalformedTree)
	}
	if numFeatures < 0 {
		return nil, fmt.Errorf("%w: negative feature count %d", ErrMalformedTree, numFeatures)
	}

	// Every node reachable from the root must be visited exactly once.
	seen := make([]bool, len(nodes))
	stack := []int{0}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			return nil, fmt.Errorf("%w: node %d reachable more than once", ErrMalformedTree, id)
		}
		seen[id] = true

		n := nodes[id]
		if n.IsLeaf() {
			continue
		}
		if n.feature < 0 || n.feature >= numFeatures {
			return nil, fmt.Errorf("%w: node %d splits on feature %d, tree has %d features", ErrMalformedTree, id, n.feature, numFeatures)
		}
		for _, c := range []int{n.left, n.right} {
			if c <= 0 || c >= len(nodes) {
				return nil, fmt.Errorf("%w: node %d has child %d out of range", ErrMalformedTree, id, c)
			}
			stack = append(stack, c)
		}
	}

	cp := make([]Node, len(nodes))
	copy(cp, nodes)
	return &Tree{nodes: cp, numFeatures: numFeatures}, nil
}

// WithFeatureNames returns a copy of t carrying the column names it was trained on.
func (t *Tree) WithFeatureNames(names []string) (*Tree, error) {
	if len(names) != t.numFeatures {
		return nil, fmt.Errorf("%w: %d feature names for %d features", ErrMalformedTree, len(names), t.numFeatures)
	}
	cp := *t
	cp.featureNames = append([]string(nil), names...)
	return &cp, nil
}

// NumFeatures is the width of the encoded rows the tree expects.
func (t *Tree) NumFeatures() int { return t.numFeatures }

// NumNodes returns the node count, including unreachable nodes.
func (t *Tree) NumNodes() int { return len(t.nodes) }

// FeatureNames returns the training column names, or nil if unknown.
func (t *Tree) FeatureNames() []string {
	if t.featureNames == nil {
		return nil
	}
	return append([]string(nil), t.featureNames...)
}

// Node returns the node with the given id.
func (t *Tree) Node(id int) (Node, bool) {
	if id < 0 || id >= len(t.nodes) {
		return Node{}, false
	}
	return t.nodes[id], true
}

// Path returns the node ids visited by row, from the root to its leaf.
func (t *Tree) Path(row []float64) ([]int, error) {
	if len(row) != t.numFeatures {
		return nil, fmt.Errorf("%w: row has %d columns, tree expects %d", ErrRowWidth, len(row), t.numFeatures)
	}
	var path []int
	id := 0
	for {
		path = append(path, id)
		n := t.nodes[id]
		if n.IsLeaf() {
			return path, nil
		}
		if row[n.feature] <= n.threshold {
			id = n.left
		} else {
			id = n.right
		}
	}
}

// Apply returns the id of the leaf row lands in.
func (t *Tree) Apply(row []float64) (int, error) {
	path, err := t.Path(row)
	if err != nil {
		return 0, err
	}
	return path[len(path)-1], nil
}

// Predict returns the class index of the leaf row lands in.
func (t *Tree) Predict(row []float64) (int, error) {
	leaf, err := t.Apply(row)
	if err != nil {
		return 0, err
	}
	return t.nodes[leaf].class, nil
}

// Depth returns the length of the longest root-to-leaf path, in edges.
func (t *Tree) Depth() int {
	var walk func(id int) int
	walk = func(id int) int {
		n := t.nodes[id]
		if n.IsLeaf() {
			return 0
		}
		return 1 + max(walk(n.left), walk(n.right))
	}
	return walk(0)
}
