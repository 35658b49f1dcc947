package activity

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// Classifier maps a feature window to per-class probabilities.
type Classifier interface {
	Predict(f Features) (map[string]float64, error)
}

// TreeNode is one node of a DecisionTree, laid out the way scikit-learn
// exports tree_ arrays. Leaves have Left == -1.
type TreeNode struct {
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Value     []float64 `json:"value"`
}

// DecisionTree is a pretrained classification tree. Samples with
// feature <= threshold go left.
type DecisionTree struct {
	Classes []string   `json:"classes"`
	Nodes   []TreeNode `json:"nodes"`
}

// LoadDecisionTree reads a JSON model file.
func LoadDecisionTree(path string) (*DecisionTree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open activity model: %w", err)
	}
	defer f.Close()
	t, err := ParseDecisionTree(f)
	if err != nil {
		return nil, fmt.Errorf("activity model %s: %w", path, err)
	}
	return t, nil
}

// ParseDecisionTree decodes and validates a JSON model.
func ParseDecisionTree(r io.Reader) (*DecisionTree, error) {
	var t DecisionTree
	dec := json.NewDecoder(io.LimitReader(r, 16<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks that every node references valid children, features and
// class counts, and that the tree is acyclic (children come after parents).
func (t *DecisionTree) Validate() error {
	if len(t.Classes) == 0 {
		return errors.New("model has no classes")
	}
	if len(t.Nodes) == 0 {
		return errors.New("model has no nodes")
	}
	for i, n := range t.Nodes {
		if n.Left == -1 {
			if len(n.Value) != len(t.Classes) {
				return fmt.Errorf("leaf %d has %d class counts, want %d", i, len(n.Value), len(t.Classes))
			}
			continue
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d has invalid children %d, %d", i, n.Left, n.Right)
		}
		if n.Feature < 0 || n.Feature >= len(FeatureNames) {
			return fmt.Errorf("node %d splits on unknown feature %d", i, n.Feature)
		}
	}
	return nil
}

// Predict walks the tree and returns the class distribution at the leaf
// reached.
func (t *DecisionTree) Predict(f Features) (map[string]float64, error) {
	x := f.Vector()
	i := 0
	for t.Nodes[i].Left != -1 {
		n := t.Nodes[i]
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}

	leaf := t.Nodes[i]
	var total float64
	for _, v := range leaf.Value {
		total += v
	}
	if total <= 0 {
		return nil, fmt.Errorf("leaf %d has no samples", i)
	}
	probs := make(map[string]float64, len(t.Classes))
	for c, v := range leaf.Value {
		probs[t.Classes[c]] = v / total
	}
	return probs, nil
}

var _ Classifier = (*DecisionTree)(nil)
