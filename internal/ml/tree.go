package ml

import (
	"fmt"

	"loan-predictor/internal/features"
)

const leafNode = -1

// tree is a fitted decision tree in scikit-learn's array layout.
type tree struct {
	left      []int
	right     []int
	feature   []int
	threshold []float64
	value     [][]float64
}

func newTree(ta treeArrays, nClasses int) (*tree, error) {
	n := len(ta.ChildrenLeft)
	if n == 0 {
		return nil, fmt.Errorf("tree has no nodes")
	}
	if len(ta.ChildrenRight) != n || len(ta.Feature) != n || len(ta.Threshold) != n || len(ta.Value) != n {
		return nil, fmt.Errorf("tree arrays differ in length (%d nodes)", n)
	}
	for i := 0; i < n; i++ {
		l, r := ta.ChildrenLeft[i], ta.ChildrenRight[i]
		if (l == leafNode) != (r == leafNode) {
			return nil, fmt.Errorf("node %d has a single child", i)
		}
		if l != leafNode {
			// Children always follow their parent in sklearn's depth-first order,
			// which also rules out cycles.
			if l <= i || l >= n || r <= i || r >= n {
				return nil, fmt.Errorf("node %d has out-of-range child", i)
			}
			if ta.Feature[i] < 0 {
				return nil, fmt.Errorf("split node %d has negative feature index", i)
			}
		}
		if len(ta.Value[i]) != nClasses {
			return nil, fmt.Errorf("node %d value has %d classes, want %d", i, len(ta.Value[i]), nClasses)
		}
	}
	return &tree{
		left:      ta.ChildrenLeft,
		right:     ta.ChildrenRight,
		feature:   ta.Feature,
		threshold: ta.Threshold,
		value:     ta.Value,
	}, nil
}

// maxFeature returns the highest feature index any split reads, or -1.
func (t *tree) maxFeature() int {
	m := -1
	for i, f := range t.feature {
		if t.left[i] != leafNode && f > m {
			m = f
		}
	}
	return m
}

// proba walks the tree and returns the leaf's normalized class weights.
func (t *tree) proba(row features.Row) ([]float64, error) {
	node := 0
	for t.left[node] != leafNode {
		x, err := row.Float(t.feature[node])
		if err != nil {
			return nil, err
		}
		if x <= t.threshold[node] {
			node = t.left[node]
		} else {
			node = t.right[node]
		}
	}
	return normalize(t.value[node]), nil
}

func normalize(w []float64) []float64 {
	out := make([]float64, len(w))
	var sum float64
	for _, v := range w {
		sum += v
	}
	if sum <= 0 {
		for i := range out {
			out[i] = 1 / float64(len(out))
		}
		return out
	}
	for i, v := range w {
		out[i] = v / sum
	}
	return out
}

func argmax(p []float64) int {
	best := 0
	for i := 1; i < len(p); i++ {
		if p[i] > p[best] {
			best = i
		}
	}
	return best
}

// Forest is a tree ensemble that averages per-tree class probabilities. A
// single decision tree is a Forest of one.
type Forest struct {
	trees     []*tree
	classes   []string
	schema    features.Schema
	nFeatures int
}

func (f *Forest) checkWidth(row features.Row) error {
	if row.Len() != f.nFeatures {
		return fmt.Errorf("%w: row has %d features, model expects %d", ErrFeatureCount, row.Len(), f.nFeatures)
	}
	return nil
}

// PredictProba returns the mean class probabilities across all trees.
func (f *Forest) PredictProba(row features.Row) ([]float64, error) {
	if err := f.checkWidth(row); err != nil {
		return nil, err
	}
	acc := make([]float64, len(f.classes))
	for i, t := range f.trees {
		p, err := t.proba(row)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		for c, v := range p {
			acc[c] += v
		}
	}
	for c := range acc {
		acc[c] /= float64(len(f.trees))
	}
	return acc, nil
}

// Predict returns the class with the highest mean probability.
func (f *Forest) Predict(row features.Row) (string, error) {
	p, err := f.PredictProba(row)
	if err != nil {
		return "", err
	}
	return f.classes[argmax(p)], nil
}

// Classes returns the class labels in probability order.
func (f *Forest) Classes() []string { return f.classes }

// FeatureNames returns the declared schema, or nil.
func (f *Forest) FeatureNames() features.Schema { return f.schema }
