package ml

import (
	"cmp"
	"math"
	"slices"

	"github.com/leapstack-labs/leapml/pkg/core"
)

// TreeNode is one node of a fitted tree. Leaves have Feature -1.
type TreeNode struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	// Proba is the class distribution of the training samples at the node.
	Proba []float64
}

// DecisionTreeClassifier is a binary CART tree over numeric features.
// A non-positive MaxDepth grows the tree until the size limits stop it.
type DecisionTreeClassifier struct {
	MaxDepth            int     `param:"max_depth"`
	MinSamplesSplit     int     `param:"min_samples_split"`
	MinSamplesLeaf      int     `param:"min_samples_leaf"`
	Criterion           string  `param:"criterion"`
	MinImpurityDecrease float64 `param:"min_impurity_decrease"`

	Nodes       []TreeNode
	ClassValues []float64
}

func (m *DecisionTreeClassifier) validate() error {
	if m.MinSamplesSplit < 2 {
		return core.Errorf(core.CategoryInvalidArgument, "min_samples_split must be >= 2, got %d", m.MinSamplesSplit)
	}
	if m.MinSamplesLeaf < 1 {
		return core.Errorf(core.CategoryInvalidArgument, "min_samples_leaf must be >= 1, got %d", m.MinSamplesLeaf)
	}
	if m.MinImpurityDecrease < 0 {
		return core.Errorf(core.CategoryInvalidArgument, "min_impurity_decrease must be >= 0")
	}
	return nil
}

// Fit grows the tree greedily, choosing at each node the threshold with the
// largest impurity decrease.
func (m *DecisionTreeClassifier) Fit(X [][]float64, y []float64) error {
	if err := checkXY(X, y); err != nil {
		return err
	}
	classes, labels := classList(y)
	m.ClassValues = classes
	m.Nodes = m.Nodes[:0]

	b := &treeBuilder{
		tree:     m,
		x:        X,
		labels:   labels,
		k:        len(classes),
		total:    float64(len(X)),
		impurity: gini,
	}
	if m.Criterion == "entropy" {
		b.impurity = entropy
	}
	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	b.grow(idx, 0)
	return nil
}

// Classes returns the sorted class values seen during Fit.
func (m *DecisionTreeClassifier) Classes() []float64 { return m.ClassValues }

// Predict returns the majority class of the leaf each row falls into.
func (m *DecisionTreeClassifier) Predict(X [][]float64) []float64 {
	return predictFromProba(m.ClassValues, m.PredictProba(X))
}

// PredictProba returns the leaf class distribution of each row.
func (m *DecisionTreeClassifier) PredictProba(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = slices.Clone(m.Nodes[m.leaf(row)].Proba)
	}
	return out
}

// Depth returns the length of the longest root-to-leaf path.
func (m *DecisionTreeClassifier) Depth() int {
	var walk func(n, d int) int
	walk = func(n, d int) int {
		node := m.Nodes[n]
		if node.Feature < 0 {
			return d
		}
		return max(walk(node.Left, d+1), walk(node.Right, d+1))
	}
	if len(m.Nodes) == 0 {
		return 0
	}
	return walk(0, 0)
}

func (m *DecisionTreeClassifier) leaf(row []float64) int {
	n := 0
	for m.Nodes[n].Feature >= 0 {
		node := m.Nodes[n]
		if row[node.Feature] <= node.Threshold {
			n = node.Left
		} else {
			n = node.Right
		}
	}
	return n
}

type treeBuilder struct {
	tree     *DecisionTreeClassifier
	x        [][]float64
	labels   []int
	k        int
	total    float64
	impurity func(counts []float64, n float64) float64
}

func (b *treeBuilder) counts(idx []int) []float64 {
	c := make([]float64, b.k)
	for _, i := range idx {
		c[b.labels[i]]++
	}
	return c
}

// grow appends the subtree for idx and returns its node index.
func (b *treeBuilder) grow(idx []int, depth int) int {
	t := b.tree
	counts := b.counts(idx)
	proba := slices.Clone(counts)
	normalize(proba)

	id := len(t.Nodes)
	t.Nodes = append(t.Nodes, TreeNode{Feature: -1, Left: -1, Right: -1, Proba: proba})

	n := float64(len(idx))
	parent := b.impurity(counts, n)
	if parent == 0 || len(idx) < t.MinSamplesSplit || len(idx) < 2*t.MinSamplesLeaf ||
		(t.MaxDepth > 0 && depth >= t.MaxDepth) {
		return id
	}

	feature, threshold, gain := b.bestSplit(idx, counts, parent)
	if feature < 0 {
		return id
	}
	// Weighted decrease relative to the whole training set.
	if n/b.total*gain < t.MinImpurityDecrease {
		return id
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	t.Nodes[id].Feature = feature
	t.Nodes[id].Threshold = threshold
	t.Nodes[id].Left = l
	t.Nodes[id].Right = r
	return id
}

// bestSplit scans every feature for the midpoint threshold that maximizes
// the impurity decrease while honoring MinSamplesLeaf. Splits that leave the
// impurity unchanged are admissible. It returns feature -1 when no threshold
// separates the samples.
func (b *treeBuilder) bestSplit(idx []int, counts []float64, parent float64) (int, float64, float64) {
	minLeaf := b.tree.MinSamplesLeaf
	n := float64(len(idx))
	bestFeature, bestThreshold, bestGain := -1, 0.0, math.Inf(-1)

	sorted := slices.Clone(idx)
	left := make([]float64, b.k)
	right := make([]float64, b.k)
	for f := range b.x[idx[0]] {
		slices.SortStableFunc(sorted, func(a, c int) int { return cmp.Compare(b.x[a][f], b.x[c][f]) })
		clear(left)
		copy(right, counts)
		for pos := 0; pos < len(sorted)-1; pos++ {
			lab := b.labels[sorted[pos]]
			left[lab]++
			right[lab]--

			cur, next := b.x[sorted[pos]][f], b.x[sorted[pos+1]][f]
			if cur == next {
				continue
			}
			nl := float64(pos + 1)
			nr := n - nl
			if int(nl) < minLeaf || int(nr) < minLeaf {
				continue
			}
			child := (nl*b.impurity(left, nl) + nr*b.impurity(right, nr)) / n
			if gain := parent - child; gain > bestGain {
				bestFeature, bestGain = f, gain
				bestThreshold = cur + (next-cur)/2
				if bestThreshold == next {
					bestThreshold = cur
				}
			}
		}
	}
	if bestFeature < 0 {
		return -1, 0, 0
	}
	return bestFeature, bestThreshold, bestGain
}

func gini(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	s := 0.0
	for _, c := range counts {
		p := c / n
		s += p * p
	}
	return 1 - s
}

func entropy(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	h := 0.0
	for _, c := range counts {
		if c > 0 {
			p := c / n
			h -= p * math.Log2(p)
		}
	}
	return h
}
