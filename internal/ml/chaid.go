package ml

import (
	"math"
	"slices"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/leapstack-labs/leapml/pkg/core"
)

// chaidMaxBins caps the number of nominal categories derived from a
// continuous feature.
const chaidMaxBins = 10

// ChaidNode is one node of a CHAID tree. Branch maps a feature category to
// the child holding it; leaves have Feature -1.
type ChaidNode struct {
	Feature int
	Branch  map[int]int
	Proba   []float64
}

// CHAIDClassifier is a multiway tree grown with chi-squared tests. Every
// feature is treated as nominal: features with more than ten distinct values
// are binned at their deciles first. Categories whose class distributions do
// not differ at AlphaMerge are merged before the split test, and a node is
// split on the feature with the smallest adjusted p-value below AlphaMerge.
type CHAIDClassifier struct {
	MaxDepth        int     `param:"max_depth"`
	MinSamplesSplit int     `param:"min_samples_split"`
	MinSamplesLeaf  int     `param:"min_samples_leaf"`
	AlphaMerge      float64 `param:"alpha_merge"`

	// Cuts holds the ascending category boundaries of each feature.
	Cuts        [][]float64
	Nodes       []ChaidNode
	ClassValues []float64
}

func (m *CHAIDClassifier) validate() error {
	if m.AlphaMerge <= 0 || m.AlphaMerge >= 1 {
		return core.Errorf(core.CategoryInvalidArgument, "alpha_merge must be in (0, 1), got %v", m.AlphaMerge)
	}
	if m.MinSamplesSplit < 2 || m.MinSamplesLeaf < 1 {
		return core.Errorf(core.CategoryInvalidArgument, "min_samples_split must be >= 2 and min_samples_leaf >= 1")
	}
	return nil
}

// Fit bins the features and grows the tree.
func (m *CHAIDClassifier) Fit(X [][]float64, y []float64) error {
	if err := checkXY(X, y); err != nil {
		return err
	}
	classes, labels := classList(y)
	m.ClassValues = classes
	m.Nodes = m.Nodes[:0]

	nf := len(X[0])
	m.Cuts = make([][]float64, nf)
	col := make([]float64, len(X))
	for f := range nf {
		for i, row := range X {
			col[i] = row[f]
		}
		m.Cuts[f] = chaidCuts(col)
	}

	codes := make([][]int, len(X))
	for i, row := range X {
		codes[i] = m.categorize(row)
	}
	b := &chaidBuilder{tree: m, codes: codes, labels: labels, k: len(classes)}
	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	b.grow(idx, 0)
	return nil
}

// chaidCuts returns category boundaries for one feature: the distinct values
// themselves when there are few, otherwise the deciles.
func chaidCuts(col []float64) []float64 {
	sorted := slices.Clone(col)
	slices.Sort(sorted)
	distinct := slices.Compact(slices.Clone(sorted))
	if len(distinct) <= chaidMaxBins {
		return distinct[:len(distinct)-1]
	}
	cuts := make([]float64, 0, chaidMaxBins-1)
	for i := 1; i < chaidMaxBins; i++ {
		cuts = append(cuts, stat.Quantile(float64(i)/chaidMaxBins, stat.Empirical, sorted, nil))
	}
	return slices.Compact(cuts)
}

func (m *CHAIDClassifier) categorize(row []float64) []int {
	codes := make([]int, len(row))
	for f, v := range row {
		codes[f] = sort.SearchFloat64s(m.Cuts[f], v)
	}
	return codes
}

// Classes returns the sorted class values seen during Fit.
func (m *CHAIDClassifier) Classes() []float64 { return m.ClassValues }

// Predict returns the majority class of the node each row ends in.
func (m *CHAIDClassifier) Predict(X [][]float64) []float64 {
	return predictFromProba(m.ClassValues, m.PredictProba(X))
}

// PredictProba returns the class distribution of the deepest node each row
// reaches. A category never seen at a node stops the descent there.
func (m *CHAIDClassifier) PredictProba(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		codes := m.categorize(row)
		n := 0
		for m.Nodes[n].Feature >= 0 {
			child, ok := m.Nodes[n].Branch[codes[m.Nodes[n].Feature]]
			if !ok {
				break
			}
			n = child
		}
		out[i] = slices.Clone(m.Nodes[n].Proba)
	}
	return out
}

type chaidBuilder struct {
	tree   *CHAIDClassifier
	codes  [][]int
	labels []int
	k      int
}

type chaidSplit struct {
	feature int
	groups  [][]int // merged categories
	p       float64
}

func (b *chaidBuilder) grow(idx []int, depth int) int {
	t := b.tree
	counts := make([]float64, b.k)
	for _, i := range idx {
		counts[b.labels[i]]++
	}
	proba := slices.Clone(counts)
	normalize(proba)
	id := len(t.Nodes)
	t.Nodes = append(t.Nodes, ChaidNode{Feature: -1, Proba: proba})

	pure := slices.ContainsFunc(counts, func(c float64) bool { return c == float64(len(idx)) })
	if pure || len(idx) < t.MinSamplesSplit || depth >= t.MaxDepth {
		return id
	}

	var best *chaidSplit
	for f := range b.codes[idx[0]] {
		s := b.splitOn(idx, f)
		if s != nil && s.p < t.AlphaMerge && (best == nil || s.p < best.p) {
			best = s
		}
	}
	if best == nil {
		return id
	}

	branch := make(map[int]int)
	for _, group := range best.groups {
		var members []int
		for _, i := range idx {
			if slices.Contains(group, b.codes[i][best.feature]) {
				members = append(members, i)
			}
		}
		child := b.grow(members, depth+1)
		for _, c := range group {
			branch[c] = child
		}
	}
	t.Nodes[id].Feature = best.feature
	t.Nodes[id].Branch = branch
	return id
}

// splitOn merges the categories of feature f present at the node and tests
// the merged grouping against the class. Nil means no usable split.
func (b *chaidBuilder) splitOn(idx []int, f int) *chaidSplit {
	table := map[int][]float64{}
	for _, i := range idx {
		c := b.codes[i][f]
		if table[c] == nil {
			table[c] = make([]float64, b.k)
		}
		table[c][b.labels[i]]++
	}
	if len(table) < 2 {
		return nil
	}
	cats := make([]int, 0, len(table))
	for c := range table {
		cats = append(cats, c)
	}
	slices.Sort(cats)
	original := len(cats)

	groups := make([][]int, len(cats))
	rows := make([][]float64, len(cats))
	for i, c := range cats {
		groups[i] = []int{c}
		rows[i] = table[c]
	}

	// Merge the least distinguishable pair until every pair differs.
	for len(groups) > 1 {
		bi, bj, bp := -1, -1, -1.0
		for i := 0; i < len(groups); i++ {
			for j := i + 1; j < len(groups); j++ {
				if p := chiSquareP([][]float64{rows[i], rows[j]}); p > bp {
					bi, bj, bp = i, j, p
				}
			}
		}
		if bp <= b.tree.AlphaMerge {
			break
		}
		groups[bi] = append(groups[bi], groups[bj]...)
		for c := range rows[bi] {
			rows[bi][c] += rows[bj][c]
		}
		groups = slices.Delete(groups, bj, bj+1)
		rows = slices.Delete(rows, bj, bj+1)
	}
	if len(groups) < 2 {
		return nil
	}
	for _, r := range rows {
		n := 0.0
		for _, v := range r {
			n += v
		}
		if int(n) < b.tree.MinSamplesLeaf {
			return nil
		}
	}

	p := chiSquareP(rows) * bonferroni(original, len(groups))
	return &chaidSplit{feature: f, groups: groups, p: math.Min(p, 1)}
}

// chiSquareP returns the p-value of Pearson's independence test on a
// contingency table. Empty rows and columns are ignored.
func chiSquareP(table [][]float64) float64 {
	ncol := len(table[0])
	rowSum := make([]float64, len(table))
	colSum := make([]float64, ncol)
	total := 0.0
	for i, r := range table {
		for j, v := range r {
			rowSum[i] += v
			colSum[j] += v
			total += v
		}
	}
	if total == 0 {
		return 1
	}
	rows, cols := 0, 0
	for _, s := range rowSum {
		if s > 0 {
			rows++
		}
	}
	for _, s := range colSum {
		if s > 0 {
			cols++
		}
	}
	dof := (rows - 1) * (cols - 1)
	if dof < 1 {
		return 1
	}
	chi := 0.0
	for i, r := range table {
		for j, v := range r {
			e := rowSum[i] * colSum[j] / total
			if e > 0 {
				chi += (v - e) * (v - e) / e
			}
		}
	}
	return distuv.ChiSquared{K: float64(dof)}.Survival(chi)
}

// bonferroni is the number of ways c nominal categories can be reduced to r
// groups, the multiplier CHAID applies to a split's p-value.
func bonferroni(c, r int) float64 {
	// Stirling numbers of the second kind S(c, r).
	s := make([]float64, r+1)
	s[0] = 1
	for n := 1; n <= c; n++ {
		for k := min(n, r); k >= 1; k-- {
			s[k] = float64(k)*s[k] + s[k-1]
		}
		s[0] = 0
	}
	return s[r]
}
