package ml

import (
	"cmp"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/leapstack-labs/leapml/pkg/core"
)

// DefaultTrainRatio is the share of rows used for training when unset.
const DefaultTrainRatio = 0.8

// Split holds train and test row indices.
type Split struct {
	Train []int
	Test  []int
}

func splitSizes(n int, ratio float64) (int, int, error) {
	if ratio <= 0 || ratio >= 1 {
		return 0, 0, core.Errorf(core.CategoryInvalidArgument, "train_ratio must be in (0, 1), got %v", ratio)
	}
	nTrain := int(math.Floor(ratio * float64(n)))
	nTest := n - nTrain
	if nTrain == 0 || nTest == 0 {
		return 0, 0, core.Errorf(core.CategoryInvalidArgument,
			"with n_samples=%d and train_ratio=%v one of the resulting sets is empty", n, ratio)
	}
	return nTrain, nTest, nil
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
}

// ShuffleSplit partitions n rows at random into ratio*n (rounded down)
// training rows and the rest.
func ShuffleSplit(n int, ratio float64, seed int64) (Split, error) {
	nTrain, _, err := splitSizes(n, ratio)
	if err != nil {
		return Split{}, err
	}
	perm := newRand(seed).Perm(n)
	return Split{Train: perm[:nTrain], Test: perm[nTrain:]}, nil
}

// StratifiedSplit partitions rows so that every class keeps its share in
// both sets. It fails when a class has fewer than two members or when either
// set would be smaller than the number of classes.
func StratifiedSplit(y []float64, ratio float64, seed int64) (Split, error) {
	nTrain, nTest, err := splitSizes(len(y), ratio)
	if err != nil {
		return Split{}, err
	}
	classes, labels := classList(y)
	members := make([][]int, len(classes))
	for i, l := range labels {
		members[l] = append(members[l], i)
	}
	for c, m := range members {
		if len(m) < 2 {
			return Split{}, core.Errorf(core.CategoryInvalidArgument,
				"the least populated class %v has only %d member, too few to stratify", classes[c], len(m))
		}
	}
	if nTrain < len(classes) || nTest < len(classes) {
		return Split{}, core.Errorf(core.CategoryInvalidArgument,
			"train size %d and test size %d must each be at least the number of classes %d", nTrain, nTest, len(classes))
	}

	// Largest remainder allocation of training rows per class.
	alloc := make([]int, len(classes))
	type rem struct {
		class int
		frac  float64
	}
	rems := make([]rem, len(classes))
	given := 0
	for c, m := range members {
		exact := float64(len(m)) * float64(nTrain) / float64(len(y))
		alloc[c] = int(math.Floor(exact))
		rems[c] = rem{class: c, frac: exact - float64(alloc[c])}
		given += alloc[c]
	}
	slices.SortStableFunc(rems, func(a, b rem) int { return cmp.Compare(b.frac, a.frac) })
	for i := 0; given < nTrain; i = (i + 1) % len(rems) {
		c := rems[i].class
		if alloc[c] < len(members[c])-1 {
			alloc[c]++
			given++
		}
	}

	rng := newRand(seed)
	var s Split
	for c, m := range members {
		m = slices.Clone(m)
		rng.Shuffle(len(m), func(i, j int) { m[i], m[j] = m[j], m[i] })
		s.Train = append(s.Train, m[:alloc[c]]...)
		s.Test = append(s.Test, m[alloc[c]:]...)
	}
	rng.Shuffle(len(s.Train), func(i, j int) { s.Train[i], s.Train[j] = s.Train[j], s.Train[i] })
	rng.Shuffle(len(s.Test), func(i, j int) { s.Test[i], s.Test[j] = s.Test[j], s.Test[i] })
	return s, nil
}

// CanStratify reports whether a classification target looks stratifiable:
// fewer distinct classes than half the rows. It is a coarse proxy for every
// class having two members, so StratifiedSplit may still refuse.
func CanStratify(y []float64) bool {
	classes, _ := classList(y)
	return float64(len(classes)) < float64(len(y))/2
}
