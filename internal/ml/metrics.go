package ml

import (
	"cmp"
	"math"
	"slices"

	"github.com/leapstack-labs/leapml/pkg/core"
)

// ClassificationMetrics are the weighted averages of a classifier's test
// performance. Precision and recall of a label that is never predicted (or
// never present) count as zero.
type ClassificationMetrics struct {
	Accuracy  float64
	Precision float64
	Recall    float64
	F1        float64
	// AUC is set only when a ROC curve could be computed.
	AUC *float64
}

// MarshalJSON writes the metric keys in a fixed order.
func (m ClassificationMetrics) MarshalJSON() ([]byte, error) {
	fields := []core.Field{
		{Key: "accuracy", Value: core.Float(m.Accuracy)},
		{Key: "precision", Value: core.Float(m.Precision)},
		{Key: "recall", Value: core.Float(m.Recall)},
		{Key: "f1_score", Value: core.Float(m.F1)},
	}
	if m.AUC != nil {
		fields = append(fields, core.Field{Key: "auc", Value: core.Float(*m.AUC)})
	}
	return core.MarshalObject(fields...)
}

// EvaluateClassification scores predictions against the truth and returns
// the metrics with the confusion matrix. Matrix rows are true labels and
// columns predicted labels, both over the sorted union of observed values.
func EvaluateClassification(yTrue, yPred []float64) (ClassificationMetrics, [][]int) {
	labels := slices.Concat(yTrue, yPred)
	slices.Sort(labels)
	labels = slices.Compact(labels)
	pos := func(v float64) int {
		i, _ := slices.BinarySearch(labels, v)
		return i
	}

	cm := make([][]int, len(labels))
	for i := range cm {
		cm[i] = make([]int, len(labels))
	}
	hits := 0
	for i := range yTrue {
		cm[pos(yTrue[i])][pos(yPred[i])]++
		if yTrue[i] == yPred[i] {
			hits++
		}
	}

	var m ClassificationMetrics
	if len(yTrue) == 0 {
		return m, cm
	}
	m.Accuracy = float64(hits) / float64(len(yTrue))
	total := 0.0
	for l := range labels {
		tp := float64(cm[l][l])
		support, predicted := 0.0, 0.0
		for k := range labels {
			support += float64(cm[l][k])
			predicted += float64(cm[k][l])
		}
		p := safeDiv(tp, predicted)
		r := safeDiv(tp, support)
		f := safeDiv(2*p*r, p+r)
		m.Precision += support * p
		m.Recall += support * r
		m.F1 += support * f
		total += support
	}
	m.Precision /= total
	m.Recall /= total
	m.F1 /= total
	return m, cm
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// ROC is a receiver operating characteristic curve. The first threshold is
// +Inf and serializes as null.
type ROC struct {
	FPR        []float64
	TPR        []float64
	Thresholds []float64
	AUC        float64
}

// MarshalJSON writes fpr, tpr, thresholds and auc with non-finite values as null.
func (r *ROC) MarshalJSON() ([]byte, error) {
	return core.MarshalObject(
		core.Field{Key: "fpr", Value: core.Floats(r.FPR)},
		core.Field{Key: "tpr", Value: core.Floats(r.TPR)},
		core.Field{Key: "thresholds", Value: core.Floats(r.Thresholds)},
		core.Field{Key: "auc", Value: core.Float(r.AUC)},
	)
}

// ROCCurve computes the curve of scores against the binary truth, where
// positive marks the positive class. Collinear intermediate points are
// dropped. It returns nil when either class is absent.
func ROCCurve(yTrue []float64, scores []float64, positive float64) *ROC {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int { return cmp.Compare(scores[b], scores[a]) })

	// Cumulative true and false positives at each distinct score.
	var tps, fps, thr []float64
	tp, fp := 0.0, 0.0
	for k, i := range order {
		if yTrue[i] == positive {
			tp++
		} else {
			fp++
		}
		if k == len(order)-1 || scores[order[k+1]] != scores[i] {
			tps = append(tps, tp)
			fps = append(fps, fp)
			thr = append(thr, scores[i])
		}
	}
	if tp == 0 || fp == 0 {
		return nil
	}

	keep := []int{0}
	for k := 1; k < len(tps)-1; k++ {
		// A point is intermediate when both neighbors share its slope.
		if fps[k+1]-2*fps[k]+fps[k-1] != 0 || tps[k+1]-2*tps[k]+tps[k-1] != 0 {
			keep = append(keep, k)
		}
	}
	if len(tps) > 1 {
		keep = append(keep, len(tps)-1)
	}

	roc := &ROC{
		FPR:        []float64{0},
		TPR:        []float64{0},
		Thresholds: []float64{math.Inf(1)},
	}
	for _, k := range keep {
		roc.FPR = append(roc.FPR, fps[k]/fp)
		roc.TPR = append(roc.TPR, tps[k]/tp)
		roc.Thresholds = append(roc.Thresholds, thr[k])
	}
	for k := 1; k < len(roc.FPR); k++ {
		roc.AUC += (roc.FPR[k] - roc.FPR[k-1]) * (roc.TPR[k] + roc.TPR[k-1]) / 2
	}
	return roc
}

// RegressionMetrics summarize the residuals of a regressor.
type RegressionMetrics struct {
	MSE  float64
	RMSE float64
	MAE  float64
	R2   float64
}

// MarshalJSON writes mse, rmse, mae and r2_score.
func (m RegressionMetrics) MarshalJSON() ([]byte, error) {
	return core.MarshalObject(
		core.Field{Key: "mse", Value: core.Float(m.MSE)},
		core.Field{Key: "rmse", Value: core.Float(m.RMSE)},
		core.Field{Key: "mae", Value: core.Float(m.MAE)},
		core.Field{Key: "r2_score", Value: core.Float(m.R2)},
	)
}

// EvaluateRegression returns the metrics and the residuals yTrue - yPred.
// A constant target scores R2 1 when predicted exactly and 0 otherwise.
func EvaluateRegression(yTrue, yPred []float64) (RegressionMetrics, []float64) {
	var m RegressionMetrics
	residuals := make([]float64, len(yTrue))
	if len(yTrue) == 0 {
		return m, residuals
	}
	n := float64(len(yTrue))
	mean := 0.0
	for _, v := range yTrue {
		mean += v
	}
	mean /= n

	ssRes, ssTot := 0.0, 0.0
	for i, v := range yTrue {
		d := v - yPred[i]
		residuals[i] = d
		ssRes += d * d
		m.MAE += math.Abs(d)
		ssTot += (v - mean) * (v - mean)
	}
	m.MSE = ssRes / n
	m.RMSE = math.Sqrt(m.MSE)
	m.MAE /= n
	switch {
	case ssTot != 0:
		m.R2 = 1 - ssRes/ssTot
	case ssRes == 0:
		m.R2 = 1
	}
	return m, residuals
}
