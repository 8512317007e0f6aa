package pipeline

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/leapstack-labs/leapml/internal/ml"
	"github.com/leapstack-labs/leapml/pkg/core"
)

// Prediction is the output of a fitted model over new rows.
type Prediction struct {
	Algorithm   ml.Algorithm
	Predictions []float64
	// Labels decodes Predictions when the target was label encoded.
	Labels []string
	// Probabilities follow Classes; nil for regressors.
	Probabilities [][]float64
	Classes       []float64
}

// MarshalJSON writes the prediction with non-finite numbers as null.
func (p *Prediction) MarshalJSON() ([]byte, error) {
	var proba any
	if p.Probabilities != nil {
		rows := make([][]core.Float, len(p.Probabilities))
		for i, r := range p.Probabilities {
			rows[i] = core.Floats(r)
		}
		proba = rows
	}
	fields := []core.Field{
		{Key: "predictions", Value: core.Floats(p.Predictions)},
	}
	if p.Labels != nil {
		fields = append(fields, core.Field{Key: "labels", Value: p.Labels})
	}
	fields = append(fields,
		core.Field{Key: "probabilities", Value: proba},
		core.Field{Key: "algorithm", Value: p.Algorithm},
		core.Field{Key: "n_samples", Value: len(p.Predictions)},
		core.Field{Key: "transformations_applied", Value: true},
	)
	return core.MarshalObject(fields...)
}

// Predict replays bundle b over t and runs the model.
func Predict(alg ml.Algorithm, model ml.Model, b *Bundle, t *core.Table, logger *slog.Logger) (*Prediction, error) {
	if t.NumRows() == 0 {
		return nil, core.Errorf(core.CategoryInvalidArgument, "no input data provided")
	}
	X, err := b.Matrix(t, logger)
	if err != nil {
		return nil, err
	}
	p := &Prediction{Algorithm: alg, Predictions: model.Predict(X)}
	if clf, ok := model.(ml.Classifier); ok {
		p.Probabilities = clf.PredictProba(X)
		p.Classes = clf.Classes()
	}
	if b.TargetEncoder != nil {
		p.Labels = make([]string, len(p.Predictions))
		for i, v := range p.Predictions {
			p.Labels[i] = b.TargetEncoder.Decode(int(v))
		}
	}
	return p, nil
}

// TableFromRecords builds a table from decoded JSON objects. Columns are
// the union of keys in sorted order; absent keys are nulls. A column whose
// present values are all integral json.Numbers is int, all numbers is float,
// all booleans is bool, anything else is text. Integral numbers stay int64
// so they render as categories the same way training read them.
func TableFromRecords(records []map[string]any) (*core.Table, error) {
	var names []string
	for _, rec := range records {
		for k := range rec {
			if !slices.Contains(names, k) {
				names = append(names, k)
			}
		}
	}
	slices.Sort(names)

	cols := make([]*core.Column, 0, len(names))
	for _, name := range names {
		values := make([]any, len(records))
		numeric, integral, boolean, present := true, true, true, false
		for i, rec := range records {
			v := rec[name]
			if n, ok := v.(json.Number); ok {
				if iv, err := n.Int64(); err == nil {
					v = iv
				} else {
					f, err := n.Float64()
					if err != nil {
						return nil, fmt.Errorf("invalid number in column %q: %w", name, err)
					}
					v = f
				}
			}
			values[i] = v
			if v == nil {
				continue
			}
			present = true
			_, isInt := v.(int64)
			_, isFloat := v.(float64)
			_, isBool := v.(bool)
			numeric = numeric && (isInt || isFloat)
			integral = integral && isInt
			boolean = boolean && isBool
		}
		switch {
		case present && integral:
			cols = append(cols, core.NewColumn(name, core.KindInt, values))
		case present && numeric:
			for i, v := range values {
				if iv, ok := v.(int64); ok {
					values[i] = float64(iv)
				}
			}
			cols = append(cols, core.NewColumn(name, core.KindFloat, values))
		case present && boolean:
			cols = append(cols, core.NewColumn(name, core.KindBool, values))
		default:
			for i, v := range values {
				if v != nil {
					values[i] = core.FormatValue(v)
				}
			}
			cols = append(cols, core.NewColumn(name, core.KindString, values))
		}
	}
	return core.NewTable(cols...)
}
