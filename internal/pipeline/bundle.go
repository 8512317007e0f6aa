// Package pipeline trains models over dataset tables and replays the fitted
// feature transforms at prediction time.
//
// Training and inference build feature matrices through the same Bundle, so
// a row encodes identically in both.
package pipeline

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/leapstack-labs/leapml/internal/features"
	"github.com/leapstack-labs/leapml/internal/ml"
	"github.com/leapstack-labs/leapml/pkg/core"
)

// MissingCategory replaces structural nulls in categorical features before
// they are encoded.
const MissingCategory = "_MISSING_"

// Bundle is the persisted feature representation of one training run.
// It is written once and never modified.
type Bundle struct {
	FeatureColumns     []string                          `json:"feature_columns"`
	TargetColumn       string                            `json:"target_column"`
	CategoricalColumns []string                          `json:"categorical_columns"`
	NumericalColumns   []string                          `json:"numerical_columns"`
	Algorithm          ml.Algorithm                      `json:"algorithm"`
	Scaler             *features.Scaler                  `json:"scaler,omitempty"`
	Encoders           map[string]*features.LabelEncoder `json:"encoders,omitempty"`
	TargetEncoder      *features.LabelEncoder            `json:"target_encoder,omitempty"`
	CreatedAt          time.Time                         `json:"created_at"`
}

// TargetClasses returns the original class labels of an encoded target.
func (b *Bundle) TargetClasses() []string {
	if b.TargetEncoder == nil {
		return nil
	}
	return b.TargetEncoder.Classes
}

func isNumericalKind(k core.Kind) bool {
	return k.IsNumeric() || k == core.KindBool
}

// numericCell converts a feature or target cell; booleans count as 0 and 1.
func numericCell(v any) float64 {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	if f, ok := core.ToFloat(v); ok {
		return f
	}
	return math.NaN()
}

// fitBundle partitions the feature columns by storage kind and fits one
// label encoder per categorical column and a z-score scaler over the
// numerical ones.
func fitBundle(t *core.Table, featureCols []string, target string, alg ml.Algorithm) *Bundle {
	b := &Bundle{
		FeatureColumns:     featureCols,
		TargetColumn:       target,
		CategoricalColumns: []string{},
		NumericalColumns:   []string{},
		Algorithm:          alg,
		Encoders:           map[string]*features.LabelEncoder{},
		CreatedAt:          time.Now().UTC(),
	}
	var numeric [][]float64
	for _, name := range featureCols {
		col, _ := t.Column(name)
		if isNumericalKind(col.Kind) {
			b.NumericalColumns = append(b.NumericalColumns, name)
			numeric = append(numeric, columnFloats(col))
			continue
		}
		b.CategoricalColumns = append(b.CategoricalColumns, name)
		b.Encoders[name] = features.FitLabelEncoder(features.Stringify(col.Values, MissingCategory))
	}
	if len(numeric) > 0 {
		b.Scaler = features.FitScaler(features.ScaleStandard, numeric, 0, 0)
	}
	return b
}

func columnFloats(col *core.Column) []float64 {
	out := make([]float64, col.Len())
	for i, v := range col.Values {
		out[i] = numericCell(v)
	}
	return out
}

// Matrix encodes the feature columns of t in bundle order. Categories not
// seen during training take the first stored class and are logged. Values
// left non-finite after scaling become 0.
func (b *Bundle) Matrix(t *core.Table, logger *slog.Logger) ([][]float64, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if missing := t.MissingColumns(b.FeatureColumns); len(missing) > 0 {
		return nil, core.MissingColumnsError(missing)
	}

	n := t.NumRows()
	X := make([][]float64, n)
	for i := range X {
		X[i] = make([]float64, len(b.FeatureColumns))
	}

	scaled := make(map[string]int, len(b.NumericalColumns))
	for j, name := range b.NumericalColumns {
		scaled[name] = j
	}
	imputed := 0
	for f, name := range b.FeatureColumns {
		col, _ := t.Column(name)
		if enc, ok := b.Encoders[name]; ok {
			codes, unseen := enc.Transform(features.Stringify(col.Values, MissingCategory))
			if len(unseen) > 0 {
				logger.Warn("unknown categories mapped to the first known class",
					"column", name, "values", unseen, "class", enc.Decode(0))
			}
			for i, c := range codes {
				X[i][f] = float64(c)
			}
			continue
		}
		j, ok := scaled[name]
		if !ok {
			return nil, fmt.Errorf("feature %q has no fitted transform", name)
		}
		for i, v := range col.Values {
			x := b.Scaler.Apply(j, numericCell(v))
			if !core.IsFinite(x) {
				x = 0
				imputed++
			}
			X[i][f] = x
		}
	}
	if imputed > 0 {
		logger.Warn("non-finite feature values replaced with 0", "count", imputed)
	}
	return X, nil
}

// MarshalBundle encodes b as indented JSON.
func MarshalBundle(b *Bundle) ([]byte, error) {
	return json.MarshalIndent(b, "", "  ")
}

// UnmarshalBundle decodes a bundle written by MarshalBundle.
func UnmarshalBundle(data []byte) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to decode transform bundle: %w", err)
	}
	if len(b.NumericalColumns) > 0 && b.Scaler == nil {
		return nil, fmt.Errorf("transform bundle has numerical columns but no scaler")
	}
	for _, name := range b.CategoricalColumns {
		if b.Encoders[name] == nil {
			return nil, fmt.Errorf("transform bundle has no encoder for %q", name)
		}
	}
	return &b, nil
}
