package transform

import (
	"sort"

	"github.com/leapstack-labs/leapml/internal/features"
	"github.com/leapstack-labs/leapml/pkg/core"
)

// nullLabel is the category label given to structural nulls by label encoding.
const nullLabel = "nan"

// EncodeOptions configures Encode.
type EncodeOptions struct {
	Columns   []string
	Method    EncodeMethod
	DropFirst bool
}

// ClassIndex is one entry of a label mapping.
type ClassIndex struct {
	Class string
	Index int
}

// Mapping is an ordered category to code table, encoded as a JSON object.
type Mapping []ClassIndex

// MarshalJSON implements json.Marshaler.
func (m Mapping) MarshalJSON() ([]byte, error) {
	fields := make([]core.Field, len(m))
	for i, ci := range m {
		fields[i] = core.Field{Key: ci.Class, Value: ci.Index}
	}
	return core.MarshalObject(fields...)
}

// Lookup returns the code of class.
func (m Mapping) Lookup(class string) (int, bool) {
	for _, ci := range m {
		if ci.Class == class {
			return ci.Index, true
		}
	}
	return 0, false
}

func mappingOf(enc *features.LabelEncoder) Mapping {
	m := make(Mapping, len(enc.Classes))
	for i, c := range enc.Classes {
		m[i] = ClassIndex{Class: c, Index: i}
	}
	return m
}

// ColumnEncoding describes how one column was encoded.
type ColumnEncoding struct {
	Method             EncodeMethod `json:"method"`
	Mapping            Mapping      `json:"mapping,omitempty"`
	NewColumns         []string     `json:"new_columns,omitempty"`
	DropFirst          *bool        `json:"drop_first,omitempty"`
	OriginalCategories []any        `json:"original_categories,omitempty"`
}

// EncodingSummary counts the effect of one Encode call.
type EncodingSummary struct {
	TotalColumnsEncoded int `json:"total_columns_encoded"`
	LabelEncoded        int `json:"label_encoded"`
	OneHotEncoded       int `json:"onehot_encoded"`
	NewColumnsAdded     int `json:"new_columns_added"`
	ColumnsRemoved      int `json:"columns_removed"`
}

// EncodingInfo describes one encoding.
type EncodingInfo struct {
	Type          string                     `json:"type"`
	Method        EncodeMethod               `json:"method"`
	Columns       []string                   `json:"columns"`
	Encodings     map[string]*ColumnEncoding `json:"encodings"`
	OriginalShape [2]int                     `json:"original_shape"`
	NewShape      [2]int                     `json:"new_shape"`
	DropFirst     *bool                      `json:"drop_first"`
	Summary       EncodingSummary            `json:"summary"`
}

// Encode label- or one-hot-encodes the given columns.
//
// Label encoding replaces the column with integer codes over the sorted
// text form of its values, nulls included as "nan". One-hot encoding removes
// the column and appends one 0/1 column per sorted non-null category named
// <col>_<category>, skipping the first when DropFirst is set. A generated
// name that is already a column fails with InvalidArgument.
func Encode(t *core.Table, opts EncodeOptions) (*core.Table, *EncodingInfo, error) {
	method, err := ParseEncodeMethod(string(opts.Method))
	if err != nil {
		return nil, nil, err
	}
	if len(opts.Columns) == 0 {
		return nil, nil, core.Errorf(core.CategoryInvalidArgument, "no columns specified for encoding")
	}
	if missing := t.MissingColumns(opts.Columns); len(missing) > 0 {
		return nil, nil, core.MissingColumnsError(missing)
	}

	info := &EncodingInfo{
		Type:          "encoding",
		Method:        method,
		Columns:       opts.Columns,
		Encodings:     make(map[string]*ColumnEncoding, len(opts.Columns)),
		OriginalShape: [2]int{t.NumRows(), t.NumCols()},
	}
	if method == OneHotEncoding {
		info.DropFirst = &opts.DropFirst
	}

	out := t
	for _, name := range opts.Columns {
		col, _ := t.Column(name)
		switch method {
		case LabelEncoding:
			var enc *features.LabelEncoder
			out, enc = labelEncode(out, col)
			info.Encodings[name] = &ColumnEncoding{Method: LabelEncoding, Mapping: mappingOf(enc)}
			info.Summary.LabelEncoded++
		case OneHotEncoding:
			var newCols []string
			out, newCols, err = oneHotEncode(out, col, opts.DropFirst)
			if err != nil {
				return nil, nil, err
			}
			dropFirst := opts.DropFirst
			info.Encodings[name] = &ColumnEncoding{
				Method:             OneHotEncoding,
				NewColumns:         newCols,
				DropFirst:          &dropFirst,
				OriginalCategories: appearanceOrder(col),
			}
			info.Summary.OneHotEncoded++
			info.Summary.NewColumnsAdded += len(newCols)
			info.Summary.ColumnsRemoved++
		}
	}
	info.Summary.TotalColumnsEncoded = len(opts.Columns)
	info.NewShape = [2]int{out.NumRows(), out.NumCols()}
	return out, info, nil
}

func labelEncode(t *core.Table, col *core.Column) (*core.Table, *features.LabelEncoder) {
	labels := features.Stringify(col.Values, nullLabel)
	enc := features.FitLabelEncoder(labels)
	codes, _ := enc.Transform(labels)
	values := make([]any, len(codes))
	for i, c := range codes {
		values[i] = int64(c)
	}
	return t.WithColumn(core.NewColumn(col.Name, core.KindInt, values)), enc
}

// categories returns the distinct non-null values of col in sorted order:
// numbers numerically, then everything else by text.
func categories(col *core.Column) []any {
	cats := make([]any, 0)
	seen := make(map[string]struct{})
	for _, v := range col.Values {
		if core.IsNull(v) {
			continue
		}
		k := core.FormatValue(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		cats = append(cats, v)
	}
	sort.SliceStable(cats, func(i, j int) bool {
		fi, okI := core.ToFloat(cats[i])
		fj, okJ := core.ToFloat(cats[j])
		if okI && okJ {
			return fi < fj
		}
		if okI != okJ {
			return okI
		}
		return core.FormatValue(cats[i]) < core.FormatValue(cats[j])
	})
	return cats
}

// appearanceOrder returns the distinct values of col in first-seen order,
// nulls included once as nil.
func appearanceOrder(col *core.Column) []any {
	out := make([]any, 0)
	seen := make(map[string]struct{})
	nullSeen := false
	for _, v := range col.Values {
		if core.IsNull(v) {
			if !nullSeen {
				nullSeen = true
				out = append(out, nil)
			}
			continue
		}
		k := core.FormatValue(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, core.CleanValue(v))
	}
	return out
}

func dummyNames(name string, cats []any, dropFirst bool) []string {
	if dropFirst && len(cats) > 0 {
		cats = cats[1:]
	}
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = name + "_" + core.FormatValue(c)
	}
	return names
}

// checkDummyNames rejects indicator names already taken in t.
func checkDummyNames(t *core.Table, source string, names []string) error {
	for _, n := range names {
		if t.HasColumn(n) {
			return core.Errorf(core.CategoryInvalidArgument,
				"one-hot column %q for %q would overwrite an existing column", n, source)
		}
	}
	return nil
}

func oneHotEncode(t *core.Table, col *core.Column, dropFirst bool) (*core.Table, []string, error) {
	cats := categories(col)
	names := dummyNames(col.Name, cats, dropFirst)
	if err := checkDummyNames(t, col.Name, names); err != nil {
		return nil, nil, err
	}
	if dropFirst && len(cats) > 0 {
		cats = cats[1:]
	}

	out := t.DropColumn(col.Name)
	for j, c := range cats {
		key := core.FormatValue(c)
		values := make([]any, col.Len())
		for i, v := range col.Values {
			hit := int64(0)
			if !core.IsNull(v) && core.FormatValue(v) == key {
				hit = 1
			}
			values[i] = hit
		}
		out = out.WithColumn(core.NewColumn(names[j], core.KindInt, values))
	}
	return out, names, nil
}
