package transform

import (
	"math/rand/v2"
	"slices"
	"sync"

	"gonum.org/v1/gonum/stat/sampleuv"

	"github.com/leapstack-labs/leapml/internal/features"
	"github.com/leapstack-labs/leapml/pkg/core"
)

// DefaultPreviewSize is the row sample used by previews.
const DefaultPreviewSize = 100

// RecordType tags a history entry.
type RecordType string

// Record types.
const (
	RecordNormalization RecordType = "normalization"
	RecordEncoding      RecordType = "encoding"
)

// Record is one entry of a session history. Exactly one of Normalization
// and Encoding is set.
type Record struct {
	Type          RecordType
	Normalization *NormalizationInfo
	Encoding      *EncodingInfo
}

// Info returns the description held by the record.
func (r Record) Info() any {
	if r.Normalization != nil {
		return r.Normalization
	}
	return r.Encoding
}

// Session holds a working table and the history of transforms applied to it.
type Session struct {
	mu      sync.Mutex
	table   *core.Table
	history []Record
}

// NewSession starts a session over t.
func NewSession(t *core.Table) *Session {
	return &Session{table: t}
}

// Table returns the current working table.
func (s *Session) Table() *core.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table
}

// History returns a copy of the applied records, oldest first.
func (s *Session) History() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

// Normalize applies Normalize to the working table and records it.
func (s *Session) Normalize(opts NormalizeOptions) (*NormalizationInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, info, err := Normalize(s.table, opts)
	if err != nil {
		return nil, err
	}
	s.table = out
	s.history = append(s.history, Record{Type: RecordNormalization, Normalization: info})
	return info, nil
}

// Encode applies Encode to the working table and records it.
func (s *Session) Encode(opts EncodeOptions) (*EncodingInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, info, err := Encode(s.table, opts)
	if err != nil {
		return nil, err
	}
	s.table = out
	s.history = append(s.history, Record{Type: RecordEncoding, Encoding: info})
	return info, nil
}

// NormalizationPreview compares statistics before and after a normalization
// of a row sample.
type NormalizationPreview struct {
	Method        features.ScalerMethod  `json:"method"`
	MethodName    string                 `json:"method_name"`
	SampleSize    int                    `json:"sample_size"`
	OriginalStats map[string]ColumnStats `json:"original_stats"`
	PreviewStats  map[string]ColumnStats `json:"preview_stats"`
}

// SampleRows returns up to n rows of t drawn without replacement using seed.
// Tables no larger than n are returned unchanged.
func SampleRows(t *core.Table, n int, seed uint64) *core.Table {
	if n <= 0 || t.NumRows() <= n {
		return t
	}
	idx := make([]int, n)
	sampleuv.WithoutReplacement(idx, t.NumRows(), rand.NewPCG(seed, seed))
	slices.Sort(idx)
	return t.SelectRows(idx)
}

// PreviewNormalize runs Normalize on a sample of at most size rows of t
// without touching t.
func PreviewNormalize(t *core.Table, opts NormalizeOptions, size int, seed uint64) (*NormalizationPreview, error) {
	sel, err := t.Select(opts.Columns)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = DefaultPreviewSize
	}
	sample := SampleRows(sel, size, seed)
	_, info, err := Normalize(sample, opts)
	if err != nil {
		return nil, err
	}
	return &NormalizationPreview{
		Method:        info.Method,
		MethodName:    info.MethodName,
		SampleSize:    sample.NumRows(),
		OriginalStats: info.OriginalStats,
		PreviewStats:  info.NewStats,
	}, nil
}

// ColumnPreview is the projected encoding of one column.
type ColumnPreview struct {
	Mapping        Mapping  `json:"mapping,omitempty"`
	OriginalValues []any    `json:"original_values,omitempty"`
	NewColumns     []string `json:"new_columns,omitempty"`
	Count          int      `json:"count,omitempty"`
}

// EncodingPreview is the projected effect of an encoding.
type EncodingPreview struct {
	Method              EncodeMethod              `json:"method"`
	Columns             []string                  `json:"columns"`
	Mappings            map[string]*ColumnPreview `json:"mappings"`
	EstimatedNewColumns int                       `json:"estimated_new_columns"`
}

// PreviewEncode reports the label mapping or the one-hot column names that
// Encode would produce, without encoding anything.
func PreviewEncode(t *core.Table, opts EncodeOptions) (*EncodingPreview, error) {
	method, err := ParseEncodeMethod(string(opts.Method))
	if err != nil {
		return nil, err
	}
	if missing := t.MissingColumns(opts.Columns); len(missing) > 0 {
		return nil, core.MissingColumnsError(missing)
	}

	p := &EncodingPreview{
		Method:   method,
		Columns:  opts.Columns,
		Mappings: make(map[string]*ColumnPreview, len(opts.Columns)),
	}
	for _, name := range opts.Columns {
		col, _ := t.Column(name)
		switch method {
		case LabelEncoding:
			enc := features.FitLabelEncoder(features.Stringify(col.Values, nullLabel))
			p.Mappings[name] = &ColumnPreview{Mapping: mappingOf(enc)}
			p.EstimatedNewColumns++
		case OneHotEncoding:
			names := dummyNames(name, categories(col), opts.DropFirst)
			if err := checkDummyNames(t, name, names); err != nil {
				return nil, err
			}
			values := appearanceOrder(col)
			p.Mappings[name] = &ColumnPreview{
				OriginalValues: slices.DeleteFunc(values, func(v any) bool { return v == nil }),
				NewColumns:     names,
				Count:          len(names),
			}
			p.EstimatedNewColumns += len(names)
		}
	}
	return p, nil
}
