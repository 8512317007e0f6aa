package profile

import (
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapml/pkg/core"
)

const (
	maxValueFrequencies = 20
	maxTopValues        = 10
	maxSampleValues     = 5
	statPlaces          = 4
)

// ValidRange bounds the accepted values of a column. Either end may be nil.
type ValidRange struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

// IsSet reports whether at least one bound is configured.
func (r *ValidRange) IsSet() bool {
	return r != nil && (r.Min != nil || r.Max != nil)
}

// ColumnConfig overrides the global options for one column.
type ColumnConfig struct {
	Name           string      `json:"name"`
	MissingTokens  []string    `json:"custom_missing_values,omitempty"`
	ValidRange     *ValidRange `json:"valid_range,omitempty"`
	DetectOutliers *bool       `json:"detect_outliers,omitempty"`
}

// Options configures a profiling pass.
type Options struct {
	// Columns restricts the pass to the named columns when non-empty.
	Columns        []string
	MissingTokens  []string
	DetectOutliers bool
	ColumnConfigs  []ColumnConfig
}

// Outliers groups the reports attached to a numerical column.
type Outliers struct {
	IQR    *OutlierReport `json:"iqr,omitempty"`
	ZScore *OutlierReport `json:"zscore,omitempty"`
	Range  *OutlierReport `json:"range,omitempty"`
}

// HasOutliers reports whether any attached report flagged a cell.
func (o *Outliers) HasOutliers() bool {
	if o == nil {
		return false
	}
	for _, r := range []*OutlierReport{o.IQR, o.ZScore, o.Range} {
		if r != nil && r.Count > 0 {
			return true
		}
	}
	return false
}

// ColumnProfile is the full data-quality report of one column.
type ColumnProfile struct {
	Name              string      `json:"name"`
	DataType          DataType    `json:"data_type"`
	TotalCount        int         `json:"total_count"`
	StandardMissing   int         `json:"standard_missing_count"`
	CustomMissing     int         `json:"custom_missing_count"`
	TotalMissing      int         `json:"total_missing_count"`
	MissingPercentage float64     `json:"missing_percentage"`
	UniqueCount       int         `json:"unique_count"`
	SuspiciousValues  []string    `json:"suspicious_values"`
	ValueFrequencies  Frequencies `json:"value_frequencies"`
	Outliers          *Outliers   `json:"outliers,omitempty"`
	ConfiguredRange   *ValidRange `json:"configured_range,omitempty"`
	Statistics        *Summary    `json:"statistics,omitempty"`
	TopValues         Frequencies `json:"top_values,omitempty"`
}

// AnalysisSummary counts across the profiles of one pass.
type AnalysisSummary struct {
	ColumnsAnalyzed      int `json:"columns_analyzed"`
	ColumnsWithCustom    int `json:"columns_with_custom_missing"`
	ColumnsWithOutliers  int `json:"columns_with_outliers"`
	TotalMissingDetected int `json:"total_missing_detected"`
}

// Profiler builds column profiles.
type Profiler struct {
	logger *slog.Logger
	// analyze profiles one column; replaced in tests.
	analyze func(col *core.Column, tokens []string, detect bool, valid *ValidRange) (*ColumnProfile, error)
}

// NewProfiler creates a profiler. A nil logger discards output.
func NewProfiler(logger *slog.Logger) *Profiler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := &Profiler{logger: logger}
	p.analyze = p.analyzeColumn
	return p
}

// Analyze profiles the table. Unknown names in opts.Columns yield
// MissingColumns. A column that cannot be analyzed gets a stub profile.
func (p *Profiler) Analyze(t *core.Table, opts Options) ([]*ColumnProfile, AnalysisSummary, error) {
	columns := t.Columns()
	if len(opts.Columns) > 0 {
		sel, err := t.Select(opts.Columns)
		if err != nil {
			return nil, AnalysisSummary{}, err
		}
		columns = sel.Columns()
	}

	configs := make(map[string]ColumnConfig, len(opts.ColumnConfigs))
	for _, c := range opts.ColumnConfigs {
		configs[c.Name] = c
	}

	var summary AnalysisSummary
	profiles := make([]*ColumnProfile, 0, len(columns))
	for _, col := range columns {
		tokens := opts.MissingTokens
		detect := opts.DetectOutliers
		var valid *ValidRange
		if cfg, ok := configs[col.Name]; ok {
			if len(cfg.MissingTokens) > 0 {
				tokens = cfg.MissingTokens
			}
			if cfg.DetectOutliers != nil {
				detect = *cfg.DetectOutliers
			}
			valid = cfg.ValidRange
		}

		prof, err := p.safeAnalyze(col, tokens, detect, valid)
		if err != nil {
			p.logger.Warn("column analysis failed", "column", col.Name, "error", err)
			prof = stubProfile(col.Name)
		}

		summary.ColumnsAnalyzed++
		summary.TotalMissingDetected += prof.TotalMissing
		if prof.CustomMissing > 0 {
			summary.ColumnsWithCustom++
		}
		if prof.Outliers.HasOutliers() {
			summary.ColumnsWithOutliers++
		}
		profiles = append(profiles, prof)
	}
	return profiles, summary, nil
}

func stubProfile(name string) *ColumnProfile {
	return &ColumnProfile{
		Name:             name,
		DataType:         TypeText,
		SuspiciousValues: []string{},
		ValueFrequencies: Frequencies{},
	}
}

// safeAnalyze runs the column analysis, turning a panic into an error.
func (p *Profiler) safeAnalyze(col *core.Column, tokens []string, detect bool, valid *ValidRange) (prof *ColumnProfile, err error) {
	defer func() {
		if r := recover(); r != nil {
			prof = nil
			err = fmt.Errorf("panic while analyzing column %q: %v", col.Name, r)
		}
	}()
	return p.analyze(col, tokens, detect, valid)
}

func (p *Profiler) analyzeColumn(col *core.Column, tokens []string, detect bool, valid *ValidRange) (*ColumnProfile, error) {
	missing := NewMissingDetector(tokens...).Detect(col)
	present := missing.Present(col)
	total := col.Len()

	prof := &ColumnProfile{
		Name:             col.Name,
		DataType:         InferType(col.Kind, present),
		TotalCount:       total,
		StandardMissing:  missing.Standard,
		CustomMissing:    missing.Custom,
		TotalMissing:     missing.Total(),
		UniqueCount:      UniqueCount(present),
		SuspiciousValues: missing.Suspicious,
		ValueFrequencies: CountValues(col.Values, maxValueFrequencies),
	}
	if total > 0 {
		prof.MissingPercentage = core.Round(float64(missing.Total())/float64(total)*100, 2)
	}
	if len(present) == 0 {
		return prof, nil
	}

	switch prof.DataType {
	case TypeNumerical:
		values, validMask, ok := numericCells(col, missing.Mask)
		if !ok {
			return prof, nil
		}
		if detect {
			prof.Outliers = &Outliers{
				IQR:    DetectIQR(col, missing.Mask, DefaultIQRMultiplier),
				ZScore: DetectZScore(col, missing.Mask, DefaultZScoreThreshold),
			}
		}
		if valid.IsSet() {
			if prof.Outliers == nil {
				prof.Outliers = &Outliers{}
			}
			prof.Outliers.Range = DetectRange(col, missing.Mask, valid.Min, valid.Max)
			prof.ConfiguredRange = valid
		}
		s := Describe(subset(values, validMask)).Rounded(statPlaces)
		prof.Statistics = &s
	case TypeCategorical:
		prof.TopValues = CountValues(present, maxTopValues)
	}
	return prof, nil
}

// ColumnInfo is the basic description of a column stored with a dataset.
type ColumnInfo struct {
	Name              string      `json:"name"`
	DataType          DataType    `json:"data_type"`
	MissingCount      int         `json:"missing_count"`
	MissingPercentage float64     `json:"missing_percentage"`
	UniqueCount       int         `json:"unique_count"`
	SampleValues      []any       `json:"sample_values"`
	Statistics        *Summary    `json:"statistics,omitempty"`
	TopValues         Frequencies `json:"top_values,omitempty"`
}

// DescribeColumn returns the basic info of one column. Only structural nulls count
// as missing here.
func DescribeColumn(col *core.Column) ColumnInfo {
	present := make([]any, 0, col.Len())
	for _, v := range col.Values {
		if !core.IsNull(v) {
			present = append(present, v)
		}
	}
	info := ColumnInfo{
		Name:         col.Name,
		DataType:     InferType(col.Kind, present),
		MissingCount: col.Len() - len(present),
		UniqueCount:  UniqueCount(present),
		SampleValues: sampleValues(present),
	}
	if col.Len() > 0 {
		info.MissingPercentage = core.Round(float64(info.MissingCount)/float64(col.Len())*100, 2)
	}
	switch info.DataType {
	case TypeNumerical:
		if values, valid, ok := numericCells(col, nil); ok {
			s := Describe(subset(values, valid)).Rounded(statPlaces)
			info.Statistics = &s
		}
	case TypeCategorical:
		info.TopValues = CountValues(present, maxTopValues)
	}
	return info
}

// DescribeTable returns the basic info of every column.
func DescribeTable(t *core.Table) []ColumnInfo {
	infos := make([]ColumnInfo, 0, t.NumCols())
	for _, col := range t.Columns() {
		infos = append(infos, DescribeColumn(col))
	}
	return infos
}

func sampleValues(present []any) []any {
	out := make([]any, 0, maxSampleValues)
	seen := make(map[string]struct{})
	for _, v := range present {
		k := uniqueKey(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, core.CleanValue(v))
		if len(out) == maxSampleValues {
			break
		}
	}
	return out
}
