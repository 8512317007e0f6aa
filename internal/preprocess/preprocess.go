// Package preprocess applies single-column remediation actions to a table.
//
// Each action is a pure function from one table state to the next plus a
// human-readable effect message. No state is kept between calls.
package preprocess

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/leapstack-labs/leapml/internal/profile"
	"github.com/leapstack-labs/leapml/pkg/core"
)

// Action names a remediation.
type Action string

// Supported actions.
const (
	FillMean        Action = "fill_mean"
	FillMedian      Action = "fill_median"
	FillMode        Action = "fill_mode"
	FillForward     Action = "fill_forward"
	RemoveRows      Action = "remove_rows"
	RemoveOutliers  Action = "remove_outliers"
	ReplaceOutliers Action = "replace_outliers"
)

// Actions lists every supported action.
var Actions = []Action{FillMean, FillMedian, FillMode, FillForward, RemoveRows, RemoveOutliers, ReplaceOutliers}

// Strategy is the statistic written over outliers.
type Strategy string

// Replacement strategies.
const (
	StrategyMean   Strategy = "mean"
	StrategyMedian Strategy = "median"
	StrategyMode   Strategy = "mode"
	StrategyMin    Strategy = "min"
	StrategyMax    Strategy = "max"
)

// Request describes one action against one column.
type Request struct {
	Column string `json:"column_name"`
	Action Action `json:"action"`
	// MissingTokens are converted to nulls before fill and remove_rows,
	// together with the default tokens, when non-empty.
	MissingTokens []string `json:"custom_missing_values,omitempty"`

	OutlierMethod profile.OutlierMethod `json:"outlier_method,omitempty"`
	Min           *float64              `json:"min_value,omitempty"`
	Max           *float64              `json:"max_value,omitempty"`
	Replacement   Strategy              `json:"replacement_method,omitempty"`
}

// Result is the effect of one action.
type Result struct {
	Table          *core.Table `json:"-"`
	Message        string      `json:"message"`
	OriginalRows   int         `json:"original_rows"`
	FinalRows      int         `json:"final_rows"`
	RowsAffected   int         `json:"rows_affected"`
	ValuesReplaced int         `json:"values_replaced"`
}

// Engine applies actions.
type Engine struct {
	logger *slog.Logger
}

// New creates an engine. A nil logger discards output.
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{logger: logger}
}

// Apply runs req against t and returns the new table state. t is not modified.
func (e *Engine) Apply(t *core.Table, req Request) (*Result, error) {
	col, ok := t.Column(req.Column)
	if !ok {
		return nil, core.MissingColumnsError([]string{req.Column})
	}

	var (
		out *core.Table
		msg string
		err error
	)
	res := &Result{OriginalRows: t.NumRows()}

	switch req.Action {
	case FillMean, FillMedian, FillMode, FillForward, RemoveRows:
		if len(req.MissingTokens) > 0 {
			var n int
			col, n = profile.NewMissingDetector(req.MissingTokens...).NullifyTokens(col)
			e.logger.Debug("converted missing tokens to nulls", "column", col.Name, "count", n)
		}
		switch req.Action {
		case FillMean, FillMedian:
			col, msg, err = fillStatistic(col, req.Action)
		case FillMode:
			col, msg = fillMode(col)
		case FillForward:
			col, msg = fillForward(col)
		case RemoveRows:
			t = t.WithColumn(col)
			out, res.RowsAffected = removeMissingRows(t, col)
			msg = fmt.Sprintf("Removed %d rows with missing values", res.RowsAffected)
		}
	case RemoveOutliers:
		out, res.RowsAffected, msg, err = removeOutliers(t, col, req)
	case ReplaceOutliers:
		col, res.ValuesReplaced, msg, err = replaceOutliers(col, req)
	default:
		return nil, core.Errorf(core.CategoryUnsupportedMethod, "unsupported action %q", req.Action)
	}
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = t.WithColumn(col)
	}

	res.Table = out
	res.Message = msg
	res.FinalRows = out.NumRows()
	e.logger.Info("applied preprocessing action",
		"column", req.Column, "action", req.Action, "rows", res.FinalRows, "message", msg)
	return res, nil
}

func requireNumeric(col *core.Column) error {
	if !col.IsNumeric() {
		return core.Errorf(core.CategoryNonNumericColumn, "column %q is not numeric", col.Name)
	}
	return nil
}

func fillStatistic(col *core.Column, action Action) (*core.Column, string, error) {
	if err := requireNumeric(col); err != nil {
		return nil, "", err
	}
	values, valid := col.Floats()
	present := make([]float64, 0, len(values))
	for i, v := range values {
		if valid[i] {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return nil, "", core.Errorf(core.CategoryInvalidArgument, "column %q has no values to compute a fill value", col.Name)
	}

	s := profile.Describe(present)
	fill, name := s.Mean, "mean"
	if action == FillMedian {
		fill, name = s.Median, "median"
	}

	missing := len(values) - len(present)
	if missing > 0 {
		out := make([]float64, len(values))
		for i, v := range values {
			if valid[i] {
				out[i] = v
			} else {
				out[i] = fill
			}
		}
		col = core.NewFloatColumn(col.Name, out)
	}
	return col, fmt.Sprintf("Filled %d missing values with %s: %.2f", missing, name, fill), nil
}

func fillMode(col *core.Column) (*core.Column, string) {
	present := make([]any, 0, col.Len())
	for _, v := range col.Values {
		if !core.IsNull(v) {
			present = append(present, v)
		}
	}
	mode, ok := profile.Mode(present)
	if !ok {
		return col, "No mode found"
	}
	out := col.Clone()
	n := 0
	for i, v := range out.Values {
		if core.IsNull(v) {
			out.Values[i] = mode
			n++
		}
	}
	return out, fmt.Sprintf("Filled %d missing values with mode: %s", n, core.FormatValue(mode))
}

func fillForward(col *core.Column) (*core.Column, string) {
	out := col.Clone()
	var last any
	n := 0
	for i, v := range out.Values {
		if !core.IsNull(v) {
			last = v
			continue
		}
		if last != nil {
			out.Values[i] = last
			n++
		}
	}
	return out, fmt.Sprintf("Forward filled %d missing values", n)
}

func removeMissingRows(t *core.Table, col *core.Column) (*core.Table, int) {
	keep := make([]bool, col.Len())
	removed := 0
	for i := range col.Values {
		keep[i] = !col.IsNull(i)
		if !keep[i] {
			removed++
		}
	}
	return t.FilterRows(keep), removed
}

// detectOutliers runs the requested method over the numeric cells of col.
func detectOutliers(col *core.Column, req Request) (*profile.OutlierReport, []bool, error) {
	method := req.OutlierMethod
	if method == "" {
		method = profile.MethodRange
	}
	if _, err := profile.ParseOutlierMethod(string(method)); err != nil {
		return nil, nil, err
	}
	var excluded []bool
	if len(req.MissingTokens) > 0 {
		excluded = profile.NewMissingDetector(req.MissingTokens...).Detect(col).Mask
	}
	report, err := profile.Detect(method, col, excluded, req.Min, req.Max)
	if err != nil {
		return nil, nil, err
	}
	if !report.Numeric {
		return nil, nil, core.Errorf(core.CategoryNonNumericColumn, "column %q is not numeric", col.Name)
	}
	return report, excluded, nil
}

func removeOutliers(t *core.Table, col *core.Column, req Request) (*core.Table, int, string, error) {
	report, _, err := detectOutliers(col, req)
	if err != nil {
		return nil, 0, "", err
	}
	keep := make([]bool, len(report.Mask))
	for i, flagged := range report.Mask {
		keep[i] = !flagged
	}
	out := t.FilterRows(keep)

	var msg string
	switch report.Method {
	case profile.MethodRange:
		msg = fmt.Sprintf("Removed %d rows with outliers outside range [%s, %s]",
			report.Count, formatBound(req.Min), formatBound(req.Max))
	case profile.MethodIQR:
		msg = fmt.Sprintf("Removed %d rows with outliers using IQR method", report.Count)
	case profile.MethodZScore:
		msg = fmt.Sprintf("Removed %d rows with outliers using Z-score method", report.Count)
	}
	return out, report.Count, msg, nil
}

func formatBound(b *float64) string {
	if b == nil {
		return "None"
	}
	return core.FormatFloat(*b)
}

func replaceOutliers(col *core.Column, req Request) (*core.Column, int, string, error) {
	strategy := req.Replacement
	if strategy == "" {
		strategy = StrategyMean
	}
	switch strategy {
	case StrategyMean, StrategyMedian, StrategyMode, StrategyMin, StrategyMax:
	default:
		return nil, 0, "", core.Errorf(core.CategoryUnsupportedMethod, "unsupported replacement method %q", strategy)
	}

	report, excluded, err := detectOutliers(col, req)
	if err != nil {
		return nil, 0, "", err
	}
	if report.Count == 0 {
		return col, 0, "No outliers detected", nil
	}

	inliers := report.Inliers(col, excluded)
	if len(inliers) == 0 {
		return nil, 0, "", core.Errorf(core.CategoryInvalidArgument,
			"every value of column %q is an outlier, nothing to compute a replacement from", col.Name)
	}

	var (
		value float64
		label string
	)
	s := profile.Describe(inliers)
	switch strategy {
	case StrategyMean:
		value = s.Mean
	case StrategyMedian:
		value = s.Median
	case StrategyMin:
		value = s.Min
	case StrategyMax:
		value = s.Max
	case StrategyMode:
		cells := make([]any, 0, len(inliers))
		for i, v := range col.Values {
			if !report.Mask[i] && !core.IsNull(v) && (excluded == nil || !excluded[i]) {
				cells = append(cells, v)
			}
		}
		mode, _ := profile.Mode(cells)
		value, _ = core.ToFloat(mode)
		label = fmt.Sprintf("Replaced %d outliers with mode: %s", report.Count, core.FormatValue(mode))
	}
	if label == "" {
		label = fmt.Sprintf("Replaced %d outliers with %s: %.2f", report.Count, strategy, value)
	}

	return writeReplacement(col, report.Mask, value), report.Count, label, nil
}

// writeReplacement overwrites flagged cells. Integer columns receive the
// value rounded half to even; other columns are promoted to float.
func writeReplacement(col *core.Column, mask []bool, value float64) *core.Column {
	if col.Kind == core.KindInt {
		out := col.Clone()
		rounded := int64(math.RoundToEven(value))
		for i, flagged := range mask {
			if flagged {
				out.Values[i] = rounded
			}
		}
		return out
	}
	values, valid := col.Floats()
	for i, flagged := range mask {
		switch {
		case flagged:
			values[i] = value
		case !valid[i]:
			values[i] = math.NaN()
		}
	}
	return core.NewFloatColumn(col.Name, values)
}
