package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapml/internal/cli/output"
	"github.com/leapstack-labs/leapml/internal/engine"
	"github.com/leapstack-labs/leapml/internal/features"
	"github.com/leapstack-labs/leapml/internal/preprocess"
	"github.com/leapstack-labs/leapml/internal/profile"
	"github.com/leapstack-labs/leapml/internal/transform"
	"github.com/leapstack-labs/leapml/pkg/core"
	"github.com/spf13/cobra"
)

// writtenResult pairs a transformation report with where it was stored.
type writtenResult struct {
	Result any `json:"result"`
	output.WrittenInfo
}

func newWrittenResult(result any, w engine.Written) writtenResult {
	return writtenResult{
		Result:      result,
		WrittenInfo: output.NewWrittenInfo(w.Dataset, w.Version, w.Format, w.FormatSubstituted),
	}
}

func renderWritten(r *output.Renderer, w engine.Written) {
	if w.FormatSubstituted {
		r.Warning(fmt.Sprintf("requested format cannot be written; saved as %s", w.Format))
	}
	if w.Version != nil {
		r.Success(fmt.Sprintf("Created version %d (%s) of dataset %d", w.Version.VersionNumber, w.Version.Description, w.Dataset.ID))
		return
	}
	r.Success(fmt.Sprintf("Updated dataset %d in place", w.Dataset.ID))
}

// PreprocessOptions holds options for the preprocess command.
type PreprocessOptions struct {
	Column        string
	Action        string
	Missing       []string
	OutlierMethod string
	Min           float64
	Max           float64
	Replacement   string
	NewVersion    bool
	Format        string
}

// NewPreprocessCommand creates the preprocess command.
func NewPreprocessCommand() *cobra.Command {
	opts := &PreprocessOptions{}

	actions := make([]string, len(preprocess.Actions))
	for i, a := range preprocess.Actions {
		actions[i] = string(a)
	}

	cmd := &cobra.Command{
		Use:   "preprocess <dataset-id>",
		Short: "Fill missing values or handle outliers in one column",
		Long: fmt.Sprintf(`Apply one remediation action to a column of a dataset.

Actions: %s

By default the active file is overwritten. --new-version writes the
result as a new active version instead.`, strings.Join(actions, ", ")),
		Example: `  # Fill missing ages with the median, keeping the original version
  leapml preprocess 1 --column age --action fill_median --new-version

  # Drop rows whose price is an IQR outlier
  leapml preprocess 1 --column price --action remove_outliers --outlier-method iqr

  # Clamp scores outside 0..100 to the column mean
  leapml preprocess 1 --column score --action replace_outliers \
    --outlier-method range --min 0 --max 100 --replacement mean`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreprocess(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Column, "column", "", "Column to process")
	cmd.Flags().StringVar(&opts.Action, "action", "", "Action to apply")
	cmd.Flags().StringSliceVar(&opts.Missing, "missing", nil, "Extra tokens to treat as missing")
	cmd.Flags().StringVar(&opts.OutlierMethod, "outlier-method", "", "Outlier method: iqr, zscore or range")
	cmd.Flags().Float64Var(&opts.Min, "min", 0, "Lower bound for the range method")
	cmd.Flags().Float64Var(&opts.Max, "max", 0, "Upper bound for the range method")
	cmd.Flags().StringVar(&opts.Replacement, "replacement", "", "Replacement for outliers: mean, median, mode, min or max")
	cmd.Flags().BoolVar(&opts.NewVersion, "new-version", false, "Write the result as a new version")
	cmd.Flags().StringVar(&opts.Format, "format", "", "Output format (default: the dataset's format)")
	_ = cmd.MarkFlagRequired("column")
	_ = cmd.MarkFlagRequired("action")
	_ = cmd.RegisterFlagCompletionFunc("action", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return actions, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runPreprocess(cmd *cobra.Command, arg string, opts *PreprocessOptions) error {
	id, err := parseID("dataset", arg)
	if err != nil {
		return err
	}

	req := engine.PreprocessRequest{
		Request: preprocess.Request{
			Column:        opts.Column,
			Action:        preprocess.Action(opts.Action),
			MissingTokens: opts.Missing,
			Replacement:   preprocess.Strategy(opts.Replacement),
		},
		CreateNewVersion: opts.NewVersion,
	}
	if opts.OutlierMethod != "" {
		m, err := profile.ParseOutlierMethod(opts.OutlierMethod)
		if err != nil {
			return err
		}
		req.OutlierMethod = m
	}
	if cmd.Flags().Changed("min") {
		req.Min = &opts.Min
	}
	if cmd.Flags().Changed("max") {
		req.Max = &opts.Max
	}
	if opts.Format != "" {
		f, err := core.ParseFormat(opts.Format)
		if err != nil {
			return err
		}
		req.OutputFormat = f
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	out, err := cmdCtx.Engine.PreprocessDataset(cmd.Context(), id, req)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	return r.Render(newWrittenResult(out.Result, out.Written), func() {
		r.Println(out.Message)
		r.KeyValues([][2]string{
			{"Rows", fmt.Sprintf("%d -> %d", out.OriginalRows, out.FinalRows)},
			{"Rows affected", fmt.Sprint(out.RowsAffected)},
			{"Values replaced", fmt.Sprint(out.ValuesReplaced)},
		})
		renderWritten(r, out.Written)
	})
}

// NormalizeOptions holds options for the normalize command.
type NormalizeOptions struct {
	Columns    []string
	Method     string
	Range      []float64
	Preview    bool
	SampleSize int
}

// NewNormalizeCommand creates the normalize command.
func NewNormalizeCommand() *cobra.Command {
	opts := &NormalizeOptions{}

	cmd := &cobra.Command{
		Use:   "normalize <dataset-id>",
		Short: "Scale numeric columns into a new dataset version",
		Long: `Scale numeric columns with z-score, min-max or robust scaling and
store the result as a new CSV version of the dataset.

--preview reports before and after statistics on a sample without
writing anything.`,
		Example: `  # Standardize two columns
  leapml normalize 1 --columns age,income --method zscore

  # Scale into [-1, 1]
  leapml normalize 1 --columns age --method minmax --range -1,1

  # Preview on 50 sampled rows
  leapml normalize 1 --columns age --method robust --preview --sample-size 50`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNormalize(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Columns, "columns", nil, "Columns to scale")
	cmd.Flags().StringVar(&opts.Method, "method", string(features.ScaleStandard), "Method: zscore, minmax or robust")
	cmd.Flags().Float64SliceVar(&opts.Range, "range", nil, "Target range for minmax, as low,high")
	cmd.Flags().BoolVar(&opts.Preview, "preview", false, "Report the effect without writing")
	cmd.Flags().IntVar(&opts.SampleSize, "sample-size", transform.DefaultPreviewSize, "Rows sampled by --preview")
	_ = cmd.MarkFlagRequired("columns")
	_ = cmd.RegisterFlagCompletionFunc("method", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"zscore", "minmax", "robust"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runNormalize(cmd *cobra.Command, arg string, opts *NormalizeOptions) error {
	id, err := parseID("dataset", arg)
	if err != nil {
		return err
	}
	req := engine.NormalizeRequest{Columns: opts.Columns, Method: features.ScalerMethod(opts.Method)}
	if len(opts.Range) > 0 {
		if len(opts.Range) != 2 {
			return core.Errorf(core.CategoryInvalidArgument, "--range takes exactly two values, got %d", len(opts.Range))
		}
		req.FeatureRange = &[2]float64{opts.Range[0], opts.Range[1]}
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	r := cmdCtx.Renderer

	if opts.Preview {
		p, err := cmdCtx.Engine.PreviewNormalize(cmd.Context(), id, req, opts.SampleSize)
		if err != nil {
			return err
		}
		return r.Render(p, func() {
			r.Header(1, fmt.Sprintf("%s preview (%d sampled rows)", p.MethodName, p.SampleSize))
			renderStatsComparison(r, p.OriginalStats, p.PreviewStats)
		})
	}

	out, err := cmdCtx.Engine.NormalizeDataset(cmd.Context(), id, req)
	if err != nil {
		return err
	}
	return r.Render(newWrittenResult(out.Info, out.Written), func() {
		r.Header(1, out.Info.MethodName)
		renderStatsComparison(r, out.Info.OriginalStats, out.Info.NewStats)
		renderWritten(r, out.Written)
	})
}

func renderStatsComparison(r *output.Renderer, before, after map[string]transform.ColumnStats) {
	names := make([]string, 0, len(before))
	for name := range before {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]any, len(names))
	for i, name := range names {
		b, a := before[name], after[name]
		rows[i] = []any{
			name,
			formatFloat(b.Mean), formatFloat(b.Std), formatFloat(b.Min), formatFloat(b.Max),
			formatFloat(a.Mean), formatFloat(a.Std), formatFloat(a.Min), formatFloat(a.Max),
		}
	}
	r.Table([]string{"Column", "Mean", "Std", "Min", "Max", "New mean", "New std", "New min", "New max"}, rows)
}

// EncodeOptions holds options for the encode command.
type EncodeOptions struct {
	Columns   []string
	Method    string
	DropFirst bool
	Preview   bool
}

// NewEncodeCommand creates the encode command.
func NewEncodeCommand() *cobra.Command {
	opts := &EncodeOptions{}

	cmd := &cobra.Command{
		Use:   "encode <dataset-id>",
		Short: "Encode categorical columns into a new dataset version",
		Long: `Encode categorical columns with label or one-hot encoding and store
the result as a new CSV version of the dataset.

--preview lists the label mapping or the one-hot columns that would be
created without writing anything.`,
		Example: `  # Label encode a column
  leapml encode 1 --columns city --method label

  # One-hot encode, dropping the first category
  leapml encode 1 --columns city,color --method onehot --drop-first`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEncode(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Columns, "columns", nil, "Columns to encode")
	cmd.Flags().StringVar(&opts.Method, "method", string(transform.LabelEncoding), "Method: label or onehot")
	cmd.Flags().BoolVar(&opts.DropFirst, "drop-first", false, "Drop the first one-hot column of each feature")
	cmd.Flags().BoolVar(&opts.Preview, "preview", false, "Report the effect without writing")
	_ = cmd.MarkFlagRequired("columns")
	_ = cmd.RegisterFlagCompletionFunc("method", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"label", "onehot"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runEncode(cmd *cobra.Command, arg string, opts *EncodeOptions) error {
	id, err := parseID("dataset", arg)
	if err != nil {
		return err
	}
	method, err := transform.ParseEncodeMethod(opts.Method)
	if err != nil {
		return err
	}
	req := engine.EncodeRequest{Columns: opts.Columns, Method: method, DropFirst: opts.DropFirst}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	r := cmdCtx.Renderer

	if opts.Preview {
		p, err := cmdCtx.Engine.PreviewEncode(cmd.Context(), id, req)
		if err != nil {
			return err
		}
		return r.Render(p, func() {
			r.Header(1, fmt.Sprintf("%s preview", p.Method))
			rows := make([][]any, 0, len(p.Columns))
			for _, col := range p.Columns {
				cp := p.Mappings[col]
				if cp == nil {
					continue
				}
				rows = append(rows, []any{col, encodingDetail(cp.Mapping, cp.NewColumns)})
			}
			r.Table([]string{"Column", "Encoding"}, rows)
			r.Muted(fmt.Sprintf("estimated new columns: %d", p.EstimatedNewColumns))
		})
	}

	out, err := cmdCtx.Engine.EncodeDataset(cmd.Context(), id, req)
	if err != nil {
		return err
	}
	return r.Render(newWrittenResult(out.Info, out.Written), func() {
		info := out.Info
		r.Header(1, fmt.Sprintf("%s of %d columns", info.Method, info.Summary.TotalColumnsEncoded))
		rows := make([][]any, 0, len(info.Columns))
		for _, col := range info.Columns {
			enc := info.Encodings[col]
			if enc == nil {
				continue
			}
			rows = append(rows, []any{col, encodingDetail(enc.Mapping, enc.NewColumns)})
		}
		r.Table([]string{"Column", "Encoding"}, rows)
		r.KeyValues([][2]string{
			{"Shape", fmt.Sprintf("%dx%d -> %dx%d", info.OriginalShape[0], info.OriginalShape[1], info.NewShape[0], info.NewShape[1])},
		})
		renderWritten(r, out.Written)
	})
}

func encodingDetail(m transform.Mapping, newColumns []string) string {
	if len(newColumns) > 0 {
		return strings.Join(newColumns, ", ")
	}
	b, err := m.MarshalJSON()
	if err != nil {
		return ""
	}
	return string(b)
}
