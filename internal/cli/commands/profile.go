package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapml/internal/engine"
	"github.com/leapstack-labs/leapml/internal/profile"
	"github.com/spf13/cobra"
)

// ProfileOptions holds options for the profile command.
type ProfileOptions struct {
	Columns  []string
	Missing  []string
	Outliers bool
	Basic    bool
}

// NewProfileCommand creates the profile command.
func NewProfileCommand() *cobra.Command {
	opts := &ProfileOptions{}

	cmd := &cobra.Command{
		Use:     "profile <dataset-id>",
		Aliases: []string{"analyze"},
		Short:   "Analyze data quality of a dataset",
		Long: `Profile every column of a dataset: inferred type, missing values
(structural nulls and sentinel tokens such as "?" or "N/A"), unique counts,
suspicious values and outliers.

--basic reports only the structural statistics shown on upload.`,
		Example: `  # Full analysis
  leapml profile 1

  # Treat "unknown" and "-1" as missing, only two columns
  leapml profile 1 --columns age,city --missing unknown,-1

  # Basic statistics as YAML
  leapml profile 1 --basic -o yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfile(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Columns, "columns", nil, "Columns to analyze (default: all)")
	cmd.Flags().StringSliceVar(&opts.Missing, "missing", nil, "Extra tokens to treat as missing")
	cmd.Flags().BoolVar(&opts.Outliers, "outliers", true, "Detect outliers in numerical columns")
	cmd.Flags().BoolVar(&opts.Basic, "basic", false, "Only report basic column statistics")

	return cmd
}

func runProfile(cmd *cobra.Command, arg string, opts *ProfileOptions) error {
	id, err := parseID("dataset", arg)
	if err != nil {
		return err
	}
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	eng := cmdCtx.Engine
	r := cmdCtx.Renderer

	if opts.Basic {
		infos, err := eng.DatasetStatistics(cmd.Context(), id, opts.Columns)
		if err != nil {
			return err
		}
		return r.Render(infos, func() {
			r.Header(1, fmt.Sprintf("Column statistics of dataset %d", id))
			rows := make([][]any, len(infos))
			for i, c := range infos {
				rows[i] = []any{c.Name, c.DataType, c.MissingCount, formatPercent(c.MissingPercentage), c.UniqueCount, describeSummary(c.Statistics)}
			}
			r.Table([]string{"Column", "Type", "Missing", "Missing %", "Unique", "Summary"}, rows)
		})
	}

	req := engine.AnalyzeRequest{Columns: opts.Columns, MissingTokens: opts.Missing}
	if cmd.Flags().Changed("outliers") {
		req.DetectOutliers = &opts.Outliers
	}
	analysis, err := eng.AnalyzeDataset(cmd.Context(), id, req)
	if err != nil {
		return err
	}

	return r.Render(analysis, func() {
		r.Header(1, fmt.Sprintf("Data quality of dataset %d", id))
		rows := make([][]any, len(analysis.Profiles))
		for i, p := range analysis.Profiles {
			rows[i] = []any{
				p.Name, p.DataType,
				p.StandardMissing, p.CustomMissing, formatPercent(p.MissingPercentage),
				p.UniqueCount, outlierCount(p.Outliers), strings.Join(p.SuspiciousValues, " "),
			}
		}
		r.Table([]string{"Column", "Type", "Nulls", "Tokens", "Missing %", "Unique", "Outliers", "Suspicious"}, rows)

		s := analysis.Summary
		r.Println("")
		r.KeyValues([][2]string{
			{"Columns analyzed", fmt.Sprint(s.ColumnsAnalyzed)},
			{"With custom missing", fmt.Sprint(s.ColumnsWithCustom)},
			{"With outliers", fmt.Sprint(s.ColumnsWithOutliers)},
			{"Missing detected", fmt.Sprint(s.TotalMissingDetected)},
		})
	})
}

func formatPercent(p float64) string {
	return fmt.Sprintf("%.2f%%", p)
}

func describeSummary(s *profile.Summary) string {
	if s == nil {
		return ""
	}
	return fmt.Sprintf("mean=%s min=%s max=%s", formatFloat(s.Mean), formatFloat(s.Min), formatFloat(s.Max))
}

// outlierCount reports the IQR count, the method the profile leads with.
func outlierCount(o *profile.Outliers) string {
	if o == nil || o.IQR == nil {
		return ""
	}
	return fmt.Sprint(o.IQR.Count)
}
