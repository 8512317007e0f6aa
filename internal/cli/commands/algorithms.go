package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapml/internal/ml"
	"github.com/spf13/cobra"
)

// NewAlgorithmsCommand creates the algorithms command.
func NewAlgorithmsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "algorithms [algorithm]",
		Short: "List algorithms or show the hyperparameters of one",
		Example: `  # List every algorithm
  leapml algorithms

  # Hyperparameter ranges of the random forest
  leapml algorithms random_forest`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := NewCommandContextWithoutEngine(cmd).Renderer

			if len(args) == 0 {
				catalog := ml.Catalog()
				return r.Render(catalog, func() {
					r.Header(1, fmt.Sprintf("Algorithms (%d total)", len(catalog)))
					rows := make([][]any, len(catalog))
					for i, info := range catalog {
						rows[i] = []any{info.ID, info.Name, info.Type, info.Description}
					}
					r.Table([]string{"ID", "Name", "Type", "Description"}, rows)
				})
			}

			alg, err := ml.ParseAlgorithm(args[0])
			if err != nil {
				return err
			}
			params := alg.ParamRanges()
			return r.Render(params, func() {
				r.Header(1, fmt.Sprintf("Hyperparameters of %s", alg))
				names := make([]string, 0, len(params))
				for name := range params {
					names = append(names, name)
				}
				sort.Strings(names)
				rows := make([][]any, len(names))
				for i, name := range names {
					p := params[name]
					rows[i] = []any{name, p.Type, paramRange(p), fmt.Sprint(p.Default)}
				}
				r.Table([]string{"Name", "Type", "Range", "Default"}, rows)
			})
		},
	}
}

func paramRange(p ml.ParamSpec) string {
	switch {
	case len(p.Options) > 0:
		return strings.Join(p.Options, " | ")
	case p.Min != nil && p.Max != nil:
		return fmt.Sprintf("%s..%s", formatFloat(*p.Min), formatFloat(*p.Max))
	default:
		return ""
	}
}
