package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapml/internal/cli/output"
	"github.com/leapstack-labs/leapml/internal/engine"
	"github.com/leapstack-labs/leapml/internal/ml"
	"github.com/leapstack-labs/leapml/pkg/core"
	"github.com/spf13/cobra"
)

// NewExperimentCommand creates the experiment command group.
func NewExperimentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "experiment",
		Aliases: []string{"experiments", "exp"},
		Short:   "Create and inspect training experiments",
		Long: `An experiment fixes a dataset, an algorithm with its hyperparameters,
a target column and the feature columns. 'leapml train' runs it.`,
	}
	cmd.AddCommand(
		newExperimentCreateCommand(),
		newExperimentShowCommand(),
		newExperimentListCommand(),
		newExperimentExportCommand(),
	)
	return cmd
}

// ExperimentOptions holds options for experiment create.
type ExperimentOptions struct {
	Name        string
	Description string
	DatasetID   int64
	Algorithm   string
	Target      string
	Features    []string
	Params      map[string]string
	Split       float64
	Seed        int64
}

func newExperimentCreateCommand() *cobra.Command {
	opts := &ExperimentOptions{}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a pending experiment",
		Example: `  # k-NN on two features with 7 neighbors
  leapml experiment create --name iris-knn --dataset 1 --algorithm knn \
    --target species --features sepal_length,petal_length --param n_neighbors=7

  # Linear regression with a 70/30 split
  leapml experiment create --name prices --dataset 2 --algorithm linear_regression \
    --target price --features rooms,area --split 0.7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := engine.ExperimentRequest{
				Name:            opts.Name,
				Description:     opts.Description,
				DatasetID:       opts.DatasetID,
				Algorithm:       opts.Algorithm,
				Hyperparameters: parseParams(opts.Params),
				TargetColumn:    opts.Target,
				FeatureColumns:  opts.Features,
				TrainRatio:      opts.Split,
			}
			if cmd.Flags().Changed("seed") {
				req.RandomSeed = &opts.Seed
			}

			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			exp, err := cmdCtx.Engine.CreateExperiment(cmd.Context(), req)
			if err != nil {
				return err
			}
			r := cmdCtx.Renderer
			return r.Render(output.NewExperimentInfo(exp), func() {
				r.Success(fmt.Sprintf("Created experiment %d (%s)", exp.ID, exp.Name))
				r.Muted(fmt.Sprintf("Run it with: leapml train %d", exp.ID))
			})
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "Experiment name")
	cmd.Flags().StringVar(&opts.Description, "description", "", "Free-form description")
	cmd.Flags().Int64Var(&opts.DatasetID, "dataset", 0, "Dataset id")
	cmd.Flags().StringVar(&opts.Algorithm, "algorithm", "", "Algorithm id (see 'leapml algorithms')")
	cmd.Flags().StringVar(&opts.Target, "target", "", "Target column")
	cmd.Flags().StringSliceVar(&opts.Features, "features", nil, "Feature columns")
	cmd.Flags().StringToStringVar(&opts.Params, "param", nil, "Hyperparameter as key=value (repeatable)")
	cmd.Flags().Float64Var(&opts.Split, "split", ml.DefaultTrainRatio, "Share of rows used for training")
	cmd.Flags().Int64Var(&opts.Seed, "seed", ml.ModelSeed, "Random seed of the split and the model")
	for _, name := range []string{"name", "dataset", "algorithm", "target", "features"} {
		_ = cmd.MarkFlagRequired(name)
	}
	_ = cmd.RegisterFlagCompletionFunc("algorithm", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		var ids []string
		for _, info := range ml.Catalog() {
			ids = append(ids, string(info.ID))
		}
		return ids, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// parseParams types hyperparameter values given on the command line.
func parseParams(raw map[string]string) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = parseParamValue(v)
	}
	return out
}

func parseParamValue(v string) any {
	s := strings.TrimSpace(v)
	switch strings.ToLower(s) {
	case "null", "none", "":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func newExperimentShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <experiment-id>",
		Short: "Show an experiment with its metrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("experiment", args[0])
			if err != nil {
				return err
			}
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			exp, err := cmdCtx.Engine.GetExperiment(cmd.Context(), id)
			if err != nil {
				return err
			}
			return renderExperiment(cmdCtx.Renderer, exp)
		},
	}
}

func renderExperiment(r *output.Renderer, exp *core.Experiment) error {
	return r.Render(output.NewExperimentInfo(exp), func() {
		r.Header(1, fmt.Sprintf("Experiment %d: %s", exp.ID, exp.Name))
		pairs := [][2]string{
			{"Status", r.Status(string(exp.Status))},
			{"Dataset", fmt.Sprint(exp.DatasetID)},
			{"Algorithm", exp.Algorithm},
			{"Target", exp.TargetColumn},
			{"Features", strings.Join(exp.FeatureColumns, ", ")},
			{"Split", formatFloat(exp.TrainRatio)},
			{"Seed", fmt.Sprint(exp.RandomSeed)},
		}
		if len(exp.Hyperparameters) > 0 {
			b, _ := json.Marshal(exp.Hyperparameters)
			pairs = append(pairs, [2]string{"Parameters", string(b)})
		}
		if exp.ErrorMessage != "" {
			pairs = append(pairs, [2]string{"Error", exp.ErrorMessage})
		}
		if res := exp.Result; res != nil {
			pairs = append(pairs,
				[2]string{"Training time", formatFloat(res.TrainingTime) + "s"},
				[2]string{"Model", res.ModelPath},
			)
		}
		r.KeyValues(pairs)

		if exp.Result != nil {
			if metrics := metricRows(exp.Result.Metrics); len(metrics) > 0 {
				r.Println("")
				r.Header(2, "Metrics")
				r.Table([]string{"Metric", "Value"}, metrics)
			}
		}
	})
}

// metricRows flattens the scalar entries of a metrics document.
func metricRows(raw json.RawMessage) [][]any {
	var m map[string]any
	if len(raw) == 0 || json.Unmarshal(raw, &m) != nil {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k, v := range m {
		switch v.(type) {
		case float64, string, bool, nil:
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	rows := make([][]any, len(keys))
	for i, k := range keys {
		rows[i] = []any{k, formatCell(m[k])}
	}
	return rows
}

func newExperimentListCommand() *cobra.Command {
	var datasetID int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List experiments, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			list, err := cmdCtx.Engine.ListExperiments(cmd.Context(), datasetID)
			if err != nil {
				return err
			}
			infos := make([]output.ExperimentInfo, len(list))
			for i, exp := range list {
				infos[i] = output.NewExperimentInfo(exp)
			}

			r := cmdCtx.Renderer
			return r.Render(infos, func() {
				r.Header(1, fmt.Sprintf("Experiments (%d total)", len(list)))
				rows := make([][]any, len(list))
				for i, exp := range list {
					rows[i] = []any{exp.ID, exp.Name, exp.DatasetID, exp.Algorithm, r.Status(string(exp.Status)), exp.TargetColumn}
				}
				r.Table([]string{"ID", "Name", "Dataset", "Algorithm", "Status", "Target"}, rows)
			})
		},
	}
	cmd.Flags().Int64Var(&datasetID, "dataset", 0, "Only experiments of this dataset")
	return cmd
}

func newExperimentExportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export <experiment-id> [dest]",
		Short: "Copy the trained model of an experiment",
		Long: `Copy the model blob of a completed experiment. Without dest the file is
written to the current directory under its download name. When dest is an
existing directory the download name is kept inside it.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("experiment", args[0])
			if err != nil {
				return err
			}
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			name, src, err := cmdCtx.Engine.ModelArtifact(cmd.Context(), id)
			if err != nil {
				return err
			}
			dest := name
			if len(args) == 2 {
				dest = args[1]
				if info, statErr := os.Stat(dest); statErr == nil && info.IsDir() {
					dest = filepath.Join(dest, name)
				}
			}
			n, err := copyFile(src, dest)
			if err != nil {
				return err
			}

			r := cmdCtx.Renderer
			result := map[string]any{"experiment_id": id, "path": dest, "bytes": n}
			return r.Render(result, func() {
				r.Success(fmt.Sprintf("Exported model of experiment %d to %s (%d bytes)", id, dest, n))
			})
		},
	}
}

func copyFile(src, dest string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, core.Wrap(core.CategoryNotFound, err, "model file missing")
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", dest, err)
	}
	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return n, nil
}
