package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapml/internal/pipeline"
	"github.com/leapstack-labs/leapml/pkg/core"
	"github.com/spf13/cobra"
)

// PredictOptions holds options for the predict command.
type PredictOptions struct {
	File string
	Data string
}

// NewPredictCommand creates the predict command.
func NewPredictCommand() *cobra.Command {
	opts := &PredictOptions{}

	cmd := &cobra.Command{
		Use:   "predict <experiment-id>",
		Short: "Predict with a trained experiment",
		Long: `Run the model of a completed experiment over new rows. Rows come from
a dataset file (--file) or from a JSON array of objects (--data, where
@path reads a file and - reads stdin). The recorded transformations are
replayed before the model runs.`,
		Example: `  # Predict every row of a CSV
  leapml predict 3 --file ./new_flowers.csv

  # Predict inline records
  leapml predict 3 --data '[{"sepal_length": 5.1, "petal_length": 1.4}]'

  # Predict records piped on stdin
  cat rows.json | leapml predict 3 --data -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPredict(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.File, "file", "", "Dataset file with rows to predict")
	cmd.Flags().StringVar(&opts.Data, "data", "", "JSON array of records, @file or - for stdin")
	cmd.MarkFlagsMutuallyExclusive("file", "data")
	cmd.MarkFlagsOneRequired("file", "data")

	return cmd
}

func runPredict(cmd *cobra.Command, arg string, opts *PredictOptions) error {
	id, err := parseID("experiment", arg)
	if err != nil {
		return err
	}

	var records []map[string]any
	if opts.Data != "" {
		if records, err = readRecords(cmd.InOrStdin(), opts.Data); err != nil {
			return err
		}
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	var p *pipeline.Prediction
	if opts.File != "" {
		p, err = cmdCtx.Engine.PredictFile(cmd.Context(), id, opts.File)
	} else {
		p, err = cmdCtx.Engine.Predict(cmd.Context(), id, records)
	}
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	return r.Render(p, func() {
		r.Header(1, fmt.Sprintf("Predictions of experiment %d (%s)", id, p.Algorithm))
		header := []string{"Row", "Prediction"}
		if p.Probabilities != nil {
			header = append(header, "Confidence")
		}
		rows := make([][]any, len(p.Predictions))
		for i, v := range p.Predictions {
			row := []any{i, formatFloat(v)}
			if p.Labels != nil {
				row[1] = p.Labels[i]
			}
			if p.Probabilities != nil {
				row = append(row, formatFloat(slices.Max(p.Probabilities[i])))
			}
			rows[i] = row
		}
		r.Table(header, rows)
	})
}

// readRecords decodes records from an inline JSON array, @path or stdin.
func readRecords(stdin io.Reader, data string) ([]map[string]any, error) {
	var raw []byte
	switch {
	case data == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		raw = b
	case strings.HasPrefix(data, "@"):
		b, err := os.ReadFile(strings.TrimPrefix(data, "@"))
		if err != nil {
			return nil, core.Wrap(core.CategoryInvalidArgument, err, "failed to read records")
		}
		raw = b
	default:
		raw = []byte(data)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var records []map[string]any
	if err := dec.Decode(&records); err != nil {
		return nil, core.Wrap(core.CategoryInvalidArgument, err, "records must be a JSON array of objects")
	}
	return records, nil
}
