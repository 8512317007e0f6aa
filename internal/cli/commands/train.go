package commands

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/leapml/internal/cli/output"
	"github.com/leapstack-labs/leapml/pkg/core"
	"github.com/spf13/cobra"
)

// NewTrainCommand creates the train command.
func NewTrainCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train <experiment-id>",
		Short: "Train a pending experiment and wait for the result",
		Long: `Train a pending experiment in this process and wait until it completes
or fails. The metrics, model and transformation bundle are stored with the
experiment. A failed run exits non-zero and keeps its error message.`,
		Example: `  # Train and show the metrics
  leapml train 3

  # Train and keep the full result as JSON
  leapml train 3 -o json > result.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(cmd, args[0])
		},
	}
	return cmd
}

func runTrain(cmd *cobra.Command, arg string) error {
	id, err := parseID("experiment", arg)
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

	ctx, cancel := context.WithCancel(cmd.Context())
	runErr := make(chan error, 1)
	go func() {
		runErr <- eng.Run(ctx)
	}()
	defer func() {
		cancel()
		<-runErr
	}()

	if r.EffectiveMode() == output.ModeText {
		r.Muted(fmt.Sprintf("Training experiment %d...", id))
	}
	cmdCtx.Logger.Debug("training started", "experiment_id", id)

	exp, err := eng.TrainAndWait(ctx, id)
	if err != nil {
		return err
	}
	if err := renderExperiment(r, exp); err != nil {
		return err
	}
	if exp.Status == core.ExperimentFailed {
		return fmt.Errorf("training failed: %s", exp.ErrorMessage)
	}
	return nil
}
