package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/leapml/internal/cli/output"
	"github.com/spf13/cobra"
)

// InitResult is the structured output of the init command.
type InitResult struct {
	Directory string   `json:"directory"`
	Template  string   `json:"template"`
	Files     []string `json:"files"`
}

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var example bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new LeapML project",
		Long: `Initialize a new LeapML project with a default configuration.

This creates:
  - leapml.yaml configuration file
  - data/ directory for dataset files and versions
  - .gitignore keeping the state database and trained models out of git

Use --example to also add a small iris sample with a few missing values
and a config whose comments walk through a full training run.`,
		Example: `  # Initialize in current directory
  leapml init

  # Initialize with the iris example
  leapml init --example

  # Initialize in a new directory
  leapml init my-project --example

  # Force overwrite existing config
  leapml init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			template := "minimal"
			if example {
				template = "example"
			}
			r := NewCommandContextWithoutEngine(cmd).Renderer
			return runInit(r, dir, template, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	cmd.Flags().BoolVar(&example, "example", false, "Add the iris sample dataset")

	return cmd
}

func runInit(r *output.Renderer, dir, template string, force bool) error {
	if dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, "leapml.yaml")
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("leapml.yaml already exists. Use --force to overwrite")
	}

	if err := copyTemplate(template, dir, force); err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	files, err := listTemplateFiles(template)
	if err != nil {
		return err
	}
	result := InitResult{Directory: dir, Template: template, Files: files}

	return r.Render(result, func() {
		groups := groupTemplateFiles(files)
		r.Header(2, "Configuration")
		for _, f := range groups["config"] {
			r.Success(f)
		}
		if len(groups["samples"]) > 0 {
			r.Println("")
			r.Header(2, "Samples")
			for _, f := range groups["samples"] {
				r.Success(f)
			}
		}

		r.Println("")
		r.Success("LeapML project initialized!")
		r.Println("")
		r.Println("Next steps:")
		if template == "example" {
			r.Println("  leapml dataset add samples/iris.csv   Register the sample")
			r.Println("  leapml profile 1                      Check its data quality")
			r.Println("  leapml algorithms                     Pick an algorithm to train")
		} else {
			r.Println("  leapml dataset add <file>   Register a CSV, JSON or ARFF file")
			r.Println("  leapml profile <id>         Check its data quality")
			r.Println("  leapml serve                Start the HTTP API")
		}
	})
}
