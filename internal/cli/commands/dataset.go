package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/leapstack-labs/leapml/internal/cli/output"
	"github.com/leapstack-labs/leapml/internal/engine"
	"github.com/leapstack-labs/leapml/pkg/core"
	"github.com/spf13/cobra"
)

// NewDatasetCommand creates the dataset command group.
func NewDatasetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dataset",
		Aliases: []string{"datasets", "ds"},
		Short:   "Register and inspect datasets",
		Long: `Register CSV, JSON and ARFF files as datasets and inspect them.

Every dataset keeps a history of versions. Transformations that create a
new version repoint the dataset at it; 'dataset activate' moves it back.`,
	}

	cmd.AddCommand(
		newDatasetAddCommand(),
		newDatasetListCommand(),
		newDatasetShowCommand(),
		newDatasetVersionsCommand(),
		newDatasetActivateCommand(),
		newDatasetPreviewCommand(),
	)
	return cmd
}

func newDatasetAddCommand() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Register a dataset file, or every dataset file in a directory",
		Example: `  # Register a CSV under its file name
  leapml dataset add ./iris.csv

  # Register with an explicit name
  leapml dataset add ./iris.csv --name "Iris flowers"

  # Register every csv, json and arff file in a directory
  leapml dataset add ./samples`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			var added []*core.Dataset
			if info, statErr := os.Stat(args[0]); statErr == nil && info.IsDir() {
				if name != "" {
					return core.Errorf(core.CategoryInvalidArgument, "--name cannot be used with a directory")
				}
				added, err = cmdCtx.Engine.ImportDir(cmd.Context(), args[0])
			} else {
				var ds *core.Dataset
				ds, err = cmdCtx.Engine.AddDataset(cmd.Context(), name, args[0])
				added = append(added, ds)
			}
			if err != nil {
				return err
			}
			return renderDatasets(cmdCtx.Renderer, added, "Registered datasets")
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Dataset name (default: file name without extension)")
	return cmd
}

func newDatasetListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered datasets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			list, err := cmdCtx.Engine.ListDatasets(cmd.Context())
			if err != nil {
				return err
			}
			return renderDatasets(cmdCtx.Renderer, list, fmt.Sprintf("Datasets (%d total)", len(list)))
		},
	}
}

func renderDatasets(r *output.Renderer, list []*core.Dataset, title string) error {
	infos := make([]output.DatasetInfo, len(list))
	for i, ds := range list {
		infos[i] = output.NewDatasetInfo(ds)
	}
	return r.Render(infos, func() {
		r.Header(1, title)
		rows := make([][]any, len(list))
		for i, ds := range list {
			rows[i] = []any{ds.ID, ds.Name, ds.Format, ds.RowsCount, ds.ColumnsCount, ds.Status}
		}
		r.Table([]string{"ID", "Name", "Format", "Rows", "Columns", "Status"}, rows)
	})
}

func newDatasetShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <dataset-id>",
		Short: "Show a dataset record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("dataset", args[0])
			if err != nil {
				return err
			}
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ds, err := cmdCtx.Engine.GetDataset(cmd.Context(), id)
			if err != nil {
				return err
			}
			r := cmdCtx.Renderer
			return r.Render(output.NewDatasetInfo(ds), func() {
				r.Header(1, fmt.Sprintf("Dataset %d: %s", ds.ID, ds.Name))
				r.KeyValues([][2]string{
					{"File", ds.FilePath},
					{"Format", string(ds.Format)},
					{"Size", fmt.Sprintf("%d bytes", ds.FileSize)},
					{"Shape", fmt.Sprintf("%d rows x %d columns", ds.RowsCount, ds.ColumnsCount)},
					{"Columns", strings.Join(ds.Columns, ", ")},
					{"Status", ds.Status},
					{"Updated", ds.UpdatedAt.Format("2006-01-02 15:04:05")},
				})
			})
		},
	}
}

func newDatasetVersionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "versions <dataset-id>",
		Short: "List the versions of a dataset, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("dataset", args[0])
			if err != nil {
				return err
			}
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			versions, err := cmdCtx.Engine.ListVersions(cmd.Context(), id)
			if err != nil {
				return err
			}
			infos := make([]output.VersionInfo, len(versions))
			for i, v := range versions {
				infos[i] = output.NewVersionInfo(v)
			}

			r := cmdCtx.Renderer
			return r.Render(infos, func() {
				r.Header(1, fmt.Sprintf("Versions of dataset %d", id))
				rows := make([][]any, len(versions))
				for i, v := range versions {
					active := ""
					if v.IsActive {
						active = "*"
					}
					rows[i] = []any{v.ID, v.VersionNumber, active, v.Format, v.Description, v.CreatedAt.Format("2006-01-02 15:04")}
				}
				r.Table([]string{"ID", "Version", "Active", "Format", "Description", "Created"}, rows)
			})
		},
	}
}

func newDatasetActivateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "activate <dataset-id> <version-id>",
		Short: "Make a version the active file of its dataset",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			datasetID, err := parseID("dataset", args[0])
			if err != nil {
				return err
			}
			versionID, err := parseID("version", args[1])
			if err != nil {
				return err
			}
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			v, err := cmdCtx.Engine.ActivateVersion(cmd.Context(), datasetID, versionID)
			if err != nil {
				return err
			}
			r := cmdCtx.Renderer
			return r.Render(output.NewVersionInfo(v), func() {
				r.Success(fmt.Sprintf("Version %d (%s) is now active", v.VersionNumber, v.Description))
			})
		},
	}
}

func newDatasetPreviewCommand() *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "preview <dataset-id>",
		Short: "Show a page of rows",
		Example: `  # First 20 rows
  leapml dataset preview 1 --limit 20

  # Rows 100 to 149 as JSON
  leapml dataset preview 1 --offset 100 --limit 50 -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("dataset", args[0])
			if err != nil {
				return err
			}
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			page, err := cmdCtx.Engine.PreviewDataset(cmd.Context(), id, limit, offset)
			if err != nil {
				return err
			}
			r := cmdCtx.Renderer
			return r.Render(page, func() {
				renderRecords(r, page.Columns, page.Data)
				r.Muted(fmt.Sprintf("rows %d-%d of %d", page.Offset+1, page.Offset+len(page.Data), page.TotalRows))
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", engine.DefaultPreviewLimit, "Number of rows")
	cmd.Flags().IntVar(&offset, "offset", 0, "Rows to skip")
	return cmd
}

// renderRecords writes records as a table with columns in order.
func renderRecords(r *output.Renderer, columns []string, records []map[string]any) {
	rows := make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, len(columns))
		for j, c := range columns {
			row[j] = formatCell(rec[c])
		}
		rows[i] = row
	}
	r.Table(columns, rows)
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return formatFloat(x)
	default:
		return fmt.Sprint(v)
	}
}
