package commands

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/leapstack-labs/leapml/internal/server"
	"github.com/leapstack-labs/leapml/internal/server/notifier"
	"github.com/leapstack-labs/leapml/pkg/core"
	"github.com/spf13/cobra"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Host  string
	Port  int
	Watch bool
	Open  bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(version string) *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the LeapML HTTP API",
		Long: `Start the HTTP API together with the training workers.

The API exposes dataset upload, profiling, preprocessing, versioning,
experiments, training, prediction and model download under /api.
Training status changes stream over server-sent events at
/api/experiments/{id}/events.`,
		Example: `  # Start on the configured port (default: 8765)
  leapml serve

  # Start on a custom port without watching the data directory
  leapml serve --port 3000 --watch=false`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts, version)
		},
	}

	cmd.Flags().StringVar(&opts.Host, "host", "", "Host to bind (default: localhost)")
	cmd.Flags().IntVar(&opts.Port, "port", 0, "Port to serve on (default: 8765)")
	cmd.Flags().BoolVar(&opts.Watch, "watch", true, "Invalidate cached datasets when files change")
	cmd.Flags().BoolVar(&opts.Open, "open", false, "Open the API root in a browser")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions, version string) error {
	cfg := getConfig()

	// CLI flags override config file
	host := cfg.Server.Host
	if opts.Host != "" {
		host = opts.Host
	}
	port := cfg.Server.Port
	if opts.Port != 0 {
		port = opts.Port
	}
	watch := cfg.Server.Watch
	if cmd.Flags().Changed("watch") {
		watch = opts.Watch
	}

	notify := notifier.New[int64]()
	cmdCtx, cleanup, err := newCommandContext(cmd, engineOptions{
		onStatus: func(id int64, _ core.ExperimentStatus) { notify.Notify(id) },
		watch:    watch,
	})
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	defer cleanup()

	srv := server.NewServer(server.Config{
		Engine:   cmdCtx.Engine,
		Notifier: notify,
		Host:     host,
		Port:     port,
		Version:  version,
		Logger:   cmdCtx.Logger,
	})

	url := fmt.Sprintf("http://%s:%d", host, port)
	if opts.Open {
		go openBrowser(url)
	}

	r := cmdCtx.Renderer
	r.Printf("Serving LeapML API on %s\n", url)
	r.Muted("Press Ctrl+C to stop")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// openBrowser opens the default browser to the specified URL.
func openBrowser(url string) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(context.Background(), "open", url)
	case "linux":
		cmd = exec.CommandContext(context.Background(), "xdg-open", url)
	case "windows":
		cmd = exec.CommandContext(context.Background(), "rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return
	}

	_ = cmd.Start()
}
