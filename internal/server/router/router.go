// Package router sets up HTTP routes for the API server.
package router

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/leapml/internal/engine"
	datasetsFeature "github.com/leapstack-labs/leapml/internal/server/features/datasets"
	experimentsFeature "github.com/leapstack-labs/leapml/internal/server/features/experiments"
	healthFeature "github.com/leapstack-labs/leapml/internal/server/features/health"
	"github.com/leapstack-labs/leapml/internal/server/notifier"
)

// SetupRoutes configures all routes for the API server.
func SetupRoutes(
	router chi.Router,
	eng *engine.Engine,
	notify *notifier.Notifier[int64],
	version string,
	logger *slog.Logger,
) error {
	if err := healthFeature.SetupRoutes(router, version); err != nil {
		return err
	}

	if err := datasetsFeature.SetupRoutes(router, eng, logger); err != nil {
		return err
	}

	if err := experimentsFeature.SetupRoutes(router, eng, notify, logger); err != nil {
		return err
	}

	return nil
}
