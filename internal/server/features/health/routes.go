// Package health serves the service status endpoint.
package health

import (
	"github.com/go-chi/chi/v5"
)

// SetupRoutes configures routes for the health feature.
func SetupRoutes(router chi.Router, version string) error {
	handlers := NewHandlers(version)

	router.Get("/", handlers.Status)

	return nil
}
