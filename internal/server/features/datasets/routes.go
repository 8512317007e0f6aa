// Package datasets serves dataset registration, inspection, cleaning and
// versioning.
package datasets

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/leapml/internal/engine"
)

// SetupRoutes registers the dataset feature routes.
func SetupRoutes(router chi.Router, eng *engine.Engine, logger *slog.Logger) error {
	handlers := NewHandlers(eng, logger)

	router.Route("/api/datasets", func(r chi.Router) {
		r.Get("/", handlers.List)
		r.Post("/", handlers.Upload)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", handlers.Get)
			r.Get("/preview", handlers.Preview)
			r.Post("/statistics", handlers.Statistics)
			r.Post("/analyze", handlers.Analyze)
			r.Post("/preprocess", handlers.Preprocess)
			r.Post("/normalize", handlers.Normalize)
			r.Post("/normalize/preview", handlers.PreviewNormalize)
			r.Post("/encode", handlers.Encode)
			r.Post("/encode/preview", handlers.PreviewEncode)
			r.Get("/versions", handlers.Versions)
			r.Post("/versions/{versionID}/activate", handlers.Activate)
		})
	})

	return nil
}
