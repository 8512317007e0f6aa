// Package experiments serves experiment creation, training, status events
// and prediction.
package experiments

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/leapml/internal/engine"
	"github.com/leapstack-labs/leapml/internal/server/notifier"
)

// SetupRoutes registers the experiment feature routes.
func SetupRoutes(
	router chi.Router,
	eng *engine.Engine,
	notify *notifier.Notifier[int64],
	logger *slog.Logger,
) error {
	handlers := NewHandlers(eng, notify, logger)

	router.Route("/api/experiments", func(r chi.Router) {
		r.Get("/", handlers.List)
		r.Post("/", handlers.Create)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", handlers.Get)
			r.Post("/train", handlers.Train)
			r.Get("/events", handlers.Events) // SSE status stream
			r.Post("/predict", handlers.Predict)
			r.Get("/model", handlers.DownloadModel)
		})
	})

	router.Route("/api/algorithms", func(r chi.Router) {
		r.Get("/", handlers.Algorithms)
		r.Get("/{algorithm}/params", handlers.AlgorithmParams)
	})

	return nil
}
