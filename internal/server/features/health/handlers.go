package health

import (
	"net/http"

	"github.com/leapstack-labs/leapml/internal/server/features/common"
	"github.com/leapstack-labs/leapml/pkg/core"
)

// Handlers provides HTTP handlers for the health feature.
type Handlers struct {
	version string
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(version string) *Handlers {
	return &Handlers{version: version}
}

// StatusResponse reports that the service is up.
type StatusResponse struct {
	Status           string        `json:"status"`
	Version          string        `json:"version"`
	SupportedFormats []core.Format `json:"supported_formats"`
}

// Status returns the service status.
func (h *Handlers) Status(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSON(w, http.StatusOK, StatusResponse{
		Status:           "ok",
		Version:          h.version,
		SupportedFormats: core.SupportedFormats,
	})
}
