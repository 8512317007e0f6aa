// Package common provides the JSON plumbing shared by the API features.
package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/leapml/pkg/core"
)

// MaxBodyBytes bounds JSON request bodies.
const MaxBodyBytes = 8 << 20

// ErrorBody is the payload of every failed request.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail names the failure category and describes it.
type ErrorDetail struct {
	Category core.Category `json:"category"`
	Detail   string        `json:"detail"`
}

// StatusFor maps an error category to an HTTP status.
func StatusFor(cat core.Category) int {
	switch cat {
	case core.CategoryNotFound:
		return http.StatusNotFound
	case core.CategoryAlreadyInProgress, core.CategoryAlreadyFinished:
		return http.StatusConflict
	case core.CategoryStorageUnavailable:
		return http.StatusServiceUnavailable
	case core.CategoryInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes err as an ErrorBody. Uncategorized errors are logged and
// reported without their detail.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error) {
	cat := core.CategoryOf(err)
	detail := err.Error()
	if cat == core.CategoryInternal {
		logger.Error("request failed", "error", err)
		detail = "internal error"
	}
	WriteJSON(w, StatusFor(cat), ErrorBody{Error: ErrorDetail{Category: cat, Detail: detail}})
}

// DecodeJSON decodes the request body into v. Numbers are kept as
// json.Number inside untyped values. An empty body leaves v untouched.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return core.Wrap(core.CategoryInvalidArgument, err, "invalid request body")
	}
	return nil
}

// IDParam parses a positive integer URL parameter.
func IDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.Errorf(core.CategoryInvalidArgument, "invalid %s: %q", name, raw)
	}
	return id, nil
}

// IntQuery parses an optional integer query parameter.
func IntQuery(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, core.Errorf(core.CategoryInvalidArgument, "invalid %s: %q", name, raw)
	}
	return n, nil
}

// Attachment sets the download headers for a file named name.
func Attachment(w http.ResponseWriter, name string) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
}
