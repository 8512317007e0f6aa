package common

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapml/pkg/core"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		cat  core.Category
		want int
	}{
		{core.CategoryMissingColumns, http.StatusBadRequest},
		{core.CategoryNonNumericColumn, http.StatusBadRequest},
		{core.CategoryUnsupportedAlgorithm, http.StatusBadRequest},
		{core.CategoryInvalidArgument, http.StatusBadRequest},
		{core.CategoryNotFound, http.StatusNotFound},
		{core.CategoryAlreadyInProgress, http.StatusConflict},
		{core.CategoryAlreadyFinished, http.StatusConflict},
		{core.CategoryStorageUnavailable, http.StatusServiceUnavailable},
		{core.CategoryInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.cat), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.cat))
		})
	}
}

func TestWriteError(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	rec := httptest.NewRecorder()
	WriteError(rec, logger, core.MissingColumnsError([]string{"age"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":{"category":"missing_columns","detail":"missing columns: age"}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	WriteError(rec, logger, errors.New("disk exploded at /secret/path"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "/secret/path")
}

func TestDecodeJSON(t *testing.T) {
	var v map[string]any
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"n": 1.5}`))
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), req, &v))
	assert.Equal(t, json.Number("1.5"), v["n"])

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	assert.NoError(t, DecodeJSON(httptest.NewRecorder(), req, &v))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	err := DecodeJSON(httptest.NewRecorder(), req, &v)
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
}
