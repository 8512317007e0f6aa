package datasets

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapml/internal/server/features"
)

const flowers = "size,petals,color,species\n1.5,0,red,a\n,1,blue,b\n3.5,2,red,a\n4.5,3,blue,b\n"

// =============================================================================
// Test Setup Helpers
// =============================================================================

func setupRouter(t *testing.T) (chi.Router, *features.TestFixture) {
	t.Helper()
	fixture := features.SetupTestFixture(t)
	r := chi.NewRouter()
	require.NoError(t, SetupRoutes(r, fixture.Engine, nil))
	return r, fixture
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorCategory(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode[map[string]map[string]string](t, rec)
	return body["error"]["category"]
}

// =============================================================================
// Registration
// =============================================================================

func TestUpload(t *testing.T) {
	r, _ := setupRouter(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("name", "Flowers"))
	part, err := mw.CreateFormFile("file", "flowers.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(flowers))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/datasets", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ds := decode[Dataset](t, rec)
	assert.Equal(t, "Flowers", ds.Name)
	assert.Equal(t, "flowers.csv", ds.Filename)
	assert.Equal(t, 4, ds.RowsCount)
	assert.Equal(t, []string{"size", "petals", "color", "species"}, ds.Columns)
	assert.NotEmpty(t, ds.ColumnsInfo)

	rec = do(t, r, http.MethodGet, "/api/datasets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]Dataset](t, rec), 1)
}

func TestUpload_MissingFile(t *testing.T) {
	r, _ := setupRouter(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("name", "empty"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/datasets", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_argument", errorCategory(t, rec))
}

func TestGet_Errors(t *testing.T) {
	r, _ := setupRouter(t)

	tests := []struct {
		name         string
		path         string
		wantStatus   int
		wantCategory string
	}{
		{"unknown id", "/api/datasets/999", http.StatusNotFound, "not_found"},
		{"malformed id", "/api/datasets/abc", http.StatusBadRequest, "invalid_argument"},
		{"unknown versions", "/api/datasets/999/versions", http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, r, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCategory, errorCategory(t, rec))
		})
	}
}

// =============================================================================
// Inspection
// =============================================================================

func TestPreviewAndStatistics(t *testing.T) {
	r, fixture := setupRouter(t)
	ds := fixture.AddCSV("flowers", flowers)
	base := "/api/datasets/" + itoa(ds.ID)

	rec := do(t, r, http.MethodGet, base+"/preview?limit=2&offset=1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page := decode[map[string]any](t, rec)
	assert.Len(t, page["data"], 2)
	assert.EqualValues(t, 4, page["total_rows"])
	assert.Nil(t, page["data"].([]any)[0].(map[string]any)["size"], "missing cells are null")

	rec = do(t, r, http.MethodGet, base+"/preview?limit=ten", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPost, base+"/statistics", `{"columns":["size"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"missing_count":1`)

	rec = do(t, r, http.MethodPost, base+"/statistics", `{"columns":["weight"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_columns", errorCategory(t, rec))

	rec = do(t, r, http.MethodPost, base+"/analyze", `{"custom_missing_values":["blue"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	analysis := decode[map[string]any](t, rec)
	assert.Len(t, analysis["column_analyses"], 4)
	assert.Contains(t, rec.Body.String(), `"columns_with_custom_missing":1`)
}

// =============================================================================
// Cleaning and versions
// =============================================================================

func TestTransformsCreateVersions(t *testing.T) {
	r, fixture := setupRouter(t)
	ds := fixture.AddCSV("flowers", flowers)
	base := "/api/datasets/" + itoa(ds.ID)

	rec := do(t, r, http.MethodPost, base+"/preprocess",
		`{"column_name":"size","action":"fill_mean","create_new_version":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	pre := decode[map[string]any](t, rec)
	assert.Contains(t, pre["message"], "Filled 1 missing values with mean")
	assert.EqualValues(t, 2, pre["version"].(map[string]any)["version_number"])

	rec = do(t, r, http.MethodPost, base+"/normalize", `{"columns":["petals"],"method":"minmax"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	norm := decode[map[string]any](t, rec)
	assert.EqualValues(t, 3, norm["version"].(map[string]any)["version_number"])
	assert.Equal(t, "normalization", norm["normalization_info"].(map[string]any)["type"])

	rec = do(t, r, http.MethodPost, base+"/normalize", `{"columns":["petals"],"method":"log"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unsupported_method", errorCategory(t, rec))

	rec = do(t, r, http.MethodPost, base+"/encode/preview", `{"columns":["color"],"method":"one-hot"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"estimated_new_columns":2`)

	rec = do(t, r, http.MethodPost, base+"/encode", `{"columns":["color"],"method":"label_encoding"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, r, http.MethodGet, base+"/versions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	versions := decode[[]Version](t, rec)
	require.Len(t, versions, 4)
	assert.Equal(t, 4, versions[0].VersionNumber)
	assert.True(t, versions[0].IsActive)

	original := versions[3]
	rec = do(t, r, http.MethodPost, base+"/versions/"+itoa(original.ID)+"/activate", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[Version](t, rec).IsActive)

	rec = do(t, r, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, original.FilePath, decode[Dataset](t, rec).FilePath)

	rec = do(t, r, http.MethodPost, base+"/versions/999/activate", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreprocess_NonNumeric(t *testing.T) {
	r, fixture := setupRouter(t)
	ds := fixture.AddCSV("flowers", flowers)

	rec := do(t, r, http.MethodPost, "/api/datasets/"+itoa(ds.ID)+"/preprocess",
		`{"column_name":"color","action":"fill_median"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "non_numeric_column", errorCategory(t, rec))
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
