package datasets

import (
	"log/slog"
	"net/http"

	"github.com/leapstack-labs/leapml/internal/engine"
	"github.com/leapstack-labs/leapml/internal/server/features/common"
	"github.com/leapstack-labs/leapml/internal/transform"
	"github.com/leapstack-labs/leapml/pkg/core"
)

// maxUploadMemory is the part of a multipart upload held in memory.
const maxUploadMemory = 32 << 20

// Handlers provides HTTP handlers for the dataset feature.
type Handlers struct {
	engine *engine.Engine
	logger *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(eng *engine.Engine, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handlers{engine: eng, logger: logger}
}

func (h *Handlers) fail(w http.ResponseWriter, err error) {
	common.WriteError(w, h.logger, err)
}

// List returns every dataset.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	all, err := h.engine.ListDatasets(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]Dataset, len(all))
	for i, ds := range all {
		out[i] = newDataset(ds)
	}
	common.WriteJSON(w, http.StatusOK, out)
}

// Upload registers the multipart file field "file". The optional "name"
// field names the dataset.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		h.fail(w, core.Wrap(core.CategoryInvalidArgument, err, "invalid upload"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.fail(w, core.Wrap(core.CategoryInvalidArgument, err, "missing file"))
		return
	}
	defer func() { _ = file.Close() }()

	ds, err := h.engine.ImportDataset(r.Context(), r.FormValue("name"), header.Filename, file)
	if err != nil {
		h.fail(w, err)
		return
	}
	common.WriteJSON(w, http.StatusCreated, newDataset(ds))
}

// Get returns one dataset.
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	id, err := common.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	ds, err := h.engine.GetDataset(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, newDataset(ds))
}

// Preview returns a page of rows selected by the limit and offset query
// parameters.
func (h *Handlers) Preview(w http.ResponseWriter, r *http.Request) {
	id, err := common.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	limit, err := common.IntQuery(r, "limit", engine.DefaultPreviewLimit)
	if err != nil {
		h.fail(w, err)
		return
	}
	offset, err := common.IntQuery(r, "offset", 0)
	if err != nil {
		h.fail(w, err)
		return
	}
	page, err := h.engine.PreviewDataset(r.Context(), id, limit, offset)
	if err != nil {
		h.fail(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, page)
}

// Statistics returns the basic info of the requested columns.
func (h *Handlers) Statistics(w http.ResponseWriter, r *http.Request) {
	id, err := common.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	var req statisticsRequest
	if err := common.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, err)
		return
	}
	stats, err := h.engine.DatasetStatistics(r.Context(), id, req.Columns)
	if err != nil {
		h.fail(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, map[string]any{"dataset_id": id, "statistics": stats})
}

// Analyze profiles the dataset.
func (h *Handlers) Analyze(w http.ResponseWriter, r *http.Request) {
	id, err := common.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	var req engine.AnalyzeRequest
	if err := common.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, err)
		return
	}
	analysis, err := h.engine.AnalyzeDataset(r.Context(), id, req)
	if err != nil {
		h.fail(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, analysis)
}

// Preprocess applies one remediation action.
func (h *Handlers) Preprocess(w http.ResponseWriter, r *http.Request) {
	id, err := common.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	var req engine.PreprocessRequest
	if err := common.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, err)
		return
	}
	out, err := h.engine.PreprocessDataset(r.Context(), id, req)
	if err != nil {
		h.fail(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, preprocessResponse{Result: out.Result, written: newWritten(out.Written)})
}

// Normalize scales columns into a new version.
func (h *Handlers) Normalize(w http.ResponseWriter, r *http.Request) {
	id, req, ok := h.normalizeRequest(w, r)
	if !ok {
		return
	}
	out, err := h.engine.NormalizeDataset(r.Context(), id, req)
	if err != nil {
		h.fail(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, normalizeResponse{Info: out.Info, written: newWritten(out.Written)})
}

// PreviewNormalize projects a normalization over a row sample sized by the
// sample_size query parameter.
func (h *Handlers) PreviewNormalize(w http.ResponseWriter, r *http.Request) {
	id, req, ok := h.normalizeRequest(w, r)
	if !ok {
		return
	}
	size, err := common.IntQuery(r, "sample_size", transform.DefaultPreviewSize)
	if err != nil {
		h.fail(w, err)
		return
	}
	preview, err := h.engine.PreviewNormalize(r.Context(), id, req, size)
	if err != nil {
		h.fail(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, preview)
}

func (h *Handlers) normalizeRequest(w http.ResponseWriter, r *http.Request) (int64, engine.NormalizeRequest, bool) {
	id, err := common.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return 0, engine.NormalizeRequest{}, false
	}
	var body normalizeRequest
	if err := common.DecodeJSON(w, r, &body); err != nil {
		h.fail(w, err)
		return 0, engine.NormalizeRequest{}, false
	}
	req, err := body.toEngine()
	if err != nil {
		h.fail(w, err)
		return 0, engine.NormalizeRequest{}, false
	}
	return id, req, true
}

// Encode encodes columns into a new version.
func (h *Handlers) Encode(w http.ResponseWriter, r *http.Request) {
	id, req, ok := h.encodeRequest(w, r)
	if !ok {
		return
	}
	out, err := h.engine.EncodeDataset(r.Context(), id, req)
	if err != nil {
		h.fail(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, encodeResponse{Info: out.Info, written: newWritten(out.Written)})
}

// PreviewEncode projects an encoding.
func (h *Handlers) PreviewEncode(w http.ResponseWriter, r *http.Request) {
	id, req, ok := h.encodeRequest(w, r)
	if !ok {
		return
	}
	preview, err := h.engine.PreviewEncode(r.Context(), id, req)
	if err != nil {
		h.fail(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, preview)
}

func (h *Handlers) encodeRequest(w http.ResponseWriter, r *http.Request) (int64, engine.EncodeRequest, bool) {
	id, err := common.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return 0, engine.EncodeRequest{}, false
	}
	var body encodeRequest
	if err := common.DecodeJSON(w, r, &body); err != nil {
		h.fail(w, err)
		return 0, engine.EncodeRequest{}, false
	}
	req, err := body.toEngine()
	if err != nil {
		h.fail(w, err)
		return 0, engine.EncodeRequest{}, false
	}
	return id, req, true
}

// Versions lists the versions of a dataset, newest first.
func (h *Handlers) Versions(w http.ResponseWriter, r *http.Request) {
	id, err := common.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	versions, err := h.engine.ListVersions(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]*Version, len(versions))
	for i, v := range versions {
		out[i] = newVersion(v)
	}
	common.WriteJSON(w, http.StatusOK, out)
}

// Activate makes a version the active one.
func (h *Handlers) Activate(w http.ResponseWriter, r *http.Request) {
	id, err := common.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	versionID, err := common.IDParam(r, "versionID")
	if err != nil {
		h.fail(w, err)
		return
	}
	v, err := h.engine.ActivateVersion(r.Context(), id, versionID)
	if err != nil {
		h.fail(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, newVersion(v))
}
