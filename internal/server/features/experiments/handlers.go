package experiments

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/leapml/internal/engine"
	"github.com/leapstack-labs/leapml/internal/ml"
	"github.com/leapstack-labs/leapml/internal/server/features/common"
	"github.com/leapstack-labs/leapml/internal/server/notifier"
	"github.com/leapstack-labs/leapml/pkg/core"
)

// Handlers provides HTTP handlers for the experiment feature.
type Handlers struct {
	engine   *engine.Engine
	notifier *notifier.Notifier[int64]
	logger   *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(eng *engine.Engine, notify *notifier.Notifier[int64], logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handlers{engine: eng, notifier: notify, logger: logger}
}

func (h *Handlers) fail(w http.ResponseWriter, err error) {
	common.WriteError(w, h.logger, err)
}

// List returns experiments newest first, filtered by the dataset_id query
// parameter when present.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	var datasetID int64
	if raw := r.URL.Query().Get("dataset_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			h.fail(w, core.Errorf(core.CategoryInvalidArgument, "invalid dataset_id: %q", raw))
			return
		}
		datasetID = id
	}
	all, err := h.engine.ListExperiments(r.Context(), datasetID)
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]Experiment, len(all))
	for i, exp := range all {
		out[i] = newExperiment(exp)
	}
	common.WriteJSON(w, http.StatusOK, out)
}

// Create stores a pending experiment.
func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	var req engine.ExperimentRequest
	if err := common.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, err)
		return
	}
	exp, err := h.engine.CreateExperiment(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	common.WriteJSON(w, http.StatusCreated, newExperiment(exp))
}

// Get returns one experiment.
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	id, err := common.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	exp, err := h.engine.GetExperiment(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, newExperiment(exp))
}

// Train queues a pending experiment and answers once it is training.
func (h *Handlers) Train(w http.ResponseWriter, r *http.Request) {
	id, err := common.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	task, err := h.engine.StartTraining(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	common.WriteJSON(w, http.StatusAccepted, trainResponse{ID: id, Status: task.Status()})
}

// Events streams the status of an experiment as datastar signals. The
// current status is sent first; the stream ends after a terminal status.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	id, err := common.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}

	// Subscribe before the first read so no transition is missed.
	updates := h.notifier.Subscribe(id)
	defer h.notifier.Unsubscribe(updates)

	exp, err := h.engine.GetExperiment(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}

	sse := datastar.NewSSE(w, r)
	last := exp.Status
	if err := sse.MarshalAndPatchSignals(signalsOf(exp)); err != nil {
		return
	}

	ctx := r.Context()
	for !last.IsTerminal() {
		select {
		case <-ctx.Done():
			return
		case <-updates:
			exp, err := h.engine.GetExperiment(ctx, id)
			if err != nil {
				_ = sse.ConsoleError(err)
				continue
			}
			if exp.Status == last {
				continue
			}
			last = exp.Status
			if err := sse.MarshalAndPatchSignals(signalsOf(exp)); err != nil {
				return
			}
		}
	}
}

func signalsOf(exp *core.Experiment) statusSignals {
	return statusSignals{ExperimentID: exp.ID, Status: exp.Status, ErrorMessage: exp.ErrorMessage}
}

// Predict runs a completed experiment's model over the rows in "data".
func (h *Handlers) Predict(w http.ResponseWriter, r *http.Request) {
	id, err := common.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	var req predictRequest
	if err := common.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, err)
		return
	}
	p, err := h.engine.Predict(r.Context(), id, req.Data)
	if err != nil {
		h.fail(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, p)
}

// DownloadModel sends the model blob of a completed experiment.
func (h *Handlers) DownloadModel(w http.ResponseWriter, r *http.Request) {
	id, err := common.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	name, path, err := h.engine.ModelArtifact(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	common.Attachment(w, name)
	http.ServeFile(w, r, path)
}

// Algorithms returns the algorithm catalog.
func (h *Handlers) Algorithms(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSON(w, http.StatusOK, h.engine.Algorithms())
}

// AlgorithmParams returns the hyperparameter ranges of one algorithm.
func (h *Handlers) AlgorithmParams(w http.ResponseWriter, r *http.Request) {
	alg := chi.URLParam(r, "algorithm")
	params, err := h.engine.AlgorithmParams(alg)
	if err != nil {
		h.fail(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, paramsResponse{Algorithm: ml.Algorithm(alg), Params: params})
}
