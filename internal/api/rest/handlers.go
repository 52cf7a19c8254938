package rest

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/davidleathers/fraud-scoring-service/internal/service/model"
	"github.com/davidleathers/fraud-scoring-service/internal/service/scoring"
)

// ModelManager is the part of the model registry the API drives.
// *model.Registry satisfies it.
type ModelManager interface {
	Reload(ctx context.Context) (*model.Artifacts, error)
	IsReady() bool
}

// Metrics receives transport-level measurements
type Metrics interface {
	ObserveHTTPRequest(method, route string, status int, duration time.Duration)
	ObservePrediction(isFraud bool)
	ObserveReload(success bool)
}

type noopMetrics struct{}

func (noopMetrics) ObserveHTTPRequest(string, string, int, time.Duration) {}
func (noopMetrics) ObservePrediction(bool)                                {}
func (noopMetrics) ObserveReload(bool)                                    {}

// Handler serves the scoring API
type Handler struct {
	scoring      scoring.Service
	models       ModelManager
	metrics      Metrics
	logger       *slog.Logger
	maxBodyBytes int64
}

// NewHandler creates the API handler
func NewHandler(svc scoring.Service, models ModelManager, metrics Metrics, logger *slog.Logger, maxBodyBytes int64) *Handler {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		scoring:      svc,
		models:       models,
		metrics:      metrics,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
	}
}

// handlePredict scores one transaction
func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeTransaction(w, r, h.maxBodyBytes)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.scoring.Score(r.Context(), payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.metrics.ObservePrediction(result.IsFraud)
	w.Header().Set(HeaderModelGeneration, result.ModelGeneration)
	writeJSON(w, http.StatusOK, result)
}

// handleModelInfo describes the published model
func (h *Handler) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	info := h.scoring.ModelInfo()
	if info.ModelLoaded {
		w.Header().Set(HeaderModelGeneration, info.Generation)
	}
	writeJSON(w, http.StatusOK, info)
}

// handleReload re-reads the artifact store. A failed reload keeps serving
// the previous model.
func (h *Handler) handleReload(w http.ResponseWriter, r *http.Request) {
	a, err := h.models.Reload(r.Context())
	h.metrics.ObserveReload(err == nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "model reload failed, keeping current model", "error", err)
		writeError(w, r, err)
		return
	}

	w.Header().Set(HeaderModelGeneration, a.Generation)
	writeJSON(w, http.StatusOK, ReloadResponse{
		Status:     "reloaded",
		Generation: a.Generation,
		Kind:       a.Classifier.Kind(),
		Source:     a.Source,
		ReloadedAt: time.Now().UTC(),
	})
}
