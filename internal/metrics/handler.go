package metrics

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/exambank/scoring/internal/models"
)

type Handler struct {
	calculator *Calculator
}

func NewHandler(calculator *Calculator) *Handler {
	return &Handler{calculator: calculator}
}

func (h *Handler) GetDifficulty(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	contextType := models.ContextType(vars["contextType"])
	if !models.ValidContextTypes[contextType] {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid context type"})
		return
	}
	key := models.ContextKey{Type: contextType, Value: vars["contextValue"]}

	metric, err := h.calculator.GetMetric(r.Context(), key)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "No difficulty snapshot for this context"})
			return
		}
		log.Printf("WARN: get difficulty failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, metric)
}

func (h *Handler) ListDifficulty(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.calculator.ListMetrics(r.Context())
	if err != nil {
		log.Printf("WARN: list difficulty failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
		return
	}
	if metrics == nil {
		metrics = []models.ContextDifficultyMetric{}
	}
	writeJSON(w, http.StatusOK, metrics)
}

type recomputeRequest struct {
	ContextType  *string    `json:"context_type,omitempty"`
	ContextValue *string    `json:"context_value,omitempty"`
	PeriodStart  *time.Time `json:"period_start,omitempty"`
	PeriodEnd    *time.Time `json:"period_end,omitempty"`
}

type recomputeResponse struct {
	Recomputed int                             `json:"recomputed"`
	Metric     *models.ContextDifficultyMetric `json:"metric,omitempty"`
}

// Recompute triggers an administrative batch run: one context when the
// request names one, otherwise every context active in the period.
func (h *Handler) Recompute(w http.ResponseWriter, r *http.Request) {
	var req recomputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if (req.ContextType != nil) != (req.ContextValue != nil) {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "context_type and context_value must be supplied together"})
		return
	}

	period := h.calculator.currentPeriod()
	if req.PeriodStart != nil && req.PeriodEnd != nil {
		if !req.PeriodEnd.After(*req.PeriodStart) {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "period_end must be after period_start"})
			return
		}
		period = models.Period{Start: *req.PeriodStart, End: *req.PeriodEnd}
	}

	if req.ContextType != nil && req.ContextValue != nil {
		contextType := models.ContextType(*req.ContextType)
		if !models.ValidContextTypes[contextType] {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid context type"})
			return
		}
		key := models.ContextKey{Type: contextType, Value: *req.ContextValue}
		metric, err := h.calculator.Recompute(r.Context(), key, period)
		if err != nil {
			if errors.Is(err, models.ErrInsufficientData) {
				writeJSON(w, http.StatusOK, recomputeResponse{Recomputed: 0})
				return
			}
			log.Printf("WARN: recompute failed: %v", err)
			writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
			return
		}
		writeJSON(w, http.StatusOK, recomputeResponse{Recomputed: 1, Metric: metric})
		return
	}

	n, err := h.calculator.RecomputeAll(r.Context(), period)
	if err != nil {
		log.Printf("WARN: recompute-all failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, recomputeResponse{Recomputed: n})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
