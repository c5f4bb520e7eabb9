package mastery

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/exambank/scoring/internal/models"
)

type Handler struct {
	aggregator *Aggregator
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{aggregator: aggregator}
}

func (h *Handler) GetMastery(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	studentID, err := strconv.ParseInt(vars["studentID"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid student id"})
		return
	}

	contextType := models.ContextType(vars["contextType"])
	if !models.ValidContextTypes[contextType] {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid context type"})
		return
	}
	key := models.ContextKey{Type: contextType, Value: vars["contextValue"]}

	entry, err := h.aggregator.GetMastery(r.Context(), studentID, key)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "No attempts recorded for this context"})
			return
		}
		log.Printf("WARN: get mastery failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) ListMastery(w http.ResponseWriter, r *http.Request) {
	studentID, err := strconv.ParseInt(mux.Vars(r)["studentID"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid student id"})
		return
	}

	resp, err := h.aggregator.ListMastery(r.Context(), studentID)
	if err != nil {
		log.Printf("WARN: list mastery failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetMasterySummary(w http.ResponseWriter, r *http.Request) {
	studentID, err := strconv.ParseInt(mux.Vars(r)["studentID"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid student id"})
		return
	}

	resp, err := h.aggregator.GetMasterySummary(r.Context(), studentID)
	if err != nil {
		log.Printf("WARN: mastery summary failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
