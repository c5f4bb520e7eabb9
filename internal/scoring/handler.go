package scoring

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/exambank/scoring/internal/models"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// getStudentID extracts the authenticated student ID from the request context.
func getStudentID(r *http.Request) (int64, bool) {
	sid, ok := r.Context().Value("student_id").(int64)
	return sid, ok
}

type scoreRequest struct {
	Parent        string                 `json:"parent"`
	SessionID     *int64                 `json:"session_id,omitempty"`
	AttemptNumber *int                   `json:"attempt_number,omitempty"`
	Responses     []models.ResponseTuple `json:"responses"`
}

func (h *Handler) ScoreSubmission(w http.ResponseWriter, r *http.Request) {
	studentID, ok := getStudentID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Unauthorized"})
		return
	}

	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	parent, err := models.ParseParentRef(req.Parent)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "parent must be 'question/{id}' or 'sub_question/{id}'"})
		return
	}

	resp := &models.StudentResponse{
		StudentID:     studentID,
		SessionID:     req.SessionID,
		Parent:        parent,
		AttemptNumber: req.AttemptNumber,
		Responses:     req.Responses,
	}

	result, err := h.service.ScoreSubmission(r.Context(), resp)
	if err != nil {
		writeScoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeScoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "No requirement found for parent"})
	case errors.Is(err, models.ErrInvalidRequirement):
		// Fail closed: the question is not scorable until authoring fixes it.
		log.Printf("WARN: unscorable requirement: %v", err)
		writeJSON(w, http.StatusUnprocessableEntity, models.ErrorResponse{Error: "Question requirement is invalid and cannot be scored"})
	case errors.Is(err, models.ErrInvalidResponse):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	default:
		log.Printf("WARN: score submission failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
