// internal/handler/assessment.go
package handler

import (
	"net/http"

	"github.com/dangerclosesec/assessly/internal/service"
)

type AssessmentHandler struct {
	assessmentService *service.AssessmentService
}

func NewAssessmentHandler(assessmentService *service.AssessmentService) *AssessmentHandler {
	return &AssessmentHandler{assessmentService: assessmentService}
}

func (h *AssessmentHandler) SaveResult(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var input service.SaveResultInput
	if err := decodeJSON(r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	result, err := h.assessmentService.SaveResult(r.Context(), p.UserID, input)
	if err != nil {
		respondWithServiceError(w, r, "Saving test result error", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, result)
}

// GetReport answers 404 for anything the viewer may not read.
func (h *AssessmentHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	reportID, ok := uuidParam(r, "id")
	if !ok {
		respondWithError(w, http.StatusNotFound, "Not found")
		return
	}

	report, err := h.assessmentService.GetReport(r.Context(), p.UserID, reportID)
	if err != nil {
		respondWithServiceError(w, r, "Report lookup error", err)
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}
