// internal/handler/onboarding.go
package handler

import (
	"net/http"

	"github.com/dangerclosesec/assessly/internal/service"
)

type OnboardingHandler struct {
	onboardingService *service.OnboardingService
}

func NewOnboardingHandler(onboardingService *service.OnboardingService) *OnboardingHandler {
	return &OnboardingHandler{onboardingService: onboardingService}
}

func (h *OnboardingHandler) Status(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	status, err := h.onboardingService.Status(r.Context(), p.UserID)
	if err != nil {
		respondWithServiceError(w, r, "Onboarding status error", err)
		return
	}
	respondWithJSON(w, http.StatusOK, status)
}

// ListTeams returns the teams a user may pick from: those of their own
// organization.
func (h *OnboardingHandler) ListTeams(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	teams, err := h.onboardingService.ListTeams(r.Context(), p.UserID)
	if err != nil {
		respondWithServiceError(w, r, "Listing teams error", err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"teams": teams})
}

func (h *OnboardingHandler) SelectTeam(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var input service.SelectTeamInput
	if err := decodeJSON(r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	membership, err := h.onboardingService.SelectTeam(r.Context(), p.UserID, input)
	if err != nil {
		respondWithServiceError(w, r, "Team selection error", err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"ok":         true,
		"membership": membership,
	})
}
