// internal/handler/manager.go
package handler

import (
	"net/http"

	"github.com/dangerclosesec/assessly/internal/model"
	"github.com/dangerclosesec/assessly/internal/serializer"
	"github.com/dangerclosesec/assessly/internal/service"
)

type ManagerHandler struct {
	adminService *service.AdminService
}

func NewManagerHandler(adminService *service.AdminService) *ManagerHandler {
	return &ManagerHandler{adminService: adminService}
}

type ManagedTeamResponse struct {
	Team    *model.Team      `json:"team"`
	Members []map[string]any `json:"members"`
}

// Team lists the caller's managed teams with members rendered for a
// manager viewer.
func (h *ManagerHandler) Team(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	overviews, err := h.adminService.ManagedTeams(r.Context(), p.UserID)
	if err != nil {
		respondWithServiceError(w, r, "Managed teams error", err)
		return
	}

	viewer := viewerOf(p)
	teams := make([]ManagedTeamResponse, 0, len(overviews))
	for _, o := range overviews {
		members, err := serializer.Users(viewer, o.Members)
		if err != nil {
			respondWithServiceError(w, r, "Serializing team members", err)
			return
		}
		teams = append(teams, ManagedTeamResponse{Team: o.Team, Members: members})
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"teams": teams})
}
