// internal/handler/admin.go
package handler

import (
	"log/slog"
	"net/http"

	"github.com/dangerclosesec/assessly/internal/audit"
	"github.com/dangerclosesec/assessly/internal/model"
	"github.com/dangerclosesec/assessly/internal/serializer"
	"github.com/dangerclosesec/assessly/internal/service"
	chmw "github.com/go-chi/chi/v5/middleware"
)

// AdminHandler serves the directory operations mounted under the admin
// route class. Every route here sits behind the role guard.
type AdminHandler struct {
	adminService *service.AdminService
	auditLogger  audit.Logger
}

func NewAdminHandler(adminService *service.AdminService, auditLogger audit.Logger) *AdminHandler {
	if auditLogger == nil {
		auditLogger = audit.NoOpLogger{}
	}
	return &AdminHandler{adminService: adminService, auditLogger: auditLogger}
}

func (h *AdminHandler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var input service.CreateOrganizationInput
	if err := decodeJSON(r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	org, err := h.adminService.CreateOrganization(r.Context(), input)
	if err != nil {
		respondWithServiceError(w, r, "Organization creation error", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, org)
}

func (h *AdminHandler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagination(r)
	orgs, total, err := h.adminService.ListOrganizations(r.Context(), offset, limit)
	if err != nil {
		respondWithServiceError(w, r, "Listing organizations error", err)
		return
	}
	respondWithJSON(w, http.StatusOK, ListResponse{
		BaseResponse: BaseResponse{Ok: true},
		Items:        orgs,
		Total:        total,
		Offset:       offset,
		Limit:        limit,
	})
}

func (h *AdminHandler) DeleteOrganization(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	orgID, ok := uuidParam(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid organization id")
		return
	}

	if err := h.adminService.DeleteOrganization(r.Context(), orgID); err != nil {
		respondWithServiceError(w, r, "Organization deletion error", err)
		return
	}
	h.audit(r, h.auditLogger.LogOrganizationDelete(r.Context(), p.UserID, orgID, r))

	respondWithJSON(w, http.StatusOK, BaseResponse{Ok: true})
}

func (h *AdminHandler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	orgID, ok := uuidParam(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid organization id")
		return
	}

	var input service.CreateTeamInput
	if err := decodeJSON(r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	team, err := h.adminService.CreateTeam(r.Context(), orgID, input)
	if err != nil {
		respondWithServiceError(w, r, "Team creation error", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, team)
}

func (h *AdminHandler) AssignManager(w http.ResponseWriter, r *http.Request) {
	teamID, ok := uuidParam(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid team id")
		return
	}

	var input service.AssignManagerInput
	if err := decodeJSON(r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	assignment, err := h.adminService.AssignManager(r.Context(), teamID, input)
	if err != nil {
		respondWithServiceError(w, r, "Manager assignment error", err)
		return
	}
	respondWithJSON(w, http.StatusOK, assignment)
}

type ProvisionUserResponse struct {
	BaseResponse
	User       map[string]any    `json:"user"`
	Membership *model.Membership `json:"membership,omitempty"`
}

func (h *AdminHandler) ProvisionUser(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var input service.ProvisionUserInput
	if err := decodeJSON(r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	user, membership, err := h.adminService.ProvisionUser(r.Context(), input)
	if err != nil {
		respondWithServiceError(w, r, "User provisioning error", err)
		return
	}

	projected, err := serializer.Project(viewerOf(p), user)
	if err != nil {
		respondWithServiceError(w, r, "Serializing user", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, ProvisionUserResponse{
		BaseResponse: BaseResponse{Ok: true},
		User:         projected,
		Membership:   membership,
	})
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	offset, limit := pagination(r)
	users, total, err := h.adminService.ListUsers(r.Context(), offset, limit)
	if err != nil {
		respondWithServiceError(w, r, "Listing users error", err)
		return
	}

	items, err := serializer.Users(viewerOf(p), users)
	if err != nil {
		respondWithServiceError(w, r, "Serializing users", err)
		return
	}
	respondWithJSON(w, http.StatusOK, ListResponse{
		BaseResponse: BaseResponse{Ok: true},
		Items:        items,
		Total:        total,
		Offset:       offset,
		Limit:        limit,
	})
}

func (h *AdminHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	userID, ok := uuidParam(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	var input service.ChangeRoleInput
	if err := decodeJSON(r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	previous, err := h.adminService.ChangeRole(r.Context(), p.UserID, userID, input)
	if err != nil {
		respondWithServiceError(w, r, "Role change error", err)
		return
	}

	current, _ := model.ParseRole(input.Role)
	if previous != current {
		h.audit(r, h.auditLogger.LogRoleChange(r.Context(), p.UserID, userID, previous, current, r))
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"ok":       true,
		"previous": previous,
		"role":     current,
	})
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	userID, ok := uuidParam(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	if err := h.adminService.DeleteUser(r.Context(), p.UserID, userID); err != nil {
		respondWithServiceError(w, r, "User deletion error", err)
		return
	}
	respondWithJSON(w, http.StatusOK, BaseResponse{Ok: true})
}

func (h *AdminHandler) RemoveMembership(w http.ResponseWriter, r *http.Request) {
	userID, ok := uuidParam(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	if err := h.adminService.RemoveMembership(r.Context(), userID); err != nil {
		respondWithServiceError(w, r, "Membership removal error", err)
		return
	}
	respondWithJSON(w, http.StatusOK, BaseResponse{Ok: true})
}

// audit logs a failed audit write. The operation it describes has already
// committed.
func (h *AdminHandler) audit(r *http.Request, err error) {
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to write audit entry", "error", err, "requestID", chmw.GetReqID(r.Context()))
	}
}
