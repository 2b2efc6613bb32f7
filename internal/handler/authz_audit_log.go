package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dangerclosesec/assessly/internal/repository"
	"github.com/dangerclosesec/assessly/internal/service"
)

// AuthzAuditLogHandler handles API requests related to authorization audit logs
type AuthzAuditLogHandler struct {
	auditLogService *service.AuthzAuditLogService
}

// NewAuthzAuditLogHandler creates a new audit log handler
func NewAuthzAuditLogHandler(auditLogService *service.AuthzAuditLogService) *AuthzAuditLogHandler {
	return &AuthzAuditLogHandler{
		auditLogService: auditLogService,
	}
}

// GetAuditLogs handles requests to retrieve audit logs with filtering
func (h *AuthzAuditLogHandler) GetAuditLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	params := repository.QueryParams{
		ActionType: query.Get("action_type"),
		SubjectID:  query.Get("subject_id"),
		ObjectType: query.Get("object_type"),
		ObjectID:   query.Get("object_id"),
		RouteClass: query.Get("route_class"),
	}

	if resultStr := query.Get("result"); resultStr != "" {
		result, err := strconv.ParseBool(resultStr)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid result filter")
			return
		}
		params.Result = &result
	}

	for name, dst := range map[string]*time.Time{"start_time": &params.StartTime, "end_time": &params.EndTime} {
		raw := query.Get(name)
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid "+name)
			return
		}
		*dst = parsed
	}

	params.Offset, params.Limit = pagination(r)

	logs, total, err := h.auditLogService.Query(r.Context(), params)
	if err != nil {
		respondWithServiceError(w, r, "Audit log query error", err)
		return
	}

	respondWithJSON(w, http.StatusOK, ListResponse{
		BaseResponse: BaseResponse{Ok: true},
		Items:        logs,
		Total:        total,
		Offset:       params.Offset,
		Limit:        params.Limit,
	})
}

// GetAuditLogByID handles requests to retrieve a specific audit log by ID
func (h *AuthzAuditLogHandler) GetAuditLogByID(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid audit log ID format")
		return
	}

	log, err := h.auditLogService.FindByID(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, r, "Audit log lookup error", err)
		return
	}
	respondWithJSON(w, http.StatusOK, log)
}
