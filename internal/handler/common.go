package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dangerclosesec/assessly/internal/domain"
	"github.com/dangerclosesec/assessly/internal/middleware"
	"github.com/dangerclosesec/assessly/internal/policy"
	"github.com/dangerclosesec/assessly/internal/serializer"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type ErrorResponse struct { // TypeGen: ErrorResponse
	BaseResponse
	Error   string    `json:"error"`
	Details *[]string `json:"details,omitempty"`
	Code    *string   `json:"error_code,omitempty"`
	Link    *string   `json:"error_link,omitempty"`
}

type BaseResponse struct { // TypeGen: DefaultResponse
	Ok bool `json:"ok"`
}

type ListResponse struct { // TypeGen: ListResponse
	BaseResponse
	Items  interface{} `json:"items"`
	Total  int64       `json:"total"`
	Offset int         `json:"offset"`
	Limit  int         `json:"limit"`
}

// respondWithError sends an error response with a message
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

// respondWithJSON sends a JSON response
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	// Sets content type header
	w.Header().Set("Content-Type", "application/json")

	// Sets the HTTP status code
	w.WriteHeader(code)

	// Encodes the response
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// If encoding fails, logs the error and sends a plain text response
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// respondWithServiceError maps a service error onto a status code and a
// client-safe message. Unclassified errors are logged and become 500s.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, action string, err error) {
	ctx := r.Context()

	switch {
	case domain.IsAuthentication(err):
		if domain.IsOrganizationCodeFailure(err) {
			respondWithError(w, http.StatusUnauthorized, "Invalid organization code")
			return
		}
		respondWithError(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, domain.ErrInvalidInput):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrPasswordTooWeak):
		respondWithError(w, http.StatusBadRequest, "Password does not meet requirements")
	case errors.Is(err, domain.ErrInvalidRole):
		respondWithError(w, http.StatusBadRequest, "Invalid role")
	case errors.Is(err, domain.ErrMembershipNotPermitted):
		respondWithError(w, http.StatusBadRequest, "Admins cannot belong to an organization")
	case errors.Is(err, domain.ErrTeamNotInOrganization):
		respondWithError(w, http.StatusBadRequest, "Team does not belong to the organization")
	case errors.Is(err, domain.ErrInvalidManager):
		respondWithError(w, http.StatusBadRequest, "Manager must have the MANAGER role")
	case errors.Is(err, domain.ErrEmailAlreadyRegistered):
		respondWithError(w, http.StatusConflict, "Email already registered")
	case errors.Is(err, domain.ErrOrganizationCodeTaken):
		respondWithError(w, http.StatusConflict, "Organization code already in use")
	case errors.Is(err, domain.ErrOrganizationHasMembers):
		respondWithError(w, http.StatusConflict, "Organization still has members")
	case errors.Is(err, domain.ErrUserHasDependents):
		respondWithError(w, http.StatusConflict, "User still has dependent records")
	case errors.Is(err, domain.ErrDuplicateMembership):
		respondWithError(w, http.StatusConflict, "User already belongs to an organization")
	case errors.Is(err, domain.ErrUserNotFound):
		respondWithError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, domain.ErrOrganizationNotFound):
		respondWithError(w, http.StatusNotFound, "Organization not found")
	case errors.Is(err, domain.ErrTeamNotFound):
		respondWithError(w, http.StatusNotFound, "Team not found")
	case errors.Is(err, domain.ErrMembershipNotFound):
		respondWithError(w, http.StatusNotFound, "Membership not found")
	case domain.IsNotFound(err):
		respondWithError(w, http.StatusNotFound, "Not found")
	default:
		slog.ErrorContext(ctx, action, "error", err, "requestID", chimw.GetReqID(ctx))
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

// pagination reads offset and limit query parameters.
func pagination(r *http.Request) (offset, limit int) {
	limit = defaultPageSize
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = min(v, maxPageSize)
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return offset, limit
}

func uuidParam(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

// principal returns the authenticated principal, answering 401 when the
// route was mounted without the access policy in front of it.
func principal(w http.ResponseWriter, r *http.Request) (*policy.Principal, bool) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		slog.ErrorContext(r.Context(), "Handler reached without principal", "error", domain.ErrUnauthorized, "path", r.URL.Path)
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return nil, false
	}
	return p, true
}

func viewerOf(p *policy.Principal) *serializer.Viewer {
	if p == nil {
		return nil
	}
	return &serializer.Viewer{UserID: p.UserID, Role: p.Role}
}
