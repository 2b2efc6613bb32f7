// internal/handler/auth.go
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dangerclosesec/assessly/internal/audit"
	"github.com/dangerclosesec/assessly/internal/domain"
	"github.com/dangerclosesec/assessly/internal/middleware"
	"github.com/dangerclosesec/assessly/internal/model"
	"github.com/dangerclosesec/assessly/internal/serializer"
	"github.com/dangerclosesec/assessly/internal/service"
	chmw "github.com/go-chi/chi/v5/middleware"
)

type AuthHandler struct {
	authService       *service.AuthService
	onboardingService *service.OnboardingService
	auditLogger       audit.Logger
	secureCookies     bool
	homePath          string
	teamSelectionPath string
}

type AuthHandlerConfig struct {
	SecureCookies     bool
	HomePath          string
	TeamSelectionPath string
}

func NewAuthHandler(
	authService *service.AuthService,
	onboardingService *service.OnboardingService,
	auditLogger audit.Logger,
	cfg AuthHandlerConfig,
) *AuthHandler {
	if auditLogger == nil {
		auditLogger = audit.NoOpLogger{}
	}
	return &AuthHandler{
		authService:       authService,
		onboardingService: onboardingService,
		auditLogger:       auditLogger,
		secureCookies:     cfg.SecureCookies,
		homePath:          cfg.HomePath,
		teamSelectionPath: cfg.TeamSelectionPath,
	}
}

type SessionResponse struct {
	BaseResponse
	User      map[string]any `json:"user"`
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Redirect  string         `json:"redirect"`
}

func (h *AuthHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var input service.LoginInput
	if err := decodeJSON(r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	output, err := h.authService.Login(r.Context(), input)
	if err != nil {
		if domain.IsAuthentication(err) {
			if auditErr := h.auditLogger.LogLoginFailure(r.Context(), input.Email, err, r); auditErr != nil {
				slog.ErrorContext(r.Context(), "Failed to audit login failure", "error", auditErr, "requestID", chmw.GetReqID(r.Context()))
			}
		}
		respondWithServiceError(w, r, "User login error", err)
		return
	}

	middleware.SetSessionCookie(w, output.Token, output.ExpiresAt, h.secureCookies)

	redirect := h.homePath
	if output.NeedsTeam {
		redirect = h.teamSelectionPath
	}
	h.respondWithSession(w, r, http.StatusOK, output.User, output.Token, output.ExpiresAt, redirect)
}

func (h *AuthHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var input service.RegisterInput
	if err := decodeJSON(r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	output, err := h.onboardingService.Register(r.Context(), input)
	if err != nil {
		respondWithServiceError(w, r, "User registration error", err)
		return
	}

	middleware.SetSessionCookie(w, output.Token, output.ExpiresAt, h.secureCookies)
	h.respondWithSession(w, r, http.StatusCreated, output.User, output.Token, output.ExpiresAt, h.teamSelectionPath)
}

// respondWithSession renders the signed-in user as they see themselves.
func (h *AuthHandler) respondWithSession(w http.ResponseWriter, r *http.Request, code int, user *model.User, token string, expires time.Time, redirect string) {
	projected, err := serializer.Project(&serializer.Viewer{UserID: user.ID, Role: user.Role}, user)
	if err != nil {
		respondWithServiceError(w, r, "Serializing user", err)
		return
	}
	respondWithJSON(w, code, SessionResponse{
		BaseResponse: BaseResponse{Ok: true},
		User:         projected,
		Token:        token,
		ExpiresAt:    expires,
		Redirect:     redirect,
	})
}

// LogoutHandler clears the session cookie and, when revocation is enabled,
// revokes the token so it stops decoding before its natural expiry.
func (h *AuthHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	revoked, err := h.authService.LogoutToken(r.Context(), middleware.TokenFromRequest(r))
	if err != nil {
		slog.ErrorContext(r.Context(), "Session revocation failed", "error", err, "requestID", chmw.GetReqID(r.Context()))
	}

	middleware.ClearSessionCookie(w, h.secureCookies)
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"revoked": revoked,
	})
}

// CurrentRoleHandler reports the stored role of the token's subject. Edge
// components that cannot reach the directory store use it for privileged
// re-checks.
func (h *AuthHandler) CurrentRoleHandler(w http.ResponseWriter, r *http.Request) {
	token := middleware.TokenFromRequest(r)
	if token == "" {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	output, err := h.authService.CurrentRole(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTokenInvalid),
			errors.Is(err, domain.ErrTokenExpired),
			errors.Is(err, domain.ErrTokenRevoked),
			errors.Is(err, domain.ErrUserNotFound):
			respondWithError(w, http.StatusUnauthorized, "Authentication required")
		default:
			slog.ErrorContext(r.Context(), "Current role lookup failed", "error", err, "requestID", chmw.GetReqID(r.Context()))
			respondWithError(w, http.StatusServiceUnavailable, "Role check unavailable")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, output)
}
