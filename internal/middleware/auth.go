// internal/middleware/auth.go
package middleware

// Usage:
//
//	r.Use(middleware.AccessPolicy(evaluator, auditLogger))
//
//	r.Route("/api/admin", func(r chi.Router) {
//		r.Use(middleware.RequireRole(resolver, model.RoleAdmin, evaluator.HomePath()))
//		...
//	})
//
//	r.Group(func(r chi.Router) {
//		r.Use(middleware.RequireTeam(principals, cfg.Policy.TeamSelectionPath, cfg.Policy.LoginPath))
//		...
//	})

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dangerclosesec/assessly/internal/audit"
	"github.com/dangerclosesec/assessly/internal/domain"
	"github.com/dangerclosesec/assessly/internal/model"
	"github.com/dangerclosesec/assessly/internal/policy"
	"github.com/dangerclosesec/assessly/internal/service"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// AccessPolicy gates every request through the evaluator. Denied page
// requests are redirected with 303; denied API requests get 401 when the
// client must sign in and 404 otherwise, so privileged routes never
// confirm their existence.
func AccessPolicy(evaluator *policy.Evaluator, auditLogger audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			d := evaluator.Evaluate(ctx, r.URL.Path, TokenFromRequest(r))

			switch d.Outcome {
			case policy.OutcomeAllow:
				if d.Principal != nil {
					ctx = WithPrincipal(ctx, d.Principal)
				}
				next.ServeHTTP(w, r.WithContext(ctx))
				return

			case policy.OutcomeFailOpen:
				slog.WarnContext(ctx, "Access policy failing open",
					"userID", d.Principal.UserID,
					"path", r.URL.Path,
					"routeClass", d.Class,
					"outageAge", d.OutageAge,
					"error", d.Err,
					"requestID", chimw.GetReqID(ctx),
				)
				recordAccess(ctx, auditLogger, model.ActionFailOpen, true, d, r)
				next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, d.Principal)))
				return
			}

			if d.Class.Privileged() && d.Principal != nil {
				slog.InfoContext(ctx, "Privileged access denied",
					"userID", d.Principal.UserID,
					"path", r.URL.Path,
					"routeClass", d.Class,
					"reason", d.Reason,
					"requestID", chimw.GetReqID(ctx),
				)
				recordAccess(ctx, auditLogger, model.ActionAccessDenied, false, d, r)
			}

			if isAPI(r) {
				if d.Redirect == evaluator.LoginPath() {
					respondWithError(w, http.StatusUnauthorized, "Authentication required")
					return
				}
				respondWithError(w, http.StatusNotFound, "Not found")
				return
			}
			http.Redirect(w, r, d.Redirect, http.StatusSeeOther)
		})
	}
}

func recordAccess(ctx context.Context, auditLogger audit.Logger, action string, allowed bool, d policy.Decision, r *http.Request) {
	entry := audit.AccessEntry{
		Action:      action,
		Allowed:     allowed,
		SubjectID:   d.Principal.UserID.String(),
		SubjectRole: string(d.Principal.TokenRole),
		RouteClass:  string(d.Class),
		Path:        r.URL.Path,
		Reason:      d.Reason,
	}
	if d.OutageAge > 0 {
		entry.Context = map[string]interface{}{"outage_age": d.OutageAge.String()}
	}
	if err := auditLogger.LogAccess(ctx, entry, r); err != nil {
		slog.ErrorContext(ctx, "Failed to write access audit entry", "error", err, "requestID", chimw.GetReqID(ctx))
	}
}

// RequireRole is the page-layer guard. It re-reads the role from the store
// and denies on any failure, whatever the access policy decided.
func RequireRole(resolver policy.RoleResolver, role model.Role, redirect string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			p, ok := PrincipalFrom(ctx)
			if !ok {
				denyQuietly(w, r, redirect)
				return
			}

			current, err := resolver.ResolveRole(ctx, p.UserID)
			if err != nil {
				if !errors.Is(err, domain.ErrUserNotFound) {
					slog.WarnContext(ctx, "Role guard failing closed",
						"userID", p.UserID,
						"path", r.URL.Path,
						"error", err,
						"requestID", chimw.GetReqID(ctx),
					)
				}
				denyQuietly(w, r, redirect)
				return
			}
			if current != role {
				denyQuietly(w, r, redirect)
				return
			}

			authoritative := *p
			authoritative.Role = current
			authoritative.Authoritative = true
			next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, &authoritative)))
		})
	}
}

// PrincipalLookup returns tenant context for a user, possibly from cache.
type PrincipalLookup interface {
	Lookup(ctx context.Context, userID uuid.UUID, notAfter time.Time) (*service.PrincipalInfo, error)
}

// RequireTeam keeps EMPLOYEE principals without a team on the team
// selection step. The team selection path itself always passes. A session
// whose user no longer exists is sent back to login.
func RequireTeam(principals PrincipalLookup, teamSelectionPath, loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			p, ok := PrincipalFrom(ctx)
			if !ok || p.TokenRole != model.RoleEmployee || r.URL.Path == teamSelectionPath {
				next.ServeHTTP(w, r)
				return
			}

			var notAfter time.Time
			if p.Session != nil {
				notAfter = p.Session.ExpiresAt
			}
			info, err := principals.Lookup(ctx, p.UserID, notAfter)
			if errors.Is(err, domain.ErrUserNotFound) {
				if isAPI(r) {
					respondWithError(w, http.StatusUnauthorized, "Authentication required")
					return
				}
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}
			if err != nil {
				slog.ErrorContext(ctx, "Failed to load principal", "error", err, "userID", p.UserID, "requestID", chimw.GetReqID(ctx))
				respondWithError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			if info.Role != model.RoleEmployee || info.HasTeam() {
				next.ServeHTTP(w, r)
				return
			}

			if isAPI(r) {
				respondWithJSON(w, http.StatusConflict, map[string]string{
					"error":    "Team selection required",
					"redirect": teamSelectionPath,
				})
				return
			}
			http.Redirect(w, r, teamSelectionPath, http.StatusSeeOther)
		})
	}
}

func denyQuietly(w http.ResponseWriter, r *http.Request, redirect string) {
	if isAPI(r) {
		respondWithError(w, http.StatusNotFound, "Not found")
		return
	}
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithJSON sends a JSON response
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
