// internal/middleware/session.go
package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dangerclosesec/assessly/internal/policy"
	"github.com/google/uuid"
)

// SessionCookieName is the cookie that carries the session token for
// browser clients.
const SessionCookieName = "session"

type UserContextKey string

var PrincipalKey UserContextKey = "assessly_principal"

// TokenFromRequest returns the raw session token from the Authorization
// header, falling back to the session cookie. It returns "" when neither is
// present or the header is malformed.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return ""
		}
		return strings.TrimSpace(parts[1])
	}

	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// SetSessionCookie stores token in an HttpOnly cookie that expires with the
// token.
func SetSessionCookie(w http.ResponseWriter, token string, expires time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func WithPrincipal(ctx context.Context, p *policy.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// PrincipalFrom returns the principal the access policy attached to ctx.
func PrincipalFrom(ctx context.Context) (*policy.Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(*policy.Principal)
	return p, ok && p != nil
}

// UserIDFrom returns the authenticated user id, or uuid.Nil.
func UserIDFrom(ctx context.Context) uuid.UUID {
	if p, ok := PrincipalFrom(ctx); ok {
		return p.UserID
	}
	return uuid.Nil
}

func isAPI(r *http.Request) bool {
	return r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/")
}
