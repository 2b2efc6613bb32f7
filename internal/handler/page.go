// internal/handler/page.go
package handler

import (
	"net/http"

	"github.com/dangerclosesec/assessly/internal/middleware"
)

// PageResponse describes a browser page. Rendering belongs to the front
// end; the server only decides whether the page may be shown.
type PageResponse struct {
	Page   string `json:"page"`
	UserID string `json:"user_id,omitempty"`
	Role   string `json:"role,omitempty"`
}

// Page returns a handler for the named page.
func Page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := PageResponse{Page: name}
		if p, ok := middleware.PrincipalFrom(r.Context()); ok {
			resp.UserID = p.UserID.String()
			resp.Role = string(p.Role)
		}
		respondWithJSON(w, http.StatusOK, resp)
	}
}
