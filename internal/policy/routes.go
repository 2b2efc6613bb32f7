// internal/policy/routes.go
package policy

import (
	"strings"

	"github.com/dangerclosesec/assessly/internal/model"
)

// RouteClass is the static classification of a request path.
type RouteClass string

const (
	ClassPublic        RouteClass = "public"
	ClassAuthenticated RouteClass = "authenticated"
	ClassManager       RouteClass = "manager"
	ClassAdmin         RouteClass = "admin"
)

// Privileged reports whether the class needs an authoritative role check.
func (c RouteClass) Privileged() bool {
	return c == ClassAdmin || c == ClassManager
}

// RequiredRole is the role a principal must hold for the class, or "" when
// any authenticated role will do.
func (c RouteClass) RequiredRole() model.Role {
	switch c {
	case ClassAdmin:
		return model.RoleAdmin
	case ClassManager:
		return model.RoleManager
	}
	return ""
}

// RouteTable maps path prefixes to route classes. Paths matching no prefix
// are ClassAuthenticated.
type RouteTable struct {
	Public  []string
	Admin   []string
	Manager []string
}

func DefaultRouteTable() RouteTable {
	return RouteTable{
		Public:  []string{"/health", "/login", "/register", "/api/auth/", "/static/"},
		Admin:   []string{"/admin", "/api/admin"},
		Manager: []string{"/manager", "/api/manager"},
	}
}

// Classify returns the class of path. Privileged prefixes are checked
// before the public allow-list.
func (t RouteTable) Classify(path string) RouteClass {
	switch {
	case matchAny(path, t.Admin):
		return ClassAdmin
	case matchAny(path, t.Manager):
		return ClassManager
	case matchAny(path, t.Public):
		return ClassPublic
	}
	return ClassAuthenticated
}

func matchAny(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if matchPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// matchPrefix matches whole path segments: "/admin" covers "/admin" and
// "/admin/x" but not "/administrator". A prefix ending in "/" matches
// anything below it.
func matchPrefix(path, prefix string) bool {
	if prefix == "" {
		return false
	}
	if strings.HasSuffix(prefix, "/") {
		return strings.HasPrefix(path, prefix)
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
