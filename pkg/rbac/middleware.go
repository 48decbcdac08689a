package rbac

import (
	"net/http"

	"github.com/gatehouse/gatehouse/pkg/catalog"
	"github.com/gatehouse/gatehouse/pkg/httputil"
)

// PrincipalResolver extracts the calling user's ID from a request. It returns
// false when the request carries no authenticated principal.
type PrincipalResolver func(r *http.Request) (int64, bool)

// PermissionMiddleware guards routes behind permission checks.
type PermissionMiddleware struct {
	checker  *Checker
	resolver PrincipalResolver
}

// NewPermissionMiddleware creates route-guarding middleware. The resolver
// bridges to whatever authentication layer fronts the service.
func NewPermissionMiddleware(checker *Checker, resolver PrincipalResolver) *PermissionMiddleware {
	return &PermissionMiddleware{
		checker:  checker,
		resolver: resolver,
	}
}

// RequirePermission gates the wrapped handler on a global permission.
func (pm *PermissionMiddleware) RequirePermission(perm catalog.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := pm.resolver(r)
			if !ok {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			allowed, err := pm.checker.Allowed(r.Context(), Check{
				UserID:     userID,
				Permission: perm,
			})
			if err != nil {
				httputil.WriteInternalError(w, err)
				return
			}
			if !allowed {
				httputil.WriteForbidden(w, "permission denied")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireResourcePermission gates the wrapped handler on a resource-scoped
// permission. The resource ID is read from the named path variable.
func (pm *PermissionMiddleware) RequireResourcePermission(perm catalog.Permission, resourceType, pathVar string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := pm.resolver(r)
			if !ok {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			resourceID, err := httputil.ParsePathString(r, pathVar)
			if err != nil {
				httputil.WriteValidationError(w, err.Error())
				return
			}

			allowed, err := pm.checker.Allowed(r.Context(), Check{
				UserID:       userID,
				Permission:   perm,
				ResourceType: &resourceType,
				ResourceID:   &resourceID,
			})
			if err != nil {
				httputil.WriteInternalError(w, err)
				return
			}
			if !allowed {
				httputil.WriteForbidden(w, "permission denied")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
