package middlewares

import (
	"net/http"

	h "helpdesk/internal/helpers"
	"helpdesk/internal/models"
	"helpdesk/internal/rbac"
)

// AuthorizeRole checks if the authenticated user has at least the required role.
// Uses hierarchical role checking (Admin > Superagent > Agent > Viewer > Client).
func AuthorizeRole(requiredRole models.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userClaims, ok := r.Context().Value(models.UserClaimKey{}).(models.UserClaims)
			if !ok {
				h.RespondWithError(w, 401, []string{"UNAUTHORIZED"})
				return
			}

			if !rbac.HasRole(userClaims.Role, requiredRole) {
				h.RespondWithError(w, 403, []string{"FORBIDDEN"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AuthorizeSelfOrAdmin allows the request if either:
// 1. The authenticated user is accessing their own resource (user ID matches target ID in URL)
// 2. The authenticated user has Admin role
// The targetUserIDIndex parameter specifies which URL parameter contains the target user ID.
func AuthorizeSelfOrAdmin(targetUserIDIndex int) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userClaims, ok := r.Context().Value(models.UserClaimKey{}).(models.UserClaims)
			if !ok {
				h.RespondWithError(w, 401, []string{"UNAUTHORIZED"})
				return
			}

			ids, ok := h.ParseUUIDs(w, r)
			if !ok {
				return
			}

			if targetUserIDIndex >= len(ids) {
				h.RespondWithError(w, 401, []string{"UNAUTHORIZED"})
				return
			}

			if userClaims.UserID == ids[targetUserIDIndex] {
				next.ServeHTTP(w, r)
				return
			}

			if userClaims.Role != models.RoleAdmin {
				h.RespondWithError(w, 403, []string{"FORBIDDEN"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
