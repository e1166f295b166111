package middlewares

import (
	"net/http"

	"helpdesk/internal/configuration"
	"helpdesk/internal/helpers"
	"helpdesk/internal/models"
)

// AudienceValidate rejects tokens whose audience does not grant API access.
// Refresh tokens are only usable on the auth-excluded refresh endpoint.
// This middleware should be applied after Authenticate.
func AudienceValidate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip if auth was excluded (context set by Authenticate)
		if excluded, _ := r.Context().Value(models.AuthExcludedKey{}).(bool); excluded {
			next.ServeHTTP(w, r)
			return
		}

		claims, ok := r.Context().Value(models.UserClaimKey{}).(models.UserClaims)
		if !ok {
			helpers.RespondWithError(w, 403, []string{"FORBIDDEN"})
			return
		}

		if claims.Aud != configuration.AudienceAccessToken {
			helpers.RespondWithError(w, 403, []string{"FORBIDDEN"})
			return
		}

		next.ServeHTTP(w, r)
	})
}
