package middlewares

import (
	"net/http"
	"strconv"

	"helpdesk/internal/cache"
	"helpdesk/internal/helpers"
	"helpdesk/internal/models"

	"go.uber.org/zap"
)

const requestsPerMinute = 120

// RateLimit throttles per user, falling back to the client IP for
// unauthenticated requests.
func RateLimit(c cache.ICache) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identifier := helpers.ClientIP(r)
			if claims, ok := r.Context().Value(models.UserClaimKey{}).(models.UserClaims); ok {
				identifier = claims.UserID.String()
			}

			retryAfter, err := c.GetRateLimit(identifier, requestsPerMinute)
			if err != nil {
				zap.L().Error("Rate limit check failed", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			if retryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				helpers.RespondWithError(w, 429, []string{"TOO_MANY_REQUESTS"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
