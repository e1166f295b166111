package middlewares

import (
	"net/http"
	"strings"

	"helpdesk/internal/cache"
	"helpdesk/internal/configuration"
	"helpdesk/internal/helpers"
	"helpdesk/internal/models"
	"helpdesk/internal/twofactor"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const debugEndpoint = "/api/v1/two-factor/debug"

// EnforceTwoFactor runs the enforcement engine on every authenticated
// request. It loads the session verification state from the cache, hands it
// to the engine, persists whatever the engine mutated, and translates the
// decision into either a pass-through or a 403 challenge payload.
//
// Apply after Authenticate and AudienceValidate.
func EnforceTwoFactor(
	engine *twofactor.Engine,
	db *gorm.DB,
	c cache.ICache,
) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			if excluded, _ := r.Context().Value(models.AuthExcludedKey{}).(bool); excluded {
				next.ServeHTTP(w, r)
				return
			}

			claims, ok := r.Context().Value(models.UserClaimKey{}).(models.UserClaims)
			if !ok {
				helpers.RespondWithError(w, 403, []string{"FORBIDDEN"})
				return
			}

			if isTwoFactorExemptPath(r.URL.Path, r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			logger := zap.L().With(zap.String("user_id", claims.UserID.String()))

			var user models.User
			result := db.Preload("Group").Where("id = ?", claims.UserID).First(&user)
			if result.Error != nil {
				logger.Error("Failed to load user for enforcement, failing closed",
					zap.Error(result.Error))
				respondChallenge(w, engine, twofactor.Decision{
					Outcome:  twofactor.OutcomeRedirectVerify,
					Reason:   "user_lookup_failed",
					Severity: "info",
				})
				return
			}

			sessionID := claims.SessionID.String()
			state, _, err := c.GetSessionState(sessionID)
			if err != nil {
				logger.Error("Failed to load session state, failing closed", zap.Error(err))
				respondChallenge(w, engine, twofactor.Decision{
					Outcome:  twofactor.OutcomeRedirectVerify,
					Reason:   "session_state_unavailable",
					Severity: "info",
				})
				return
			}

			decision := engine.Evaluate(
				&user,
				&state,
				r.URL.Path,
				helpers.ClientIP(r),
				r.UserAgent(),
			)

			if err = c.SetSessionState(sessionID, state); err != nil {
				logger.Error("Failed to persist session state", zap.Error(err))
			}

			if decision.Outcome == twofactor.OutcomeAllow {
				if decision.LoopBreak {
					w.Header().Set("X-Two-Factor-Warning", decision.Message)
					w.Header().Set("X-Two-Factor-Debug", debugEndpoint)
				}
				next.ServeHTTP(w, r)
				return
			}

			respondChallenge(w, engine, decision)
		}
		return http.HandlerFunc(fn)
	}
}

func respondChallenge(w http.ResponseWriter, engine *twofactor.Engine, decision twofactor.Decision) {
	challenge := models.TwoFactorChallenge{
		ReturnPath: decision.ReturnPath,
		Message:    decision.Message,
		Severity:   decision.Severity,
	}

	switch decision.Outcome {
	case twofactor.OutcomeRedirectSetup:
		challenge.Error = "TWO_FACTOR_SETUP_REQUIRED"
		challenge.RedirectTo = engine.Config.SetupPath
	case twofactor.OutcomeRedirectDebug:
		challenge.Error = "TWO_FACTOR_MISCONFIGURED"
		challenge.RedirectTo = debugEndpoint
		challenge.DebugPath = debugEndpoint
	default:
		challenge.Error = "TWO_FACTOR_REQUIRED"
		challenge.RedirectTo = engine.Config.VerifyPath
	}

	helpers.RespondWithJSON(w, 403, challenge)
}

func isTwoFactorExemptPath(path, method string) bool {
	for _, rule := range configuration.TwoFactorExemptRules {
		if rule.Method != "*" && rule.Method != method {
			continue
		}

		if rule.PathSuffix == "" {
			if strings.HasPrefix(path, rule.PathPrefix) {
				remaining := strings.TrimPrefix(path, rule.PathPrefix)
				if remaining == "" || !strings.Contains(remaining, "/") {
					return true
				}
			}
		} else {
			if strings.HasPrefix(path, rule.PathPrefix) && strings.HasSuffix(path, rule.PathSuffix) {
				return true
			}
		}
	}
	return false
}
