package services

import (
	"errors"
	"strings"

	"helpdesk/internal/activity"
	apierrors "helpdesk/internal/errors"
	"helpdesk/internal/events"
	"helpdesk/internal/handlers"
	"helpdesk/internal/messaging"
	m "helpdesk/internal/middlewares"
	"helpdesk/internal/models"
	"helpdesk/internal/sql"
	"helpdesk/internal/twofactor"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AdminService exposes deployment-wide two-factor oversight: adoption stats,
// audit-log search, and per-user overrides for lockout recovery.
type AdminService struct {
	DB             *gorm.DB
	Profiles       *twofactor.ProfileStore
	Trust          *twofactor.TrustStore
	Vault          *twofactor.Vault
	WebURL         string
	Publisher      messaging.IPublisher
	ActivityLogger activity.IActivityLogger
}

func (s AdminService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(m.AuthorizeRole(models.RoleAdmin))

	r.With(m.ValidateQuery[models.AdminStatsQueryParams]).
		Get("/stats", handlers.GetOneWithQueryHandler(s.GetStats))

	r.With(m.ValidateQuery[models.AdminActivityQueryParams]).
		Get("/two-factor/activity", handlers.GetOneWithQueryHandler(s.SearchActivity))

	r.Delete("/users/{id0}/trusted-devices", handlers.DeleteHandler(s.RevokeUserDevices))
	r.Post("/users/{id0}/recovery-code", handlers.GetOneHandler(s.RegenerateUserRecoveryCode))
	r.Post("/users/{id0}/two-factor/disable", handlers.DeleteHandler(s.DisableUserTwoFactor))

	return r
}

// GetStats aggregates enrollment and verification numbers for dashboards.
func (s AdminService) GetStats(
	logger *zap.Logger,
	_ models.UserClaims,
	_ uuid.UUIDs,
	queryParams models.AdminStatsQueryParams,
) (models.AdminStatsResponse, error) {
	days := queryParams.Days
	if days == 0 {
		days = 30
	}

	var response models.AdminStatsResponse

	s.DB.Model(&models.User{}).Count(&response.TotalUsers)
	response.EnrolledUsers, response.PendingUsers = sql.CountEnrolledUsers(s.DB)
	response.EnrollmentsByDay = sql.GetEnrollmentsByDay(s.DB, days)
	response.TrustedDevicesByDay = sql.GetTrustedDevicesByDay(s.DB, days)

	verifications, err := s.ActivityLogger.CountByDay(
		map[string][]string{"action": {activity.TwoFactorVerified}}, days)
	if err != nil {
		logger.Error("Failed to count verifications", zap.Error(err))
	}
	response.VerificationsByDay = verifications

	failures, err := s.ActivityLogger.CountByDay(
		map[string][]string{"action": {activity.TwoFactorFailed}}, days)
	if err != nil {
		logger.Error("Failed to count failures", zap.Error(err))
	}
	response.FailuresByDay = failures

	return response, nil
}

// SearchActivity queries the audit log. Empty params return the most recent
// entries across all users.
func (s AdminService) SearchActivity(
	logger *zap.Logger,
	_ models.UserClaims,
	_ uuid.UUIDs,
	queryParams models.AdminActivityQueryParams,
) (models.AdminActivityResponse, error) {
	criteria := map[string][]string{}
	addCriterion(criteria, "action", queryParams.Action)
	addCriterion(criteria, "user_id", queryParams.UserID)
	addCriterion(criteria, "email", queryParams.Email)
	addCriterion(criteria, "device_id", queryParams.DeviceID)
	addCriterion(criteria, "ip_address", queryParams.IP)

	results, err := s.ActivityLogger.Search(criteria)
	if err != nil {
		logger.Error("Failed to search activity log", zap.Error(err))
		return models.AdminActivityResponse{}, apierrors.NewAPIError(500, "ACTIVITY_SEARCH_FAILED")
	}
	if results == nil {
		results = []map[string]interface{}{}
	}

	return models.AdminActivityResponse{Results: results}, nil
}

func addCriterion(criteria map[string][]string, field, raw string) {
	if raw == "" {
		return
	}
	for _, value := range strings.Split(raw, ",") {
		if value = strings.TrimSpace(value); value != "" {
			criteria[field] = append(criteria[field], value)
		}
	}
}

// RevokeUserDevices drops every trusted device of the target user, including
// the account-level trust slot, forcing fresh verification everywhere.
func (s AdminService) RevokeUserDevices(
	logger *zap.Logger,
	claims models.UserClaims,
	ids uuid.UUIDs,
) error {
	user, err := sql.GetUserByID(s.DB, ids[0])
	if err != nil {
		return err
	}

	revoked, err := s.Trust.RevokeAll(user.ID)
	if err != nil {
		logger.Error("Failed to revoke trusted devices", zap.Error(err))
		return apierrors.NewAPIError(500, "DEVICE_REVOKE_FAILED")
	}

	if err = s.Profiles.ClearAccountTrust(user.ID); err != nil {
		logger.Error("Failed to clear account trust slot", zap.Error(err))
	}

	action := models.Activity{
		Message: activity.DeviceRevoked,
		Filter: activity.NewLogFilter(map[string]string{
			"action":      activity.DeviceRevoked,
			"user_id":     user.ID.String(),
			"email":       user.Email,
			"actor_id":    claims.UserID.String(),
			"object_type": "trusted_device",
		}),
	}
	if logErr := s.ActivityLogger.Send(action); logErr != nil {
		logger.Error("Failed to log device revocation", zap.Error(logErr))
	}

	events.NewSecurityAlert(s.Publisher, user.ID.String(), user.Email,
		s.WebURL, events.TypeDevicesRevoked, claims.IPAddress).Trigger()

	logger.Info("Trusted devices revoked by administrator",
		zap.String("user_id", user.ID.String()),
		zap.Int64("revoked", revoked))

	return nil
}

// RegenerateUserRecoveryCode issues a fresh recovery code for a locked-out
// user. The plaintext is returned once, to the administrator, who relays it
// out of band.
func (s AdminService) RegenerateUserRecoveryCode(
	logger *zap.Logger,
	claims models.UserClaims,
	ids uuid.UUIDs,
) (models.TwoFactorRecoveryCodeResponse, error) {
	user, err := sql.GetUserByID(s.DB, ids[0])
	if err != nil {
		return models.TwoFactorRecoveryCodeResponse{}, err
	}

	profile, err := s.Profiles.Get(user.ID)
	if err != nil {
		logger.Error("Failed to load 2FA profile", zap.Error(err))
		return models.TwoFactorRecoveryCodeResponse{}, apierrors.NewAPIError(500, "RECOVERY_CODE_FAILED")
	}
	if profile == nil || !profile.Enabled {
		return models.TwoFactorRecoveryCodeResponse{}, apierrors.NewAPIError(400, apierrors.ErrTwoFactorNotEnabled)
	}

	code, err := s.Vault.Generate(profile)
	if err != nil {
		var throttled *twofactor.ThrottledError
		if errors.As(err, &throttled) {
			return models.TwoFactorRecoveryCodeResponse{}, apierrors.NewAPIError(429, apierrors.ErrThrottledRegeneration)
		}
		logger.Error("Failed to generate recovery code", zap.Error(err))
		return models.TwoFactorRecoveryCodeResponse{}, apierrors.NewAPIError(500, "RECOVERY_CODE_FAILED")
	}

	action := models.Activity{
		Message: activity.RecoveryCodeGenerated,
		Filter: activity.NewLogFilter(map[string]string{
			"action":      activity.RecoveryCodeGenerated,
			"user_id":     user.ID.String(),
			"email":       user.Email,
			"actor_id":    claims.UserID.String(),
			"object_type": "two_factor_profile",
		}),
	}
	if logErr := s.ActivityLogger.Send(action); logErr != nil {
		logger.Error("Failed to log recovery code generation", zap.Error(logErr))
	}

	logger.Info("Recovery code regenerated by administrator",
		zap.String("user_id", user.ID.String()))

	return models.TwoFactorRecoveryCodeResponse{RecoveryCode: code}, nil
}

// DisableUserTwoFactor is the override path for users who lost both their
// authenticator and their recovery code. Enforcement will walk the user back
// through setup on their next request.
func (s AdminService) DisableUserTwoFactor(
	logger *zap.Logger,
	claims models.UserClaims,
	ids uuid.UUIDs,
) error {
	user, err := sql.GetUserByID(s.DB, ids[0])
	if err != nil {
		return err
	}

	profile, err := s.Profiles.Get(user.ID)
	if err != nil {
		logger.Error("Failed to load 2FA profile", zap.Error(err))
		return apierrors.NewAPIError(500, "TWO_FACTOR_DISABLE_FAILED")
	}
	if profile == nil || !profile.Enabled {
		return apierrors.NewAPIError(400, apierrors.ErrTwoFactorNotEnabled)
	}

	if err = s.Profiles.Disable(user.ID); err != nil {
		logger.Error("Failed to disable 2FA", zap.Error(err))
		return apierrors.NewAPIError(500, "TWO_FACTOR_DISABLE_FAILED")
	}

	if _, err = s.Trust.RevokeAll(user.ID); err != nil {
		logger.Error("Failed to revoke trusted devices", zap.Error(err))
	}

	action := models.Activity{
		Message: activity.TwoFactorDisabled,
		Filter: activity.NewLogFilter(map[string]string{
			"action":      activity.TwoFactorDisabled,
			"user_id":     user.ID.String(),
			"email":       user.Email,
			"actor_id":    claims.UserID.String(),
			"object_type": "two_factor_profile",
		}),
	}
	if logErr := s.ActivityLogger.Send(action); logErr != nil {
		logger.Error("Failed to log disable", zap.Error(logErr))
	}

	events.NewSecurityAlert(s.Publisher, user.ID.String(), user.Email,
		s.WebURL, events.TypeTwoFactorDisabled, claims.IPAddress).Trigger()

	logger.Info("Two-factor authentication disabled by administrator",
		zap.String("user_id", user.ID.String()))

	return nil
}
