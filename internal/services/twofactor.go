package services

import (
	"errors"
	"time"

	"helpdesk/internal/activity"
	"helpdesk/internal/cache"
	"helpdesk/internal/configuration"
	apierrors "helpdesk/internal/errors"
	"helpdesk/internal/events"
	"helpdesk/internal/handlers"
	h "helpdesk/internal/helpers"
	"helpdesk/internal/messaging"
	m "helpdesk/internal/middlewares"
	"helpdesk/internal/models"
	"helpdesk/internal/twofactor"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TwoFactorService owns enrollment, verification, recovery and device trust
// for the authenticated user. Admin-side operations live in AdminService.
type TwoFactorService struct {
	DB             *gorm.DB
	Cache          cache.ICache
	AuthConfig     models.AuthConfig
	Engine         *twofactor.Engine
	Profiles       *twofactor.ProfileStore
	Trust          *twofactor.TrustStore
	Vault          *twofactor.Vault
	Issuer         string
	Publisher      messaging.IPublisher
	ActivityLogger activity.IActivityLogger
}

func (s TwoFactorService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/setup", func(r chi.Router) {
		r.Get("/", handlers.GetOneHandler(s.BeginSetup))
		r.With(m.Validate[models.TwoFactorSetupBody]).
			Post("/", handlers.CreateHandler(s.CompleteSetup))
	})

	r.With(m.Validate[models.TwoFactorVerifyBody]).
		Post("/verify", handlers.CreateHandler(s.Verify))

	r.With(m.Validate[models.TwoFactorDisableBody]).
		Post("/disable", handlers.BodyHandler(s.Disable))

	r.Post("/recovery-code", handlers.GetOneHandler(s.RegenerateRecoveryCode))

	r.Get("/status", handlers.GetOneHandler(s.Status))
	r.Get("/debug", handlers.GetOneHandler(s.Debug))

	r.Route("/devices", func(r chi.Router) {
		r.Get("/", handlers.GetListHandler(s.ListDevices))
		r.Delete("/{id0}", handlers.DeleteHandler(s.RevokeDevice))
	})

	return r
}

// BeginSetup generates a fresh TOTP secret for the caller and stores it
// encrypted on a not-yet-enabled profile. Restarting setup overwrites the
// pending secret.
func (s TwoFactorService) BeginSetup(
	logger *zap.Logger,
	claims models.UserClaims,
	_ uuid.UUIDs,
) (models.TwoFactorSetupResponse, error) {
	profile, err := s.Profiles.GetOrCreate(claims.UserID)
	if err != nil {
		logger.Error("Failed to load 2FA profile", zap.Error(err))
		return models.TwoFactorSetupResponse{}, apierrors.NewAPIError(500, "TWO_FACTOR_SETUP_FAILED")
	}

	if profile.Enabled {
		return models.TwoFactorSetupResponse{}, apierrors.NewAPIError(409, apierrors.ErrTwoFactorAlreadyEnabled)
	}

	totpKey, err := h.GenerateTOTPSecret(s.Issuer, claims.Email)
	if err != nil {
		logger.Error("Failed to generate TOTP secret", zap.Error(err))
		return models.TwoFactorSetupResponse{}, apierrors.NewAPIError(500, "TWO_FACTOR_SETUP_FAILED")
	}

	encryptedSecret, err := h.EncryptSecret(totpKey.Secret, []byte(s.AuthConfig.SecretEncryptionKey))
	if err != nil {
		logger.Error("Failed to encrypt TOTP secret", zap.Error(err))
		return models.TwoFactorSetupResponse{}, apierrors.NewAPIError(500, "TWO_FACTOR_SETUP_FAILED")
	}

	if err = s.Profiles.SetPendingSecret(claims.UserID, encryptedSecret); err != nil {
		logger.Error("Failed to store pending secret", zap.Error(err))
		return models.TwoFactorSetupResponse{}, apierrors.NewAPIError(500, "TWO_FACTOR_SETUP_FAILED")
	}

	action := models.Activity{
		Message: activity.TwoFactorSetupStarted,
		Filter: activity.NewLogFilter(map[string]string{
			"action":      activity.TwoFactorSetupStarted,
			"user_id":     claims.UserID.String(),
			"email":       claims.Email,
			"object_type": "two_factor_profile",
		}),
	}
	if logErr := s.ActivityLogger.Send(action); logErr != nil {
		logger.Error("Failed to log setup start", zap.Error(logErr))
	}

	return models.TwoFactorSetupResponse{
		Secret:    totpKey.Secret,
		QRCodeURI: totpKey.URL,
		Issuer:    s.Issuer,
	}, nil
}

// CompleteSetup confirms enrollment with a code from the authenticator app.
// On success the profile is enabled, a recovery code is issued (shown exactly
// once) and the current session counts as verified.
func (s TwoFactorService) CompleteSetup(
	logger *zap.Logger,
	claims models.UserClaims,
	_ uuid.UUIDs,
	body models.TwoFactorSetupBody,
) (models.TwoFactorSetupCompleteResponse, error) {
	profile, err := s.Profiles.Get(claims.UserID)
	if err != nil {
		logger.Error("Failed to load 2FA profile", zap.Error(err))
		return models.TwoFactorSetupCompleteResponse{}, apierrors.NewAPIError(500, "TWO_FACTOR_SETUP_FAILED")
	}
	if profile == nil || profile.EncryptedSecret == nil {
		return models.TwoFactorSetupCompleteResponse{}, apierrors.NewAPIError(400, apierrors.ErrNoSecretConfigured)
	}
	if profile.Enabled {
		return models.TwoFactorSetupCompleteResponse{}, apierrors.NewAPIError(409, apierrors.ErrTwoFactorAlreadyEnabled)
	}

	secret, err := h.DecryptSecret(*profile.EncryptedSecret, []byte(s.AuthConfig.SecretEncryptionKey))
	if err != nil {
		logger.Error("Failed to decrypt TOTP secret", zap.Error(err))
		return models.TwoFactorSetupCompleteResponse{}, apierrors.NewAPIError(500, "TWO_FACTOR_SETUP_FAILED")
	}

	if err = s.checkTOTPCode(logger, claims.UserID, secret, body.Code); err != nil {
		return models.TwoFactorSetupCompleteResponse{}, err
	}

	now := time.Now()
	if err = s.Profiles.Enable(claims.UserID, now); err != nil {
		logger.Error("Failed to enable 2FA", zap.Error(err))
		return models.TwoFactorSetupCompleteResponse{}, apierrors.NewAPIError(500, "TWO_FACTOR_SETUP_FAILED")
	}
	profile.Enabled = true
	profile.RecoveryCodeGeneratedAt = nil

	recoveryCode, err := s.Vault.Generate(profile)
	if err != nil {
		logger.Error("Failed to generate recovery code", zap.Error(err))
		return models.TwoFactorSetupCompleteResponse{}, apierrors.NewAPIError(500, "TWO_FACTOR_SETUP_FAILED")
	}

	returnPath := s.markSessionVerified(logger, claims.SessionID, now)

	action := models.Activity{
		Message: activity.TwoFactorEnabled,
		Filter: activity.NewLogFilter(map[string]string{
			"action":      activity.TwoFactorEnabled,
			"user_id":     claims.UserID.String(),
			"email":       claims.Email,
			"object_type": "two_factor_profile",
		}),
	}
	if logErr := s.ActivityLogger.Send(action); logErr != nil {
		logger.Error("Failed to log enrollment", zap.Error(logErr))
	}

	logger.Info("Two-factor authentication enabled",
		zap.String("user_id", claims.UserID.String()))

	return models.TwoFactorSetupCompleteResponse{
		RecoveryCode: recoveryCode,
		ReturnPath:   returnPath,
	}, nil
}

// Verify answers a pending challenge with a TOTP code or, in recovery mode,
// the outstanding recovery code.
func (s TwoFactorService) Verify(
	logger *zap.Logger,
	claims models.UserClaims,
	_ uuid.UUIDs,
	body models.TwoFactorVerifyBody,
) (models.TwoFactorVerifyResponse, error) {
	attempts, err := s.Cache.GetVerifyAttempts(claims.UserID.String())
	if err != nil {
		logger.Error("Lockout check failed, denying request", zap.Error(err))
		return models.TwoFactorVerifyResponse{}, apierrors.NewAPIError(503, "SERVICE_UNAVAILABLE")
	}
	if attempts >= configuration.VerifyMaxAttempts {
		logger.Warn("Verification rate limited", zap.String("user_id", claims.UserID.String()))
		return models.TwoFactorVerifyResponse{}, apierrors.NewAPIError(429, "TOO_MANY_ATTEMPTS")
	}

	if body.RecoveryMode {
		return s.verifyRecovery(logger, claims, body.Code)
	}

	profile, err := s.Profiles.Get(claims.UserID)
	if err != nil {
		logger.Error("Failed to load 2FA profile", zap.Error(err))
		return models.TwoFactorVerifyResponse{}, apierrors.NewAPIError(500, "TWO_FACTOR_VERIFICATION_FAILED")
	}
	if profile == nil || !profile.Enabled || profile.EncryptedSecret == nil {
		return models.TwoFactorVerifyResponse{SetupRequired: true},
			apierrors.NewAPIError(400, apierrors.ErrTwoFactorNotEnabled)
	}

	secret, err := h.DecryptSecret(*profile.EncryptedSecret, []byte(s.AuthConfig.SecretEncryptionKey))
	if err != nil {
		logger.Error("Failed to decrypt TOTP secret", zap.Error(err))
		return models.TwoFactorVerifyResponse{}, apierrors.NewAPIError(500, "TWO_FACTOR_VERIFICATION_FAILED")
	}

	if err = s.checkTOTPCode(logger, claims.UserID, secret, body.Code); err != nil {
		failure := models.Activity{
			Message: activity.TwoFactorFailed,
			Filter: activity.NewLogFilter(map[string]string{
				"action":      activity.TwoFactorFailed,
				"user_id":     claims.UserID.String(),
				"email":       claims.Email,
				"object_type": "two_factor_profile",
			}),
		}
		if logErr := s.ActivityLogger.Send(failure); logErr != nil {
			logger.Error("Failed to log verification failure", zap.Error(logErr))
		}
		return models.TwoFactorVerifyResponse{}, err
	}

	now := time.Now()
	if err = s.Profiles.TouchAuthenticated(claims.UserID, now); err != nil {
		logger.Error("Failed to stamp verification", zap.Error(err))
	}

	returnPath := s.markSessionVerified(logger, claims.SessionID, now)

	if body.TrustDevice {
		s.trustCurrentDevice(logger, claims)
	}

	action := models.Activity{
		Message: activity.TwoFactorVerified,
		Filter: activity.NewLogFilter(map[string]string{
			"action":      activity.TwoFactorVerified,
			"user_id":     claims.UserID.String(),
			"email":       claims.Email,
			"object_type": "two_factor_profile",
		}),
	}
	if logErr := s.ActivityLogger.Send(action); logErr != nil {
		logger.Error("Failed to log verification", zap.Error(logErr))
	}

	return models.TwoFactorVerifyResponse{
		Verified:   true,
		ReturnPath: returnPath,
	}, nil
}

// verifyRecovery consumes the recovery code. Success resets 2FA entirely and
// the user must re-enroll; the response signals that with SetupRequired.
func (s TwoFactorService) verifyRecovery(
	logger *zap.Logger,
	claims models.UserClaims,
	candidate string,
) (models.TwoFactorVerifyResponse, error) {
	consumed, err := s.Vault.VerifyAndConsume(claims.UserID, candidate)
	if err != nil {
		logger.Error("Failed to consume recovery code", zap.Error(err))
		if !consumed {
			return models.TwoFactorVerifyResponse{}, apierrors.NewAPIError(500, "TWO_FACTOR_VERIFICATION_FAILED")
		}
	}
	if !consumed {
		if incErr := s.Cache.IncrementVerifyAttempts(claims.UserID.String()); incErr != nil {
			logger.Error("Failed to increment verification attempts", zap.Error(incErr))
		}
		return models.TwoFactorVerifyResponse{}, apierrors.NewAPIError(401, apierrors.ErrRecoveryCodeInvalid)
	}

	if resetErr := s.Cache.ResetVerifyAttempts(claims.UserID.String()); resetErr != nil {
		logger.Error("Failed to reset verification attempts", zap.Error(resetErr))
	}

	now := time.Now()
	returnPath := s.markSessionVerified(logger, claims.SessionID, now)

	action := models.Activity{
		Message: activity.RecoveryCodeUsed,
		Filter: activity.NewLogFilter(map[string]string{
			"action":      activity.RecoveryCodeUsed,
			"user_id":     claims.UserID.String(),
			"email":       claims.Email,
			"object_type": "two_factor_profile",
		}),
	}
	if logErr := s.ActivityLogger.Send(action); logErr != nil {
		logger.Error("Failed to log recovery code use", zap.Error(logErr))
	}

	event := events.NewRecoveryCodeUsed(
		s.Publisher,
		claims.UserID.String(),
		claims.Email,
		s.AuthConfig.WebURL,
		"",
	)
	event.Trigger()

	logger.Warn("Recovery code consumed, 2FA reset",
		zap.String("user_id", claims.UserID.String()))

	return models.TwoFactorVerifyResponse{
		Verified:      true,
		SetupRequired: true,
		ReturnPath:    returnPath,
	}, nil
}

// checkTOTPCode validates a code with lockout accounting and replay
// protection. Lockout state is fail-closed; replay state too.
func (s TwoFactorService) checkTOTPCode(
	logger *zap.Logger,
	userID uuid.UUID,
	secret string,
	code string,
) error {
	if !h.ValidateTOTPCode(secret, code) {
		if incErr := s.Cache.IncrementVerifyAttempts(userID.String()); incErr != nil {
			logger.Error("Failed to increment verification attempts", zap.Error(incErr))
		}
		logger.Warn("Invalid TOTP code", zap.String("user_id", userID.String()))
		return apierrors.NewAPIError(401, apierrors.ErrInvalidCode)
	}

	unused, err := s.Cache.MarkTOTPCodeUsed(userID.String(), code)
	if err != nil {
		logger.Error("Failed to mark TOTP code as used", zap.Error(err))
		return apierrors.NewAPIError(500, "TWO_FACTOR_VERIFICATION_FAILED")
	}
	if !unused {
		logger.Warn("TOTP code replay attempt detected", zap.String("user_id", userID.String()))
		return apierrors.NewAPIError(401, apierrors.ErrInvalidCode)
	}

	if resetErr := s.Cache.ResetVerifyAttempts(userID.String()); resetErr != nil {
		logger.Error("Failed to reset verification attempts", zap.Error(resetErr))
	}

	return nil
}

// markSessionVerified stamps the session state and pops the stored return
// path. Cache failures degrade to an empty return path; the next request
// through the enforcement middleware re-challenges if needed.
func (s TwoFactorService) markSessionVerified(
	logger *zap.Logger,
	sessionID uuid.UUID,
	now time.Time,
) string {
	state, _, err := s.Cache.GetSessionState(sessionID.String())
	if err != nil {
		logger.Error("Failed to load session state", zap.Error(err))
		return ""
	}

	state.MarkVerified(now)
	returnPath := state.ConsumeReturnPath()

	if err = s.Cache.SetSessionState(sessionID.String(), state); err != nil {
		logger.Error("Failed to persist session state", zap.Error(err))
		return ""
	}

	return returnPath
}

// trustCurrentDevice remembers the verifying request's device both on the
// profile slot and in the device table. Best effort; trust failures never
// fail the verification itself.
func (s TwoFactorService) trustCurrentDevice(logger *zap.Logger, claims models.UserClaims) {
	ip := claims.IPAddress
	ua := claims.UserAgent
	if ua == "" {
		return
	}

	fingerprint := s.Trust.Fingerprint(ua)

	device, err := s.Trust.Trust(claims.UserID, fingerprint, ip, ua)
	if err != nil {
		logger.Error("Failed to trust device", zap.Error(err))
		return
	}

	if err = s.Profiles.SetAccountTrust(claims.UserID, fingerprint, ip, device.ExpiresAt); err != nil {
		logger.Error("Failed to set account trust slot", zap.Error(err))
	}

	action := models.Activity{
		Message: activity.DeviceTrusted,
		Object:  device.ToActivity(),
		Filter: activity.NewLogFilter(map[string]string{
			"action":      activity.DeviceTrusted,
			"user_id":     claims.UserID.String(),
			"email":       claims.Email,
			"ip_address":  ip,
			"device_id":   device.ID.String(),
			"object_type": "trusted_device",
		}),
	}
	if logErr := s.ActivityLogger.Send(action); logErr != nil {
		logger.Error("Failed to log device trust", zap.Error(logErr))
	}
}

// Disable turns 2FA off after confirming a current TOTP code. All trusted
// devices are revoked with it.
func (s TwoFactorService) Disable(
	logger *zap.Logger,
	claims models.UserClaims,
	_ uuid.UUIDs,
	body models.TwoFactorDisableBody,
) error {
	profile, err := s.Profiles.Get(claims.UserID)
	if err != nil {
		logger.Error("Failed to load 2FA profile", zap.Error(err))
		return apierrors.NewAPIError(500, "TWO_FACTOR_DISABLE_FAILED")
	}
	if profile == nil || !profile.Enabled || profile.EncryptedSecret == nil {
		return apierrors.NewAPIError(400, apierrors.ErrTwoFactorNotEnabled)
	}

	secret, err := h.DecryptSecret(*profile.EncryptedSecret, []byte(s.AuthConfig.SecretEncryptionKey))
	if err != nil {
		logger.Error("Failed to decrypt TOTP secret", zap.Error(err))
		return apierrors.NewAPIError(500, "TWO_FACTOR_DISABLE_FAILED")
	}

	if err = s.checkTOTPCode(logger, claims.UserID, secret, body.Code); err != nil {
		return err
	}

	if err = s.Profiles.Disable(claims.UserID); err != nil {
		logger.Error("Failed to disable 2FA", zap.Error(err))
		return apierrors.NewAPIError(500, "TWO_FACTOR_DISABLE_FAILED")
	}

	if _, err = s.Trust.RevokeAll(claims.UserID); err != nil {
		logger.Error("Failed to revoke trusted devices", zap.Error(err))
	}

	action := models.Activity{
		Message: activity.TwoFactorDisabled,
		Filter: activity.NewLogFilter(map[string]string{
			"action":      activity.TwoFactorDisabled,
			"user_id":     claims.UserID.String(),
			"email":       claims.Email,
			"object_type": "two_factor_profile",
		}),
	}
	if logErr := s.ActivityLogger.Send(action); logErr != nil {
		logger.Error("Failed to log disable", zap.Error(logErr))
	}

	logger.Info("Two-factor authentication disabled",
		zap.String("user_id", claims.UserID.String()))

	return nil
}

// RegenerateRecoveryCode replaces the outstanding recovery code. Throttled to
// one regeneration per cooldown window.
func (s TwoFactorService) RegenerateRecoveryCode(
	logger *zap.Logger,
	claims models.UserClaims,
	_ uuid.UUIDs,
) (models.TwoFactorRecoveryCodeResponse, error) {
	profile, err := s.Profiles.Get(claims.UserID)
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
			"user_id":     claims.UserID.String(),
			"email":       claims.Email,
			"object_type": "two_factor_profile",
		}),
	}
	if logErr := s.ActivityLogger.Send(action); logErr != nil {
		logger.Error("Failed to log recovery code generation", zap.Error(logErr))
	}

	return models.TwoFactorRecoveryCodeResponse{RecoveryCode: code}, nil
}

// Status reports the caller's 2FA state.
func (s TwoFactorService) Status(
	logger *zap.Logger,
	claims models.UserClaims,
	_ uuid.UUIDs,
) (models.TwoFactorStatusResponse, error) {
	profile, err := s.Profiles.Get(claims.UserID)
	if err != nil {
		logger.Error("Failed to load 2FA profile", zap.Error(err))
		return models.TwoFactorStatusResponse{}, apierrors.NewAPIError(500, "INTERNAL_SERVER_ERROR")
	}
	if profile == nil {
		return models.TwoFactorStatusResponse{}, nil
	}

	devices, err := s.Trust.List(claims.UserID)
	if err != nil {
		logger.Error("Failed to list trusted devices", zap.Error(err))
		return models.TwoFactorStatusResponse{}, apierrors.NewAPIError(500, "INTERNAL_SERVER_ERROR")
	}

	return models.TwoFactorStatusResponse{
		Enabled:             profile.Enabled,
		EnabledAt:           profile.EnabledAt,
		LastAuthenticatedAt: profile.LastAuthenticatedAt,
		TrustedDevices:      len(devices),
		HasRecoveryCode:     profile.RecoveryCodeHash != nil,
	}, nil
}

// Debug explains why enforcement treats the caller the way it does. The loop
// breaker points users here when a bypass fires.
func (s TwoFactorService) Debug(
	logger *zap.Logger,
	claims models.UserClaims,
	_ uuid.UUIDs,
) (models.TwoFactorDebugResponse, error) {
	state, _, err := s.Cache.GetSessionState(claims.SessionID.String())
	if err != nil {
		logger.Error("Failed to load session state", zap.Error(err))
	}

	var user models.User
	if dbErr := s.DB.Preload("Group").Where("id = ?", claims.UserID).First(&user).Error; dbErr != nil {
		logger.Error("Failed to load user", zap.Error(dbErr))
	}

	profileEnabled := false
	if profile, profErr := s.Profiles.Get(claims.UserID); profErr == nil && profile != nil {
		profileEnabled = profile.Enabled
	}

	cfg := s.Engine.Config
	exemptPaths := cfg.ExemptPaths
	if exemptPaths == nil {
		exemptPaths = []string{}
	}

	return models.TwoFactorDebugResponse{
		EnforcementEnabled: cfg.Enabled,
		SetupPath:          cfg.SetupPath,
		VerifyPath:         cfg.VerifyPath,
		ExemptPaths:        exemptPaths,
		VerifyPathExempt:   s.Engine.VerifyPathExempt(),
		Session:            state,
		ProfileEnabled:     profileEnabled,
		GroupExempt:        user.ExemptFromTwoFactor(),
		RoleExempt:         cfg.ExemptSuperusers && user.Role == models.RoleAdmin,
	}, nil
}

// ListDevices returns the caller's trusted devices, current first.
func (s TwoFactorService) ListDevices(
	logger *zap.Logger,
	claims models.UserClaims,
	_ uuid.UUIDs,
) ([]models.TrustedDevice, error) {
	devices, err := s.Trust.List(claims.UserID)
	if err != nil {
		logger.Error("Failed to list trusted devices", zap.Error(err))
		return nil, apierrors.NewAPIError(500, "INTERNAL_SERVER_ERROR")
	}
	return devices, nil
}

// RevokeDevice removes one trusted device. Revoking the device held in the
// profile's single-slot trust clears that slot too.
func (s TwoFactorService) RevokeDevice(
	logger *zap.Logger,
	claims models.UserClaims,
	ids uuid.UUIDs,
) error {
	deviceID := ids[0]

	var device models.TrustedDevice
	result := s.DB.Where("user_id = ? AND id = ?", claims.UserID, deviceID).Limit(1).Find(&device)
	if result.Error != nil {
		logger.Error("Failed to load trusted device", zap.Error(result.Error))
		return apierrors.NewAPIError(500, "INTERNAL_SERVER_ERROR")
	}
	if result.RowsAffected == 0 {
		return apierrors.NewAPIError(404, "TRUSTED_DEVICE_NOT_FOUND")
	}

	if _, err := s.Trust.Revoke(claims.UserID, deviceID); err != nil {
		logger.Error("Failed to revoke trusted device", zap.Error(err))
		return apierrors.NewAPIError(500, "INTERNAL_SERVER_ERROR")
	}

	profile, err := s.Profiles.Get(claims.UserID)
	if err == nil && profile != nil &&
		profile.TrustedFingerprint != nil && *profile.TrustedFingerprint == device.Fingerprint {
		if slotErr := s.Profiles.ClearAccountTrust(claims.UserID); slotErr != nil {
			logger.Error("Failed to clear account trust slot", zap.Error(slotErr))
		}
	}

	action := models.Activity{
		Message: activity.DeviceRevoked,
		Object:  device.ToActivity(),
		Filter: activity.NewLogFilter(map[string]string{
			"action":      activity.DeviceRevoked,
			"user_id":     claims.UserID.String(),
			"email":       claims.Email,
			"device_id":   deviceID.String(),
			"object_type": "trusted_device",
		}),
	}
	if logErr := s.ActivityLogger.Send(action); logErr != nil {
		logger.Error("Failed to log device revocation", zap.Error(logErr))
	}

	return nil
}
