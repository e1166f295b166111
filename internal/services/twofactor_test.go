package services

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	apierrors "helpdesk/internal/errors"
	"helpdesk/internal/helpers"
	"helpdesk/internal/models"
	"helpdesk/internal/twofactor"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var twoFactorTestDBSeq atomic.Int64

const twoFactorTestEncryptionKey = "0123456789abcdef0123456789abcdef"

func openTwoFactorTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:twofactor_service_test_%d?mode=memory&cache=shared",
		twoFactorTestDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	for _, ddl := range []string{
		`CREATE TABLE two_factor_profiles (
			id text PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
			user_id text NOT NULL UNIQUE,
			enabled boolean NOT NULL DEFAULT false,
			encrypted_secret text,
			enabled_at datetime,
			last_authenticated_at datetime,
			recovery_code_hash varchar(128),
			recovery_code_generated_at datetime,
			trusted_ip varchar(45),
			trusted_fingerprint varchar(64),
			trusted_until datetime,
			created_at datetime,
			updated_at datetime
		)`,
		`CREATE TABLE trusted_devices (
			id text PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
			user_id text NOT NULL,
			fingerprint varchar(64) NOT NULL,
			ip_address varchar(45) NOT NULL,
			user_agent text,
			created_at datetime,
			expires_at datetime NOT NULL,
			last_used_at datetime,
			UNIQUE (user_id, fingerprint)
		)`,
	} {
		require.NoError(t, db.Exec(ddl).Error)
	}

	return db
}

func newTwoFactorTestService(t *testing.T) (TwoFactorService, *MockCache) {
	t.Helper()

	db := openTwoFactorTestDB(t)
	mockCache := NewMockCache()

	return TwoFactorService{
		DB:    db,
		Cache: mockCache,
		AuthConfig: models.AuthConfig{
			SecretEncryptionKey: twoFactorTestEncryptionKey,
		},
		Profiles: &twofactor.ProfileStore{DB: db},
		Trust: &twofactor.TrustStore{
			DB:   db,
			Salt: "service-test-salt",
			TTL:  30 * 24 * time.Hour,
		},
		Vault: &twofactor.Vault{
			DB:       db,
			Length:   16,
			Cooldown: 24 * time.Hour,
		},
		Issuer:         "helpdesk",
		ActivityLogger: &MockActivityLogger{},
	}, mockCache
}

func seedServiceProfile(
	t *testing.T,
	db *gorm.DB,
	userID uuid.UUID,
	secret string,
) *models.TwoFactorProfile {
	t.Helper()

	encrypted, err := helpers.EncryptSecret(secret, []byte(twoFactorTestEncryptionKey))
	require.NoError(t, err)

	now := time.Now()
	profile := models.TwoFactorProfile{
		ID:                  uuid.New(),
		UserID:              userID,
		Enabled:             true,
		EncryptedSecret:     &encrypted,
		EnabledAt:           &now,
		LastAuthenticatedAt: &now,
	}
	require.NoError(t, db.Create(&profile).Error)
	return &profile
}

func serviceClaims(userID uuid.UUID) models.UserClaims {
	return models.UserClaims{
		UserID:    userID,
		Email:     "user@example.com",
		SessionID: uuid.New(),
	}
}

func newTestSecret(t *testing.T) string {
	t.Helper()
	key, err := helpers.GenerateTOTPSecret("helpdesk", "user@example.com")
	require.NoError(t, err)
	return key.Secret
}

// TestTwoFactorErrorCodes pins the error codes of the self-service endpoints
// to the published catalog.
func TestTwoFactorErrorCodes(t *testing.T) {
	t.Run("should refuse to restart setup once enabled", func(t *testing.T) {
		service, _ := newTwoFactorTestService(t)
		userID := uuid.New()
		seedServiceProfile(t, service.DB, userID, newTestSecret(t))

		_, err := service.BeginSetup(zap.NewNop(), serviceClaims(userID), uuid.UUIDs{})

		var apiErr *apierrors.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 409, apiErr.Status)
		assert.Contains(t, apiErr.Codes, apierrors.ErrTwoFactorAlreadyEnabled)
	})

	t.Run("should reject setup confirmation before setup started", func(t *testing.T) {
		service, _ := newTwoFactorTestService(t)

		_, err := service.CompleteSetup(
			zap.NewNop(), serviceClaims(uuid.New()), uuid.UUIDs{},
			models.TwoFactorSetupBody{Code: "123456"},
		)

		var apiErr *apierrors.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 400, apiErr.Status)
		assert.Contains(t, apiErr.Codes, apierrors.ErrNoSecretConfigured)
	})

	t.Run("should reject verification when not enrolled", func(t *testing.T) {
		service, _ := newTwoFactorTestService(t)

		_, err := service.Verify(
			zap.NewNop(), serviceClaims(uuid.New()), uuid.UUIDs{},
			models.TwoFactorVerifyBody{Code: "123456"},
		)

		var apiErr *apierrors.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 400, apiErr.Status)
		assert.Contains(t, apiErr.Codes, apierrors.ErrTwoFactorNotEnabled)
	})

	t.Run("should reject a wrong code and count the attempt", func(t *testing.T) {
		service, mockCache := newTwoFactorTestService(t)
		userID := uuid.New()
		seedServiceProfile(t, service.DB, userID, newTestSecret(t))

		_, err := service.Verify(
			zap.NewNop(), serviceClaims(userID), uuid.UUIDs{},
			models.TwoFactorVerifyBody{Code: "000000"},
		)

		var apiErr *apierrors.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 401, apiErr.Status)
		assert.Contains(t, apiErr.Codes, apierrors.ErrInvalidCode)
		assert.Equal(t, 1, mockCache.attempts[userID.String()])
	})

	t.Run("should verify a current code and stamp the session", func(t *testing.T) {
		service, mockCache := newTwoFactorTestService(t)
		userID := uuid.New()
		secret := newTestSecret(t)
		seedServiceProfile(t, service.DB, userID, secret)

		code, err := helpers.GenerateTOTPCode(secret, time.Now())
		require.NoError(t, err)

		claims := serviceClaims(userID)
		require.NoError(t, mockCache.SetSessionState(claims.SessionID.String(), models.SessionState{}))

		response, err := service.Verify(
			zap.NewNop(), claims, uuid.UUIDs{},
			models.TwoFactorVerifyBody{Code: code},
		)

		require.NoError(t, err)
		assert.True(t, response.Verified)

		state, found, err := mockCache.GetSessionState(claims.SessionID.String())
		require.NoError(t, err)
		require.True(t, found)
		assert.True(t, state.Verified, "verification must mark the session")
	})

	t.Run("should reject a wrong recovery code", func(t *testing.T) {
		service, _ := newTwoFactorTestService(t)
		userID := uuid.New()
		profile := seedServiceProfile(t, service.DB, userID, newTestSecret(t))

		hash, err := argon2id.CreateHash("REALRECOVERYCODE", argon2id.DefaultParams)
		require.NoError(t, err)
		require.NoError(t, service.DB.Model(profile).
			Update("recovery_code_hash", hash).Error)

		_, err = service.Verify(
			zap.NewNop(), serviceClaims(userID), uuid.UUIDs{},
			models.TwoFactorVerifyBody{Code: "WRONGRECOVERYCOD", RecoveryMode: true},
		)

		var apiErr *apierrors.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 401, apiErr.Status)
		assert.Contains(t, apiErr.Codes, apierrors.ErrRecoveryCodeInvalid)
	})

	t.Run("should throttle recovery code regeneration inside the cooldown", func(t *testing.T) {
		service, _ := newTwoFactorTestService(t)
		userID := uuid.New()
		profile := seedServiceProfile(t, service.DB, userID, newTestSecret(t))

		generatedAt := time.Now().Add(-time.Hour)
		require.NoError(t, service.DB.Model(profile).
			Update("recovery_code_generated_at", generatedAt).Error)

		_, err := service.RegenerateRecoveryCode(zap.NewNop(), serviceClaims(userID), uuid.UUIDs{})

		var apiErr *apierrors.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 429, apiErr.Status)
		assert.Contains(t, apiErr.Codes, apierrors.ErrThrottledRegeneration)
	})

	t.Run("should refuse disabling when not enrolled", func(t *testing.T) {
		service, _ := newTwoFactorTestService(t)

		err := service.Disable(
			zap.NewNop(), serviceClaims(uuid.New()), uuid.UUIDs{},
			models.TwoFactorDisableBody{Code: "123456"},
		)

		var apiErr *apierrors.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 400, apiErr.Status)
		assert.Contains(t, apiErr.Codes, apierrors.ErrTwoFactorNotEnabled)
	})
}
