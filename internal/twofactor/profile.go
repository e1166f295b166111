package twofactor

import (
	"time"

	"helpdesk/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileStore owns the per-user persistent 2FA state. Profiles are created
// lazily; a user who never touches 2FA has no row.
type ProfileStore struct {
	DB *gorm.DB
}

// Get returns the user's profile, or nil when none exists yet.
func (s *ProfileStore) Get(userID uuid.UUID) (*models.TwoFactorProfile, error) {
	var profile models.TwoFactorProfile
	result := s.DB.Where("user_id = ?", userID).Limit(1).Find(&profile)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &profile, nil
}

// GetOrCreate returns the user's profile, creating a disabled one on first
// access. Concurrent creation races resolve through the unique user_id index.
func (s *ProfileStore) GetOrCreate(userID uuid.UUID) (*models.TwoFactorProfile, error) {
	profile := models.TwoFactorProfile{UserID: userID}
	result := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&profile)
	if result.Error != nil {
		return nil, result.Error
	}

	return s.mustGet(userID)
}

func (s *ProfileStore) mustGet(userID uuid.UUID) (*models.TwoFactorProfile, error) {
	var profile models.TwoFactorProfile
	if err := s.DB.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// SetPendingSecret stores a freshly generated, encrypted TOTP secret for a
// profile that is not yet enabled.
func (s *ProfileStore) SetPendingSecret(userID uuid.UUID, encryptedSecret string) error {
	return s.DB.Model(&models.TwoFactorProfile{}).
		Where("user_id = ? AND enabled = ?", userID, false).
		Update("encrypted_secret", encryptedSecret).Error
}

// Enable flips the profile on after a successful setup confirmation. The
// stale recovery hash from a previous enrollment is cleared.
func (s *ProfileStore) Enable(userID uuid.UUID, now time.Time) error {
	return s.DB.Model(&models.TwoFactorProfile{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"enabled":                    true,
			"enabled_at":                 now,
			"last_authenticated_at":      now,
			"recovery_code_hash":         nil,
			"recovery_code_generated_at": nil,
		}).Error
}

// Disable turns 2FA off and wipes every secret-bearing column, including the
// single-slot trusted device fields.
func (s *ProfileStore) Disable(userID uuid.UUID) error {
	return s.DB.Model(&models.TwoFactorProfile{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"enabled":                    false,
			"encrypted_secret":           nil,
			"enabled_at":                 nil,
			"recovery_code_hash":         nil,
			"recovery_code_generated_at": nil,
			"trusted_ip":                 nil,
			"trusted_fingerprint":        nil,
			"trusted_until":              nil,
		}).Error
}

// TouchAuthenticated stamps a successful verification. Concurrent sessions
// race last-writer-wins; the window only shifts by fractions of a second.
func (s *ProfileStore) TouchAuthenticated(userID uuid.UUID, now time.Time) error {
	return s.DB.Model(&models.TwoFactorProfile{}).
		Where("user_id = ?", userID).
		Update("last_authenticated_at", now).Error
}

// SetAccountTrust records the single most-recently-trusted device on the
// profile itself. The TrustedDevice table keeps the full set.
func (s *ProfileStore) SetAccountTrust(userID uuid.UUID, fingerprint, ip string, until time.Time) error {
	return s.DB.Model(&models.TwoFactorProfile{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"trusted_fingerprint": fingerprint,
			"trusted_ip":          ip,
			"trusted_until":       until,
		}).Error
}

// ClearAccountTrust empties the single-slot trusted device fields.
func (s *ProfileStore) ClearAccountTrust(userID uuid.UUID) error {
	return s.DB.Model(&models.TwoFactorProfile{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"trusted_fingerprint": nil,
			"trusted_ip":          nil,
			"trusted_until":       nil,
		}).Error
}
