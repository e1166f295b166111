package twofactor

import (
	"time"

	"helpdesk/internal/helpers"
	"helpdesk/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TrustStore manages remembered (device, IP) pairs. A device is identified
// by a salted fingerprint of its user agent; trust requires an unexpired row
// AND an exact IP match.
type TrustStore struct {
	DB   *gorm.DB
	Salt string
	TTL  time.Duration
	Now  func() time.Time
}

func (s *TrustStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Fingerprint derives the device identifier for a user agent.
func (s *TrustStore) Fingerprint(userAgent string) string {
	return helpers.DeviceFingerprint(s.Salt, userAgent)
}

// IsTrusted reports whether the (fingerprint, ip) pair is currently trusted
// for the user. A hit touches last_used_at.
func (s *TrustStore) IsTrusted(userID uuid.UUID, fingerprint, ip string) (bool, error) {
	var device models.TrustedDevice
	result := s.DB.Where("user_id = ? AND fingerprint = ?", userID, fingerprint).
		Limit(1).Find(&device)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	now := s.now()
	if !device.IsValid(now) || device.IPAddress != ip {
		return false, nil
	}

	// The usage stamp is best effort; a trusted device stays trusted even
	// when the write fails.
	if err := s.DB.Model(&device).Update("last_used_at", now).Error; err != nil {
		zap.L().Error("Failed to touch trusted device",
			zap.String("device_id", device.ID.String()),
			zap.Error(err))
	}
	return true, nil
}

// Trust upserts the device with a fresh expiry. Re-trusting an existing
// device extends its window and rebinds the IP.
func (s *TrustStore) Trust(userID uuid.UUID, fingerprint, ip, userAgent string) (*models.TrustedDevice, error) {
	now := s.now()
	device := models.TrustedDevice{
		UserID:      userID,
		Fingerprint: fingerprint,
		IPAddress:   ip,
		UserAgent:   userAgent,
		ExpiresAt:   now.Add(s.TTL),
		LastUsedAt:  now,
	}

	result := s.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "fingerprint"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"ip_address", "user_agent", "expires_at", "last_used_at",
		}),
	}).Create(&device)
	if result.Error != nil {
		return nil, result.Error
	}

	return &device, nil
}

// List returns the user's devices, current first.
func (s *TrustStore) List(userID uuid.UUID) ([]models.TrustedDevice, error) {
	var devices []models.TrustedDevice
	result := s.DB.Where("user_id = ?", userID).
		Order("last_used_at DESC").
		Find(&devices)
	return devices, result.Error
}

// Revoke deletes one device by id, scoped to the user.
func (s *TrustStore) Revoke(userID, deviceID uuid.UUID) (int64, error) {
	result := s.DB.Where("user_id = ? AND id = ?", userID, deviceID).
		Delete(&models.TrustedDevice{})
	return result.RowsAffected, result.Error
}

// RevokeAll deletes every device for the user.
func (s *TrustStore) RevokeAll(userID uuid.UUID) (int64, error) {
	result := s.DB.Where("user_id = ?", userID).Delete(&models.TrustedDevice{})
	return result.RowsAffected, result.Error
}

// DeleteExpired sweeps rows past their expiry. Used by the cleanup worker.
func (s *TrustStore) DeleteExpired(now time.Time) (int64, error) {
	result := s.DB.Where("expires_at < ?", now).Delete(&models.TrustedDevice{})
	return result.RowsAffected, result.Error
}
