package twofactor

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"helpdesk/internal/models"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const recoveryCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ThrottledError reports a regeneration attempt inside the cooldown window.
type ThrottledError struct {
	Remaining time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("recovery code regeneration throttled for %s", e.Remaining.Round(time.Second))
}

// Vault manages single-use recovery codes. Only the argon2id hash is stored;
// the plaintext is shown exactly once at generation time.
type Vault struct {
	DB       *gorm.DB
	Length   int
	Cooldown time.Duration
	Now      func() time.Time
}

func (v *Vault) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

func (v *Vault) newCode() (string, error) {
	code := make([]byte, v.Length)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(recoveryCodeCharset))))
		if err != nil {
			return "", err
		}
		code[i] = recoveryCodeCharset[n.Int64()]
	}
	return string(code), nil
}

// Generate issues a fresh recovery code for the profile, replacing any
// outstanding one. Regeneration inside the cooldown window returns a
// ThrottledError with the remaining wait.
func (v *Vault) Generate(profile *models.TwoFactorProfile) (string, error) {
	now := v.now()

	if profile.RecoveryCodeGeneratedAt != nil {
		elapsed := now.Sub(*profile.RecoveryCodeGeneratedAt)
		if elapsed < v.Cooldown {
			return "", &ThrottledError{Remaining: v.Cooldown - elapsed}
		}
	}

	code, err := v.newCode()
	if err != nil {
		return "", err
	}

	hash, err := argon2id.CreateHash(code, argon2id.DefaultParams)
	if err != nil {
		return "", err
	}

	err = v.DB.Model(&models.TwoFactorProfile{}).
		Where("id = ?", profile.ID).
		Updates(map[string]any{
			"recovery_code_hash":         hash,
			"recovery_code_generated_at": now,
		}).Error
	if err != nil {
		return "", err
	}

	profile.RecoveryCodeHash = &hash
	profile.RecoveryCodeGeneratedAt = &now
	return code, nil
}

// VerifyAndConsume checks the candidate against the outstanding recovery
// code. A match disables 2FA entirely: the secret, the hash and both trust
// mechanisms are wiped so the account falls back to password-only until
// re-enrollment. The mutation is a conditional update keyed on the hash that
// was read, so two concurrent consumers of the same code cannot both win.
// A mismatch (or no outstanding code) reports false without mutation.
func (v *Vault) VerifyAndConsume(userID uuid.UUID, candidate string) (bool, error) {
	var profile models.TwoFactorProfile
	result := v.DB.Where("user_id = ?", userID).Limit(1).Find(&profile)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 || profile.RecoveryCodeHash == nil {
		return false, nil
	}

	match, err := argon2id.ComparePasswordAndHash(candidate, *profile.RecoveryCodeHash)
	if err != nil || !match {
		return false, err
	}

	update := v.DB.Model(&models.TwoFactorProfile{}).
		Where("id = ? AND recovery_code_hash = ?", profile.ID, *profile.RecoveryCodeHash).
		Updates(map[string]any{
			"enabled":                    false,
			"encrypted_secret":           nil,
			"enabled_at":                 nil,
			"recovery_code_hash":         nil,
			"recovery_code_generated_at": nil,
			"trusted_ip":                 nil,
			"trusted_fingerprint":        nil,
			"trusted_until":              nil,
		})
	if update.Error != nil {
		return false, update.Error
	}
	if update.RowsAffected == 0 {
		// Lost the race to a concurrent consumer.
		return false, nil
	}

	err = v.DB.Where("user_id = ?", userID).Delete(&models.TrustedDevice{}).Error
	if err != nil {
		return true, err
	}

	return true, nil
}
