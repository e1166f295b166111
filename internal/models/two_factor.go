package models

import (
	"time"

	"github.com/google/uuid"
)

// TwoFactorProfile is the per-user persistent 2FA state. One row per user,
// created lazily on first 2FA-related access. The trusted_* columns are the
// single most-recently-trusted device slot; the TrustedDevice table tracks
// the full set. Both mechanisms are consulted by the enforcement engine.
type TwoFactorProfile struct {
	ID                      uuid.UUID  `gorm:"type:uuid;primarykey;default:gen_random_uuid()" json:"id"`
	UserID                  uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex"                 json:"user_id"`
	Enabled                 bool       `gorm:"not null;default:false"                         json:"enabled"`
	EncryptedSecret         *string    `gorm:"type:text"                                      json:"-"`
	EnabledAt               *time.Time `                                                      json:"enabled_at,omitempty"`
	LastAuthenticatedAt     *time.Time `                                                      json:"last_authenticated_at,omitempty"`
	RecoveryCodeHash        *string    `gorm:"type:varchar(128)"                              json:"-"`
	RecoveryCodeGeneratedAt *time.Time `                                                      json:"recovery_code_generated_at,omitempty"`
	TrustedIP               *string    `gorm:"type:varchar(45)"                               json:"-"`
	TrustedFingerprint      *string    `gorm:"type:varchar(64)"                               json:"-"`
	TrustedUntil            *time.Time `                                                      json:"trusted_until,omitempty"`
	CreatedAt               time.Time  `                                                      json:"created_at"`
	UpdatedAt               time.Time  `                                                      json:"updated_at"`
}

// AuthenticatedWithin reports whether the last successful verification is
// newer than the given window.
func (p *TwoFactorProfile) AuthenticatedWithin(window time.Duration, now time.Time) bool {
	return p.LastAuthenticatedAt != nil && now.Sub(*p.LastAuthenticatedAt) < window
}

// AccountTrustMatches checks the single-slot trusted device fields against
// the current request. The IP must match exactly.
func (p *TwoFactorProfile) AccountTrustMatches(fingerprint, ip string, now time.Time) bool {
	if p.TrustedUntil == nil || p.TrustedFingerprint == nil || p.TrustedIP == nil {
		return false
	}
	return now.Before(*p.TrustedUntil) && *p.TrustedFingerprint == fingerprint && *p.TrustedIP == ip
}

// TrustedDevice is one remembered (device, IP) pair for a user. Unique per
// (user_id, fingerprint); expired rows are swept by the cleanup worker.
type TrustedDevice struct {
	ID          uuid.UUID `gorm:"type:uuid;primarykey;default:gen_random_uuid()"        json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_fingerprint"   json:"user_id"`
	Fingerprint string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_user_fingerprint" json:"fingerprint"`
	IPAddress   string    `gorm:"type:varchar(45);not null"                             json:"ip_address"`
	UserAgent   string    `gorm:"type:text"                                             json:"user_agent"`
	CreatedAt   time.Time `                                                             json:"created_at"`
	ExpiresAt   time.Time `gorm:"not null;index"                                        json:"expires_at"`
	LastUsedAt  time.Time `                                                             json:"last_used_at"`
}

// IsValid reports whether the device trust has not expired.
func (d *TrustedDevice) IsValid(now time.Time) bool {
	return now.Before(d.ExpiresAt)
}

// ToActivity returns the activity-log view of the device.
func (d *TrustedDevice) ToActivity() TrustedDeviceActivity {
	return TrustedDeviceActivity{ID: d.ID, IPAddress: d.IPAddress, ExpiresAt: d.ExpiresAt}
}

type TrustedDeviceActivity struct {
	ID        uuid.UUID `json:"id"`
	IPAddress string    `json:"ip_address"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TwoFactorSetupResponse is returned when initiating enrollment.
type TwoFactorSetupResponse struct {
	Secret    string `json:"secret"`
	QRCodeURI string `json:"qr_code_uri"`
	Issuer    string `json:"issuer"`
}

// TwoFactorSetupBody confirms enrollment with a code from the authenticator.
type TwoFactorSetupBody struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// TwoFactorSetupCompleteResponse is returned on successful enrollment.
// RecoveryCode is shown exactly once and is unrecoverable afterwards.
type TwoFactorSetupCompleteResponse struct {
	RecoveryCode string `json:"recovery_code"`
	ReturnPath   string `json:"return_path,omitempty"`
}

// TwoFactorVerifyBody verifies a pending challenge with either a TOTP code
// or, in recovery mode, an outstanding recovery code.
type TwoFactorVerifyBody struct {
	Code         string `json:"code"          validate:"required,min=6,max=32"`
	RecoveryMode bool   `json:"recovery_mode"`
	TrustDevice  bool   `json:"trust_device"`
}

// TwoFactorVerifyResponse reports the verification outcome.
type TwoFactorVerifyResponse struct {
	Verified      bool   `json:"verified"`
	SetupRequired bool   `json:"setup_required,omitempty"`
	ReturnPath    string `json:"return_path,omitempty"`
}

// TwoFactorDisableBody confirms disabling with a current TOTP code.
type TwoFactorDisableBody struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// TwoFactorRecoveryCodeResponse carries a freshly generated recovery code.
type TwoFactorRecoveryCodeResponse struct {
	RecoveryCode string `json:"recovery_code"`
}

// TwoFactorDebugResponse exposes the enforcement view of the caller's own
// session. It backs the debug endpoint the loop breaker points users at.
type TwoFactorDebugResponse struct {
	EnforcementEnabled bool         `json:"enforcement_enabled"`
	SetupPath          string       `json:"setup_path"`
	VerifyPath         string       `json:"verify_path"`
	ExemptPaths        []string     `json:"exempt_paths"`
	VerifyPathExempt   bool         `json:"verify_path_exempt"`
	Session            SessionState `json:"session"`
	ProfileEnabled     bool         `json:"profile_enabled"`
	GroupExempt        bool         `json:"group_exempt"`
	RoleExempt         bool         `json:"role_exempt"`
}

// TwoFactorStatusResponse is the per-user 2FA status summary.
type TwoFactorStatusResponse struct {
	Enabled             bool       `json:"enabled"`
	EnabledAt           *time.Time `json:"enabled_at,omitempty"`
	LastAuthenticatedAt *time.Time `json:"last_authenticated_at,omitempty"`
	TrustedDevices      int        `json:"trusted_devices"`
	HasRecoveryCode     bool       `json:"has_recovery_code"`
}
