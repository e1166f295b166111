package activity

import (
	"strconv"
	"time"

	"helpdesk/internal/models"
)

// IActivityLogger defines a common interface for all audit log backends.
type IActivityLogger interface {
	Search(searchCriteria map[string][]string) ([]map[string]interface{}, error)
	Send(message models.Activity) error
	CountByDay(searchCriteria map[string][]string, days int) ([]models.TimeSeriesPoint, error)
	Close() error
}

// Audit actions recorded by the authentication and 2FA flows.
const (
	UserLoggedIn          = "user_logged_in"
	UserLoggedOut         = "user_logged_out"
	TwoFactorEnabled      = "two_factor_enabled"
	TwoFactorDisabled     = "two_factor_disabled"
	TwoFactorVerified     = "two_factor_verified"
	TwoFactorFailed       = "two_factor_failed"
	TwoFactorSetupStarted = "two_factor_setup_started"
	RecoveryCodeGenerated = "recovery_code_generated"
	RecoveryCodeUsed      = "recovery_code_used"
	DeviceTrusted         = "device_trusted"
	DeviceRevoked         = "device_revoked"
	LoopBreakTriggered    = "loop_break_triggered"
)

// NewLogFilter builds a filter stamped with the current time.
func NewLogFilter(fields map[string]string) models.LogFilter {
	return models.LogFilter{
		Fields:    fields,
		Timestamp: strconv.FormatInt(time.Now().UnixNano(), 10),
	}
}
