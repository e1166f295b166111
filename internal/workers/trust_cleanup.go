package workers

import (
	"context"
	"strconv"
	"time"

	"helpdesk/internal/activity"
	"helpdesk/internal/models"
	"helpdesk/internal/twofactor"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TrustCleanupWorker sweeps expired device trust and abandoned enrollments.
// Expired TrustedDevice rows only stop matching once swept here; pending TOTP
// secrets on never-enabled profiles are cleared after the configured age so a
// forgotten setup does not leave a live secret in the database.
type TrustCleanupWorker struct {
	DB                  *gorm.DB
	Trust               *twofactor.TrustStore
	PendingSecretMaxAge time.Duration
	RunInterval         time.Duration
	ActivityLogger      activity.IActivityLogger
}

// Start begins the cleanup loop. It runs an immediate cycle on startup, then
// repeats on the configured interval until the context is cancelled.
func (w *TrustCleanupWorker) Start(ctx context.Context) {
	tracker := &RunTracker{DB: w.DB}

	StartPeriodicWorker(ctx, "trust_cleanup", w.RunInterval, tracker, []WorkerTask{
		{Name: "expired_devices", Fn: w.sweepExpiredDevices},
		{Name: "stale_pending_secrets", Fn: w.sweepStalePendingSecrets},
	})
}

// sweepExpiredDevices hard-deletes trusted devices past their expiry.
func (w *TrustCleanupWorker) sweepExpiredDevices(_ context.Context) (int, error) {
	deleted, err := w.Trust.DeleteExpired(time.Now())
	if err != nil {
		return 0, err
	}

	if deleted > 0 {
		zap.L().Debug("Deleted expired trusted devices", zap.Int64("count", deleted))

		action := models.Activity{
			Message: activity.DeviceRevoked,
			Filter: activity.NewLogFilter(map[string]string{
				"action":      activity.DeviceRevoked,
				"actor_id":    "trust_cleanup",
				"object_type": "trusted_device",
				"count":       strconv.FormatInt(deleted, 10),
			}),
		}
		if logErr := w.ActivityLogger.Send(action); logErr != nil {
			zap.L().Error("Failed to log device sweep", zap.Error(logErr))
		}
	}

	return int(deleted), nil
}

// sweepStalePendingSecrets clears encrypted secrets on profiles whose setup
// was started but never confirmed.
func (w *TrustCleanupWorker) sweepStalePendingSecrets(_ context.Context) (int, error) {
	threshold := time.Now().Add(-w.PendingSecretMaxAge)

	result := w.DB.Model(&models.TwoFactorProfile{}).
		Where("enabled = ? AND encrypted_secret IS NOT NULL AND updated_at < ?", false, threshold).
		Update("encrypted_secret", nil)

	if result.Error != nil {
		return 0, result.Error
	}

	if result.RowsAffected > 0 {
		zap.L().Debug("Cleared stale pending secrets", zap.Int64("count", result.RowsAffected))
	}

	return int(result.RowsAffected), nil
}
