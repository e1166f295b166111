package sql

import (
	"errors"
	"time"

	apierrors "helpdesk/internal/errors"
	"helpdesk/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func GetUserByID(db *gorm.DB, userID uuid.UUID) (models.User, error) {
	var user models.User

	if err := db.Preload("Group").Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, apierrors.NewAPIError(404, "USER_NOT_FOUND")
		}
		return models.User{}, err
	}

	return user, nil
}

func GetEnrollmentsByDay(db *gorm.DB, days int) []models.TimeSeriesPoint {
	var result []models.TimeSeriesPoint

	startDate := time.Now().AddDate(0, 0, -days)

	// Accounts that completed 2FA setup grouped by day
	db.Model(&models.TwoFactorProfile{}).
		Select("TO_CHAR(enabled_at, 'YYYY-MM-DD') as date, COUNT(*) as count").
		Where("enabled = ?", true).
		Where("enabled_at >= ?", startDate).
		Group("TO_CHAR(enabled_at, 'YYYY-MM-DD')").
		Order("date ASC").
		Scan(&result)

	return result
}

func GetTrustedDevicesByDay(db *gorm.DB, days int) []models.TimeSeriesPoint {
	var result []models.TimeSeriesPoint

	startDate := time.Now().AddDate(0, 0, -days)

	db.Model(&models.TrustedDevice{}).
		Select("TO_CHAR(created_at, 'YYYY-MM-DD') as date, COUNT(*) as count").
		Where("created_at >= ?", startDate).
		Group("TO_CHAR(created_at, 'YYYY-MM-DD')").
		Order("date ASC").
		Scan(&result)

	return result
}

// CountEnrolledUsers returns how many users currently have 2FA enabled and
// how many approved users do not.
func CountEnrolledUsers(db *gorm.DB) (enrolled int64, pending int64) {
	db.Model(&models.TwoFactorProfile{}).
		Where("enabled = ?", true).
		Count(&enrolled)

	db.Model(&models.User{}).
		Where("approved = ?", true).
		Where("id NOT IN (?)", db.Model(&models.TwoFactorProfile{}).
			Select("user_id").
			Where("enabled = ?", true)).
		Count(&pending)

	return enrolled, pending
}
