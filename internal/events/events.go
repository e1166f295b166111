package events

import (
	"encoding/json"

	"helpdesk/internal/activity"
	"helpdesk/internal/messaging"
	"helpdesk/internal/notifier"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Event types carried on the security events queue.
const (
	TypeRecoveryCodeUsed  = "recovery_code_used"
	TypeLoopBreakAlert    = "loop_break_alert"
	TypeSecurityAlert     = "security_alert"
	TypeDevicesRevoked    = "devices_revoked"
	TypeTwoFactorDisabled = "two_factor_disabled"
)

// EventParams groups the dependencies the event handlers need. One instance
// is shared by every handler goroutine.
type EventParams struct {
	WebURL         string
	AdminEmail     string
	Notifier       notifier.INotifier
	Publisher      messaging.IPublisher
	DB             *gorm.DB
	ActivityLogger activity.IActivityLogger
}

// SecurityEvent is the wire envelope published to the events queue.
type SecurityEvent struct {
	Type      string            `json:"type"`
	UserID    string            `json:"user_id,omitempty"`
	Email     string            `json:"email,omitempty"`
	WebURL    string            `json:"web_url,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	publisher messaging.IPublisher
}

// Trigger serializes the event and hands it to the publisher. Failures are
// logged, not returned, so callers never fail a user request over a
// notification.
func (e *SecurityEvent) Trigger() {
	if e.publisher == nil {
		return
	}

	payload, err := json.Marshal(e)
	if err != nil {
		zap.L().Error("Failed to marshal security event",
			zap.String("type", e.Type),
			zap.Error(err))
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err = e.publisher.Publish(msg); err != nil {
		zap.L().Error("Failed to publish security event",
			zap.String("type", e.Type),
			zap.Error(err))
	}
}

// NewRecoveryCodeUsed notifies a user that their recovery code just reset
// two-factor authentication on their account.
func NewRecoveryCodeUsed(
	publisher messaging.IPublisher,
	userID string,
	email string,
	webURL string,
	ipAddress string,
) *SecurityEvent {
	return &SecurityEvent{
		Type:      TypeRecoveryCodeUsed,
		UserID:    userID,
		Email:     email,
		WebURL:    webURL,
		Fields:    map[string]string{"ip_address": ipAddress},
		publisher: publisher,
	}
}

// NewLoopBreakAlert raises an administrator alert after a verification
// redirect loop was detected and bypassed.
func NewLoopBreakAlert(
	publisher messaging.IPublisher,
	userID string,
	email string,
	webURL string,
	path string,
) *SecurityEvent {
	return &SecurityEvent{
		Type:      TypeLoopBreakAlert,
		UserID:    userID,
		Email:     email,
		WebURL:    webURL,
		Fields:    map[string]string{"path": path},
		publisher: publisher,
	}
}

// NewSecurityAlert notifies a user about a generic security event such as a
// failed verification streak or a revoked device.
func NewSecurityAlert(
	publisher messaging.IPublisher,
	userID string,
	email string,
	webURL string,
	action string,
	ipAddress string,
) *SecurityEvent {
	return &SecurityEvent{
		Type:   TypeSecurityAlert,
		UserID: userID,
		Email:  email,
		WebURL: webURL,
		Fields: map[string]string{
			"action":     action,
			"ip_address": ipAddress,
		},
		publisher: publisher,
	}
}
