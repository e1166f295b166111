package events

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// HandleEvents consumes the security events queue and fans each event out to
// mail notifications. Messages are acked even when a handler fails so a
// broken SMTP relay cannot wedge the queue; failures are logged instead.
func HandleEvents(params *EventParams, messages <-chan *message.Message) {
	for msg := range messages {
		var event SecurityEvent
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			zap.L().Error("Failed to decode security event",
				zap.String("message_id", msg.UUID),
				zap.Error(err))
			msg.Ack()
			continue
		}

		if err := dispatch(params, &event); err != nil {
			zap.L().Error("Failed to handle security event",
				zap.String("type", event.Type),
				zap.String("user_id", event.UserID),
				zap.Error(err))
		}

		msg.Ack()
	}
}

func dispatch(params *EventParams, event *SecurityEvent) error {
	data := map[string]string{
		"Email":  event.Email,
		"WebURL": params.WebURL,
	}
	for k, v := range event.Fields {
		switch k {
		case "ip_address":
			data["IPAddress"] = v
		case "path":
			data["Path"] = v
		case "action":
			data["Action"] = v
		}
	}

	switch event.Type {
	case TypeRecoveryCodeUsed:
		return params.Notifier.NotifyFromTemplate(
			event.Email,
			"Your recovery code was used",
			"recovery_code_used",
			data,
		)
	case TypeLoopBreakAlert:
		data["Action"] = TypeLoopBreakAlert
		return params.Notifier.NotifyFromTemplate(
			params.AdminEmail,
			"Verification loop bypassed for "+event.Email,
			"admin_alert",
			data,
		)
	case TypeSecurityAlert, TypeDevicesRevoked, TypeTwoFactorDisabled:
		if data["Action"] == "" {
			data["Action"] = event.Type
		}
		return params.Notifier.NotifyFromTemplate(
			event.Email,
			"Security alert on your account",
			"security_alert",
			data,
		)
	default:
		zap.L().Warn("Unknown security event type", zap.String("type", event.Type))
		return nil
	}
}
