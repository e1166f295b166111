package core

import (
	"encoding/json"

	"helpdesk/internal/configuration"
	"helpdesk/internal/events"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// EventRouter is the publisher handed to services. It peeks at the event
// envelope and steers each message to the right queue: administrator alerts
// go to the security events queue, everything else to user notifications.
type EventRouter struct {
	manager *EventsManager
}

func NewEventRouter(manager *EventsManager) *EventRouter {
	return &EventRouter{manager: manager}
}

func (r *EventRouter) Publish(msgs ...*message.Message) error {
	for _, msg := range msgs {
		topicKey := routeFor(msg.Payload)

		publisher := r.manager.GetPublisher(topicKey)
		if publisher == nil {
			zap.L().Error("No publisher for topic", zap.String("topic_key", topicKey))
			continue
		}

		if err := publisher.Publish(msg); err != nil {
			return err
		}
	}

	return nil
}

func (r *EventRouter) Close() error {
	// Publishers are owned by the events manager.
	return nil
}

func routeFor(payload []byte) string {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		zap.L().Warn("Unroutable event payload", zap.Error(err))
		return configuration.EventsNotifications
	}

	if envelope.Type == events.TypeLoopBreakAlert {
		return configuration.EventsSecurityEvents
	}

	return configuration.EventsNotifications
}
