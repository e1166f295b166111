package messaging

import (
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const receiveTimeout = 2 * time.Second

func receiveOne(t *testing.T, messages <-chan *message.Message) *message.Message {
	t.Helper()
	select {
	case msg := <-messages:
		return msg
	case <-time.After(receiveTimeout):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func securityEventPayload(eventType string) []byte {
	return []byte(`{"type":"` + eventType + `","user_id":"a1b2c3","email":"user@example.com"}`)
}

// TestMemoryTransport covers the in-process security events channel.
func TestMemoryTransport(t *testing.T) {
	t.Run("should deliver a published event to the subscriber", func(t *testing.T) {
		bus := NewMemoryChannel()
		pub := NewMemoryPublisher(bus, "security_events")
		sub := NewMemorySubscriber(bus, "security_events")
		defer pub.Close()

		messages := sub.Subscribe()

		id := watermill.NewUUID()
		payload := securityEventPayload("recovery_code_used")
		require.NoError(t, pub.Publish(message.NewMessage(id, payload)))

		msg := receiveOne(t, messages)
		assert.Equal(t, id, msg.UUID)
		assert.JSONEq(t, string(payload), string(msg.Payload))
		msg.Ack()
	})

	t.Run("should deliver every event exactly once", func(t *testing.T) {
		bus := NewMemoryChannel()
		pub := NewMemoryPublisher(bus, "security_events")
		sub := NewMemorySubscriber(bus, "security_events")
		defer pub.Close()

		messages := sub.Subscribe()

		const count = 5
		pending := make(map[string]bool, count)
		for range count {
			id := watermill.NewUUID()
			pending[id] = true
			require.NoError(t, pub.Publish(
				message.NewMessage(id, securityEventPayload("loop_break_alert"))))
		}

		for range count {
			msg := receiveOne(t, messages)
			assert.True(t, pending[msg.UUID], "unexpected or duplicate event %s", msg.UUID)
			delete(pending, msg.UUID)
			msg.Ack()
		}
		assert.Empty(t, pending, "every published event must arrive")
	})

	t.Run("should keep delivering after an ack", func(t *testing.T) {
		bus := NewMemoryChannel()
		pub := NewMemoryPublisher(bus, "security_events")
		sub := NewMemorySubscriber(bus, "security_events")
		defer pub.Close()

		messages := sub.Subscribe()

		require.NoError(t, pub.Publish(
			message.NewMessage(watermill.NewUUID(), securityEventPayload("security_alert"))))
		receiveOne(t, messages).Ack()

		require.NoError(t, pub.Publish(
			message.NewMessage(watermill.NewUUID(), securityEventPayload("devices_revoked"))))

		msg := receiveOne(t, messages)
		assert.JSONEq(t, string(securityEventPayload("devices_revoked")), string(msg.Payload))
		msg.Ack()
	})

	t.Run("should refuse to publish after close", func(t *testing.T) {
		bus := NewMemoryChannel()
		pub := NewMemoryPublisher(bus, "security_events")

		require.NoError(t, pub.Close())

		err := pub.Publish(
			message.NewMessage(watermill.NewUUID(), securityEventPayload("security_alert")))
		assert.Error(t, err)
	})

	t.Run("should close the subscriber cleanly", func(t *testing.T) {
		bus := NewMemoryChannel()
		sub := NewMemorySubscriber(bus, "security_events")

		assert.NoError(t, sub.Close())
	})

	t.Run("should isolate the notification and security queues", func(t *testing.T) {
		securityBus := NewMemoryChannel()
		securityPub := NewMemoryPublisher(securityBus, "security_events")
		securitySub := NewMemorySubscriber(securityBus, "security_events")
		defer securityPub.Close()

		notificationBus := NewMemoryChannel()
		notificationSub := NewMemorySubscriber(notificationBus, "notifications")
		defer notificationBus.Close()

		securityMessages := securitySub.Subscribe()
		notificationMessages := notificationSub.Subscribe()

		id := watermill.NewUUID()
		require.NoError(t, securityPub.Publish(
			message.NewMessage(id, securityEventPayload("recovery_code_used"))))

		msg := receiveOne(t, securityMessages)
		assert.Equal(t, id, msg.UUID)
		msg.Ack()

		select {
		case stray := <-notificationMessages:
			t.Fatalf("notifications queue must not see security events, got %s", stray.UUID)
		case <-time.After(200 * time.Millisecond):
		}
	})
}
