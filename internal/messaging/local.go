package messaging

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"
)

// The memory transport backs single-process deployments: publishers and the
// event handler goroutines share one in-process channel, so security events
// flow without a broker. Events do not survive a restart.

// NewMemoryChannel returns the shared channel a publisher/subscriber pair is
// built on. Persistent delivery buffers events raised before the handlers
// subscribe.
func NewMemoryChannel() *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{
		Persistent: true,
	}, watermill.NopLogger{})
}

type MemoryPublisher struct {
	topic string
	bus   *gochannel.GoChannel
}

func NewMemoryPublisher(bus *gochannel.GoChannel, topic string) IPublisher {
	return &MemoryPublisher{topic: topic, bus: bus}
}

func (p *MemoryPublisher) Publish(messages ...*message.Message) error {
	return p.bus.Publish(p.topic, messages...)
}

func (p *MemoryPublisher) Close() error {
	return p.bus.Close()
}

type MemorySubscriber struct {
	topic string
	bus   *gochannel.GoChannel
}

func NewMemorySubscriber(bus *gochannel.GoChannel, topic string) ISubscriber {
	return &MemorySubscriber{topic: topic, bus: bus}
}

func (s *MemorySubscriber) Subscribe() <-chan *message.Message {
	messages, err := s.bus.Subscribe(context.Background(), s.topic)
	if err != nil {
		zap.L().Error("Failed to subscribe to memory topic",
			zap.String("topic", s.topic),
			zap.Error(err))
		return nil
	}
	return messages
}

func (s *MemorySubscriber) Close() error {
	return s.bus.Close()
}
