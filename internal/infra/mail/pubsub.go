package mail

import (
	"fmt"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// PubSubConfig selects the event transport: "gochannel" (in process, default) or "kafka".
type PubSubConfig struct {
	Driver        string
	KafkaBrokers  []string
	ConsumerGroup string
}

// PubSub bundles a publisher and subscriber over the same transport.
type PubSub struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Close closes both sides; a shared gochannel is closed once.
func (p PubSub) Close() error {
	err := p.Publisher.Close()
	if any(p.Subscriber) != any(p.Publisher) {
		if cerr := p.Subscriber.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func NewPubSub(cfg PubSubConfig, logger watermill.LoggerAdapter) (PubSub, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "gochannel":
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
		return PubSub{Publisher: ch, Subscriber: ch}, nil
	case "kafka":
		if len(cfg.KafkaBrokers) == 0 {
			return PubSub{}, fmt.Errorf("kafka driver needs at least one broker")
		}
		publisher, err := kafka.NewPublisher(kafka.PublisherConfig{
			Brokers:   cfg.KafkaBrokers,
			Marshaler: kafka.DefaultMarshaler{},
		}, logger)
		if err != nil {
			return PubSub{}, fmt.Errorf("create kafka publisher: %w", err)
		}
		group := cfg.ConsumerGroup
		if group == "" {
			group = "quiz-service-mail"
		}
		subscriber, err := kafka.NewSubscriber(kafka.SubscriberConfig{
			Brokers:       cfg.KafkaBrokers,
			Unmarshaler:   kafka.DefaultMarshaler{},
			ConsumerGroup: group,
		}, logger)
		if err != nil {
			_ = publisher.Close()
			return PubSub{}, fmt.Errorf("create kafka subscriber: %w", err)
		}
		return PubSub{Publisher: publisher, Subscriber: subscriber}, nil
	default:
		return PubSub{}, fmt.Errorf("unknown event driver %q", cfg.Driver)
	}
}
