package kafka

import (
	"context"
	"errors"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// PublisherConfig configures a Kafka topic writer.
type PublisherConfig struct {
	Brokers []string
	Topic   string
}

func checkEndpoint(brokers []string, topic string) error {
	if len(brokers) == 0 {
		return errors.New("at least one broker must be provided")
	}
	if topic == "" {
		return errors.New("topic must be provided")
	}
	return nil
}

// messageWriter is the subset of *kafkago.Writer the publishers rely on.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// newWriter hashes message keys onto partitions. Messages that must stay in
// order relative to each other have to share a key.
func newWriter(cfg PublisherConfig) (*kafkago.Writer, error) {
	if err := checkEndpoint(cfg.Brokers, cfg.Topic); err != nil {
		return nil, err
	}
	return &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		AllowAutoTopicCreation: true,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
	}, nil
}

// keyedBatch builds one message per payload, all under key and stamped with
// the same time.
func keyedBatch(key []byte, payloads ...[]byte) []kafkago.Message {
	now := time.Now()
	msgs := make([]kafkago.Message, len(payloads))
	for i, payload := range payloads {
		msgs[i] = kafkago.Message{Key: key, Value: payload, Time: now}
	}
	return msgs
}
