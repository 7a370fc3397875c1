package bus

import (
	"context"
	"errors"

	"github.com/segmentio/kafka-go"
)

// KafkaSource consumes command messages from a Kafka topic.
type KafkaSource struct {
	reader *kafka.Reader
}

func NewKafkaSource(broker, topic, groupID string) *KafkaSource {
	return &KafkaSource{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     []string{broker},
			Topic:       topic,
			GroupID:     groupID,
			StartOffset: kafka.FirstOffset,
		}),
	}
}

func (s *KafkaSource) Fetch(ctx context.Context) ([]byte, error) {
	msg, err := s.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrNoMessage
		}
		return nil, err
	}
	return msg.Value, nil
}

func (s *KafkaSource) Close() error {
	return s.reader.Close()
}

// KafkaSink publishes telemetry messages to a Kafka topic. Writes are
// synchronous and require acknowledgment from all replicas, matching the
// send-then-flush delivery guarantee the loop depends on.
type KafkaSink struct {
	writer *kafka.Writer
}

func NewKafkaSink(broker, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(broker),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			BatchSize:    1,
		},
	}
}

func (s *KafkaSink) Publish(ctx context.Context, payload []byte) error {
	return s.writer.WriteMessages(ctx, kafka.Message{Value: payload})
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
