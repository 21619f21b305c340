package kafka_client

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

type ConsumerFunc func(ctx context.Context, consumer *kafka.Consumer)

// StartConsumer blocks in fn until ctx is done, then closes the consumer.
func StartConsumer(ctx context.Context, cfg KafkaConfig, fn ConsumerFunc) error {
	consumer, err := NewConsumer(cfg)
	if err != nil {
		return fmt.Errorf("[ConsumerFactory] Failed to initialize Kafka consumer: %w", err)
	}
	defer consumer.Close()

	slog.Info("[ConsumerFactory] Starting consumer for topic...",
		slog.String("topic", cfg.EntriesTopic))
	fn(ctx, consumer)

	return nil
}
