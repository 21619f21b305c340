package utils

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

func DeserializeFromJSON(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		slog.Warn("[KafkaUtils] Failed to deserialize JSON",
			slog.String("error", err.Error()))
		return err
	}
	return nil
}

// HandleConsumerError logs err at a level matching how serious it is and
// reports whether the consumer can keep going.
func HandleConsumerError(err error) bool {
	if err == nil {
		return true
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		slog.Debug("[KafkaUtils] Consumer stopped", slog.String("reason", err.Error()))
		return false
	}

	var kafkaErr kafka.Error
	if errors.As(err, &kafkaErr) && kafkaErr.IsFatal() {
		slog.Error("[KafkaUtils] Fatal Kafka Consumer Error",
			slog.String("code", kafkaErr.Code().String()),
			slog.String("error", err.Error()))
		return false
	}

	slog.Error("[KafkaUtils] Kafka Consumer Error",
		slog.String("error", err.Error()))
	return true
}
