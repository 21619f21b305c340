package kafka_client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

const TXN_RETRIES = 3

// transactionalProducer is satisfied by *kafka.Producer.
type transactionalProducer interface {
	InitTransactions(ctx context.Context) error
	BeginTransaction() error
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	CommitTransaction(ctx context.Context) error
	AbortTransaction(ctx context.Context) error
	Flush(timeoutMs int) int
	Close()
}

type KafkaProducer struct {
	mu          sync.Mutex
	producer    transactionalProducer
	newProducer func() (transactionalProducer, error)
}

func NewKafkaProducer(cfg KafkaConfig) (*KafkaProducer, error) {
	slog.Info("[KafkaClient] Initializing Kafka Producer...",
		slog.String("broker", cfg.Broker))

	kp, err := newKafkaProducer(func() (transactionalProducer, error) {
		return kafka.NewProducer(&kafka.ConfigMap{
			"bootstrap.servers":                     cfg.Broker,
			"security.protocol":                     "PLAINTEXT",
			"api.version.request":                   "true",
			"enable.idempotence":                    true,
			"acks":                                  "all",
			"max.in.flight.requests.per.connection": 1,
			"transactional.id":                      "moodjournal-producer-1",
		})
	})
	if err != nil {
		return nil, err
	}

	slog.Info("[KafkaClient] Kafka Producer initialized successfully")
	return kp, nil
}

func newKafkaProducer(factory func() (transactionalProducer, error)) (*KafkaProducer, error) {
	kp := &KafkaProducer{newProducer: factory}
	p, err := kp.initProducer()
	if err != nil {
		return nil, err
	}
	kp.producer = p
	return kp, nil
}

func (kp *KafkaProducer) initProducer() (transactionalProducer, error) {
	p, err := kp.newProducer()
	if err != nil {
		return nil, fmt.Errorf("[KafkaClient] Failed to create producer: %w", err)
	}
	if err := p.InitTransactions(context.Background()); err != nil {
		p.Close()
		return nil, fmt.Errorf("[KafkaClient] Failed to init transactions: %w", err)
	}
	return p, nil
}

func (kp *KafkaProducer) Close() {
	kp.mu.Lock()
	defer kp.mu.Unlock()

	if kp.producer == nil {
		return
	}
	slog.Info("[KafkaClient] Flushing Kafka producer before shutdown...")
	if remaining := kp.producer.Flush(FLUSH_MS); remaining > 0 {
		slog.Warn("[KafkaClient] Not all messages were delivered before shutdown",
			slog.Int("remaining", remaining))
	}
	kp.producer.Close()
	kp.producer = nil
	slog.Info("[KafkaClient] Kafka producer shut down")
}

// Publish sends value as JSON keyed by key inside its own transaction. A
// transaction that cannot be committed is aborted, and a producer left in a
// fatal state is replaced, so the next call starts from a clean slate.
func (kp *KafkaProducer) Publish(ctx context.Context, topic, key string, value any) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("[KafkaClient] failed to marshal message: %w", err)
	}

	kp.mu.Lock()
	defer kp.mu.Unlock()

	if kp.producer == nil {
		p, err := kp.initProducer()
		if err != nil {
			return err
		}
		kp.producer = p
	}

	if err := kp.producer.BeginTransaction(); err != nil {
		kp.resetTransaction(ctx, err, false)
		return fmt.Errorf("[KafkaClient] failed to begin transaction: %w", err)
	}

	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(key),
		Value:          jsonData,
	}

	for i := 0; i < TXN_RETRIES; i++ {
		err = kp.producer.Produce(msg, nil)
		if err == nil {
			break
		}
		slog.Warn("[KafkaClient] Failed to produce message, retrying...",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))
	}
	if err != nil {
		kp.resetTransaction(ctx, err, true)
		return fmt.Errorf("[KafkaClient] failed to produce message: %w", err)
	}

	var commitErr error
	for i := 0; i < TXN_RETRIES; i++ {
		commitErr = kp.producer.CommitTransaction(ctx)
		if commitErr == nil || !retriable(commitErr) {
			break
		}
		slog.Warn("[KafkaClient] Failed to commit transaction, retrying...",
			slog.Int("attempt", i+1),
			slog.String("error", commitErr.Error()))
	}
	if commitErr != nil {
		kp.resetTransaction(ctx, commitErr, true)
		return fmt.Errorf("[KafkaClient] failed to commit transaction: %w", commitErr)
	}

	slog.Debug("[KafkaClient] Published message transactionally",
		slog.String("topic", topic),
		slog.String("key", key))
	return nil
}

// resetTransaction leaves the producer able to begin a new transaction after cause.
// An open transaction is aborted; a fatal error replaces the producer.
func (kp *KafkaProducer) resetTransaction(ctx context.Context, cause error, inTxn bool) {
	if !fatal(cause) && inTxn {
		abortErr := kp.producer.AbortTransaction(ctx)
		if abortErr == nil {
			slog.Warn("[KafkaClient] Aborted transaction",
				slog.String("cause", cause.Error()))
			return
		}
		slog.Error("[KafkaClient] Failed to abort transaction",
			slog.String("error", abortErr.Error()))
		if !fatal(abortErr) {
			return
		}
	} else if !fatal(cause) {
		return
	}

	slog.Error("[KafkaClient] Producer is in a fatal state, rebuilding...",
		slog.String("cause", cause.Error()))
	kp.producer.Close()
	kp.producer = nil

	p, err := kp.initProducer()
	if err != nil {
		slog.Error("[KafkaClient] Failed to rebuild producer, will retry on next publish",
			slog.String("error", err.Error()))
		return
	}
	kp.producer = p
}

func fatal(err error) bool {
	var kafkaErr kafka.Error
	return errors.As(err, &kafkaErr) && kafkaErr.IsFatal()
}

func retriable(err error) bool {
	var kafkaErr kafka.Error
	if errors.As(err, &kafkaErr) {
		return kafkaErr.IsRetriable()
	}
	return true
}
