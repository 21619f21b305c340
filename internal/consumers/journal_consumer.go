package consumers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/spacesedan/moodjournal/internal/clients/kafka_client"
	"github.com/spacesedan/moodjournal/internal/models"
	"github.com/spacesedan/moodjournal/internal/utils"
)

const (
	HEALTH_POLL_INTERVAL = 2 * time.Second
	HEALTH_WAIT_LIMIT    = 30 * time.Second
	PUBLISH_RETRIES      = 3
	STORE_RETRY_DELAY    = 5 * time.Second
)

var (
	ErrMissingEntryID    = errors.New("[JournalConsumer] event has no entry id")
	ErrUnsupportedAction = errors.New("[JournalConsumer] unsupported journal action")
)

type MoodAnalyzer interface {
	Analyze(ctx context.Context, text string) models.AnalysisOutcome
}

type RecordStore interface {
	BatchPutRecords(ctx context.Context, records []models.MoodAnalysisRecord) error
}

type ResultPublisher interface {
	Publish(ctx context.Context, topic, key string, value any) error
}

// Committer is satisfied by *kafka_client.KafkaCommitHandler.
type Committer interface {
	Commit(msg *kafka.Message) error
}

// MessageSource is satisfied by *kafka.Consumer.
type MessageSource interface {
	kafka_client.MessageReader
	kafka_client.MessageCommitter
}

// JournalConsumer analyzes journal entry events, stores the results in
// batches and commits each entry's offset only after its record is stored.
type JournalConsumer struct {
	analyzer     MoodAnalyzer
	store        RecordStore
	publisher    ResultPublisher
	resultsTopic string

	buffer  *utils.BatchBuffer[models.MoodAnalysisRecord]
	tracker utils.MessageTracker
	health  []*atomic.Bool

	now           func() time.Time
	publishDelay  time.Duration
	healthLimit   time.Duration
	flushInterval time.Duration
	retryDelay    time.Duration
}

// NewJournalConsumer builds a consumer. publisher may be nil, in which case
// results are only stored.
func NewJournalConsumer(analyzer MoodAnalyzer, store RecordStore, publisher ResultPublisher, resultsTopic string) *JournalConsumer {
	return &JournalConsumer{
		analyzer:      analyzer,
		store:         store,
		publisher:     publisher,
		resultsTopic:  resultsTopic,
		buffer:        utils.NewBatchBuffer[models.MoodAnalysisRecord](utils.DYNAMODB_BATCH_SIZE),
		now:           time.Now,
		publishDelay:  2 * time.Second,
		healthLimit:   HEALTH_WAIT_LIMIT,
		flushInterval: utils.BATCH_TIMEOUT,
		retryDelay:    STORE_RETRY_DELAY,
	}
}

// WithHealthCheck makes the consumer wait, for a bounded time, until every
// registered flag reports healthy before analyzing the next entry.
func (jc *JournalConsumer) WithHealthCheck(health *atomic.Bool) *JournalConsumer {
	jc.health = append(jc.health, health)
	return jc
}

// Handler adapts the consumer to kafka_client.StartConsumer.
func (jc *JournalConsumer) Handler() kafka_client.ConsumerFunc {
	return jc.Start
}

func (jc *JournalConsumer) Start(ctx context.Context, consumer *kafka.Consumer) {
	jc.Run(ctx, consumer)
}

// Run reads entries until ctx is done. A batch that fails to store is retried
// before anything else is read, so no later offset is committed past it.
func (jc *JournalConsumer) Run(ctx context.Context, source MessageSource) {
	iterator := kafka_client.NewKafkaMessageIterator(ctx, source)
	committer := kafka_client.NewCommitHandler(ctx, source)

	ticker := time.NewTicker(jc.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Warn("[JournalConsumer] Consumer shutting down...",
				slog.Int("pending", jc.buffer.Size()))
			return
		case <-ticker.C:
			jc.flushUntilStored(ctx, committer)
		default:
			msg, err := iterator.Next()
			if err != nil {
				if !utils.HandleConsumerError(err) {
					slog.Warn("[JournalConsumer] Stopping after unrecoverable read error",
						slog.Int("pending", jc.buffer.Size()))
					return
				}
				continue
			}
			if msg == nil {
				continue
			}

			jc.waitForHealthy(ctx)

			full, err := jc.HandleMessage(ctx, msg)
			if err != nil {
				utils.HandleConsumerError(err)
				continue
			}
			if full {
				jc.flushUntilStored(ctx, committer)
			}
		}
	}
}

func (jc *JournalConsumer) flushUntilStored(ctx context.Context, committer Committer) {
	for attempt := 1; ; attempt++ {
		err := jc.Flush(ctx, committer)
		if err == nil {
			return
		}

		slog.Error("[JournalConsumer] Flush failed, retrying before reading further",
			slog.Int("attempt", attempt),
			slog.Int("pending", jc.buffer.Size()),
			slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return
		case <-time.After(jc.retryDelay):
		}
	}
}

// HandleMessage analyzes one event and buffers its record. It reports
// whether the buffer is ready to be flushed.
func (jc *JournalConsumer) HandleMessage(ctx context.Context, msg *kafka.Message) (bool, error) {
	var event models.JournalEntryEvent
	if err := utils.DeserializeFromJSON(msg.Value, &event); err != nil {
		return false, fmt.Errorf("[JournalConsumer] Failed to decode journal event: %w", err)
	}
	if err := validateEvent(event); err != nil {
		return false, err
	}

	outcome := jc.analyzer.Analyze(ctx, event.Content)
	record := utils.EventToRecord(event, outcome, jc.now())

	slog.Info("[JournalConsumer] Analyzed journal entry",
		slog.String("entry_id", event.EntryID),
		slog.String("sentiment", outcome.Sentiment),
		slog.String("emotion", outcome.Emotion))

	jc.tracker.Track(event.EntryID, msg)
	return jc.buffer.Add(record), nil
}

// Flush stores the buffered records, publishes them and commits the offsets
// of the messages that carried them. Only the latest record per entry is
// written. If storing fails the batch goes back into the buffer with its
// messages still tracked and nothing is committed.
func (jc *JournalConsumer) Flush(ctx context.Context, committer Committer) error {
	batch := jc.buffer.GetAndClear()
	if len(batch) == 0 {
		return nil
	}

	records := utils.LatestPerEntry(batch)
	if err := jc.store.BatchPutRecords(ctx, records); err != nil {
		jc.buffer.Restore(batch)
		return fmt.Errorf("[JournalConsumer] Failed to store %d mood analyses: %w", len(records), err)
	}

	var stored []*kafka.Message
	for _, record := range records {
		jc.publish(ctx, record)
		stored = append(stored, jc.tracker.Take(record.EntryID)...)
	}

	for _, msg := range utils.LatestOffsets(stored) {
		if err := committer.Commit(msg); err != nil {
			slog.Warn("[JournalConsumer] Failed to commit offset",
				slog.Int("partition", int(msg.TopicPartition.Partition)),
				slog.String("offset", msg.TopicPartition.Offset.String()),
				slog.String("error", err.Error()))
		}
	}

	slog.Info("[JournalConsumer] Flushed mood analyses",
		slog.Int("count", len(records)),
		slog.Int("messages", len(stored)))
	return nil
}

func (jc *JournalConsumer) publish(ctx context.Context, record models.MoodAnalysisRecord) {
	if jc.publisher == nil || jc.resultsTopic == "" {
		return
	}

	for i := 0; i < PUBLISH_RETRIES; i++ {
		err := jc.publisher.Publish(ctx, jc.resultsTopic, record.EntryID, record)
		if err == nil {
			return
		}
		slog.Warn("[JournalConsumer] Publishing mood analysis failed",
			slog.Int("attempt", i+1),
			slog.String("entry_id", record.EntryID),
			slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return
		case <-time.After(jc.publishDelay):
		}
	}
}

func (jc *JournalConsumer) healthy() bool {
	for _, h := range jc.health {
		if !h.Load() {
			return false
		}
	}
	return true
}

// waitForHealthy gives an unhealthy classifier a chance to recover. After the
// limit the entry is analyzed anyway and gets a degraded outcome.
func (jc *JournalConsumer) waitForHealthy(ctx context.Context) {
	if jc.healthy() {
		return
	}

	slog.Warn("[JournalConsumer] Classifier unhealthy, waiting before analysis...")
	deadline := time.NewTimer(jc.healthLimit)
	defer deadline.Stop()
	ticker := time.NewTicker(HEALTH_POLL_INTERVAL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			slog.Warn("[JournalConsumer] Classifier still unhealthy, continuing")
			return
		case <-ticker.C:
			if jc.healthy() {
				slog.Info("[JournalConsumer] Classifier recovered")
				return
			}
		}
	}
}

func validateEvent(event models.JournalEntryEvent) error {
	if strings.TrimSpace(event.EntryID) == "" {
		return ErrMissingEntryID
	}
	switch event.Action {
	case "", models.JOURNAL_ACTION_CREATED, models.JOURNAL_ACTION_UPDATED:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedAction, event.Action)
	}
}
