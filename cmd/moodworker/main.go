package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spacesedan/moodjournal/config"
	"github.com/spacesedan/moodjournal/internal/analysis"
	"github.com/spacesedan/moodjournal/internal/clients"
	"github.com/spacesedan/moodjournal/internal/clients/kafka_client"
	"github.com/spacesedan/moodjournal/internal/consumers"
	"github.com/spacesedan/moodjournal/internal/db"
	"github.com/spacesedan/moodjournal/internal/logging"
	"github.com/spacesedan/moodjournal/internal/monitoring"
)

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)
	cfg := config.Load()
	logging.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kafkaCfg := kafka_client.GetKafkaConfig(cfg.Kafka)

	var producer *kafka_client.KafkaProducer
	for producer == nil {
		p, err := kafka_client.NewKafkaProducer(kafkaCfg)
		if err == nil {
			producer = p
			break
		}

		slog.Warn("Kafka init failed, retrying...", slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
	defer producer.Close()

	dynamoClient, err := clients.GetDynamoDBClient(ctx, cfg.DynamoDB)
	if err != nil {
		slog.Error("[Main] Failed to create DynamoDB client",
			slog.String("error", err.Error()))
		os.Exit(1)
	}
	store := db.NewMoodStore(dynamoClient, cfg.DynamoDB.TableName)

	analyzer, classifier, cleanup := analysis.NewFromSettings(ctx, cfg)
	defer cleanup()

	classifierHealthy := &atomic.Bool{}
	classifierHealthy.Store(true)
	if classifier.Configured() {
		go monitoring.MonitorClassifierHealth(ctx, classifier,
			[]string{cfg.HuggingFace.SentimentModel, cfg.HuggingFace.EmotionModel},
			classifierHealthy, monitoring.HEALTHCHECK_TIMER)
	}

	consumer := consumers.NewJournalConsumer(analyzer, store, producer, kafkaCfg.ResultsTopic).
		WithHealthCheck(classifierHealthy)

	if err := kafka_client.StartConsumer(ctx, kafkaCfg, consumer.Handler()); err != nil {
		slog.Error("[Main] Failed to start consumer",
			slog.String("error", err.Error()))
	}
}
