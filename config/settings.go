package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DEFAULT_HF_API_BASE        = "https://api-inference.huggingface.co/models"
	DEFAULT_SENTIMENT_MODEL    = "distilbert/distilbert-base-uncased-finetuned-sst-2-english"
	DEFAULT_EMOTION_MODEL      = "j-hartmann/emotion-english-distilroberta-base"
	DEFAULT_TRANSLATE_API_URL  = "https://api-free.deepl.com/v2/translate"
	DEFAULT_HF_TIMEOUT         = 120 * time.Second
	DEFAULT_TRANSLATE_TIMEOUT  = 15 * time.Second
	DEFAULT_HF_RETRIES         = 3
	DEFAULT_HF_BACKOFF         = 1200 * time.Millisecond
	DEFAULT_MAX_INPUT_CHARS    = 1500
	DEFAULT_CACHE_TTL          = 24 * time.Hour
	DEFAULT_MOOD_TABLE_NAME    = "MoodAnalysis"
	DEFAULT_KAFKA_BROKER       = "localhost:29092"
	DEFAULT_KAFKA_GROUP_ID     = "moodjournal-consumer-group"
	DEFAULT_KAFKA_ENTRIES      = "journal-entries"
	DEFAULT_KAFKA_MOOD_RESULTS = "mood-results"
)

// Settings is read once at startup and treated as read-only afterwards.
type Settings struct {
	LogLevel slog.Level

	HuggingFace HuggingFaceSettings
	Translator  TranslatorSettings
	Analysis    AnalysisSettings
	Valkey      ValkeySettings
	DynamoDB    DynamoDBSettings
	Kafka       KafkaSettings
}

type HuggingFaceSettings struct {
	BaseURL        string
	Token          string
	SentimentModel string
	EmotionModel   string
	Timeout        time.Duration
	Retries        int
	BaseDelay      time.Duration
}

type TranslatorSettings struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

type AnalysisSettings struct {
	MaxInputChars int
	VADERFallback bool
	CacheTTL      time.Duration
}

type ValkeySettings struct {
	Address  string
	Password string
	UseTLS   bool
}

// Enabled reports whether an outcome cache should be used.
func (v ValkeySettings) Enabled() bool {
	return v.Address != ""
}

type DynamoDBSettings struct {
	Endpoint  string
	Region    string
	TableName string
}

type KafkaSettings struct {
	Broker       string
	GroupID      string
	EntriesTopic string
	ResultsTopic string
}

// Load builds Settings from the process environment. Call LoadEnv first to
// pull in the env file for the current APP_ENV.
func Load() Settings {
	return Settings{
		LogLevel: parseLevel(getEnv("LOG_LEVEL", "info")),
		HuggingFace: HuggingFaceSettings{
			BaseURL:        strings.TrimRight(getEnv("HF_API_BASE", DEFAULT_HF_API_BASE), "/"),
			Token:          os.Getenv("HF_API_TOKEN"),
			SentimentModel: getEnv("HF_SENTIMENT_MODEL", DEFAULT_SENTIMENT_MODEL),
			EmotionModel:   getEnv("HF_EMOTION_MODEL", DEFAULT_EMOTION_MODEL),
			Timeout:        getDuration("HF_TIMEOUT", DEFAULT_HF_TIMEOUT),
			Retries:        getInt("HF_RETRIES", DEFAULT_HF_RETRIES),
			BaseDelay:      getDuration("HF_BACKOFF", DEFAULT_HF_BACKOFF),
		},
		Translator: TranslatorSettings{
			URL:     getEnv("TRANSLATE_API_URL", DEFAULT_TRANSLATE_API_URL),
			APIKey:  os.Getenv("TRANSLATE_API_KEY"),
			Timeout: getDuration("TRANSLATE_TIMEOUT", DEFAULT_TRANSLATE_TIMEOUT),
		},
		Analysis: AnalysisSettings{
			MaxInputChars: getInt("MOOD_MAX_INPUT_CHARS", DEFAULT_MAX_INPUT_CHARS),
			VADERFallback: getBool("MOOD_VADER_FALLBACK", false),
			CacheTTL:      getDuration("MOOD_CACHE_TTL", DEFAULT_CACHE_TTL),
		},
		Valkey: ValkeySettings{
			Address:  os.Getenv("VALKEY_INIT_ADDRESS"),
			Password: os.Getenv("VALKEY_PASSWORD"),
			UseTLS:   getBool("VALKEY_TLS", false),
		},
		DynamoDB: DynamoDBSettings{
			Endpoint:  os.Getenv("AWS_ENDPOINT"),
			Region:    getEnv("AWS_REGION", "us-west-2"),
			TableName: getEnv("MOOD_TABLE_NAME", DEFAULT_MOOD_TABLE_NAME),
		},
		Kafka: KafkaSettings{
			Broker:       getEnv("KAFKA_BROKER", DEFAULT_KAFKA_BROKER),
			GroupID:      getEnv("KAFKA_CONSUMER_GROUP_ID", DEFAULT_KAFKA_GROUP_ID),
			EntriesTopic: getEnv("KAFKA_ENTRIES_TOPIC", DEFAULT_KAFKA_ENTRIES),
			ResultsTopic: getEnv("KAFKA_RESULTS_TOPIC", DEFAULT_KAFKA_MOOD_RESULTS),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		slog.Warn("[Config] Invalid integer, using default",
			slog.String("key", key),
			slog.String("value", raw),
			slog.Int("default", defaultValue))
		return defaultValue
	}
	return v
}

func getBool(key string, defaultValue bool) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		slog.Warn("[Config] Invalid boolean, using default",
			slog.String("key", key),
			slog.String("value", raw))
		return defaultValue
	}
	return v
}

// getDuration accepts Go duration strings ("15s") and bare numbers, which
// are read as seconds.
func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil && secs >= 0 {
		return time.Duration(secs * float64(time.Second))
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		slog.Warn("[Config] Invalid duration, using default",
			slog.String("key", key),
			slog.String("value", raw),
			slog.Duration("default", defaultValue))
		return defaultValue
	}
	return d
}

func parseLevel(raw string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo
	}
	return level
}
