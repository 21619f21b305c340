package clients

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spacesedan/moodjournal/config"
	"github.com/spacesedan/moodjournal/internal/models"
	"github.com/valkey-io/valkey-go"
)

const VALKEY_RETRIES = 3

type ValkeyClient struct {
	Client valkey.Client
	opts   valkey.ClientOption
	mu     sync.Mutex
}

func NewValkeyClient(ctx context.Context, cfg config.ValkeySettings) (*ValkeyClient, error) {
	opts := valkey.ClientOption{
		InitAddress: []string{
			cfg.Address,
		},
		Password:         cfg.Password,
		ConnWriteTimeout: 5 * time.Second,
		SelectDB:         0,
	}

	if cfg.UseTLS {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: false}
	}

	client, err := connect(ctx, opts)
	if err != nil {
		return nil, err
	}

	slog.Info("[ValkeyClient] Successfully connected to valkey",
		slog.String("address", cfg.Address))
	return &ValkeyClient{Client: client, opts: opts}, nil
}

func connect(ctx context.Context, opts valkey.ClientOption) (valkey.Client, error) {
	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("[ValkeyClient] failed to create Valkey: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("[ValkeyClient] failed to ping Valkey: %w", err)
	}
	return client, nil
}

func (vc *ValkeyClient) recreateClient(ctx context.Context) {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	slog.Warn("[ValkeyClient] Attempting to recreate Valkey client...")
	client, err := connect(ctx, vc.opts)
	if err != nil {
		slog.Error("[ValkeyClient] Recreate failed",
			slog.String("error", err.Error()))
		return
	}

	vc.Client.Close()
	vc.Client = client
	slog.Info("[ValkeyClient] Successfully reconnected to valkey")
}

func (vc *ValkeyClient) Close() {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	if vc.Client != nil {
		vc.Client.Close()
	}
}

// GetOutcome treats every failure, including a miss, as "not cached".
func (vc *ValkeyClient) GetOutcome(ctx context.Context, key string) (models.AnalysisOutcome, bool) {
	res := vc.DoWithRetry(ctx, func(c valkey.Client) valkey.Completed {
		return c.B().Get().Key(key).Build()
	})

	raw, err := res.AsBytes()
	if err != nil {
		if !valkey.IsValkeyNil(err) {
			slog.Warn("[ValkeyClient] Failed to read cached outcome",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
		return models.AnalysisOutcome{}, false
	}

	outcome, err := DecodeOutcome(raw)
	if err != nil {
		slog.Warn("[ValkeyClient] Discarding unreadable cached outcome",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return models.AnalysisOutcome{}, false
	}
	return outcome, true
}

func (vc *ValkeyClient) StoreOutcome(ctx context.Context, key string, outcome models.AnalysisOutcome, ttl time.Duration) error {
	data, err := EncodeOutcome(outcome)
	if err != nil {
		return err
	}

	seconds := int64(ttl / time.Second)
	if seconds <= 0 {
		seconds = int64(config.DEFAULT_CACHE_TTL / time.Second)
	}

	res := vc.DoWithRetry(ctx, func(c valkey.Client) valkey.Completed {
		return c.B().Set().Key(key).Value(valkey.BinaryString(data)).ExSeconds(seconds).Build()
	})
	if err := res.Error(); err != nil {
		return fmt.Errorf("[ValkeyClient] failed to store outcome: %w", err)
	}

	slog.Debug("[ValkeyClient] Cached outcome", slog.String("key", key))
	return nil
}

// DoWithRetry rebuilds the command on every attempt so a recreated client
// never sees a command built by the old one.
func (vc *ValkeyClient) DoWithRetry(ctx context.Context, build func(valkey.Client) valkey.Completed) valkey.ValkeyResult {
	var result valkey.ValkeyResult
	for i := 0; i < VALKEY_RETRIES; i++ {
		vc.mu.Lock()
		client := vc.Client
		vc.mu.Unlock()

		result = client.Do(ctx, build(client))
		err := result.Error()
		if err == nil || valkey.IsValkeyNil(err) {
			break
		}

		slog.Warn("[ValkeyClient] Do failed",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))

		if isConnectionError(err) {
			vc.recreateClient(ctx)
		}
		time.Sleep(250 * time.Millisecond)
	}

	return result
}

func EncodeOutcome(outcome models.AnalysisOutcome) ([]byte, error) {
	data, err := json.Marshal(outcome)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal outcome: %w", err)
	}
	return data, nil
}

func DecodeOutcome(data []byte) (models.AnalysisOutcome, error) {
	var outcome models.AnalysisOutcome
	if err := json.Unmarshal(data, &outcome); err != nil {
		return outcome, fmt.Errorf("failed to unmarshal outcome: %w", err)
	}
	if outcome.Sentiment == "" {
		return outcome, fmt.Errorf("cached outcome has no sentiment")
	}
	return outcome, nil
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "i/o timeout")
}
