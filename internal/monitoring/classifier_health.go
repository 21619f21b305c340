package monitoring

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

const HEALTHCHECK_TIMER = 15 * time.Second

// HealthProber is satisfied by *clients.HuggingFaceClient.
type HealthProber interface {
	Healthy(ctx context.Context, modelID string) bool
}

// CheckClassifierHealth reports whether every model answers.
func CheckClassifierHealth(ctx context.Context, prober HealthProber, modelIDs []string) bool {
	for _, modelID := range modelIDs {
		if !prober.Healthy(ctx, modelID) {
			slog.Warn("[HealthCheck] Classifier model is unhealthy",
				slog.String("model", modelID))
			return false
		}
	}
	return true
}

// MonitorClassifierHealth stores the result of a probe immediately and then
// once every interval until ctx is done.
func MonitorClassifierHealth(ctx context.Context, prober HealthProber, modelIDs []string, healthy *atomic.Bool, interval time.Duration) {
	if interval <= 0 {
		interval = HEALTHCHECK_TIMER
	}

	healthy.Store(CheckClassifierHealth(ctx, prober, modelIDs))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			isHealthy := CheckClassifierHealth(ctx, prober, modelIDs)
			if isHealthy && !healthy.Load() {
				slog.Info("[HealthCheck] Classifier is healthy again")
			}
			healthy.Store(isHealthy)
		}
	}
}
