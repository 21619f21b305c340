package monitoring

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stubProber struct {
	mu      sync.Mutex
	down    map[string]bool
	checked []string
}

func (s *stubProber) Healthy(_ context.Context, modelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checked = append(s.checked, modelID)
	return !s.down[modelID]
}

func (s *stubProber) setDown(modelID string, down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down[modelID] = down
}

func TestCheckClassifierHealth(t *testing.T) {
	models := []string{"sentiment-model", "emotion-model"}

	prober := &stubProber{down: map[string]bool{}}
	assert.True(t, CheckClassifierHealth(context.Background(), prober, models))
	assert.Equal(t, models, prober.checked)

	prober = &stubProber{down: map[string]bool{"sentiment-model": true}}
	assert.False(t, CheckClassifierHealth(context.Background(), prober, models))
	assert.Equal(t, []string{"sentiment-model"}, prober.checked)
}

func TestMonitorClassifierHealthTracksModelState(t *testing.T) {
	prober := &stubProber{down: map[string]bool{"emotion-model": true}}
	var healthy atomic.Bool
	healthy.Store(true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		MonitorClassifierHealth(ctx, prober, []string{"emotion-model"}, &healthy, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return !healthy.Load() }, time.Second, time.Millisecond)

	prober.setDown("emotion-model", false)
	assert.Eventually(t, healthy.Load, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop after cancel")
	}
}
