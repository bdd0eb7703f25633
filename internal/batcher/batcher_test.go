package batcher

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/camera-relay/internal/config"
	"github.com/jwalitptl/camera-relay/internal/model"
	"github.com/jwalitptl/camera-relay/internal/ratelimit"
	"github.com/jwalitptl/camera-relay/pkg/clock"
	"github.com/jwalitptl/camera-relay/pkg/logger"
	"github.com/jwalitptl/camera-relay/pkg/metrics"
)

type fakeSender struct {
	mu    sync.Mutex
	sends []sentMessage
	err   error
}

type sentMessage struct {
	to      string
	carrier string
	body    string
}

func (f *fakeSender) Send(_ context.Context, to, carrier, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sends = append(f.sends, sentMessage{to: to, carrier: carrier, body: body})
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

func (f *fakeSender) last() sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sends[len(f.sends)-1]
}

func newTestBatcher(clk clock.Clock, sender Sender, batchCfg config.BatchingConfig, rateCfg config.RateLimitConfig) (*Batcher, *ratelimit.Limiter) {
	limiter := ratelimit.New(clk)
	b := New(
		batchCfg,
		rateCfg,
		limiter,
		sender,
		clk,
		config.CameraConfig{Names: map[string]string{"cam1": "Front Door"}},
		"{camera_name}: {event_type} at {time}",
		logger.NewLogger(nil),
		metrics.NewForTesting(),
	)
	return b, limiter
}

func defaultBatchCfg() config.BatchingConfig {
	return config.BatchingConfig{
		Enabled:      true,
		Window:       5 * time.Minute,
		MaxBatchSize: 5,
	}
}

func defaultRateCfg() config.RateLimitConfig {
	return config.RateLimitConfig{Enabled: true, MaxPerHour: 30, MaxPerCameraPerHour: 10}
}

func recipient() model.Recipient {
	return model.Recipient{
		Name:    "Primary",
		Number:  "+15551234567",
		Cameras: []string{"all"},
		Active:  true,
	}
}

func event(eventType string) model.Event {
	return model.Event{CameraID: "cam1", EventType: eventType, Priority: model.PriorityNormal}
}

func TestFlushOnBatchSize(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	sender := &fakeSender{}
	b, _ := newTestBatcher(clk, sender, defaultBatchCfg(), defaultRateCfg())

	for i := 0; i < 5; i++ {
		b.Add(context.Background(), recipient(), "cam1", event(fmt.Sprintf("motion %d", i)))
	}
	clk.Advance(time.Second)

	// The window has not elapsed; size alone triggers the flush.
	b.flushCycle(context.Background())

	require.Equal(t, 1, sender.count())
	assert.Equal(t, 0, b.PendingCount())
	assert.Contains(t, sender.last().body, "5 alerts")
}

func TestFlushOnWindowElapsed(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	sender := &fakeSender{}
	b, _ := newTestBatcher(clk, sender, defaultBatchCfg(), defaultRateCfg())

	b.Add(context.Background(), recipient(), "cam1", event("motion"))

	b.flushCycle(context.Background())
	assert.Equal(t, 0, sender.count(), "window not elapsed, batch not full")

	clk.Advance(5 * time.Minute)
	b.flushCycle(context.Background())

	require.Equal(t, 1, sender.count())
	assert.Equal(t, "Front Door: motion at 12:05", sender.last().body)
}

func TestHeldBackBatchSurvivesDenial(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	sender := &fakeSender{}
	rateCfg := config.RateLimitConfig{Enabled: true, MaxPerHour: 1, MaxPerCameraPerHour: 10}
	b, limiter := newTestBatcher(clk, sender, defaultBatchCfg(), rateCfg)

	// Exhaust the recipient's hourly allowance.
	limiter.RecordSent("+15551234567", "cam1")

	b.Add(context.Background(), recipient(), "cam1", event("motion"))
	clk.Advance(5 * time.Minute)

	b.flushCycle(context.Background())
	assert.Equal(t, 0, sender.count())
	assert.Equal(t, 1, b.PendingCount(), "denied batch must remain pending")

	// New events keep accumulating while held back.
	b.Add(context.Background(), recipient(), "cam1", event("person"))
	assert.Equal(t, 2, b.PendingCount())

	// Once the allowance frees up, the same batch flushes exactly once.
	clk.Advance(56 * time.Minute)
	b.flushCycle(context.Background())

	require.Equal(t, 1, sender.count())
	assert.Equal(t, 0, b.PendingCount())
	assert.Contains(t, sender.last().body, "2 alerts")
}

func TestFailedSendClearsBatch(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	sender := &fakeSender{err: fmt.Errorf("all channels down")}
	b, limiter := newTestBatcher(clk, sender, defaultBatchCfg(), defaultRateCfg())

	b.Add(context.Background(), recipient(), "cam1", event("motion"))
	clk.Advance(5 * time.Minute)
	b.flushCycle(context.Background())

	// Failed delivery is not re-queued and not recorded against limits.
	assert.Equal(t, 0, b.PendingCount())
	assert.Equal(t, 0, limiter.SentLastHour("+15551234567"))
}

func TestSuccessfulFlushRecordsSend(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	sender := &fakeSender{}
	b, limiter := newTestBatcher(clk, sender, defaultBatchCfg(), defaultRateCfg())

	b.Add(context.Background(), recipient(), "cam1", event("motion"))
	clk.Advance(5 * time.Minute)
	b.flushCycle(context.Background())

	assert.Equal(t, 1, limiter.SentLastHour("+15551234567"))
}

func TestKeysAccumulateIndependently(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	sender := &fakeSender{}
	b, _ := newTestBatcher(clk, sender, defaultBatchCfg(), defaultRateCfg())

	b.Add(context.Background(), recipient(), "cam1", event("motion"))
	b.Add(context.Background(), recipient(), "cam2", event("motion"))
	assert.Equal(t, 2, b.PendingCount())

	clk.Advance(5 * time.Minute)
	b.flushCycle(context.Background())

	assert.Equal(t, 2, sender.count(), "one message per batch key")
}

func TestBypassWhenBatchingDisabled(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	sender := &fakeSender{}
	cfg := config.BatchingConfig{Enabled: false}
	b, _ := newTestBatcher(clk, sender, cfg, defaultRateCfg())

	b.Add(context.Background(), recipient(), "cam1", event("motion"))

	require.Equal(t, 1, sender.count())
	assert.Equal(t, 0, b.PendingCount())
	assert.Equal(t, "+15551234567", sender.last().to)
}

func TestBypassStillRateLimited(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	sender := &fakeSender{}
	cfg := config.BatchingConfig{Enabled: false}
	rateCfg := config.RateLimitConfig{Enabled: true, MaxPerHour: 1, MaxPerCameraPerHour: 10}
	b, _ := newTestBatcher(clk, sender, cfg, rateCfg)

	b.Add(context.Background(), recipient(), "cam1", event("motion"))
	b.Add(context.Background(), recipient(), "cam1", event("motion"))

	assert.Equal(t, 1, sender.count())
}

func TestMultiEventMessageListsLastThree(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	sender := &fakeSender{}
	cfg := defaultBatchCfg()
	cfg.MaxBatchSize = 10
	b, _ := newTestBatcher(clk, sender, cfg, defaultRateCfg())

	for i := 0; i < 5; i++ {
		evt := event(fmt.Sprintf("motion %d", i))
		evt.Timestamp = clk.Now()
		b.Add(context.Background(), recipient(), "cam1", evt)
	}
	clk.Advance(5 * time.Minute)
	b.flushCycle(context.Background())

	require.Equal(t, 1, sender.count())
	body := sender.last().body
	assert.Contains(t, body, "5 alerts")
	assert.NotContains(t, body, "motion 0")
	assert.NotContains(t, body, "motion 1")
	assert.Contains(t, body, "motion 2")
	assert.Contains(t, body, "motion 3")
	assert.Contains(t, body, "motion 4")
}

func TestStopTerminatesLoop(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	cfg := defaultBatchCfg()
	cfg.FlushInterval = time.Millisecond
	b, _ := newTestBatcher(clk, &fakeSender{}, cfg, defaultRateCfg())

	b.Start()
	done := make(chan struct{})
	go func() {
		b.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}
