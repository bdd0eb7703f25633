package batcher

import (
	"context"
	"sync"
	"time"

	"github.com/jwalitptl/camera-relay/internal/config"
	"github.com/jwalitptl/camera-relay/internal/model"
	"github.com/jwalitptl/camera-relay/internal/ratelimit"
	"github.com/jwalitptl/camera-relay/pkg/clock"
	"github.com/jwalitptl/camera-relay/pkg/logger"
	"github.com/jwalitptl/camera-relay/pkg/metrics"
)

// Sender is the outbound capability the batcher flushes into,
// satisfied by *sms.Chain.
type Sender interface {
	Send(ctx context.Context, to, carrier, body string) error
}

// batchKey identifies one independent accumulation unit.
type batchKey struct {
	number   string
	cameraID string
}

type pendingItem struct {
	recipient model.Recipient
	event     model.Event
	added     time.Time
}

// Batcher accumulates admitted events per (recipient, camera) key and
// flushes them when the batch window elapses or the batch fills up. A
// flush denied by the rate limiter is held back, not dropped: the batch
// keeps accumulating and is reattempted on the next tick. A flush whose
// send fails is cleared anyway; retry below the batch level belongs to
// the delivery chain.
type Batcher struct {
	cfg     config.BatchingConfig
	rateCfg config.RateLimitConfig
	limiter *ratelimit.Limiter
	sender  Sender
	clock   clock.Clock
	logger  *logger.Logger
	metrics *metrics.Metrics

	// cameraNames maps camera IDs to display names for messages.
	cameraNames map[string]string
	format      string

	mu         sync.Mutex
	pending    map[batchKey][]pendingItem
	firstEvent map[batchKey]time.Time

	stop chan struct{}
	done chan struct{}
}

func New(
	cfg config.BatchingConfig,
	rateCfg config.RateLimitConfig,
	limiter *ratelimit.Limiter,
	sender Sender,
	clk clock.Clock,
	cameras config.CameraConfig,
	format string,
	log *logger.Logger,
	m *metrics.Metrics,
) *Batcher {
	return &Batcher{
		cfg:         cfg,
		rateCfg:     rateCfg,
		limiter:     limiter,
		sender:      sender,
		clock:       clk,
		cameraNames: cameras.Names,
		format:      format,
		logger:      log,
		metrics:     m,
		pending:     make(map[batchKey][]pendingItem),
		firstEvent:  make(map[batchKey]time.Time),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Add enqueues an event for the recipient. With batching disabled it
// attempts a single-event delivery immediately, still gated by the
// rate limiter.
func (b *Batcher) Add(ctx context.Context, recipient model.Recipient, cameraID string, evt model.Event) {
	if !b.cfg.Enabled {
		b.sendImmediate(ctx, recipient, cameraID, evt)
		return
	}

	key := batchKey{number: recipient.Number, cameraID: cameraID}
	now := b.clock.Now()

	b.mu.Lock()
	if len(b.pending[key]) == 0 {
		b.firstEvent[key] = now
	}
	b.pending[key] = append(b.pending[key], pendingItem{
		recipient: recipient,
		event:     evt,
		added:     now,
	})
	b.metrics.PendingBatches.Set(float64(len(b.pending)))
	b.mu.Unlock()
}

func (b *Batcher) sendImmediate(ctx context.Context, recipient model.Recipient, cameraID string, evt model.Event) {
	if !b.limiter.CanSend(recipient.Number, cameraID, b.rateCfg) {
		b.metrics.RateLimitDenied.Inc()
		b.logger.Debug("immediate send denied by rate limit", "recipient", recipient.Number, "camera", cameraID)
		return
	}

	msg := b.formatMessage([]model.Event{evt}, cameraID)
	if err := b.sender.Send(ctx, recipient.Number, recipient.Carrier, msg); err != nil {
		b.logger.Error(err, "immediate delivery failed", "recipient", recipient.Number)
		return
	}
	b.limiter.RecordSent(recipient.Number, cameraID)
}

// Start launches the background flush loop. Stop shuts it down
// cooperatively; in-flight sends finish naturally.
func (b *Batcher) Start() {
	go b.loop()
}

func (b *Batcher) Stop() {
	close(b.stop)
	<-b.done
}

func (b *Batcher) loop() {
	defer close(b.done)

	interval := b.cfg.FlushInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			b.flushCycle(context.Background())
		}
	}
}

type flushJob struct {
	key   batchKey
	items []pendingItem
}

// flushCycle evaluates every non-empty batch once. Due batches that
// pass the rate limiter are reserved under the lock and delivered
// outside it, so a slow send never blocks the request path.
func (b *Batcher) flushCycle(ctx context.Context) {
	now := b.clock.Now()

	b.mu.Lock()
	var due []flushJob
	for key, items := range b.pending {
		if len(items) == 0 {
			continue
		}
		first, ok := b.firstEvent[key]
		if !ok {
			continue
		}
		if now.Sub(first) < b.cfg.Window && len(items) < b.cfg.MaxBatchSize {
			continue
		}
		if !b.limiter.CanSend(key.number, key.cameraID, b.rateCfg) {
			// Held back: the batch stays pending and keeps
			// accumulating until the limiter admits it.
			b.metrics.BatchesHeldBack.Inc()
			continue
		}
		due = append(due, flushJob{key: key, items: items})
		delete(b.pending, key)
		delete(b.firstEvent, key)
	}
	b.metrics.PendingBatches.Set(float64(len(b.pending)))
	b.mu.Unlock()

	for _, job := range due {
		b.deliver(ctx, job)
	}
}

func (b *Batcher) deliver(ctx context.Context, job flushJob) {
	events := make([]model.Event, len(job.items))
	for i, item := range job.items {
		events[i] = item.event
	}
	recipient := job.items[0].recipient
	msg := b.formatMessage(events, job.key.cameraID)

	b.metrics.BatchesFlushed.Inc()
	if err := b.sender.Send(ctx, job.key.number, recipient.Carrier, msg); err != nil {
		// The batch was already cleared; a failed send is logged, not
		// re-queued.
		b.logger.Error(err, "batch delivery failed",
			"recipient", job.key.number, "camera", job.key.cameraID, "events", len(events))
		return
	}
	b.limiter.RecordSent(job.key.number, job.key.cameraID)
	b.logger.Info("batch delivered",
		"recipient", job.key.number, "camera", job.key.cameraID, "events", len(events))
}

// PendingCount returns the total number of queued events across all
// batches, for the stats endpoint.
func (b *Batcher) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	total := 0
	for _, items := range b.pending {
		total += len(items)
	}
	return total
}
