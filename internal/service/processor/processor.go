package processor

import (
	"context"
	"fmt"

	"github.com/jwalitptl/camera-relay/internal/batcher"
	"github.com/jwalitptl/camera-relay/internal/config"
	"github.com/jwalitptl/camera-relay/internal/model"
	"github.com/jwalitptl/camera-relay/internal/normalizer"
	"github.com/jwalitptl/camera-relay/internal/quiethours"
	"github.com/jwalitptl/camera-relay/internal/repository"
	"github.com/jwalitptl/camera-relay/pkg/clock"
	"github.com/jwalitptl/camera-relay/pkg/logger"
	"github.com/jwalitptl/camera-relay/pkg/messaging"
	"github.com/jwalitptl/camera-relay/pkg/metrics"
)

// eventsChannel is the broker channel processed events are published to.
const eventsChannel = "camera.events"

// Service orchestrates normalization, quiet-hours suppression,
// recipient resolution and batch enqueueing for every inbound webhook.
type Service struct {
	normalizer *normalizer.Normalizer
	quiet      *quiethours.Policy
	batcher    *batcher.Batcher
	cfg        *config.Config
	store      repository.EventStore
	broker     messaging.Broker
	clock      clock.Clock
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

func NewService(
	n *normalizer.Normalizer,
	quiet *quiethours.Policy,
	b *batcher.Batcher,
	cfg *config.Config,
	store repository.EventStore,
	broker messaging.Broker,
	clk clock.Clock,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		normalizer: n,
		quiet:      quiet,
		batcher:    b,
		cfg:        cfg,
		store:      store,
		broker:     broker,
		clock:      clk,
		logger:     log,
		metrics:    m,
	}
}

// ProcessEvent runs one raw payload through the pipeline. Suppression
// and missing configuration are successes; only an unexpected internal
// fault produces a failure result, and it never escapes as a panic.
func (s *Service) ProcessEvent(ctx context.Context, payload map[string]interface{}, raw []byte) (result *model.ProcessResult) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.EventsFailed.Inc()
			err := fmt.Errorf("event processing panic: %v", r)
			s.logger.Error(err, "recovered from processing fault")
			result = model.FailureResult(err)
		}
	}()

	evt := s.normalizer.Normalize(payload, raw)
	s.metrics.EventsReceived.WithLabelValues(evt.Source).Inc()
	s.logger.Info("processing camera event",
		"camera", evt.CameraID, "type", evt.EventType, "priority", string(evt.Priority), "source", evt.Source)

	s.record(evt)

	if s.quiet.Suppressed(evt, s.cfg.Notifications.QuietHours) {
		s.metrics.EventsSuppressed.WithLabelValues("quiet_hours").Inc()
		s.logger.Info("event suppressed during quiet hours", "camera", evt.CameraID)
		return model.SuccessResult("quiet hours", 0)
	}

	// Only events that survive suppression reach downstream consumers;
	// history above still records everything for diagnostics.
	s.publish(evt)

	recipients := s.recipientsForCamera(evt.CameraID)
	if len(recipients) == 0 {
		s.metrics.EventsSuppressed.WithLabelValues("no_recipients").Inc()
		s.logger.Warn("no recipients configured for camera", "camera", evt.CameraID)
		return model.SuccessResult("no recipients", 0)
	}

	for _, r := range recipients {
		s.batcher.Add(ctx, r, evt.CameraID, *evt)
	}

	return model.SuccessResult(
		fmt.Sprintf("notifications queued for %d recipients", len(recipients)),
		len(recipients),
	)
}

func (s *Service) recipientsForCamera(cameraID string) []model.Recipient {
	var matched []model.Recipient
	for _, r := range s.cfg.Recipients {
		if !r.Active {
			continue
		}
		if r.WantsCamera(cameraID) {
			matched = append(matched, r)
		}
	}
	return matched
}

// record persists the event asynchronously; history is diagnostic only
// and never blocks or fails the webhook.
func (s *Service) record(evt *model.Event) {
	if s.store == nil {
		return
	}
	stored := &model.StoredEvent{
		CameraID:   evt.CameraID,
		EventType:  evt.EventType,
		Priority:   string(evt.Priority),
		Source:     evt.Source,
		Timestamp:  evt.Timestamp,
		ReceivedAt: s.clock.Now(),
		Raw:        evt.Raw,
	}
	go func() {
		if err := s.store.Record(context.Background(), stored); err != nil {
			s.logger.Error(err, "failed to record event", "camera", stored.CameraID)
		}
	}()
}

func (s *Service) publish(evt *model.Event) {
	if s.broker == nil {
		return
	}
	go func() {
		if err := s.broker.Publish(context.Background(), eventsChannel, evt); err != nil {
			s.logger.Error(err, "failed to publish event", "camera", evt.CameraID)
		}
	}()
}
