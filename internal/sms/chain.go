package sms

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	apperrors "github.com/jwalitptl/camera-relay/pkg/errors"
	"github.com/jwalitptl/camera-relay/pkg/logger"
	"github.com/jwalitptl/camera-relay/pkg/metrics"
)

// Chain tries each direct channel in configured order until one
// succeeds, then falls back to the carrier-email gateway when the
// recipient's carrier is known. A nil error means some channel
// accepted the message; an error means every configured channel was
// exhausted.
type Chain struct {
	direct  []Channel
	email   EmailSender
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewChain(direct []Channel, email EmailSender, log *logger.Logger, m *metrics.Metrics) *Chain {
	return &Chain{
		direct:  direct,
		email:   email,
		logger:  log,
		metrics: m,
	}
}

func (c *Chain) Send(ctx context.Context, to, carrier, body string) error {
	var lastErr error

	for _, ch := range c.direct {
		timer := prometheus.NewTimer(c.metrics.SendDuration.WithLabelValues(ch.Name()))
		err := ch.Send(ctx, to, body)
		timer.ObserveDuration()

		if err != nil {
			lastErr = err
			c.metrics.NotificationsFailed.WithLabelValues(ch.Name()).Inc()
			c.logger.Warn("delivery channel failed, trying next", "channel", ch.Name(), "error", err.Error())
			continue
		}
		c.metrics.NotificationsSent.WithLabelValues(ch.Name()).Inc()
		c.logger.Info("SMS delivered", "channel", ch.Name(), "to", to)
		return nil
	}

	if c.email != nil && carrier != "" {
		timer := prometheus.NewTimer(c.metrics.SendDuration.WithLabelValues("carrier_email"))
		err := c.email.SendVia(ctx, to, carrier, body)
		timer.ObserveDuration()

		if err == nil {
			c.metrics.NotificationsSent.WithLabelValues("carrier_email").Inc()
			return nil
		}
		lastErr = err
		c.metrics.NotificationsFailed.WithLabelValues("carrier_email").Inc()
	}

	if lastErr == nil {
		return apperrors.Unavailable("delivery chain", nil)
	}
	return &apperrors.AppError{
		Code:    apperrors.ErrUnavailable,
		Message: "all delivery channels exhausted",
		Err:     lastErr,
	}
}

// Statuses reports each configured channel's state for the health
// endpoint.
func (c *Chain) Statuses() map[string]string {
	statuses := make(map[string]string)
	for i, ch := range c.direct {
		statuses[fmt.Sprintf("%s_%d", ch.Name(), i)] = ch.Status()
	}
	if c.email != nil {
		statuses["carrier_email"] = c.email.Status()
	}
	return statuses
}
