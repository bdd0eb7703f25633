package sms

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/camera-relay/internal/config"
	"github.com/jwalitptl/camera-relay/pkg/logger"
)

// CarrierEmailChannel delivers SMS through a carrier's email-to-SMS
// gateway. It needs the recipient's carrier to build the gateway
// address, so the chain only attempts it when a carrier is known.
type CarrierEmailChannel struct {
	cfg    config.CarrierEmailConfig
	dialer *gomail.Dialer
	logger *logger.Logger
}

func NewCarrierEmail(cfg config.CarrierEmailConfig, log *logger.Logger) *CarrierEmailChannel {
	return &CarrierEmailChannel{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.Username, cfg.Password),
		logger: log,
	}
}

func (c *CarrierEmailChannel) SendVia(ctx context.Context, to, carrier, body string) error {
	domain, ok := c.cfg.Carriers[carrier]
	if !ok {
		return fmt.Errorf("unknown carrier: %s", carrier)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := gatewayAddress(to, domain)

	from := c.cfg.From
	if from == "" {
		from = c.cfg.Username
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", addr)
	msg.SetHeader("Subject", "Security Alert")
	msg.SetBody("text/plain", body)

	if err := c.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("carrier email send failed: %w", err)
	}
	c.logger.Info("SMS sent via carrier email", "gateway", addr)
	return nil
}

func (c *CarrierEmailChannel) Status() string {
	if c.cfg.SMTPHost == "" {
		return StatusNotConfigured
	}
	closer, err := c.dialer.Dial()
	if err != nil {
		return StatusError
	}
	closer.Close()
	return StatusConnected
}

// gatewayAddress builds the email-to-SMS address for a number. US
// numbers arrive with a leading country code; the gateway wants the
// bare 10 digits.
func gatewayAddress(to, domain string) string {
	digits := digitsOnly(to)
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	return digits + domain
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
