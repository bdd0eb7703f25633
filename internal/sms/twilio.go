package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jwalitptl/camera-relay/internal/config"
	"github.com/jwalitptl/camera-relay/pkg/logger"
)

// maxBodyLength is the message size accepted by the Twilio API.
const maxBodyLength = 1600

const defaultAPIBase = "https://api.twilio.com"

// Twilio error codes that abort retry immediately.
const (
	codeAuthFailed    = 20003
	codeInvalidNumber = 21211
)

// apiError is a structured error returned by the messages endpoint.
type apiError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	HTTPCode int    `json:"-"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("twilio error %d: %s", e.Code, e.Message)
}

// Permanent reports whether retrying the same request is pointless.
func (e *apiError) Permanent() bool {
	return e.Code == codeAuthFailed || e.Code == codeInvalidNumber
}

// TwilioChannel sends SMS through the Twilio REST API with bounded
// retry on transient failures.
type TwilioChannel struct {
	cfg     config.ChannelConfig
	apiBase string
	client  *http.Client
	logger  *logger.Logger
}

func NewTwilio(cfg config.ChannelConfig, log *logger.Logger) *TwilioChannel {
	return &TwilioChannel{
		cfg:     cfg,
		apiBase: defaultAPIBase,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  log,
	}
}

func (t *TwilioChannel) Name() string { return "twilio" }

func (t *TwilioChannel) Send(ctx context.Context, to, body string) error {
	if t.cfg.AccountSID == "" || t.cfg.AuthToken == "" {
		return fmt.Errorf("twilio channel not configured")
	}

	body = truncateBody(body)

	attempts := t.cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		err := t.post(ctx, to, body)
		if err == nil {
			return nil
		}
		lastErr = err

		var ae *apiError
		if errors.As(err, &ae) && ae.Permanent() {
			t.logger.Error(err, "twilio permanent error, aborting retry", "to", to)
			return err
		}

		t.logger.Warn("twilio send attempt failed", "attempt", attempt+1, "error", err.Error())
		if attempt < attempts-1 {
			select {
			case <-time.After(t.cfg.RetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

// truncateBody caps the message at the API limit without splitting a
// multi-byte rune; batch headers carry emoji.
func truncateBody(body string) string {
	if len(body) <= maxBodyLength {
		return body
	}
	cut := maxBodyLength
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut]
}

func (t *TwilioChannel) post(ctx context.Context, to, body string) error {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", t.cfg.FromNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.apiBase, t.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(t.cfg.AccountSID, t.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("twilio request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	ae := &apiError{HTTPCode: resp.StatusCode}
	if jsonErr := json.Unmarshal(data, ae); jsonErr != nil || ae.Code == 0 {
		return fmt.Errorf("twilio returned status %d", resp.StatusCode)
	}
	return ae
}

func (t *TwilioChannel) Status() string {
	if t.cfg.AccountSID == "" || t.cfg.AuthToken == "" {
		return StatusNotConfigured
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s.json", t.apiBase, t.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return StatusError
	}
	req.SetBasicAuth(t.cfg.AccountSID, t.cfg.AuthToken)

	resp, err := t.client.Do(req)
	if err != nil {
		return StatusError
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return StatusConnected
	}
	return StatusError
}
