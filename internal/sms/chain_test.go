package sms

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/camera-relay/pkg/logger"
	"github.com/jwalitptl/camera-relay/pkg/metrics"
)

type fakeChannel struct {
	name  string
	err   error
	sends int
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Send(_ context.Context, _, _ string) error {
	f.sends++
	return f.err
}

func (f *fakeChannel) Status() string {
	if f.err != nil {
		return StatusError
	}
	return StatusConnected
}

type fakeEmail struct {
	err      error
	sends    int
	carriers []string
}

func (f *fakeEmail) SendVia(_ context.Context, _, carrier, _ string) error {
	f.sends++
	f.carriers = append(f.carriers, carrier)
	return f.err
}

func (f *fakeEmail) Status() string { return StatusConnected }

func newChain(direct []Channel, email EmailSender) *Chain {
	return NewChain(direct, email, logger.NewLogger(nil), metrics.NewForTesting())
}

func TestFirstChannelSuccessShortCircuits(t *testing.T) {
	a := &fakeChannel{name: "a"}
	b := &fakeChannel{name: "b"}
	chain := newChain([]Channel{a, b}, nil)

	err := chain.Send(context.Background(), "+15551234567", "", "hello")

	require.NoError(t, err)
	assert.Equal(t, 1, a.sends)
	assert.Equal(t, 0, b.sends, "no double send after success")
}

func TestFallbackToNextChannel(t *testing.T) {
	a := &fakeChannel{name: "a", err: fmt.Errorf("not connected")}
	b := &fakeChannel{name: "b"}
	chain := newChain([]Channel{a, b}, nil)

	err := chain.Send(context.Background(), "+15551234567", "", "hello")

	require.NoError(t, err)
	assert.Equal(t, 1, a.sends)
	assert.Equal(t, 1, b.sends)
}

func TestAllChannelsExhausted(t *testing.T) {
	a := &fakeChannel{name: "a", err: fmt.Errorf("down")}
	b := &fakeChannel{name: "b", err: fmt.Errorf("also down")}
	chain := newChain([]Channel{a, b}, nil)

	err := chain.Send(context.Background(), "+15551234567", "", "hello")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "exhausted")
}

func TestEmailFallbackRequiresCarrier(t *testing.T) {
	a := &fakeChannel{name: "a", err: fmt.Errorf("down")}
	email := &fakeEmail{}
	chain := newChain([]Channel{a}, email)

	// No carrier: the email path must not be attempted.
	err := chain.Send(context.Background(), "+15551234567", "", "hello")
	assert.Error(t, err)
	assert.Equal(t, 0, email.sends)

	// With a carrier it rescues the send.
	err = chain.Send(context.Background(), "+15551234567", "verizon", "hello")
	require.NoError(t, err)
	assert.Equal(t, []string{"verizon"}, email.carriers)
}

func TestEmailNotAttemptedWhenDirectSucceeds(t *testing.T) {
	a := &fakeChannel{name: "a"}
	email := &fakeEmail{}
	chain := newChain([]Channel{a}, email)

	err := chain.Send(context.Background(), "+15551234567", "verizon", "hello")

	require.NoError(t, err)
	assert.Equal(t, 0, email.sends)
}

func TestNoChannelsConfigured(t *testing.T) {
	chain := newChain(nil, nil)

	err := chain.Send(context.Background(), "+15551234567", "", "hello")

	assert.Error(t, err)
}

func TestStatuses(t *testing.T) {
	a := &fakeChannel{name: "gsm_modem"}
	b := &fakeChannel{name: "twilio", err: fmt.Errorf("down")}
	chain := newChain([]Channel{a, b}, &fakeEmail{})

	statuses := chain.Statuses()

	assert.Equal(t, StatusConnected, statuses["gsm_modem_0"])
	assert.Equal(t, StatusError, statuses["twilio_1"])
	assert.Equal(t, StatusConnected, statuses["carrier_email"])
}
