package sms

import "context"

// Channel status strings reported on the health endpoint.
const (
	StatusConnected     = "connected"
	StatusDisconnected  = "disconnected"
	StatusNotConfigured = "not_configured"
	StatusError         = "error"
)

// Channel is the narrow send capability a direct delivery transport
// must provide. A channel's internal failure is returned as an error
// and treated by the chain as "try the next one".
type Channel interface {
	Name() string
	Send(ctx context.Context, to, body string) error
	Status() string
}

// EmailSender is the carrier-gateway path. It needs the recipient's
// carrier to map the phone number to a gateway address, so it is kept
// separate from the direct channels.
type EmailSender interface {
	SendVia(ctx context.Context, to, carrier, body string) error
	Status() string
}
