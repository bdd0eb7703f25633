package messaging

import (
	"context"
)

// Broker is the outbound publish capability the relay needs. Consumers
// of the event channel live in other processes; nothing here
// subscribes.
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Close() error
}
