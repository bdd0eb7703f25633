package repository

import (
	"context"

	"github.com/jwalitptl/camera-relay/internal/model"
)

// EventStore records processed events for the history endpoint. Store
// failures are diagnostic only and must never fail the webhook path.
type EventStore interface {
	Record(ctx context.Context, evt *model.StoredEvent) error
	Recent(ctx context.Context, limit int, cameraID string) ([]*model.StoredEvent, error)
	Close() error
}
