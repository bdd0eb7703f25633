package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/jwalitptl/camera-relay/internal/model"
	"github.com/jwalitptl/camera-relay/internal/repository"
)

// eventStore keeps recent events in memory with TTL eviction. Used when
// no database is configured; history survives only for the retention
// window and never across restarts.
type eventStore struct {
	cache *gocache.Cache
}

func NewEventStore(retention time.Duration) repository.EventStore {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &eventStore{
		cache: gocache.New(retention, 10*time.Minute),
	}
}

func (s *eventStore) Record(_ context.Context, evt *model.StoredEvent) error {
	if evt.ID == uuid.Nil {
		evt.ID = uuid.New()
	}
	s.cache.SetDefault(evt.ID.String(), evt)
	return nil
}

func (s *eventStore) Recent(_ context.Context, limit int, cameraID string) ([]*model.StoredEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	var events []*model.StoredEvent
	for _, item := range s.cache.Items() {
		evt, ok := item.Object.(*model.StoredEvent)
		if !ok {
			continue
		}
		if cameraID != "" && evt.CameraID != cameraID {
			continue
		}
		events = append(events, evt)
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].ReceivedAt.After(events[j].ReceivedAt)
	})
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (s *eventStore) Close() error {
	s.cache.Flush()
	return nil
}
