package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/camera-relay/internal/model"
	"github.com/jwalitptl/camera-relay/internal/repository"
)

type eventStore struct {
	db        *sqlx.DB
	retention time.Duration
}

func NewEventStore(db *sqlx.DB, retention time.Duration) repository.EventStore {
	return &eventStore{db: db, retention: retention}
}

func (s *eventStore) Record(ctx context.Context, evt *model.StoredEvent) error {
	if evt.ID == uuid.Nil {
		evt.ID = uuid.New()
	}

	query := `
		INSERT INTO camera_events (id, camera_id, event_type, priority, source, event_time, received_at, raw)
		VALUES (:id, :camera_id, :event_type, :priority, :source, :event_time, :received_at, :raw)`

	if _, err := s.db.NamedExecContext(ctx, query, evt); err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}

	// Best-effort retention sweep; an error here never fails the record.
	if s.retention > 0 {
		cutoff := evt.ReceivedAt.Add(-s.retention)
		s.db.ExecContext(ctx, `DELETE FROM camera_events WHERE received_at < $1`, cutoff)
	}
	return nil
}

func (s *eventStore) Recent(ctx context.Context, limit int, cameraID string) ([]*model.StoredEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	var events []*model.StoredEvent
	var err error
	if cameraID != "" {
		err = s.db.SelectContext(ctx, &events, `
			SELECT id, camera_id, event_type, priority, source, event_time, received_at, raw
			FROM camera_events
			WHERE camera_id = $1
			ORDER BY received_at DESC
			LIMIT $2`, cameraID, limit)
	} else {
		err = s.db.SelectContext(ctx, &events, `
			SELECT id, camera_id, event_type, priority, source, event_time, received_at, raw
			FROM camera_events
			ORDER BY received_at DESC
			LIMIT $1`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

func (s *eventStore) Close() error {
	return s.db.Close()
}
