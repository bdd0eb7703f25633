package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/camera-relay/internal/model"
)

func newMockStore(t *testing.T, retention time.Duration) (*eventStore, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := sqlx.NewDb(mockDB, "sqlmock")
	return NewEventStore(db, retention).(*eventStore), mock
}

func storedEvent() *model.StoredEvent {
	return &model.StoredEvent{
		CameraID:   "cam1",
		EventType:  "motion",
		Priority:   "normal",
		Source:     "generic",
		Timestamp:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		ReceivedAt: time.Date(2025, 6, 1, 12, 0, 1, 0, time.UTC),
		Raw:        []byte(`{"camera_id":"cam1"}`),
	}
}

func TestEventStoreRecord(t *testing.T) {
	store, mock := newMockStore(t, 0)
	evt := storedEvent()

	mock.ExpectExec("INSERT INTO camera_events").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Record(context.Background(), evt)

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, evt.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventStoreRecordSweepsRetention(t *testing.T) {
	store, mock := newMockStore(t, 24*time.Hour)
	evt := storedEvent()

	mock.ExpectExec("INSERT INTO camera_events").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM camera_events WHERE received_at").
		WithArgs(evt.ReceivedAt.Add(-24 * time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, store.Record(context.Background(), evt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventStoreRecordSweepFailureIgnored(t *testing.T) {
	store, mock := newMockStore(t, 24*time.Hour)

	mock.ExpectExec("INSERT INTO camera_events").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM camera_events").
		WillReturnError(assert.AnError)

	// A failed retention sweep never fails the record itself.
	require.NoError(t, store.Record(context.Background(), storedEvent()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventStoreRecordInsertFailure(t *testing.T) {
	store, mock := newMockStore(t, 0)

	mock.ExpectExec("INSERT INTO camera_events").
		WillReturnError(assert.AnError)

	err := store.Record(context.Background(), storedEvent())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to record event")
}

func eventColumns() []string {
	return []string{"id", "camera_id", "event_type", "priority", "source", "event_time", "received_at", "raw"}
}

func TestEventStoreRecent(t *testing.T) {
	store, mock := newMockStore(t, 0)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(eventColumns()).
		AddRow(uuid.New(), "cam1", "motion", "normal", "generic", now, now, []byte(`{}`)).
		AddRow(uuid.New(), "cam2", "line crossed", "high", "dahua", now, now, []byte(`{}`))
	mock.ExpectQuery("FROM camera_events\\s+ORDER BY received_at DESC").
		WithArgs(50).
		WillReturnRows(rows)

	events, err := store.Recent(context.Background(), 50, "")

	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "cam1", events[0].CameraID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventStoreRecentFiltersByCamera(t *testing.T) {
	store, mock := newMockStore(t, 0)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(eventColumns()).
		AddRow(uuid.New(), "cam1", "motion", "normal", "generic", now, now, []byte(`{}`))
	mock.ExpectQuery("FROM camera_events\\s+WHERE camera_id").
		WithArgs("cam1", 10).
		WillReturnRows(rows)

	events, err := store.Recent(context.Background(), 10, "cam1")

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventStoreRecentDefaultsLimit(t *testing.T) {
	store, mock := newMockStore(t, 0)

	mock.ExpectQuery("FROM camera_events\\s+ORDER BY received_at DESC").
		WithArgs(100).
		WillReturnRows(sqlmock.NewRows(eventColumns()))

	events, err := store.Recent(context.Background(), 0, "")

	require.NoError(t, err)
	assert.Empty(t, events)
	assert.NoError(t, mock.ExpectationsWereMet())
}
