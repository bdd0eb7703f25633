package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Event is the canonical, vendor-agnostic representation of a camera
// trigger. It is immutable after normalization.
type Event struct {
	CameraID  string          `json:"camera_id"`
	EventType string          `json:"event_type"`
	Timestamp time.Time       `json:"timestamp"`
	Priority  Priority        `json:"priority"`
	Source    string          `json:"source"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

// StoredEvent is a processed event as recorded in the event history store.
type StoredEvent struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	CameraID   string          `db:"camera_id" json:"camera_id"`
	EventType  string          `db:"event_type" json:"event_type"`
	Priority   string          `db:"priority" json:"priority"`
	Source     string          `db:"source" json:"source"`
	Timestamp  time.Time       `db:"event_time" json:"timestamp"`
	ReceivedAt time.Time       `db:"received_at" json:"received_at"`
	Raw        json.RawMessage `db:"raw" json:"raw,omitempty"`
}
