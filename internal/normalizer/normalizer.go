package normalizer

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/jwalitptl/camera-relay/internal/model"
	"github.com/jwalitptl/camera-relay/pkg/clock"
)

// Source labels for the recognized payload dialects.
const (
	SourceHikvision = "hikvision"
	SourceDahua     = "dahua"
	SourceBlueIris  = "blueiris"
	SourceGeneric   = "generic"
)

// dahuaCodes maps Dahua event codes to readable labels. Unknown codes
// pass through unchanged.
var dahuaCodes = map[string]string{
	"VideoMotion":          "Motion detected",
	"VideoLoss":            "Video loss",
	"VideoBlind":           "Camera blocked",
	"AlarmLocal":           "Local alarm",
	"CrossLineDetection":   "Line crossed",
	"CrossRegionDetection": "Region intrusion",
	"LeftDetection":        "Object left",
	"TakenAwayDetection":   "Object removed",
}

// Normalizer maps vendor-specific webhook payloads into the canonical
// Event shape. It never fails: unrecognized payloads fall through to the
// generic branch with documented defaults.
type Normalizer struct {
	clock clock.Clock
}

func New(clk clock.Clock) *Normalizer {
	return &Normalizer{clock: clk}
}

// Normalize detects the payload dialect and extracts canonical fields.
// Detection order matters: a payload may satisfy several shapes by
// accident, so the first matching branch wins.
func (n *Normalizer) Normalize(payload map[string]interface{}, raw []byte) *model.Event {
	now := n.clock.Now()

	// Hikvision event notification wrapper
	if alertRaw, ok := payload["EventNotificationAlert"]; ok {
		alert, _ := alertRaw.(map[string]interface{})
		eventType := stringField(alert, "eventType", "motion")
		priority := model.PriorityNormal
		if eventType == "fielddetection" {
			priority = model.PriorityHigh
		}
		return &model.Event{
			CameraID:  stringField(alert, "ipAddress", "unknown"),
			EventType: eventType,
			Timestamp: parseTimestamp(stringField(alert, "dateTime", ""), now),
			Priority:  priority,
			Source:    SourceHikvision,
			Raw:       json.RawMessage(raw),
		}
	}

	// Dahua alarm server push
	if action, _ := payload["Action"].(string); action == "Pulse" {
		code := stringField(payload, "Code", "VideoMotion")
		priority := model.PriorityNormal
		if strings.Contains(code, "Alarm") {
			priority = model.PriorityHigh
		}
		cameraID := stringField(payload, "SerialID", "")
		if cameraID == "" {
			cameraID = stringField(payload, "DeviceID", "unknown")
		}
		return &model.Event{
			CameraID:  cameraID,
			EventType: mapDahuaCode(code),
			Timestamp: now,
			Priority:  priority,
			Source:    SourceDahua,
			Raw:       json.RawMessage(raw),
		}
	}

	// Blue Iris web request
	if _, ok := payload["camera"]; ok {
		return &model.Event{
			CameraID:  stringField(payload, "camera", "unknown"),
			EventType: stringField(payload, "trigger", "motion"),
			Timestamp: now,
			Priority:  parsePriority(stringField(payload, "priority", "")),
			Source:    SourceBlueIris,
			Raw:       json.RawMessage(raw),
		}
	}

	// Generic fallback
	cameraID := stringField(payload, "camera_id", "")
	if cameraID == "" {
		cameraID = stringField(payload, "id", "unknown")
	}
	eventType := stringField(payload, "event_type", "")
	if eventType == "" {
		eventType = stringField(payload, "type", "motion")
	}
	return &model.Event{
		CameraID:  cameraID,
		EventType: eventType,
		Timestamp: parseTimestamp(stringField(payload, "timestamp", ""), now),
		Priority:  parsePriority(stringField(payload, "priority", "")),
		Source:    SourceGeneric,
		Raw:       json.RawMessage(raw),
	}
}

func mapDahuaCode(code string) string {
	if label, ok := dahuaCodes[code]; ok {
		return label
	}
	return code
}

func stringField(m map[string]interface{}, key, def string) string {
	if m == nil {
		return def
	}
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return def
}

func parsePriority(s string) model.Priority {
	if s == string(model.PriorityHigh) {
		return model.PriorityHigh
	}
	return model.PriorityNormal
}

// parseTimestamp accepts RFC 3339 and the bare camera variant without a
// zone; anything else falls back to the ingestion time.
func parseTimestamp(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return fallback
}
