package batcher

import (
	"fmt"
	"strings"

	"github.com/jwalitptl/camera-relay/internal/model"
)

// formatMessage renders the outbound SMS body. A single event uses the
// configured template; multiple events collapse into a count header
// plus the three most recent lines, a deliberate truncation to respect
// SMS length limits.
func (b *Batcher) formatMessage(events []model.Event, cameraID string) string {
	name := b.cameraName(cameraID)

	if len(events) == 1 {
		format := b.format
		if format == "" {
			format = "{camera_name}: {event_type} at {time}"
		}
		return strings.NewReplacer(
			"{camera_name}", name,
			"{event_type}", events[0].EventType,
			"{time}", b.clock.Now().Format("15:04"),
		).Replace(format)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🚨 %s: %d alerts\n", name, len(events))
	start := len(events) - 3
	if start < 0 {
		start = 0
	}
	for _, evt := range events[start:] {
		fmt.Fprintf(&sb, "• %s at %s\n", evt.EventType, evt.Timestamp.Format("15:04"))
	}
	return sb.String()
}

func (b *Batcher) cameraName(cameraID string) string {
	if name, ok := b.cameraNames[cameraID]; ok {
		return name
	}
	return cameraID
}
