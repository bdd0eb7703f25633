package quiethours

import (
	"time"

	"github.com/jwalitptl/camera-relay/internal/config"
	"github.com/jwalitptl/camera-relay/internal/model"
	"github.com/jwalitptl/camera-relay/pkg/clock"
)

// Policy decides whether an event is suppressed by the configured
// quiet-hours window. High-priority events always bypass the window.
type Policy struct {
	clock clock.Clock
}

func New(clk clock.Clock) *Policy {
	return &Policy{clock: clk}
}

// Suppressed reports whether the event should be dropped without
// notification. A malformed window never suppresses.
func (p *Policy) Suppressed(evt *model.Event, cfg config.QuietHoursConfig) bool {
	if !cfg.Enabled {
		return false
	}
	if evt.Priority == model.PriorityHigh {
		return false
	}

	start, err := time.Parse("15:04", cfg.Start)
	if err != nil {
		return false
	}
	end, err := time.Parse("15:04", cfg.End)
	if err != nil {
		return false
	}

	now := p.clock.Now()
	nowMin := now.Hour()*60 + now.Minute()
	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()

	// A window that starts after it ends wraps past midnight.
	if startMin > endMin {
		return nowMin >= startMin || nowMin <= endMin
	}
	return nowMin >= startMin && nowMin <= endMin
}
