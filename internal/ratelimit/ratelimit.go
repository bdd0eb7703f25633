package ratelimit

import (
	"sync"
	"time"

	"github.com/jwalitptl/camera-relay/internal/config"
	"github.com/jwalitptl/camera-relay/pkg/clock"
)

// window is the trailing duration over which sends are counted.
const window = time.Hour

// Limiter tracks sent notifications per recipient and per
// (recipient, camera) over a sliding one-hour window. It is pure
// admission control: CanSend decides, RecordSent commits, and the two
// are split so a denied batch can be held back rather than dropped.
type Limiter struct {
	mu        sync.Mutex
	clock     clock.Clock
	sent      map[string][]time.Time
	perCamera map[string]map[string][]time.Time
}

func New(clk clock.Clock) *Limiter {
	return &Limiter{
		clock:     clk,
		sent:      make(map[string][]time.Time),
		perCamera: make(map[string]map[string][]time.Time),
	}
}

// CanSend reports whether both the per-recipient and the per-camera
// counters are below their ceilings. Expired timestamps are pruned
// lazily here, never eagerly.
func (l *Limiter) CanSend(recipient, cameraID string, cfg config.RateLimitConfig) bool {
	if !cfg.Enabled {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.clock.Now().Add(-window)

	l.sent[recipient] = prune(l.sent[recipient], cutoff)
	if cams := l.perCamera[recipient]; cams != nil {
		cams[cameraID] = prune(cams[cameraID], cutoff)
	}

	if cfg.MaxPerHour > 0 && len(l.sent[recipient]) >= cfg.MaxPerHour {
		return false
	}
	if cfg.MaxPerCameraPerHour > 0 && len(l.perCamera[recipient][cameraID]) >= cfg.MaxPerCameraPerHour {
		return false
	}
	return true
}

// RecordSent appends the current time to both windows.
func (l *Limiter) RecordSent(recipient, cameraID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.sent[recipient] = append(l.sent[recipient], now)
	if l.perCamera[recipient] == nil {
		l.perCamera[recipient] = make(map[string][]time.Time)
	}
	l.perCamera[recipient][cameraID] = append(l.perCamera[recipient][cameraID], now)
}

// SentLastHour returns the recipient's send count within the trailing
// window, for the stats endpoint.
func (l *Limiter) SentLastHour(recipient string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.clock.Now().Add(-window)
	l.sent[recipient] = prune(l.sent[recipient], cutoff)
	return len(l.sent[recipient])
}

func prune(times []time.Time, cutoff time.Time) []time.Time {
	var kept []time.Time
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}
