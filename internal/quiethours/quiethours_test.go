package quiethours

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/camera-relay/internal/config"
	"github.com/jwalitptl/camera-relay/internal/model"
	"github.com/jwalitptl/camera-relay/pkg/clock"
)

func policyAt(hour, minute int) *Policy {
	return New(clock.NewFake(time.Date(2026, 3, 1, hour, minute, 0, 0, time.UTC)))
}

func overnight() config.QuietHoursConfig {
	return config.QuietHoursConfig{Enabled: true, Start: "22:00", End: "07:00"}
}

func TestSuppressedInsideOvernightWindow(t *testing.T) {
	p := policyAt(23, 30)
	evt := &model.Event{Priority: model.PriorityNormal}

	assert.True(t, p.Suppressed(evt, overnight()))
}

func TestSuppressedEarlyMorningInsideOvernightWindow(t *testing.T) {
	p := policyAt(6, 30)
	evt := &model.Event{Priority: model.PriorityNormal}

	assert.True(t, p.Suppressed(evt, overnight()))
}

func TestHighPriorityNeverSuppressed(t *testing.T) {
	p := policyAt(23, 30)
	evt := &model.Event{Priority: model.PriorityHigh}

	assert.False(t, p.Suppressed(evt, overnight()))
}

func TestNotSuppressedOutsideWindow(t *testing.T) {
	p := policyAt(8, 0)

	assert.False(t, p.Suppressed(&model.Event{Priority: model.PriorityNormal}, overnight()))
	assert.False(t, p.Suppressed(&model.Event{Priority: model.PriorityHigh}, overnight()))
}

func TestDisabledNeverSuppresses(t *testing.T) {
	p := policyAt(23, 30)
	cfg := config.QuietHoursConfig{Enabled: false, Start: "22:00", End: "07:00"}

	assert.False(t, p.Suppressed(&model.Event{Priority: model.PriorityNormal}, cfg))
}

func TestSameDayWindow(t *testing.T) {
	cfg := config.QuietHoursConfig{Enabled: true, Start: "13:00", End: "15:00"}
	evt := &model.Event{Priority: model.PriorityNormal}

	assert.True(t, policyAt(14, 0).Suppressed(evt, cfg))
	assert.True(t, policyAt(13, 0).Suppressed(evt, cfg))
	assert.True(t, policyAt(15, 0).Suppressed(evt, cfg))
	assert.False(t, policyAt(12, 59).Suppressed(evt, cfg))
	assert.False(t, policyAt(15, 1).Suppressed(evt, cfg))
}

func TestMalformedWindowNeverSuppresses(t *testing.T) {
	cfg := config.QuietHoursConfig{Enabled: true, Start: "not-a-time", End: "07:00"}

	assert.False(t, policyAt(23, 30).Suppressed(&model.Event{Priority: model.PriorityNormal}, cfg))
}
