package ranking

import (
	"strings"
	"time"
)

// Window is a trending lookback period.
type Window string

// Supported windows.
const (
	WindowHour  Window = "1h"
	WindowDay   Window = "24h"
	WindowWeek  Window = "7d"
	WindowMonth Window = "30d"
)

// DefaultWindow applies when the requested window is missing or unknown.
const DefaultWindow = WindowDay

var windowDurations = map[Window]time.Duration{
	WindowHour:  time.Hour,
	WindowDay:   24 * time.Hour,
	WindowWeek:  7 * 24 * time.Hour,
	WindowMonth: 30 * 24 * time.Hour,
}

// ParseWindow resolves a period query value, falling back to DefaultWindow.
func ParseWindow(raw string) Window {
	window := Window(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := windowDurations[window]; ok {
		return window
	}
	return DefaultWindow
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	if duration, ok := windowDurations[w]; ok {
		return duration
	}
	return windowDurations[DefaultWindow]
}

// Since returns the earliest creation time inside the window ending at now.
func (w Window) Since(now time.Time) time.Time {
	return now.Add(-w.Duration())
}
