package stream

import (
	"fmt"
	"strings"
	"time"
)

// Window is an absolute time range.
type Window struct {
	From  time.Time
	Until time.Time
}

// Size returns Until - From.
func (w Window) Size() time.Duration {
	return w.Until.Sub(w.From)
}

// Midpoint returns the instant halfway between From and Until.
func (w Window) Midpoint() time.Time {
	return w.From.Add(w.Size() / 2)
}

// IsZero reports whether the window was never set.
func (w Window) IsZero() bool {
	return w.From.IsZero() && w.Until.IsZero()
}

// Shift moves both bounds by d.
func (w Window) Shift(d time.Duration) Window {
	return Window{From: w.From.Add(d), Until: w.Until.Add(d)}
}

// String formats the window for logs.
func (w Window) String() string {
	return fmt.Sprintf("[%s, %s]", w.From.Format(time.RFC3339), w.Until.Format(time.RFC3339))
}

// LiveWindow returns the window of the given size ending at now.
func LiveWindow(now time.Time, size time.Duration) Window {
	return Window{From: now.Add(-size), Until: now}
}

// CenteredWindow returns a window of the given size centered on mid.
func CenteredWindow(mid time.Time, size time.Duration) Window {
	return Window{From: mid.Add(-size / 2), Until: mid.Add(size - size/2)}
}

// NearLiveEdge reports whether until is within one window size of now,
// i.e. navigating there would show the live edge.
func NearLiveEdge(now, until time.Time, size time.Duration) bool {
	return now.Sub(until) <= size
}

// Mode is the scheduler's streaming state.
type Mode int

const (
	// ModeClosed means no panel session is open.
	ModeClosed Mode = iota
	// ModePaused shows a fixed window; responses overwrite buffers.
	ModePaused
	// ModeStreaming follows the live edge; responses merge into buffers.
	ModeStreaming
)

// String returns a human-readable mode name.
func (m Mode) String() string {
	switch m {
	case ModeClosed:
		return "closed"
	case ModePaused:
		return "paused"
	case ModeStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// TimeUnit is a user-selectable time window size.
type TimeUnit int

const (
	UnitMinutes TimeUnit = iota
	UnitHour
	UnitDay
	UnitWeek
	UnitMonth
)

const (
	Day   = 24 * time.Hour
	Week  = 7 * Day
	Month = 30 * Day
)

var timeUnitNames = []string{"minutes", "hour", "day", "week", "month"}

// AllTimeUnits returns every unit in increasing size.
func AllTimeUnits() []TimeUnit {
	return []TimeUnit{UnitMinutes, UnitHour, UnitDay, UnitWeek, UnitMonth}
}

// Duration returns the window size for the unit.
func (u TimeUnit) Duration() time.Duration {
	switch u {
	case UnitMinutes:
		return 10 * time.Minute
	case UnitHour:
		return time.Hour
	case UnitDay:
		return Day
	case UnitWeek:
		return Week
	case UnitMonth:
		return Month
	default:
		return 10 * time.Minute
	}
}

// String returns the unit name used in config and on the command line.
func (u TimeUnit) String() string {
	if u < 0 || int(u) >= len(timeUnitNames) {
		return "minutes"
	}
	return timeUnitNames[u]
}

// Label returns a short display label.
func (u TimeUnit) Label() string {
	switch u {
	case UnitMinutes:
		return "10m"
	case UnitHour:
		return "1h"
	case UnitDay:
		return "1d"
	case UnitWeek:
		return "1w"
	case UnitMonth:
		return "1mo"
	default:
		return "10m"
	}
}

// Next returns the next larger unit, saturating at UnitMonth.
func (u TimeUnit) Next() TimeUnit {
	if u >= UnitMonth {
		return UnitMonth
	}
	return u + 1
}

// Prev returns the next smaller unit, saturating at UnitMinutes.
func (u TimeUnit) Prev() TimeUnit {
	if u <= UnitMinutes {
		return UnitMinutes
	}
	return u - 1
}

// ParseTimeUnit parses a unit name. Matching is case-insensitive.
func ParseTimeUnit(s string) (TimeUnit, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range timeUnitNames {
		if n == name {
			return TimeUnit(i), nil
		}
	}
	return UnitMinutes, fmt.Errorf("unknown time window %q (want one of %s)", s, strings.Join(timeUnitNames, ", "))
}

// UnitForDuration returns the unit whose size equals d.
func UnitForDuration(d time.Duration) (TimeUnit, bool) {
	for _, u := range AllTimeUnits() {
		if u.Duration() == d {
			return u, true
		}
	}
	return UnitMinutes, false
}
