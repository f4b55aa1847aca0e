package automation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/homeapps/internal/hass"
)

// Handle identifies a listener or timer so it can be cancelled.
// The zero Handle is never issued.
type Handle uint64

// StateHandler is called with the change that satisfied a StateListener.
type StateHandler func(ctx context.Context, change hass.StateChange)

// EventHandler is called with a matching event.
type EventHandler func(ctx context.Context, event hass.Event)

// TimerHandler is called when a timer fires.
type TimerHandler func(ctx context.Context)

// StateFilter decides whether an old/new pair is interesting.
type StateFilter func(old, new string) bool

// StateListener is a subscription record for entity state changes.
//
// When Duration is set, a matching change arms a one-shot timer and the
// handler only runs if the watched value has not changed again before it
// fires. Any later change cancels the pending timer, matching or not.
type StateListener struct {
	// Entity is the entity ID to watch.
	Entity string

	// Attribute watches one attribute instead of the state when set.
	Attribute string

	// Filter selects changes; nil accepts every change.
	Filter StateFilter

	// Duration is how long the new value must hold before Handler runs.
	Duration time.Duration

	Handler StateHandler
}

// EventListener is a subscription record for bus events.
type EventListener struct {
	// Type is the event type, e.g. "zha_event".
	Type string

	// Match requires each key of the event data to format to the value.
	Match map[string]string

	Handler EventHandler
}

func (l EventListener) matches(ev hass.Event) bool {
	if ev.Type != l.Type {
		return false
	}
	for k, want := range l.Match {
		if ev.String(k) != want {
			return false
		}
	}
	return true
}

// To matches changes whose new value is v.
func To(v string) StateFilter {
	return func(_, newValue string) bool { return newValue == v }
}

// NotTo matches changes whose new value is anything but v.
func NotTo(v string) StateFilter {
	return func(_, newValue string) bool { return newValue != v }
}

// From matches changes whose old value is v.
func From(v string) StateFilter {
	return func(old, _ string) bool { return old == v }
}

// FromTo matches one exact transition.
func FromTo(from, to string) StateFilter {
	return func(old, newValue string) bool { return old == from && newValue == to }
}

// TimeOfDay is a wall-clock time as seconds since midnight.
type TimeOfDay int

const secondsPerDay = 24 * 60 * 60

// NewTimeOfDay builds a TimeOfDay from its parts.
func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	return TimeOfDay(((hour*60+minute)*60 + second) % secondsPerDay)
}

// TimeOfDayAt returns the wall-clock time of t in t's location.
func TimeOfDayAt(t time.Time) TimeOfDay {
	return NewTimeOfDay(t.Hour(), t.Minute(), t.Second())
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}

	limits := []int{24, 60, 60}
	values := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n >= limits[i] {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		values[i] = n
	}
	return NewTimeOfDay(values[0], values[1], values[2]), nil
}

// Add returns t shifted by d, wrapping around midnight.
func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	secs := (int(t) + int(d/time.Second)) % secondsPerDay
	if secs < 0 {
		secs += secondsPerDay
	}
	return TimeOfDay(secs)
}

// On returns t on the calendar day of day, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	secs := int(t)
	return time.Date(day.Year(), day.Month(), day.Day(), secs/3600, secs%3600/60, secs%60, 0, day.Location())
}

// String formats as HH:MM:SS.
func (t TimeOfDay) String() string {
	secs := int(t)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs%3600/60, secs%60)
}

// Between reports whether t is in [start, end], wrapping past midnight
// when end is before start.
func (t TimeOfDay) Between(start, end TimeOfDay) bool {
	if start <= end {
		return start <= t && t <= end
	}
	return t >= start || t <= end
}

// ParseInputNumber converts an input_number state ("21.0") to an int by
// parsing it as a float and truncating.
func ParseInputNumber(s string) (int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	return int(f), nil
}
