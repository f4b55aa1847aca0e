package climate

import (
	"time"

	"github.com/nerrad567/homeapps/internal/automation"
)

// ThermostatState is the occupancy state driving the set point. Its value
// is what gets persisted in the thermostat_state entity.
type ThermostatState string

const (
	StateHome ThermostatState = "Home"
	StateAway ThermostatState = "Away"
	StateGone ThermostatState = "Gone"
)

// ParseThermostatState parses a persisted state.
func ParseThermostatState(s string) (ThermostatState, bool) {
	switch ThermostatState(s) {
	case StateHome, StateAway, StateGone:
		return ThermostatState(s), true
	default:
		return "", false
	}
}

// Trigger is what caused a re-evaluation.
type Trigger int

const (
	TriggerStartup Trigger = iota
	TriggerPerson
	TriggerZone
	TriggerSchedule
)

func (t Trigger) String() string {
	switch t {
	case TriggerStartup:
		return "startup"
	case TriggerPerson:
		return "person"
	case TriggerZone:
		return "zone"
	case TriggerSchedule:
		return "schedule"
	default:
		return "unknown"
	}
}

// Signals are the occupancy inputs at decision time.
type Signals struct {
	PeopleHome   bool
	HomeZone     int
	NearHomeZone int
}

func (s Signals) zoneOccupied() bool {
	return s.HomeZone > 0 || s.NearHomeZone > 0
}

func (s Signals) occupied() bool {
	return s.PeopleHome || s.zoneOccupied()
}

// Transition computes the next occupancy state.
//
// Gone is entered only from a zone-level signal (or at startup) while
// nobody is home and both zones are empty. Once Gone, person triggers keep
// it as long as the zones stay empty. A schedule trigger never moves
// occupancy, except that Gone is not held against an occupancy signal.
func Transition(prev ThermostatState, trig Trigger, sig Signals) ThermostatState {
	if trig == TriggerSchedule && (prev != StateGone || !sig.occupied()) {
		return prev
	}
	switch {
	case sig.PeopleHome:
		return StateHome
	case sig.zoneOccupied():
		return StateAway
	case prev == StateGone, trig == TriggerZone, trig == TriggerStartup:
		return StateGone
	default:
		return StateAway
	}
}

// SignedOffset orients an offset for the HVAC mode: heating saves energy
// by going lower, cooling by going higher.
func SignedOffset(o int, heat bool) int {
	if heat {
		return -o
	}
	return o
}

// dayLead starts the day window slightly early so the day-start timer
// itself lands inside it.
const dayLead = 5 * time.Second

// Settings are the user-tunable inputs of Resolve.
type Settings struct {
	DayStart       automation.TimeOfDay
	NightStart     automation.TimeOfDay
	DayTemperature int
	NightOffset    int
	AwayOffset     int
	GoneOffset     int
	HeatMode       bool
}

// IsDay reports whether t falls in [DayStart-5s, NightStart).
func (s Settings) IsDay(t automation.TimeOfDay) bool {
	return t != s.NightStart && t.Between(s.DayStart.Add(-dayLead), s.NightStart)
}

// Resolve maps an occupancy state and time to a target temperature.
func Resolve(state ThermostatState, now time.Time, s Settings) int {
	day := s.DayTemperature
	base := day - s.NightOffset
	if s.IsDay(automation.TimeOfDayAt(now)) {
		base = day
	}

	switch state {
	case StateGone:
		return day + SignedOffset(s.GoneOffset, s.HeatMode)
	case StateAway:
		return base + SignedOffset(s.AwayOffset, s.HeatMode)
	default:
		return base
	}
}

// Decision is the outcome of one evaluation.
type Decision struct {
	State  ThermostatState
	Target int

	// Apply is false when the thermostat already reports Target.
	// Callers may still skip a command they already sent.
	Apply bool
}

// Decide runs Transition and Resolve. setpoint is the thermostat's
// reported set temperature; pass NaN when it is unknown.
func Decide(prev ThermostatState, trig Trigger, sig Signals, s Settings, now time.Time, setpoint float64) Decision {
	state := Transition(prev, trig, sig)
	target := Resolve(state, now, s)
	return Decision{
		State:  state,
		Target: target,
		Apply:  float64(target) != setpoint,
	}
}

// deviationThreshold is how far past the set point a reading must be
// before it counts as a deviation.
const deviationThreshold = 2.0

// Deviated reports whether a reading moved the wrong way for the HVAC
// mode (hotter while heating, colder while cooling) and sits at least
// two degrees past the set point.
func Deviated(heat bool, setpoint, previous, current float64) bool {
	if heat {
		return current > previous && current-setpoint >= deviationThreshold
	}
	return current < previous && setpoint-current >= deviationThreshold
}
