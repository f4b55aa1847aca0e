// Package climate drives a thermostat from household occupancy and a
// day/night schedule.
//
// The occupancy state (Home, Away or Gone) is derived by Transition and
// persisted in a Home Assistant entity so it survives restarts. Every
// evaluation resolves a target temperature and only writes it when the
// thermostat reports something different.
package climate

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/nerrad567/homeapps/internal/automation"
	"github.com/nerrad567/homeapps/internal/hass"
)

// Kind is the registry name of this app.
const Kind = "climate"

const (
	zoneDuration    = 300 * time.Second
	settingDuration = 15 * time.Second

	attrSetpoint = "temperature"
	attrCurrent  = "current_temperature"
	modeCool     = "cool"
)

type entities struct {
	people         []string
	dayTime        string
	nightTime      string
	dayTemperature string
	nightOffset    string
	awayMinutes    string
	awayOffset     string
	goneOffset     string
	thermostat     string
	zoneHome       string
	zoneNearHome   string
	state          string
	notifyUser     string
}

// App is the climate app.
type App struct {
	name     string
	rt       *automation.Runtime
	notifier automation.Notifier
	logger   automation.Logger

	e         entities
	recipient string

	dayHandle   automation.Handle
	nightHandle automation.Handle
	awayHandles []automation.Handle

	state             ThermostatState
	target            int
	dayTime           automation.TimeOfDay
	nightTime         automation.TimeOfDay
	deviationNotified bool

	// sent is the last target the thermostat accepted; sentOK is false
	// until one succeeds and after any failure.
	sent   int
	sentOK bool
}

// New builds the app from its arguments.
func New(name string, args automation.Args, deps automation.Deps) (automation.App, error) {
	r := args.Reader()
	a := &App{
		name:     name,
		rt:       deps.Runtime,
		notifier: deps.Notifier,
		logger:   deps.Logger,
		e: entities{
			people:         r.Strings("people"),
			dayTime:        r.String("day_time"),
			nightTime:      r.String("night_time"),
			dayTemperature: r.String("day_temperature"),
			nightOffset:    r.String("night_offset"),
			awayMinutes:    r.String("away_minutes"),
			awayOffset:     r.String("away_offset"),
			goneOffset:     r.String("gone_offset"),
			thermostat:     r.String("thermostat"),
			zoneHome:       r.String("zone_home"),
			zoneNearHome:   r.String("zone_near_home"),
			state:          r.String("thermostat_state"),
			notifyUser:     r.String("notify_user"),
		},
		recipient: r.String("notify"),
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return a, nil
}

// Name implements automation.App.
func (a *App) Name() string { return a.name }

// Initialize validates the configured entities, registers listeners and
// evaluates once.
func (a *App) Initialize(ctx context.Context) error {
	if _, err := a.settings(); err != nil {
		return err
	}
	awayMinutes, err := a.rt.NumberState(a.e.awayMinutes)
	if err != nil {
		return err
	}

	a.state = StateHome
	if persisted, ok := ParseThermostatState(a.rt.State(a.e.state)); ok {
		a.state = persisted
	}

	for _, person := range a.e.people {
		a.rt.ListenState(automation.StateListener{
			Entity:  person,
			Filter:  automation.To(hass.StateHome),
			Handler: a.onPerson,
		})
	}
	a.listenAway(awayMinutes)

	for _, zone := range []string{a.e.zoneNearHome, a.e.zoneHome} {
		a.rt.ListenState(automation.StateListener{
			Entity:   zone,
			Duration: zoneDuration,
			Handler:  a.onZone,
		})
	}

	for _, entity := range []string{a.e.dayTime, a.e.nightTime} {
		a.rt.ListenState(automation.StateListener{
			Entity:   entity,
			Duration: settingDuration,
			Handler:  a.onScheduleUpdated,
		})
	}
	a.rt.ListenState(automation.StateListener{
		Entity:   a.e.awayMinutes,
		Duration: settingDuration,
		Handler:  a.onAwayMinutesUpdated,
	})
	a.rt.ListenState(automation.StateListener{
		Entity:    a.e.thermostat,
		Attribute: attrCurrent,
		Handler:   a.onReading,
	})

	a.schedule()
	a.evaluate(ctx, TriggerStartup)
	return nil
}

// Status implements automation.Statuser.
func (a *App) Status() map[string]any {
	return map[string]any{
		"state":      string(a.state),
		"target":     a.target,
		"day_time":   a.dayTime.String(),
		"night_time": a.nightTime.String(),
	}
}

func (a *App) listenAway(minutes int) {
	a.rt.CancelAll(a.awayHandles)
	a.awayHandles = a.awayHandles[:0]
	for _, person := range a.e.people {
		h := a.rt.ListenState(automation.StateListener{
			Entity:   person,
			Filter:   automation.NotTo(hass.StateHome),
			Duration: time.Duration(minutes) * time.Minute,
			Handler:  a.onPerson,
		})
		a.awayHandles = append(a.awayHandles, h)
	}
}

// schedule (re)arms the day and night timers from the current entity values.
func (a *App) schedule() {
	a.rt.Cancel(a.dayHandle)
	a.rt.Cancel(a.nightHandle)

	if t, err := a.rt.TimeState(a.e.dayTime); err == nil {
		a.dayTime = t
	}
	if t, err := a.rt.TimeState(a.e.nightTime); err == nil {
		a.nightTime = t
	}
	a.dayHandle = a.rt.RunDaily(a.dayTime, a.onSchedule)
	a.nightHandle = a.rt.RunDaily(a.nightTime, a.onSchedule)
}

func (a *App) onPerson(ctx context.Context, _ hass.StateChange) {
	a.evaluate(ctx, TriggerPerson)
}

func (a *App) onZone(ctx context.Context, _ hass.StateChange) {
	a.evaluate(ctx, TriggerZone)
}

func (a *App) onSchedule(ctx context.Context) {
	a.evaluate(ctx, TriggerSchedule)
}

func (a *App) onScheduleUpdated(_ context.Context, change hass.StateChange) {
	a.schedule()
	a.logger.Info("schedule updated", "entity_id", change.EntityID, "old", change.Old, "new", change.New)
}

func (a *App) onAwayMinutesUpdated(_ context.Context, change hass.StateChange) {
	minutes, err := automation.ParseInputNumber(change.New)
	if err != nil {
		a.logger.Warn("ignoring away minutes", "value", change.New, "error", err)
		return
	}
	a.listenAway(minutes)
	a.logger.Info("away minutes updated", "old", change.Old, "new", change.New)
}

func (a *App) settings() (Settings, error) {
	s := Settings{
		DayStart:   a.dayTime,
		NightStart: a.nightTime,
		HeatMode:   a.rt.State(a.e.thermostat) != modeCool,
	}

	var err error
	if s.DayStart, err = a.rt.TimeState(a.e.dayTime); err != nil {
		return s, err
	}
	if s.NightStart, err = a.rt.TimeState(a.e.nightTime); err != nil {
		return s, err
	}
	numbers := []struct {
		entity string
		dst    *int
	}{
		{a.e.dayTemperature, &s.DayTemperature},
		{a.e.nightOffset, &s.NightOffset},
		{a.e.awayOffset, &s.AwayOffset},
		{a.e.goneOffset, &s.GoneOffset},
	}
	for _, n := range numbers {
		if *n.dst, err = a.rt.NumberState(n.entity); err != nil {
			return s, err
		}
	}
	return s, nil
}

func (a *App) signals() Signals {
	sig := Signals{}
	for _, person := range a.e.people {
		if a.rt.IsHome(person) {
			sig.PeopleHome = true
			break
		}
	}
	// An unreadable zone counts as empty.
	sig.HomeZone, _ = a.rt.NumberState(a.e.zoneHome)
	sig.NearHomeZone, _ = a.rt.NumberState(a.e.zoneNearHome)
	return sig
}

func (a *App) evaluate(ctx context.Context, trig Trigger) {
	s, err := a.settings()
	if err != nil {
		a.logger.Warn("skipping evaluation", "trigger", trig.String(), "error", err)
		return
	}

	setpoint, known := a.rt.AttributeFloat(a.e.thermostat, attrSetpoint)
	if !known {
		setpoint = math.NaN()
	}

	d := Decide(a.state, trig, a.signals(), s, a.rt.Now(), setpoint)
	a.logger.Info("thermostat evaluated",
		"trigger", trig.String(),
		"previous", string(a.state),
		"state", string(d.State),
		"target", d.Target,
		"apply", d.Apply,
	)

	if a.rt.State(a.e.state) != string(d.State) {
		_ = a.rt.SetState(ctx, a.e.state, string(d.State), nil)
	}
	a.state = d.State
	a.target = d.Target

	applied := false
	if d.Apply && !(a.sentOK && a.sent == d.Target) {
		err := a.rt.CallService(ctx, "climate", "set_temperature", a.e.thermostat, map[string]any{
			"temperature": d.Target,
		})
		a.sent, a.sentOK, applied = d.Target, err == nil, err == nil
	}

	if a.rt.IsOn(a.e.notifyUser) {
		msg := fmt.Sprintf("Climate: People are %s. Temperature set to %d.", d.State, d.Target)
		if trig == TriggerSchedule {
			msg = fmt.Sprintf("Climate: Temperature set to %d.", d.Target)
		}
		a.notify(ctx, msg)
	}

	fields := map[string]any{"target": d.Target, "applied": applied}
	if known {
		fields["setpoint"] = setpoint
	}
	a.rt.Record("thermostat", map[string]string{
		"app":     a.name,
		"state":   string(d.State),
		"trigger": trig.String(),
	}, fields)
}

// onReading watches the measured temperature while someone is home and
// warns once per excursion.
func (a *App) onReading(ctx context.Context, change hass.StateChange) {
	current, err := strconv.ParseFloat(change.New, 64)
	if err != nil {
		return
	}
	previous, err := strconv.ParseFloat(change.Old, 64)
	if err != nil {
		return
	}
	setpoint, ok := a.rt.AttributeFloat(a.e.thermostat, attrSetpoint)
	if !ok {
		return
	}

	heat := a.rt.State(a.e.thermostat) != modeCool
	if !Deviated(heat, setpoint, previous, current) {
		a.deviationNotified = false
		return
	}
	if a.state != StateHome || a.deviationNotified {
		return
	}

	a.deviationNotified = true
	a.notify(ctx, fmt.Sprintf("Climate: Temperature is %s but set to %s.",
		hass.FormatValue(current), hass.FormatValue(setpoint)))
}

func (a *App) notify(ctx context.Context, msg string) {
	if err := a.notifier.Notify(ctx, msg, a.recipient, false); err != nil {
		a.logger.Warn("notification failed", "error", err)
	}
}
