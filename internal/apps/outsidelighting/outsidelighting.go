// Package outsidelighting runs the porch lights around sunset, bedtime and
// late arrivals.
package outsidelighting

import (
	"context"
	"time"

	"github.com/nerrad567/homeapps/internal/automation"
	"github.com/nerrad567/homeapps/internal/hass"
)

// Kind is the registry name of this app.
const Kind = "outsidelighting"

const (
	sunsetLead      = 15 * time.Minute
	settingDuration = 30 * time.Second
	arrivedDuration = 300 * time.Second

	// closeDistance is the proximity at or under which an approaching
	// person triggers the porch light.
	closeDistance = 5

	attrNextSetting = "next_setting"
)

var (
	defaultOffTime = automation.NewTimeOfDay(22, 0, 0)

	lateStart = automation.NewTimeOfDay(22, 0, 0)
	lateEnd   = automation.NewTimeOfDay(1, 0, 0)
)

// App is the outside-lighting app.
type App struct {
	name   string
	rt     *automation.Runtime
	logger automation.Logger

	people        []string
	proximities   []string
	porch         string
	porchOffTime  string
	override      string
	holidayLights string
	holidayMode   string
	sun           string

	offHandle    automation.Handle
	sunsetHandle automation.Handle
	offTime      automation.TimeOfDay
	sunsetAt     time.Time
}

// New builds the app from its arguments.
func New(name string, args automation.Args, deps automation.Deps) (automation.App, error) {
	r := args.Reader()
	a := &App{
		name:          name,
		rt:            deps.Runtime,
		logger:        deps.Logger,
		people:        r.Strings("people"),
		proximities:   r.Strings("proximities"),
		porch:         r.String("front_porch_switch"),
		porchOffTime:  r.String("porch_off_time"),
		override:      r.String("should_override_time"),
		holidayLights: r.String("holiday_lights"),
		holidayMode:   r.String("holiday_mode"),
		sun:           r.StringDefault("sun", "sun.sun"),
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return a, nil
}

// Name implements automation.App.
func (a *App) Name() string { return a.name }

// Initialize implements automation.App.
func (a *App) Initialize(context.Context) error {
	offTime, err := a.rt.TimeState(a.porchOffTime)
	if err != nil {
		return err
	}
	a.scheduleOff(offTime)
	a.scheduleSunset()

	a.rt.ListenState(automation.StateListener{
		Entity:    a.sun,
		Attribute: attrNextSetting,
		Handler:   func(context.Context, hass.StateChange) { a.scheduleSunset() },
	})
	a.rt.ListenState(automation.StateListener{
		Entity:   a.porchOffTime,
		Duration: settingDuration,
		Handler:  a.onOffTimeChanged,
	})
	a.rt.ListenState(automation.StateListener{
		Entity:   a.override,
		Filter:   automation.To(hass.StateOff),
		Duration: settingDuration,
		Handler:  a.onOverrideOff,
	})
	for _, proximity := range a.proximities {
		a.rt.ListenState(automation.StateListener{
			Entity:  proximity,
			Filter:  approaching,
			Handler: a.onApproaching,
		})
	}
	for _, person := range a.people {
		a.rt.ListenState(automation.StateListener{
			Entity:   person,
			Filter:   automation.To(hass.StateHome),
			Duration: arrivedDuration,
			Handler:  a.onArrived,
		})
	}
	return nil
}

// Status implements automation.Statuser.
func (a *App) Status() map[string]any {
	status := map[string]any{"porch_off_time": a.offTime.String()}
	if !a.sunsetAt.IsZero() {
		status["porch_on_at"] = a.sunsetAt
	}
	return status
}

// approaching matches a proximity dropping from beyond to within range.
func approaching(old, new string) bool {
	o, err := automation.ParseInputNumber(old)
	if err != nil {
		return false
	}
	n, err := automation.ParseInputNumber(new)
	if err != nil {
		return false
	}
	return o > closeDistance && n <= closeDistance
}

func (a *App) isLate() bool {
	return a.rt.NowIsBetween(lateStart, lateEnd)
}

func (a *App) scheduleOff(at automation.TimeOfDay) {
	a.rt.Cancel(a.offHandle)
	a.offTime = at
	a.offHandle = a.rt.RunDaily(at, a.onOffTime)
}

// scheduleSunset arms the porch light for the sun's next setting.
func (a *App) scheduleSunset() {
	v, ok := a.rt.Attribute(a.sun, attrNextSetting)
	if !ok {
		return
	}
	setting, err := time.Parse(time.RFC3339, hass.FormatValue(v))
	if err != nil {
		a.logger.Warn("unparsable next setting", "value", v, "error", err)
		return
	}

	at := setting.Add(-sunsetLead)
	if at.Equal(a.sunsetAt) {
		return
	}
	a.rt.Cancel(a.sunsetHandle)
	a.sunsetAt = at
	a.sunsetHandle = a.rt.RunAt(at, a.onSunset)
	a.logger.Debug("porch light scheduled", "at", at)
}

func (a *App) onSunset(ctx context.Context) {
	a.sunsetHandle = 0
	a.porchOn(ctx)
}

func (a *App) onOffTimeChanged(ctx context.Context, change hass.StateChange) {
	at, err := automation.ParseTimeOfDay(change.New)
	if err != nil {
		a.logger.Warn("ignoring porch off time", "value", change.New, "error", err)
		return
	}
	a.scheduleOff(at)
	a.logger.Info("porch off time updated", "time", at.String())

	if at != defaultOffTime && !a.rt.IsOn(a.override) {
		_ = a.rt.TurnOn(ctx, a.override)
	}
}

func (a *App) onOverrideOff(ctx context.Context, _ hass.StateChange) {
	a.resetOffTime(ctx)
}

func (a *App) resetOffTime(ctx context.Context) {
	_ = a.rt.CallService(ctx, "input_datetime", "set_datetime", a.porchOffTime, map[string]any{
		"time": defaultOffTime.String(),
	})
}

func (a *App) onOffTime(ctx context.Context) {
	for _, proximity := range a.proximities {
		if a.rt.CloseToHome(proximity) {
			a.logger.Info("someone close to home, leaving porch on", "proximity", proximity)
			return
		}
	}
	if a.rt.IsOn(a.porch) {
		a.porchOff(ctx)
	}
}

func (a *App) onApproaching(ctx context.Context, _ hass.StateChange) {
	if a.isLate() && !a.rt.IsOn(a.porch) {
		a.logger.Info("someone close to home at night, turning porch on")
		a.porchOn(ctx)
	}
}

func (a *App) onArrived(ctx context.Context, _ hass.StateChange) {
	if a.isLate() && a.rt.IsOn(a.porch) {
		a.logger.Info("someone home at night, turning porch off")
		a.porchOff(ctx)
	}
}

func (a *App) porchOn(ctx context.Context) {
	if !a.rt.IsOn(a.porch) {
		_ = a.rt.TurnOn(ctx, a.porch)
	}
	if a.rt.IsOn(a.holidayMode) && !a.rt.IsOn(a.holidayLights) {
		_ = a.rt.TurnOn(ctx, a.holidayLights)
	}
}

// porchOff also clears a one-night override of the off time.
func (a *App) porchOff(ctx context.Context) {
	_ = a.rt.TurnOff(ctx, a.porch)

	if a.rt.IsOn(a.override) {
		a.logger.Info("off time overridden, resetting to default")
		_ = a.rt.TurnOff(ctx, a.override)
		a.resetOffTime(ctx)
	}
	if a.rt.IsOn(a.holidayMode) && a.rt.IsOn(a.holidayLights) {
		_ = a.rt.TurnOff(ctx, a.holidayLights)
	}
}
