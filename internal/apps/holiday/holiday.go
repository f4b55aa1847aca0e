// Package holiday runs holiday lights while holiday mode is on.
package holiday

import (
	"context"
	"time"

	"github.com/nerrad567/homeapps/internal/automation"
	"github.com/nerrad567/homeapps/internal/hass"
)

// Kind is the registry name of this app.
const Kind = "holiday"

const (
	modeDuration = 15 * time.Second
	awayDuration = 300 * time.Second
)

var (
	lightsOnTime  = automation.NewTimeOfDay(7, 0, 0)
	lightsOffTime = automation.NewTimeOfDay(22, 0, 0)
)

// App is the holiday-lights app.
type App struct {
	name   string
	rt     *automation.Runtime
	logger automation.Logger

	mode   string
	plug   string
	person string

	handles []automation.Handle
}

// New builds the app from its arguments.
func New(name string, args automation.Args, deps automation.Deps) (automation.App, error) {
	r := args.Reader()
	a := &App{
		name:   name,
		rt:     deps.Runtime,
		logger: deps.Logger,
		mode:   r.String("holiday_mode"),
		plug:   r.String("plug"),
		person: r.String("person"),
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
	a.rt.ListenState(automation.StateListener{
		Entity:   a.mode,
		Duration: modeDuration,
		Handler:  a.onModeChanged,
	})
	if a.rt.IsOn(a.mode) {
		a.arm()
	}
	return nil
}

// Armed reports whether the holiday schedule is active.
func (a *App) Armed() bool {
	return len(a.handles) > 0
}

// Status implements automation.Statuser.
func (a *App) Status() map[string]any {
	return map[string]any{"armed": a.Armed()}
}

func (a *App) arm() {
	a.logger.Info("arming holiday lights")
	a.handles = append(a.handles,
		a.rt.RunDaily(lightsOnTime, a.onMorning),
		a.rt.RunDaily(lightsOffTime, a.onNight),
		a.rt.ListenState(automation.StateListener{
			Entity:  a.person,
			Filter:  automation.To(hass.StateHome),
			Handler: a.onArrived,
		}),
		a.rt.ListenState(automation.StateListener{
			Entity:   a.person,
			Filter:   automation.From(hass.StateHome),
			Duration: awayDuration,
			Handler:  a.onLeft,
		}),
	)
}

func (a *App) disarm() {
	a.rt.CancelAll(a.handles)
	a.handles = nil
}

func (a *App) onModeChanged(ctx context.Context, change hass.StateChange) {
	a.disarm()

	switch change.New {
	case hass.StateOn:
		a.arm()
	case hass.StateOff:
		if a.rt.IsOn(a.plug) {
			a.logger.Info("holiday mode off while lights are on, turning off")
			_ = a.rt.TurnOff(ctx, a.plug)
		}
	}
}

func (a *App) onMorning(ctx context.Context) {
	if a.rt.IsHome(a.person) {
		a.setLights(ctx, true)
	}
}

func (a *App) onNight(ctx context.Context) {
	a.setLights(ctx, false)
}

func (a *App) onArrived(ctx context.Context, _ hass.StateChange) {
	a.setLights(ctx, true)
}

func (a *App) onLeft(ctx context.Context, _ hass.StateChange) {
	a.setLights(ctx, false)
}

func (a *App) setLights(ctx context.Context, on bool) {
	current := a.rt.IsOn(a.plug)
	switch {
	case on && !current:
		_ = a.rt.TurnOn(ctx, a.plug)
	case !on && current:
		_ = a.rt.TurnOff(ctx, a.plug)
	}
}
