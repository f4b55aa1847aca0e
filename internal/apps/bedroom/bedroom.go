// Package bedroom handles the bedside button and late-night lamp lighting.
package bedroom

import (
	"context"

	"github.com/nerrad567/homeapps/internal/automation"
	"github.com/nerrad567/homeapps/internal/hass"
)

// Kind is the registry name of this app.
const Kind = "bedroom"

const (
	buttonEvent   = "zha_event"
	buttonCommand = "single"
)

var (
	lateStart = automation.NewTimeOfDay(21, 0, 0)
	lateEnd   = automation.NewTimeOfDay(23, 59, 59)
)

// App is the bedroom-lighting app.
type App struct {
	name   string
	rt     *automation.Runtime
	logger automation.Logger

	buttonID string
	lamps    string
	lights   string
}

// New builds the app from its arguments.
func New(name string, args automation.Args, deps automation.Deps) (automation.App, error) {
	r := args.Reader()
	a := &App{
		name:     name,
		rt:       deps.Runtime,
		logger:   deps.Logger,
		buttonID: r.String("button_device_id"),
		lamps:    r.String("lamps"),
		lights:   r.String("lights"),
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
	a.rt.ListenEvent(automation.EventListener{
		Type:    buttonEvent,
		Match:   map[string]string{"device_id": a.buttonID, "command": buttonCommand},
		Handler: a.onButton,
	})
	a.rt.ListenState(automation.StateListener{
		Entity:  a.lights,
		Filter:  automation.FromTo(hass.StateOn, hass.StateOff),
		Handler: a.onNightLighting,
	})
	a.rt.ListenState(automation.StateListener{
		Entity:  a.lamps,
		Filter:  automation.FromTo(hass.StateOff, hass.StateOn),
		Handler: a.onNightLighting,
	})
	return nil
}

func (a *App) isLate() bool {
	return a.rt.NowIsBetween(lateStart, lateEnd)
}

func (a *App) onButton(ctx context.Context, _ hass.Event) {
	_ = a.rt.Toggle(ctx, a.lamps)
	if a.isLate() && a.rt.IsOn(a.lights) {
		_ = a.rt.TurnOff(ctx, a.lights)
	}
}

func (a *App) onNightLighting(ctx context.Context, _ hass.StateChange) {
	if !a.isLate() {
		return
	}
	a.logger.Info("switching to night lighting")
	if !a.rt.IsOn(a.lamps) {
		_ = a.rt.TurnOn(ctx, a.lamps)
	}
	if a.rt.IsOn(a.lights) {
		_ = a.rt.TurnOff(ctx, a.lights)
	}
}
