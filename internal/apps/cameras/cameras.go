// Package cameras switches indoor cameras with household presence.
package cameras

import (
	"context"
	"fmt"

	"github.com/nerrad567/homeapps/internal/automation"
	"github.com/nerrad567/homeapps/internal/hass"
)

// Kind is the registry name of this app.
const Kind = "cameras"

// App is the cameras app.
type App struct {
	name     string
	rt       *automation.Runtime
	notifier automation.Notifier
	logger   automation.Logger

	people    []string
	cameras   []string
	camerasOn string
	recipient string
}

// New builds the app from its arguments.
func New(name string, args automation.Args, deps automation.Deps) (automation.App, error) {
	r := args.Reader()
	a := &App{
		name:      name,
		rt:        deps.Runtime,
		notifier:  deps.Notifier,
		logger:    deps.Logger,
		people:    r.Strings("people"),
		cameras:   r.Strings("cameras"),
		camerasOn: r.String("cameras_on"),
		recipient: r.StringDefault("notify", "all"),
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
	for _, person := range a.people {
		a.rt.ListenState(automation.StateListener{
			Entity:  person,
			Filter:  automation.To(hass.StateHome),
			Handler: a.onArrived,
		})
	}
	a.rt.ListenState(automation.StateListener{
		Entity:  a.camerasOn,
		Filter:  automation.To(hass.StateOn),
		Handler: a.onArmed,
	})
	return nil
}

func (a *App) onArrived(ctx context.Context, _ hass.StateChange) {
	if !a.rt.AnyoneHome() {
		return
	}
	a.switchCameras(ctx, false)
	if a.rt.IsOn(a.camerasOn) {
		_ = a.rt.TurnOff(ctx, a.camerasOn)
	}
}

func (a *App) onArmed(ctx context.Context, _ hass.StateChange) {
	if a.rt.AnyoneHome() {
		return
	}
	a.switchCameras(ctx, true)
}

func (a *App) switchCameras(ctx context.Context, on bool) {
	changed := false
	for _, camera := range a.cameras {
		if a.rt.IsOn(camera) == on {
			continue
		}
		if on {
			_ = a.rt.TurnOn(ctx, camera)
		} else {
			_ = a.rt.TurnOff(ctx, camera)
		}
		changed = true
	}
	if !changed {
		return
	}

	word := hass.StateOff
	if on {
		word = hass.StateOn
	}
	msg := fmt.Sprintf("Cameras turned %s.", word)
	a.logger.Info(msg)
	if err := a.notifier.Notify(ctx, msg, a.recipient, false); err != nil {
		a.logger.Warn("notification failed", "error", err)
	}
}
