// Package toggle toggles groups of lights from device button events.
package toggle

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/homeapps/internal/automation"
	"github.com/nerrad567/homeapps/internal/hass"
)

// Kind is the registry name of this app.
const Kind = "toggle"

// EventType is the Zigbee button event.
const EventType = "zha_event"

// debounce drops duplicate button events.
const debounce = 2 * time.Second

type binding struct {
	deviceID string
	command  string
	lights   []string
}

// App is the toggle-by-event app.
type App struct {
	name   string
	rt     *automation.Runtime
	logger automation.Logger

	bindings []binding
}

// New builds the app from its arguments.
func New(name string, args automation.Args, deps automation.Deps) (automation.App, error) {
	entries, err := args.List("events")
	if err != nil {
		return nil, err
	}

	a := &App{name: name, rt: deps.Runtime, logger: deps.Logger}
	for i, entry := range entries {
		r := entry.Reader()
		b := binding{
			deviceID: r.String("event_device_id"),
			command:  r.String("command"),
			lights:   r.Strings("lights"),
		}
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("events[%d]: %w", i, err)
		}
		a.bindings = append(a.bindings, b)
	}
	return a, nil
}

// Name implements automation.App.
func (a *App) Name() string { return a.name }

// Initialize implements automation.App.
func (a *App) Initialize(context.Context) error {
	for _, b := range a.bindings {
		a.rt.ListenEvent(automation.EventListener{
			Type:  EventType,
			Match: map[string]string{"device_id": b.deviceID, "command": b.command},
			Handler: func(ctx context.Context, _ hass.Event) {
				a.toggle(ctx, b.lights)
			},
		})
	}
	return nil
}

// toggle switches the whole group based on the first light so lights
// that drifted apart come back in step.
func (a *App) toggle(ctx context.Context, lights []string) {
	first := lights[0]
	if a.rt.RecentlyTriggered(first, debounce) {
		a.logger.Debug("recently triggered, not toggling", "entity_id", first)
		return
	}

	on := a.rt.IsOn(first)
	a.logger.Info("toggling lights", "lights", lights, "turn_off", on)
	for _, light := range lights {
		if on {
			_ = a.rt.TurnOff(ctx, light)
		} else {
			_ = a.rt.TurnOn(ctx, light)
		}
	}
}
