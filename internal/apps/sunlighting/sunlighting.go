// Package sunlighting dims or brightens lights with the sun's elevation.
package sunlighting

import (
	"context"
	"strconv"
	"time"

	"github.com/nerrad567/homeapps/internal/automation"
	"github.com/nerrad567/homeapps/internal/hass"
)

// Kind is the registry name of this app.
const Kind = "sunlighting"

const (
	// settleDuration lets the light report its brightness after turning on.
	settleDuration = 5 * time.Second

	elevationThreshold = 10.0
	brightnessFull     = 255
	brightnessDimmed   = 128

	attrElevation  = "elevation"
	attrBrightness = "brightness"
)

// App is the sun-lighting app.
type App struct {
	name   string
	rt     *automation.Runtime
	logger automation.Logger

	lights string
	sun    string
}

// New builds the app from its arguments.
func New(name string, args automation.Args, deps automation.Deps) (automation.App, error) {
	r := args.Reader()
	a := &App{
		name:   name,
		rt:     deps.Runtime,
		logger: deps.Logger,
		lights: r.String("lights"),
		sun:    r.StringDefault("sun", "sun.sun"),
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
		Entity:   a.lights,
		Filter:   automation.To(hass.StateOn),
		Duration: settleDuration,
		Handler:  a.onChange,
	})
	a.rt.ListenState(automation.StateListener{
		Entity:    a.sun,
		Attribute: attrElevation,
		Filter:    crossesThreshold,
		Handler:   a.onChange,
	})
	return nil
}

// crossesThreshold matches elevation changes across the threshold in
// either direction.
func crossesThreshold(old, new string) bool {
	o, err := strconv.ParseFloat(old, 64)
	if err != nil {
		return false
	}
	n, err := strconv.ParseFloat(new, 64)
	if err != nil {
		return false
	}
	return (o >= elevationThreshold) != (n >= elevationThreshold)
}

// TargetBrightness returns the brightness for a sun elevation.
func TargetBrightness(elevation float64) int {
	if elevation >= elevationThreshold {
		return brightnessFull
	}
	return brightnessDimmed
}

func (a *App) onChange(ctx context.Context, _ hass.StateChange) {
	// No brightness attribute means the light is off.
	brightness, ok := a.rt.AttributeFloat(a.lights, attrBrightness)
	if !ok {
		return
	}
	elevation, ok := a.rt.AttributeFloat(a.sun, attrElevation)
	if !ok {
		return
	}

	target := TargetBrightness(elevation)
	if int(brightness) == target {
		return
	}
	a.logger.Info("setting light level", "entity_id", a.lights, "brightness", target, "elevation", elevation)
	_ = a.rt.TurnOnWith(ctx, a.lights, map[string]any{attrBrightness: target})
}
