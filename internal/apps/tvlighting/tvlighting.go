// Package tvlighting follows the televisions with the living room and
// downstairs lights.
package tvlighting

import (
	"context"
	"time"

	"github.com/nerrad567/homeapps/internal/automation"
	"github.com/nerrad567/homeapps/internal/hass"
)

// Kind is the registry name of this app.
const Kind = "tvlighting"

const (
	toggleDuration = 30 * time.Second
	tvOnDuration   = 15 * time.Second
	tvOffDuration  = 120 * time.Second
)

var (
	awakeStart = automation.NewTimeOfDay(5, 30, 0)
	awakeEnd   = automation.NewTimeOfDay(21, 0, 0)

	workWindows = [][2]automation.TimeOfDay{
		{automation.NewTimeOfDay(6, 0, 0), automation.NewTimeOfDay(9, 0, 0)},
		{automation.NewTimeOfDay(11, 0, 0), automation.NewTimeOfDay(13, 30, 0)},
	}
)

// App is the television-lighting app.
type App struct {
	name   string
	rt     *automation.Runtime
	logger automation.Logger

	enabled          string
	downstairsTV     string
	downstairsLights string
	upstairsTV       string
	livingRoomLamps  string
	workDay          string
	guestMode        string
	vacationMode     string
	owner            string

	handles []automation.Handle
}

// New builds the app from its arguments.
func New(name string, args automation.Args, deps automation.Deps) (automation.App, error) {
	r := args.Reader()
	a := &App{
		name:             name,
		rt:               deps.Runtime,
		logger:           deps.Logger,
		enabled:          r.String("living_room_automations_on"),
		downstairsTV:     r.String("downstairs_tv_on"),
		downstairsLights: r.String("downstairs_lights"),
		upstairsTV:       r.String("upstairs_tv_on"),
		livingRoomLamps:  r.String("living_room_lamps"),
		workDay:          r.String("is_work_day"),
		guestMode:        r.String("mode_guest"),
		vacationMode:     r.String("vacation_mode"),
		owner:            r.String("owner"),
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
	if a.rt.IsOn(a.enabled) {
		a.arm()
	}
	a.rt.ListenState(automation.StateListener{
		Entity:   a.enabled,
		Duration: toggleDuration,
		Handler:  a.onToggled,
	})
	return nil
}

// Status implements automation.Statuser.
func (a *App) Status() map[string]any {
	return map[string]any{"armed": len(a.handles) > 0}
}

func (a *App) arm() {
	a.handles = append(a.handles,
		a.rt.ListenState(automation.StateListener{
			Entity:   a.downstairsTV,
			Filter:   automation.To(hass.StateOn),
			Duration: tvOnDuration,
			Handler:  a.lightsFor(a.downstairsLights),
		}),
		a.rt.ListenState(automation.StateListener{
			Entity:   a.upstairsTV,
			Filter:   automation.To(hass.StateOn),
			Duration: tvOnDuration,
			Handler:  a.lightsFor(a.livingRoomLamps),
		}),
		a.rt.ListenState(automation.StateListener{
			Entity:   a.upstairsTV,
			Filter:   automation.To(hass.StateOff),
			Duration: tvOffDuration,
			Handler:  a.onUpstairsTVOffLong,
		}),
		a.rt.ListenState(automation.StateListener{
			Entity:  a.upstairsTV,
			Filter:  automation.To(hass.StateOff),
			Handler: a.onUpstairsTVOff,
		}),
	)
}

func (a *App) onToggled(_ context.Context, change hass.StateChange) {
	a.logger.Info("living room automations changed", "state", change.New)
	a.rt.CancelAll(a.handles)
	a.handles = nil
	if change.New == hass.StateOn {
		a.arm()
	}
}

func (a *App) lightsFor(lights string) automation.StateHandler {
	return func(ctx context.Context, change hass.StateChange) {
		if !a.rt.NowIsBetween(awakeStart, awakeEnd) {
			a.logger.Debug("television on but it is late", "entity_id", change.EntityID)
			return
		}
		if a.rt.IsOn(a.vacationMode) || a.rt.IsOn(lights) {
			return
		}
		a.logger.Info("television on, turning on lights", "entity_id", change.EntityID, "lights", lights)
		_ = a.rt.TurnOn(ctx, lights)
	}
}

func (a *App) onUpstairsTVOffLong(ctx context.Context, _ hass.StateChange) {
	if a.rt.IsOn(a.livingRoomLamps) {
		_ = a.rt.TurnOff(ctx, a.livingRoomLamps)
	}
}

// onUpstairsTVOff lights the way downstairs during the usual work
// transitions.
func (a *App) onUpstairsTVOff(ctx context.Context, _ hass.StateChange) {
	if a.rt.IsOn(a.upstairsTV) ||
		a.rt.IsOn(a.guestMode) ||
		a.rt.IsOn(a.downstairsLights) ||
		!a.rt.IsHome(a.owner) ||
		!a.rt.IsOn(a.workDay) ||
		!a.inWorkWindow() {
		return
	}
	_ = a.rt.TurnOn(ctx, a.downstairsLights)
}

func (a *App) inWorkWindow() bool {
	for _, w := range workWindows {
		if a.rt.NowIsBetween(w[0], w[1]) {
			return true
		}
	}
	return false
}
