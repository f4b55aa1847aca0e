// Package worklighting turns on the dining room lights when work breaks
// for lunch.
package worklighting

import (
	"context"
	"time"

	"github.com/nerrad567/homeapps/internal/automation"
	"github.com/nerrad567/homeapps/internal/hass"
)

// Kind is the registry name of this app.
const Kind = "worklighting"

const officeOffDuration = 30 * time.Second

var (
	lunchStart = automation.NewTimeOfDay(11, 0, 0)
	lunchEnd   = automation.NewTimeOfDay(13, 30, 0)
)

// App is the work-lighting app.
type App struct {
	name   string
	rt     *automation.Runtime
	logger automation.Logger

	diningLights string
	officeLights string
	workDay      string
	guestMode    string
	owner        string
}

// New builds the app from its arguments.
func New(name string, args automation.Args, deps automation.Deps) (automation.App, error) {
	r := args.Reader()
	a := &App{
		name:         name,
		rt:           deps.Runtime,
		logger:       deps.Logger,
		diningLights: r.String("dining_room_lights"),
		officeLights: r.String("office_lights"),
		workDay:      r.String("is_work_day"),
		guestMode:    r.String("mode_guest"),
		owner:        r.String("owner"),
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
		Entity:   a.officeLights,
		Filter:   automation.To(hass.StateOff),
		Duration: officeOffDuration,
		Handler:  a.onOfficeOff,
	})
	return nil
}

func (a *App) onOfficeOff(ctx context.Context, _ hass.StateChange) {
	if a.rt.IsOn(a.guestMode) ||
		a.rt.IsOn(a.diningLights) ||
		!a.rt.IsHome(a.owner) ||
		!a.rt.IsOn(a.workDay) ||
		!a.rt.NowIsBetween(lunchStart, lunchEnd) {
		return
	}
	a.logger.Info("office lights off at lunch, turning on dining room lights")
	_ = a.rt.TurnOn(ctx, a.diningLights)
}
